package main

import (
	"github.com/spf13/cobra"

	"github.com/staveplay/staveplay/internal/library"
	"github.com/staveplay/staveplay/internal/server"
)

var (
	serveAddr       string
	serveLibraryDir string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveLibraryDir, "library", defaultLibraryDir(), "score library directory")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the score library over HTTP",
	Long: `Serves the score library as a small JSON API: upload MusicXML with
POST /scores, list with GET /scores, fetch metadata or the stored
document with GET /scores/{id} and /scores/{id}/document, remove with
DELETE /scores/{id}.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	store, err := library.Open(serveLibraryDir, logger)
	if err != nil {
		return err
	}
	return server.New(store, logger).ListenAndServe(serveAddr)
}
