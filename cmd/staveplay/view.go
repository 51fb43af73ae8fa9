package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/staveplay/staveplay/internal/library"
	"github.com/staveplay/staveplay/internal/musicxml"
	"github.com/staveplay/staveplay/internal/score"
	"github.com/staveplay/staveplay/internal/ui"
)

var (
	viewInstrument string
	viewLibraryDir string
	viewMuted      bool
)

func init() {
	viewCmd.Flags().StringVar(&viewInstrument, "instrument", "piano", "instrument: piano|organ|strings")
	viewCmd.Flags().StringVar(&viewLibraryDir, "library", defaultLibraryDir(), "score library directory")
	viewCmd.Flags().BoolVar(&viewMuted, "muted", false, "run without audio output")
	rootCmd.AddCommand(viewCmd)
}

var viewCmd = &cobra.Command{
	Use:   "view [score file]",
	Short: "Open the interactive score viewer",
	Long: `Opens the score viewer window. Click notes to select them, drag to
select a range and adjust it by its handles, then press play or space to
hear the selection. Without a score file the viewer opens on the library.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func defaultLibraryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "staveplay-library"
	}
	return filepath.Join(home, ".staveplay", "library")
}

// emptyScore is what the viewer shows before a library pick.
func emptyScore() *score.Score {
	return &score.Score{Tempo: 120, TimeSignature: "4/4"}
}

func runView(cmd *cobra.Command, args []string) error {
	inst, err := parseInstrument(viewInstrument)
	if err != nil {
		return err
	}
	logger := newLogger()
	store, err := library.Open(viewLibraryDir, logger)
	if err != nil {
		return err
	}

	title := "staveplay"
	sc := emptyScore()
	if len(args) == 1 {
		sc, err = musicxml.ParseFile(args[0])
		if err != nil {
			return err
		}
		title = sc.Title
	}

	opts := []ui.Option{
		ui.WithLogger(logger),
		ui.WithStore(store),
		ui.WithInstrument(inst),
	}
	if !viewMuted {
		opts = append(opts, ui.WithAudioDevice())
	}
	game, err := ui.New(sc, opts...)
	if err != nil {
		return err
	}
	defer game.Close()
	return game.Run(title)
}
