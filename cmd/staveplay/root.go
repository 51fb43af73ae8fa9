package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/staveplay/staveplay"
	gamelog "github.com/staveplay/staveplay/internal/log"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "staveplay",
	Short: "Sheet-music viewer and practice player",
	Long: `staveplay loads MusicXML scores, lays them out on wrapped staves and
plays them back. Notes can be selected with the mouse, looped and slowed
down, with an optional silent pause between loop repeats for practising.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error|none")
}

func newLogger() *gamelog.Logger {
	return gamelog.New(os.Stderr, gamelog.LevelFromString(logLevel))
}

func parseInstrument(name string) (staveplay.Instrument, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "piano":
		return staveplay.InstrumentPiano, nil
	case "organ":
		return staveplay.InstrumentOrgan, nil
	case "strings":
		return staveplay.InstrumentStrings, nil
	default:
		return "", fmt.Errorf("invalid instrument %q (expected piano|organ|strings)", name)
	}
}
