package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/staveplay/staveplay/internal/musicxml"
	"github.com/staveplay/staveplay/internal/score"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <score file>",
	Short: "Print a summary of a MusicXML score",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	sc, err := musicxml.ParseFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("title:     %s\n", sc.Title)
	if sc.Composer != "" {
		fmt.Printf("composer:  %s\n", sc.Composer)
	}
	fmt.Printf("time:      %s\n", sc.TimeSignature)
	if sc.KeySignature != "" {
		fmt.Printf("key:       %s\n", sc.KeySignature)
	}
	fmt.Printf("tempo:     %d BPM\n", sc.Tempo)
	fmt.Printf("measures:  %d\n", len(sc.Measures))
	notes, rests := 0, 0
	for _, m := range sc.Measures {
		for _, n := range m.Notes {
			if n.Pitch == score.RestPitch {
				rests++
			} else {
				notes++
			}
		}
	}
	fmt.Printf("notes:     %d (%d rests)\n", notes, rests)
	fmt.Printf("beats:     %.1f\n", sc.TotalBeats())
	return nil
}
