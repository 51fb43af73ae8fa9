package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/staveplay/staveplay"
)

var (
	playTempo      int
	playInstrument string
	playSampleRate int
	playLoop       bool
	playLoops      int
	playSkipBeats  float64
	playWAVPath    string
)

func init() {
	playCmd.Flags().IntVar(&playTempo, "tempo", 0, "override the score tempo in BPM (0 = use the score's)")
	playCmd.Flags().StringVar(&playInstrument, "instrument", "piano", "instrument: piano|organ|strings")
	playCmd.Flags().IntVar(&playSampleRate, "sample-rate", 48000, "output sample rate")
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "loop the whole score")
	playCmd.Flags().IntVar(&playLoops, "loops", 0, "when --loop, stop after N repeats (0 = loop forever)")
	playCmd.Flags().Float64Var(&playSkipBeats, "skip", 0, "silent beats between loop repeats")
	playCmd.Flags().StringVar(&playWAVPath, "wav", "", "render to a WAV file instead of playing")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <score file>",
	Short: "Play a MusicXML score from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	inst, err := parseInstrument(playInstrument)
	if err != nil {
		return err
	}
	opts := []staveplay.PlayerOption{
		staveplay.WithSampleRate(playSampleRate),
		staveplay.WithInstrument(inst),
		staveplay.WithLogger(newLogger()),
	}
	if playTempo > 0 {
		opts = append(opts, staveplay.WithTempo(playTempo))
	}
	if playWAVPath == "" {
		opts = append(opts, staveplay.WithAudioDevice())
	}
	pl, err := staveplay.NewPlayer(opts...)
	if err != nil {
		return err
	}
	defer pl.Close()

	if err := pl.LoadMusicXML(args[0]); err != nil {
		return err
	}
	sc := pl.Score()
	fmt.Printf("%s", sc.Title)
	if sc.Composer != "" {
		fmt.Printf(" (%s)", sc.Composer)
	}
	fmt.Printf(": %d measures, %v at %d BPM\n", len(sc.Measures), pl.Duration().Round(10*time.Millisecond), pl.Tempo())

	if playWAVPath != "" {
		if err := pl.RenderWAV(playWAVPath); err != nil {
			return err
		}
		fmt.Printf("rendered to %s\n", playWAVPath)
		return nil
	}

	if playLoop {
		// A plain loop needs no range; the skip pause does.
		var rng *staveplay.LoopRange
		if playSkipBeats > 0 {
			rng = &staveplay.LoopRange{
				EndBeat:   sc.TotalBeats(),
				SkipBeats: playSkipBeats,
			}
		}
		pl.SetLoop(true, rng)
	}
	events := pl.Watch()
	if err := pl.PlayAll(); err != nil {
		return err
	}
	loopCount := 0
	for ev := range events {
		switch ev.Kind {
		case staveplay.EventPlaybackEnded:
			fmt.Println("playback completed")
			return nil
		case staveplay.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if playLoop && playLoops > 0 && loopCount >= playLoops {
				pl.Stop()
			}
		}
	}
	return nil
}
