package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/render"
)

func main() {
	opts := render.DefaultOptions()

	out := flag.String("out", "loop.wav", "output WAV path")
	seconds := flag.Float64("seconds", opts.Duration.Seconds(), "length of the render")
	flag.Float64Var(&opts.Scheduler.BPM, "bpm", opts.Scheduler.BPM, "tempo")
	flag.Float64Var(&opts.MasterGain, "gain", opts.MasterGain, "master gain")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	opts.Duration = time.Duration(*seconds * float64(time.Second))

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("create output")
	}
	defer f.Close()

	sum, err := render.Bounce(f, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("render failed")
	}
	for _, c := range sum.Cues {
		log.Info().Dur("at", c.At).Int("beat", c.Beat).Stringer("scene", c.Scene).Msg("cue")
	}
	log.Info().
		Str("path", *out).
		Int64("frames", sum.Frames).
		Int("beats", sum.Beats).
		Msg("bounced")
}
