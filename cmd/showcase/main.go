package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
	"github.com/satindergrewal/lunabell/internal/config"
	"github.com/satindergrewal/lunabell/internal/showcase"
	"github.com/satindergrewal/lunabell/internal/stream"
	"github.com/satindergrewal/lunabell/internal/web"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ConfigFile).Msg("config file ignored")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Float64("bpm", cfg.BPM).Msg("lunabell starting up")

	// Audio pipeline: silence until the showcase attaches its graph
	pipeline := audio.NewPipeline()
	go pipeline.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	if cfg.LocalPlayback {
		speaker, err := stream.NewSpeaker(broadcaster)
		if err != nil {
			log.Warn().Err(err).Msg("local playback unavailable")
		} else {
			go speaker.Run(ctx)
		}
	}

	show := showcase.New(showcase.Options{
		Scheduler:     cfg.Scheduler(),
		FPS:           cfg.FPS,
		PulseDuration: cfg.PulseDuration,
		MasterGain:    cfg.MasterGain,
	})
	show.SetSink(pipeline)
	go show.Run(ctx)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.OpusBitrate)
	stateHandler := stream.NewStateHandler(show)

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate))
	mux.Handle("/offer", webrtcHandler)
	mux.Handle("/ws", stateHandler)

	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		resp := map[string]any{"ok": true}
		err := show.Start()
		switch {
		case errors.Is(err, showcase.ErrAudioUnavailable):
			// visuals still run; tell the user instead of failing
			log.Warn().Err(err).Msg("started without audio")
			resp["message"] = "Audio is not available. The show plays silently."
		case err != nil:
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		st := show.State()
		resp["started"] = st.Started
		resp["audio"] = st.Audio
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		attached, pos, audioTime := pipeline.Status()
		sched, running := show.SchedulerStatus()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"state":            show.State(),
			"scheduler":        sched,
			"scheduler_active": running,
			"attached":         attached,
			"position":         pos.Seconds(),
			"audio_time":       audioTime,
			"listeners":        broadcaster.Counts(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"ws_clients":       stateHandler.ClientCount(),
			"frames_sent":      broadcaster.FramesSent(),
			"config": map[string]any{
				"bpm":            show.BPM(),
				"lookahead_ms":   cfg.Lookahead.Milliseconds(),
				"poll_ms":        cfg.PollInterval.Milliseconds(),
				"start_offset":   cfg.StartOffset.Milliseconds(),
				"pulse_ms":       cfg.PulseDuration.Milliseconds(),
				"master_gain":    cfg.MasterGain,
				"local_playback": cfg.LocalPlayback,
			},
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := show.Close(); err != nil {
			log.Warn().Err(err).Msg("showcase close")
		}
		server.Close()
	}()

	log.Info().Str("addr", addr).Msg("lunabell live")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
}
