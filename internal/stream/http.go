package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
)

// HTTPHandler serves a chunked MP3 audio stream via HTTP.
// Each connection spawns an FFmpeg process to encode PCM -> MP3 in real-time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	bitrate     string
}

// NewHTTPHandler creates an HTTP stream handler encoding at bitrate
// (ffmpeg syntax, e.g. "192k").
func NewHTTPHandler(b *Broadcaster, bitrate string) *HTTPHandler {
	if bitrate == "" {
		bitrate = "192k"
	}
	return &HTTPHandler{broadcaster: b, bitrate: bitrate}
}

// encoderArgs builds the ffmpeg command line: PCM stdin -> MP3 stdout.
func (h *HTTPHandler) encoderArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", h.bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "lunabell showcase")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", h.encoderArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Error().Err(err).Msg("http stream: stdin pipe")
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error().Err(err).Msg("http stream: stdout pipe")
		return
	}

	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Msg("http stream: ffmpeg start")
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	listener := h.broadcaster.Subscribe("http")
	defer h.broadcaster.Unsubscribe(listener)

	lg := log.With().Str("listener", listener.ID).Logger()
	lg.Info().Int("total", h.broadcaster.ListenerCount()).Msg("http listener connected")
	defer lg.Info().Msg("http listener disconnected")

	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				lg.Warn().Err(err).Msg("http stream: ffmpeg read")
			}
			break
		}
	}

	cmd.Wait()
}
