package stream

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/audio"
)

// Speaker plays the broadcast through the host sound card.
type Speaker struct {
	broadcaster *Broadcaster
	ctx         *oto.Context
	ready       chan struct{}
}

// NewSpeaker opens the default output device.
func NewSpeaker(b *Broadcaster) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(audio.SampleRate, audio.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open output device: %w", err)
	}
	return &Speaker{broadcaster: b, ctx: ctx, ready: ready}, nil
}

// Run plays frames until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}

	listener := s.broadcaster.Subscribe("speaker")
	defer s.broadcaster.Unsubscribe(listener)

	player := s.ctx.NewPlayer(newFrameReader(ctx, listener))
	defer player.Close()
	player.Play()
	log.Info().Str("listener", listener.ID).Msg("local playback started")

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	if err := player.Err(); err != nil {
		log.Warn().Err(err).Msg("local playback stopped")
	}
}

// frameReader adapts a listener's frame channel to the io.Reader oto pulls
// from.
type frameReader struct {
	ctx     context.Context
	l       *Listener
	pending []byte
}

func newFrameReader(ctx context.Context, l *Listener) *frameReader {
	return &frameReader{ctx: ctx, l: l}
}

func (r *frameReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		select {
		case <-r.ctx.Done():
			return 0, io.EOF
		case <-r.l.Done():
			return 0, io.EOF
		case frame, ok := <-r.l.C:
			if !ok {
				return 0, io.EOF
			}
			r.pending = audio.SamplesToBytes(frame)
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
