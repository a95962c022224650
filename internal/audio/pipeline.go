package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pipeline renders the attached context into PCM frames at real-time rate.
// While nothing is attached it emits silence so listeners stay connected.
type Pipeline struct {
	frameCh chan []int16

	mu       sync.RWMutex
	src      *Context
	rendered int64 // frames sent since start
}

// NewPipeline creates an audio pipeline with no context attached.
func NewPipeline() *Pipeline {
	return &Pipeline{
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Attach makes c the source of subsequent frames.
func (p *Pipeline) Attach(c *Context) {
	p.mu.Lock()
	p.src = c
	p.mu.Unlock()
	log.Info().Int("sample_rate", c.SampleRate()).Msg("audio context attached")
}

// Detach stops pulling from the current context.
func (p *Pipeline) Detach() {
	p.mu.Lock()
	was := p.src != nil
	p.src = nil
	p.mu.Unlock()
	if was {
		log.Info().Msg("audio context detached")
	}
}

// Status returns whether a context is attached, the stream position, and
// the context clock.
func (p *Pipeline) Status() (attached bool, position time.Duration, audioTime float64) {
	p.mu.RLock()
	src := p.src
	position = time.Duration(p.rendered) * FrameDuration
	p.mu.RUnlock()
	if src != nil {
		audioTime = src.CurrentTime()
	}
	return src != nil, position, audioTime
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	mono := make([]float64, FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := p.renderFrame(mono)

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// renderFrame pulls one frame from the attached context, or silence.
func (p *Pipeline) renderFrame(mono []float64) []int16 {
	p.mu.Lock()
	src := p.src
	p.rendered++
	p.mu.Unlock()

	if src == nil {
		return make([]int16, FrameSamples)
	}
	src.Render(mono)
	return ToPCM(mono)
}
