// Package scene maps the cumulative beat count onto the showcase timeline.
package scene

import (
	"fmt"
	"math"
)

// Scene is one of the four full-screen presentation states.
type Scene int

const (
	City Scene = iota
	Beach
	Product
	End
)

// Timeline boundaries, in beats.
const (
	BeachAt   = 8
	ProductAt = 16
	EndAt     = 32

	// CycleBeats is the period of the progress sawtooth.
	CycleBeats = 8
	// MaxTilt is the rotation amplitude of the product illustration, in degrees.
	MaxTilt = 12.0
)

var names = [...]string{"city", "beach", "product", "end"}

func (s Scene) String() string {
	if s < City || s > End {
		return fmt.Sprintf("scene(%d)", int(s))
	}
	return names[s]
}

func (s Scene) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Scene) UnmarshalText(b []byte) error {
	for i, n := range names {
		if n == string(b) {
			*s = Scene(i)
			return nil
		}
	}
	return fmt.Errorf("scene: unknown %q", b)
}

// For returns the scene active at beat. End is absorbing.
func For(beat int) Scene {
	switch beat = max(beat, 0); {
	case beat < BeachAt:
		return City
	case beat < ProductAt:
		return Beach
	case beat < EndAt:
		return Product
	default:
		return End
	}
}

// Progress is ((beat mod 8) + 1) / 8, a sawtooth in (0, 1].
func Progress(beat int) float64 {
	beat = max(beat, 0)
	return float64(beat%CycleBeats+1) / CycleBeats
}

// Rotation converts progress into the illustration tilt in degrees.
func Rotation(progress float64) float64 {
	return math.Sin(progress*math.Pi*2) * MaxTilt
}

// Frame is everything the presentation needs for one beat.
type Frame struct {
	Beat     int     `json:"beat"`
	Scene    Scene   `json:"scene"`
	Progress float64 `json:"progress"`
	Rotation float64 `json:"rotation"`
}

// At derives the frame for beat.
func At(beat int) Frame {
	p := Progress(beat)
	return Frame{
		Beat:     max(beat, 0),
		Scene:    For(beat),
		Progress: p,
		Rotation: Rotation(p),
	}
}
