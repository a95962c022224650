// Package beat derives a discrete beat index from frame-callback timestamps.
package beat

import (
	"math"
	"time"
)

// SecondsPerBeat returns the beat period for a tempo in beats per minute.
func SecondsPerBeat(bpm float64) float64 {
	return 60 / bpm
}

// Period returns the beat period as a duration.
func Period(bpm float64) time.Duration {
	return time.Duration(SecondsPerBeat(bpm) * float64(time.Second))
}

// At returns floor(elapsed / period). Non-positive input yields beat 0.
func At(elapsed time.Duration, bpm float64) int {
	if elapsed <= 0 || bpm <= 0 {
		return 0
	}
	return int(math.Floor(elapsed.Seconds() / SecondsPerBeat(bpm)))
}
