package scheduler

import "github.com/satindergrewal/lunabell/internal/audio"

// silence is the floor exponential envelopes decay to.
const silence = 0.0001

// StepsPerBar is the length of the percussion pattern (one 4/4 bar).
const StepsPerBar = 4

// Pattern returns the voices for beat number step starting at time at, in
// emission order: kick or snare first, then the two hats.
func Pattern(step int, at, spb float64, noise *audio.NoiseBuffer) []audio.Voice {
	voices := make([]audio.Voice, 0, 3)
	switch step % StepsPerBar {
	case 0, 2:
		voices = append(voices, Kick(at))
	case 1, 3:
		voices = append(voices, Snare(at, noise))
	}
	return append(voices, Hat(at, noise), OffHat(at+spb/2, noise))
}

// Kick is a sine sweeping 120Hz to 55Hz, decaying by 0.16s.
func Kick(at float64) audio.Voice {
	return audio.Voice{
		Name:   "kick",
		Source: audio.Sine,
		Start:  at,
		Stop:   at + 0.2,
		Freq:   audio.Ramp{From: 120, To: 55, Start: at, End: at + 0.12},
		Gain:   audio.Ramp{From: 0.9, To: silence, Start: at, End: at + 0.16},
	}
}

// Snare is high-passed noise at 1200Hz, decaying by 0.12s.
func Snare(at float64, noise *audio.NoiseBuffer) audio.Voice {
	return audio.Voice{
		Name:     "snare",
		Source:   audio.Noise,
		Buffer:   noise,
		Start:    at,
		Stop:     at + 0.2,
		Gain:     audio.Ramp{From: 0.6, To: silence, Start: at, End: at + 0.12},
		Highpass: 1200,
	}
}

// Hat is the on-beat hi-hat: noise above 7kHz, decaying by 0.05s.
func Hat(at float64, noise *audio.NoiseBuffer) audio.Voice {
	return hat("hat", at, noise, 7000, 0.2)
}

// OffHat is the off-beat hi-hat, brighter and quieter than Hat.
func OffHat(at float64, noise *audio.NoiseBuffer) audio.Voice {
	return hat("offhat", at, noise, 8000, 0.16)
}

func hat(name string, at float64, noise *audio.NoiseBuffer, cutoff, peak float64) audio.Voice {
	return audio.Voice{
		Name:     name,
		Source:   audio.Noise,
		Buffer:   noise,
		Start:    at,
		Stop:     at + 0.08,
		Gain:     audio.Ramp{From: peak, To: silence, Start: at, End: at + 0.05},
		Highpass: cutoff,
	}
}
