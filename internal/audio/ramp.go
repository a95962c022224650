package audio

import "math"

// Ramp is an automation curve: the value is set to From at Start and then
// moves exponentially to To, reached at End and held afterwards. From and To
// must both be positive for the exponential segment to be defined.
type Ramp struct {
	From, To   float64
	Start, End float64
}

// Constant returns a ramp that holds v forever.
func Constant(v float64) Ramp {
	return Ramp{From: v, To: v}
}

// At evaluates the ramp at time t (seconds on the context clock).
func (r Ramp) At(t float64) float64 {
	switch {
	case t <= r.Start:
		return r.From
	case t >= r.End:
		return r.To
	case r.From <= 0 || r.To <= 0:
		// exponential ramps towards or from zero are undefined; fall back to linear
		return r.From + (r.To-r.From)*(t-r.Start)/(r.End-r.Start)
	}
	return r.From * math.Pow(r.To/r.From, (t-r.Start)/(r.End-r.Start))
}
