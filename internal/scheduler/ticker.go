package scheduler

import "time"

// Ticker is the polling timer driving a Scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

// NewWallTicker returns a Ticker backed by time.Ticker.
func NewWallTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }
