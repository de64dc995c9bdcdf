package graph

import (
	"context"
	"time"
)

// Driver advances the graph's clock. Run calls iterate once per scheduling
// iteration with the amount of time to advance, until ctx is done. The
// goroutine calling iterate is the graph's scheduling goroutine.
type Driver interface {
	Run(ctx context.Context, iterate func(advance GraphTime)) error
}

// SystemClockDriver advances the graph by the elapsed monotonic wall clock
// time on every tick of a periodic timer.
type SystemClockDriver struct {
	interval time.Duration
}

// NewSystemClockDriver returns a driver ticking every interval.
func NewSystemClockDriver(interval time.Duration) *SystemClockDriver {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &SystemClockDriver{interval: interval}
}

func (d *SystemClockDriver) Run(ctx context.Context, iterate func(GraphTime)) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			// carry the sub-microsecond remainder over to the next tick
			adv := now.Sub(last).Truncate(time.Microsecond)
			last = last.Add(adv)
			iterate(DurationToGraphTime(adv))
		}
	}
}

// HeartbeatDriver advances the graph by the duration received on every
// heartbeat, typically one per audio device callback.
type HeartbeatDriver struct {
	beats <-chan time.Duration
}

// NewHeartbeatDriver returns a driver reading heartbeats from beats. The
// driver stops when beats is closed.
func NewHeartbeatDriver(beats <-chan time.Duration) *HeartbeatDriver {
	return &HeartbeatDriver{beats: beats}
}

func (d *HeartbeatDriver) Run(ctx context.Context, iterate func(GraphTime)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case adv, ok := <-d.beats:
			if !ok {
				return nil
			}
			iterate(DurationToGraphTime(adv))
		}
	}
}
