package graph

import (
	"math"
	"time"
)

// GraphTime is the graph-wide virtual clock in microseconds. It never
// decreases.
type GraphTime int64

// StreamTime is the amount of unblocked time, in microseconds, a single
// stream has played. It pauses while the stream is blocked.
type StreamTime int64

// TrackID identifies a track inside one stream.
type TrackID int32

// TrackRate is the number of ticks per second of a track.
type TrackRate int32

// TrackTicks counts ticks at a track's rate.
type TrackTicks int64

const (
	// GraphTimeMax is the infinite graph time.
	GraphTimeMax GraphTime = math.MaxInt64
	// StreamTimeMax is the infinite stream time.
	StreamTimeMax StreamTime = math.MaxInt64
	// TrackTicksMax is the infinite tick count.
	TrackTicksMax TrackTicks = math.MaxInt64

	// TrackInvalid is never a valid track id.
	TrackInvalid TrackID = 0

	// VideoRate is the rate used for video tracks unless stated otherwise.
	VideoRate TrackRate = 90000

	usecsPerSec = 1000000
)

// DurationToGraphTime converts a wall clock duration into graph time.
func DurationToGraphTime(d time.Duration) GraphTime {
	return GraphTime(d / time.Microsecond)
}

// Duration returns t as a time.Duration.
func (t GraphTime) Duration() time.Duration {
	if t == GraphTimeMax {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t) * time.Microsecond
}

// TimeToTicksRoundDown converts a stream time into ticks at rate, rounding
// towards zero.
func TimeToTicksRoundDown(rate TrackRate, t StreamTime) TrackTicks {
	if t >= StreamTimeMax {
		return TrackTicksMax
	}
	return TrackTicks(mulDiv(int64(t), int64(rate), usecsPerSec))
}

// TimeToTicksRoundUp converts a stream time into ticks at rate, rounding up.
func TimeToTicksRoundUp(rate TrackRate, t StreamTime) TrackTicks {
	if t >= StreamTimeMax {
		return TrackTicksMax
	}
	down := TimeToTicksRoundDown(rate, t)
	if TicksToTimeRoundDown(rate, down) < t {
		return down + 1
	}
	return down
}

// TicksToTimeRoundDown converts ticks at rate into a stream time, rounding
// towards zero.
func TicksToTimeRoundDown(rate TrackRate, ticks TrackTicks) StreamTime {
	if ticks >= TrackTicksMax {
		return StreamTimeMax
	}
	return StreamTime(mulDiv(int64(ticks), usecsPerSec, int64(rate)))
}

// mulDiv computes a*b/c without overflowing for the magnitudes used here
// (microsecond times up to several years and audio rates).
func mulDiv(a, b, c int64) int64 {
	q := a / c
	r := a % c
	return q*b + r*b/c
}
