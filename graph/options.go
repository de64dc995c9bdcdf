package graph

import (
	"log/slog"
	"time"

	"github.com/dh1tw/streamgraph/audio"
)

// AudioSink consumes the audio rendered by the graph. One block covering
// exactly one scheduling interval is written per iteration.
type AudioSink interface {
	Write(msg audio.Msg) error
}

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for creating a Graph.
type Options struct {
	Logger       *slog.Logger
	Driver       Driver
	SampleRate   TrackRate
	Channels     int
	LowWaterMark time.Duration
	MaxBuffered  time.Duration
	AudioSink    AudioSink
	Executor     Executor
}

// WithLogger sets the logger of the graph and all its streams.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithDriver sets what advances the graph's clock. A nil driver means the
// graph is only advanced through Graph.Step. By default a system clock
// driver with a 10ms interval is used.
func WithDriver(d Driver) Option {
	return func(o *Options) {
		o.Driver = d
	}
}

// WithSampleRate sets the rate at which audio is rendered to the sink.
func WithSampleRate(r TrackRate) Option {
	return func(o *Options) {
		o.SampleRate = r
	}
}

// WithChannels sets the number of channels of the rendered audio.
func WithChannels(chs int) Option {
	return func(o *Options) {
		o.Channels = chs
	}
}

// WithLowWaterMark sets how far ahead of the playback position a source
// track must be buffered to count as having enough data. Producers waiting
// in DispatchWhenNotEnoughBuffered are woken when a track falls below it.
func WithLowWaterMark(d time.Duration) Option {
	return func(o *Options) {
		o.LowWaterMark = d
	}
}

// WithMaxBufferedDuration limits how far ahead of the playback position a
// source track may be buffered. Data beyond the limit is replaced by null
// data of the same duration. Zero means unlimited.
func WithMaxBufferedDuration(d time.Duration) Option {
	return func(o *Options) {
		o.MaxBuffered = d
	}
}

// WithAudioSink sets the sink receiving the mix of all audio outputs.
func WithAudioSink(s AudioSink) Option {
	return func(o *Options) {
		o.AudioSink = s
	}
}

// WithControlExecutor sets the execution context for control listeners and
// runnables deferred until after a state update. By default the graph
// runs its own serial executor.
func WithControlExecutor(e Executor) Option {
	return func(o *Options) {
		o.Executor = e
	}
}
