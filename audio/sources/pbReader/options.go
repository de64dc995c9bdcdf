package pbReader

import (
	"log/slog"
	"time"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a PbReader.
type Options struct {
	// IdleTimeout is the time after which the track of a user who stopped
	// sending frames is ended.
	IdleTimeout time.Duration
	// ReapInterval is the period of the idle check.
	ReapInterval time.Duration
	Logger       *slog.Logger
}

// IdleTimeout is a functional option to set after how long without frames
// a user's track is ended.
func IdleTimeout(d time.Duration) Option {
	return func(args *Options) {
		if d > 0 {
			args.IdleTimeout = d
		}
	}
}

// ReapInterval is a functional option to set how often idle users are
// looked for.
func ReapInterval(d time.Duration) Option {
	return func(args *Options) {
		if d > 0 {
			args.ReapInterval = d
		}
	}
}

// Logger is a functional option to set the logger of the reader.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.Logger = l
		}
	}
}
