package union

import "log/slog"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for the Union processor.
type Options struct {
	Logger *slog.Logger
}

// Logger is a functional option to set the logger of the processor.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.Logger = l
		}
	}
}
