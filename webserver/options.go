package webserver

import "log/slog"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of the WebServer.
type Options struct {
	Address    string
	APIVersion string
	Logger     *slog.Logger
}

// Address is a functional option to set the address (host:port) the
// webserver listens on.
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// APIVersion is a functional option to set the api version requests
// without a version are routed to.
func APIVersion(v string) Option {
	return func(args *Options) {
		args.APIVersion = v
	}
}

// Logger is a functional option to set the logger of the webserver.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.Logger = l
		}
	}
}
