package doorman

import (
	"log/slog"

	"github.com/dh1tw/streamgraph/graph"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for the Doorman
type Options struct {
	logger          *slog.Logger
	rate            graph.TrackRate
	trackID         graph.TrackID
	txUserChangedCb func(graph.TrackID)
}

// TXUserChanged is a functional option to provide a callback which get's
// called whenever the transmitting track changes.
func TXUserChanged(f func(graph.TrackID)) Option {
	return func(args *Options) {
		args.txUserChangedCb = f
	}
}

// Samplerate is a functional option to set the rate of the output track.
// Input tracks at other rates are never let through.
func Samplerate(r graph.TrackRate) Option {
	return func(args *Options) {
		args.rate = r
	}
}

// OutputTrack is a functional option to set the id of the output track.
func OutputTrack(id graph.TrackID) Option {
	return func(args *Options) {
		args.trackID = id
	}
}

// Logger is a functional option to set the logger.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.logger = l
		}
	}
}
