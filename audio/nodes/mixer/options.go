package mixer

import (
	"log/slog"

	"github.com/dh1tw/streamgraph/graph"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for the Mixer.
type Options struct {
	Logger   *slog.Logger
	Rate     graph.TrackRate
	Channels int
	TrackID  graph.TrackID
}

// Logger is a functional option to set the logger of the mixer.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.Logger = l
		}
	}
}

// Samplerate is a functional option to set the rate of the mixed track.
func Samplerate(r graph.TrackRate) Option {
	return func(args *Options) {
		args.Rate = r
	}
}

// Channels is a functional option to set the channel count of the mixed
// track.
func Channels(chs int) Option {
	return func(args *Options) {
		if chs > 0 {
			args.Channels = chs
		}
	}
}

// OutputTrack is a functional option to set the id of the mixed track.
func OutputTrack(id graph.TrackID) Option {
	return func(args *Options) {
		args.TrackID = id
	}
}
