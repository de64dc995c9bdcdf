package wavReader

import (
	"log/slog"

	"github.com/dh1tw/streamgraph/graph"
)

const (
	DefaultFramesPerBuffer int = 4096
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a wav Reader.
type Options struct {
	FramesPerBuffer int
	TrackID         graph.TrackID
	Samplerate      graph.TrackRate
	FinishAtEOF     bool
	Executor        graph.Executor
	Logger          *slog.Logger
}

// FramesPerBuffer is a functional option which sets the amount of audio
// frames the wavReader decodes at once.
// Example: A buffer with 960 frames at 48000kHz results in 20ms Audio.
func FramesPerBuffer(s int) Option {
	return func(args *Options) {
		if s > 0 {
			args.FramesPerBuffer = s
		}
	}
}

// TrackID is a functional option to set the id of the track created in
// the source stream.
func TrackID(id graph.TrackID) Option {
	return func(args *Options) {
		args.TrackID = id
	}
}

// Samplerate is a functional option to resample the file to the given
// rate, typically the rate of the graph. By default the file's rate is
// kept.
func Samplerate(r graph.TrackRate) Option {
	return func(args *Options) {
		args.Samplerate = r
	}
}

// FinishAtEOF is a functional option to finish the source stream at the
// end of the file. Otherwise only the track is ended.
func FinishAtEOF(finish bool) Option {
	return func(args *Options) {
		args.FinishAtEOF = finish
	}
}

// Executor is a functional option to set where the file is decoded. By
// default the reader uses its own serial executor.
func Executor(e graph.Executor) Option {
	return func(args *Options) {
		args.Executor = e
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
