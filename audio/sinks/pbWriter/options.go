package pbWriter

import (
	"log/slog"

	"github.com/dh1tw/streamgraph/audiocodec"
)

// Option is the type for a function option
type Option func(*Options)

// Options is the data structure holding the optional values. The
// values are typcially set by calling the functional options.
type Options struct {
	Encoder         audiocodec.Encoder
	Channels        int
	Samplerate      float64
	FramesPerBuffer int
	UserID          string
	ToWireCb        func([]byte)
	Logger          *slog.Logger
}

// Channels is a functional option to set the amount of channels encoded
// into each frame. Typically this is either Mono (1) or Stereo (2).
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// Samplerate is a functional option to set the sampling rate of the encoded
// frames. Audio arriving at another rate is resampled.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// FramesPerBuffer is a functional option which sets the amount of sample
// frames encoded into one network frame.
// Example: A buffer with 960 frames at 48000kHz / stereo contains
// 1920 samples and results in 20ms Audio.
func FramesPerBuffer(s int) Option {
	return func(args *Options) {
		args.FramesPerBuffer = s
	}
}

// Encoder is a functional option to set a specific encoder. By default,
// the opus encoder is used.
func Encoder(enc audiocodec.Encoder) Option {
	return func(args *Options) {
		args.Encoder = enc
	}
}

// UserID is a functional option to set the UserID. All serialized protobufs
// contain the UserID to mark their origin.
func UserID(s string) Option {
	return func(args *Options) {
		args.UserID = s
	}
}

// ToWireCb is a functional option to set the callback which will be executed
// when data has been serialized and is ready to be send to the network.
func ToWireCb(cb func([]byte)) Option {
	return func(args *Options) {
		args.ToWireCb = cb
	}
}

// Logger is a functional option to set the logger of the writer.
func Logger(l *slog.Logger) Option {
	return func(args *Options) {
		if l != nil {
			args.Logger = l
		}
	}
}
