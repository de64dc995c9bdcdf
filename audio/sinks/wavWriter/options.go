package wavWriter

import "log/slog"

// Option is the type for a function option
type Option func(*Options)

const (
	DefaultChannels   int     = 1
	DefaultSamplerate float64 = 48000
	DefaultBitDepth   int     = 16
)

// Options contains the parameters for initializing a wav writer.
type Options struct {
	Channels   int
	Samplerate float64
	BitDepth   int
	Logger     *slog.Logger
}

// Channels is a functional option to set the amount of channels written to
// the file. Typically this is either Mono (1) or Stereo (2).
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// Samplerate is a functional option to set the sampling rate with which the
// audio will be recorded. Audio arriving at another rate is resampled.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// BitDepth is a functional option to set the bit depth with which the audio
// will be written to file. Only 12 and 16 bit are supported; 16 bit is the
// default.
func BitDepth(b int) Option {
	return func(args *Options) {
		args.BitDepth = b
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
