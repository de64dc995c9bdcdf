package opus

import opus "gopkg.in/hraban/opus.v2"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of an opus encoder or decoder. The
// encoder specific values are ignored by the decoder.
type Options struct {
	Samplerate   int
	Channels     int
	Application  opus.Application
	MaxBandwidth opus.Bandwidth
	Bitrate      int
	Complexity   int
}

// Samplerate is a functional option to set the sampling rate of the codec.
// Opus supports 8, 12, 16, 24 and 48kHz.
func Samplerate(s int) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// Channels is a functional option to set the amount of channels (1 or 2).
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// Application is a functional option to set the opus application profile.
func Application(app opus.Application) Option {
	return func(args *Options) {
		args.Application = app
	}
}

// MaxBandwidth is a functional option to limit the audio bandwidth the
// encoder may use.
func MaxBandwidth(bw opus.Bandwidth) Option {
	return func(args *Options) {
		args.MaxBandwidth = bw
	}
}

// Bitrate is a functional option to set the target bitrate in bit/s.
func Bitrate(b int) Option {
	return func(args *Options) {
		args.Bitrate = b
	}
}

// Complexity is a functional option to set the encoder's computational
// complexity (0-10).
func Complexity(c int) Option {
	return func(args *Options) {
		args.Complexity = c
	}
}
