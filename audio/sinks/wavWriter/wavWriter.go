package wavWriter

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dh1tw/gosamplerate"
	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/dh1tw/streamgraph/audio"
)

// WavWriter implements the audio.Sink interface and is used to write (record)
// the graph's audio output into a file in the wav format.
type WavWriter struct {
	sync.Mutex
	log       *slog.Logger
	file      *os.File
	encoder   *wav.Encoder
	options   Options
	volume    float32
	src       *src
	recording bool
	frames    int
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewWavWriter returns a wavWriter to which audio frames can be written to.
// Frames are only written while the writer is started.
func NewWavWriter(path string, opts ...Option) (*WavWriter, error) {

	w := &WavWriter{
		options: Options{
			Channels:   DefaultChannels,
			BitDepth:   DefaultBitDepth,
			Samplerate: DefaultSamplerate,
			Logger:     slog.Default(),
		},
		volume: 1.0,
	}

	for _, o := range opts {
		o(&w.options)
	}
	w.log = w.options.Logger.With("component", "wavWriter", "file", path)

	// make sure we only allow 12 / 16 bit Bitdepth (dynamic range)
	switch w.options.BitDepth {
	case 12, 16:
	default:
		w.options.BitDepth = 16
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w.file = f

	w.encoder = wav.NewEncoder(f, int(w.options.Samplerate),
		w.options.BitDepth, w.options.Channels, 1)

	return w, nil
}

// Start writing audio to the wav file.
func (w *WavWriter) Start() error {
	w.Lock()
	defer w.Unlock()
	w.recording = true
	return nil
}

// Stop writing audio frames to the wav file. Frames written while stopped
// are dropped.
func (w *WavWriter) Stop() error {
	w.Lock()
	defer w.Unlock()
	w.recording = false
	return nil
}

// Close finalizes the wav header and closes the file.
func (w *WavWriter) Close() error {
	w.Lock()
	defer w.Unlock()
	w.recording = false
	err := w.encoder.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if w.src != nil {
		gosamplerate.Delete(w.src.Src)
		w.src = nil
	}
	w.log.Debug("recording closed", "frames", w.frames)
	return err
}

// SetVolume sets the volume for all incoming audio frames.
func (w *WavWriter) SetVolume(v float32) {
	w.Lock()
	defer w.Unlock()
	if v < 0 {
		w.volume = 0
	} else if v > 1 {
		w.volume = 1
	} else {
		w.volume = v
	}
}

// Volume returns the current volume.
func (w *WavWriter) Volume() float32 {
	w.Lock()
	defer w.Unlock()
	return w.volume
}

// Frames returns the number of frames written so far.
func (w *WavWriter) Frames() int {
	w.Lock()
	defer w.Unlock()
	return w.frames
}

// Write encodes an audio buffer into the wav file. Channels and Samplerate
// will be adjusted, if necessary.
func (w *WavWriter) Write(msg audio.Msg) error {

	w.Lock()
	defer w.Unlock()

	if !w.recording {
		return nil
	}

	// max size of an audio sample converted from float32 to int
	const (
		b12 int = 2048
		b16 int = 32768
	)

	// volume must not alter the caller's data
	aData := make([]float32, len(msg.Data))
	copy(aData, msg.Data)

	// if necessary adjust the amount of audio channels
	if msg.Channels != w.options.Channels {
		aData = audio.AdjustChannels(msg.Channels, w.options.Channels, aData)
	}

	if w.volume != 1 {
		audio.AdjustVolume(w.volume, aData)
	}

	if msg.Samplerate != w.options.Samplerate {
		if err := w.resample(msg.Samplerate); err != nil {
			return err
		}
		var err error
		aData, err = w.src.Process(aData, w.src.ratio, msg.EOF)
		if err != nil {
			return err
		}
	}

	buf := ga.IntBuffer{
		Format: &ga.Format{
			SampleRate:  int(w.options.Samplerate),
			NumChannels: w.options.Channels,
		},
		SourceBitDepth: w.options.BitDepth,
		Data:           make([]int, 0, len(aData)),
	}

	// prepare the bitdepth / dynamic range
	max := b16
	if w.options.BitDepth == 12 {
		max = b12
	}

	for _, frame := range aData {
		f := int(frame * float32(max))
		if f > max-1 {
			f = max - 1
		} else if f < -max {
			f = -max
		}
		buf.Data = append(buf.Data, f)
	}

	if err := w.encoder.Write(&buf); err != nil {
		return fmt.Errorf("wavWriter: %w", err)
	}
	w.frames += len(aData) / w.options.Channels

	return nil
}

// resample makes sure a converter from rate to the file's rate exists.
func (w *WavWriter) resample(rate float64) error {
	if w.src == nil {
		conv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST,
			w.options.Channels, 65536)
		if err != nil {
			return fmt.Errorf("wavWriter samplerate converter: %w", err)
		}
		w.src = &src{Src: conv}
	}
	if w.src.samplerate != rate {
		w.src.Reset()
		w.src.samplerate = rate
		w.src.ratio = w.options.Samplerate / rate
	}
	return nil
}

// Flush is not implemented
func (w *WavWriter) Flush() {}
