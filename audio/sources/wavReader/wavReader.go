package wavReader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dh1tw/gosamplerate"
	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/dh1tw/streamgraph/graph"
)

// WavReader is used to read (play) audio frames from a wav file into a
// track of a graph.SourceStream. It only reads ahead as far as the stream
// asks for: once the track is buffered beyond the graph's low water mark
// the reader waits until the graph has consumed enough of it.
type WavReader struct {
	sync.Mutex
	log       *slog.Logger
	options   Options
	file      *os.File
	dec       *wav.Decoder
	buf       *ga.IntBuffer
	channels  int
	rate      graph.TrackRate
	src       *src
	target    *graph.SourceStream
	executor  graph.Executor
	ownExec   *graph.SerialExecutor
	isPlaying bool
	added     bool
	eof       bool
	frames    int
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	ratio float64
}

// NewWavReader opens a wav file and returns a WavReader which will feed
// its audio into target once started.
func NewWavReader(path string, target *graph.SourceStream, opts ...Option) (*WavReader, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, errors.New("invalid WAV file")
	}

	w := &WavReader{
		options: Options{
			FramesPerBuffer: DefaultFramesPerBuffer,
			TrackID:         1,
			Logger:          slog.Default(),
		},
		file:   f,
		dec:    dec,
		target: target,
	}

	for _, o := range opts {
		o(&w.options)
	}
	w.log = w.options.Logger.With("component", "wavReader", "file", path)

	format := dec.Format()
	w.channels = format.NumChannels
	w.rate = graph.TrackRate(format.SampleRate)
	w.buf = &ga.IntBuffer{
		Data:   make([]int, w.options.FramesPerBuffer*w.channels),
		Format: format,
	}

	if w.options.Samplerate > 0 && w.options.Samplerate != w.rate {
		conv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, w.channels, 65536)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("wavReader samplerate converter: %w", err)
		}
		w.src = &src{
			Src:   conv,
			ratio: float64(w.options.Samplerate) / float64(w.rate),
		}
		w.rate = w.options.Samplerate
	}

	w.executor = w.options.Executor
	if w.executor == nil {
		w.ownExec = graph.NewSerialExecutor()
		w.executor = w.ownExec
	}

	return w, nil
}

// Rate returns the rate of the track fed into the stream.
func (w *WavReader) Rate() graph.TrackRate { return w.rate }

// Channels returns the channel count of the file.
func (w *WavReader) Channels() int { return w.channels }

// Start begins feeding the stream.
func (w *WavReader) Start() error {
	w.Lock()
	if w.isPlaying || w.eof {
		w.Unlock()
		return nil
	}
	w.isPlaying = true
	w.Unlock()

	w.executor.Dispatch(w.fill)
	return nil
}

// Stop pauses feeding the stream. The stream underruns once the data
// already buffered has been played.
func (w *WavReader) Stop() error {
	w.Lock()
	defer w.Unlock()
	w.isPlaying = false
	return nil
}

// Close stops the reader, closes the file and finishes the stream.
func (w *WavReader) Close() error {
	w.Lock()
	w.isPlaying = false
	if !w.eof {
		w.eof = true
		w.target.Finish()
	}
	w.Unlock()

	if w.ownExec != nil {
		w.ownExec.Close()
	}
	if w.src != nil {
		gosamplerate.Delete(w.src.Src)
	}
	return w.file.Close()
}

// fill reads from the file until the track has enough data buffered,
// then asks the stream to be called again once it runs low.
func (w *WavReader) fill() {
	w.Lock()
	if !w.isPlaying || w.eof {
		w.Unlock()
		return
	}

	for w.isPlaying && (!w.added || !w.target.HaveEnoughBuffered(w.options.TrackID)) {
		seg, last, err := w.read()
		if err != nil {
			w.log.Error("unable to decode wav file", "error", err)
			last = true
		}
		if seg != nil {
			w.push(seg)
		}
		if last {
			w.finish()
			w.Unlock()
			return
		}
	}
	playing := w.isPlaying
	w.Unlock()

	if !playing {
		return
	}
	w.target.DispatchWhenNotEnoughBuffered(w.options.TrackID, w.executor, w.fill)
}

// read decodes the next buffer of the file. last is true at the end of
// the file.
func (w *WavReader) read() (*graph.AudioSegment, bool, error) {
	w.buf.Data = w.buf.Data[:cap(w.buf.Data)]
	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, true, err
	}
	last := err != nil || n < len(w.buf.Data)
	if n == 0 {
		return nil, true, nil
	}

	// normalize to [-1, 1)
	scale := float32(int(1) << (w.dec.BitDepth - 1))
	data := make([]float32, n)
	for i, v := range w.buf.Data[:n] {
		data[i] = float32(v) / scale
	}

	if w.src != nil {
		data, err = w.src.Process(data, w.src.ratio, last)
		if err != nil {
			return nil, true, err
		}
	}

	seg := graph.NewAudioSegment()
	seg.AppendFrames(data, w.channels)
	w.frames += len(data) / w.channels
	return seg, last, nil
}

func (w *WavReader) push(seg *graph.AudioSegment) {
	if !w.added {
		w.target.AddTrack(w.options.TrackID, w.rate, 0, seg)
		w.target.AdvanceKnownTracksTime(graph.StreamTimeMax)
		w.added = true
		return
	}
	if !w.target.AppendToTrack(w.options.TrackID, seg) {
		// the stream has been destroyed
		w.isPlaying = false
	}
}

func (w *WavReader) finish() {
	w.eof = true
	w.isPlaying = false
	w.target.EndTrack(w.options.TrackID)
	if w.options.FinishAtEOF {
		w.target.Finish()
	}
	w.log.Debug("end of file", "frames", w.frames)
}
