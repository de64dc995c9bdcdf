package pbWriter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dh1tw/gosamplerate"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/audiocodec/opus"
	sbAudio "github.com/dh1tw/streamgraph/sb_audio"
)

// PbWriter implements the audio.Sink interface. It is used to encode
// audio.Msg with a selected audiocodec into Protocol buffers. This
// Sink is typically used when audio frames have to be send to the network.
// Incoming audio is cut into frames of FramesPerBuffer; the remainder is
// kept until the next Write.
type PbWriter struct {
	sync.Mutex
	log     *slog.Logger
	options Options
	enabled bool
	buffer  []byte
	stash   []float32
	src     *src
	sent    int
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewPbWriter is the constructor for a ProtoBufWriter. The ToWireCb option
// sets the callback which is called with every encoded frame.
func NewPbWriter(opts ...Option) (*PbWriter, error) {

	pbw := &PbWriter{
		options: Options{
			Channels:        1,
			Samplerate:      48000,
			FramesPerBuffer: 960,
			UserID:          "streamgraph",
			Logger:          slog.Default(),
		},
		buffer: make([]byte, 10000),
	}

	for _, option := range opts {
		option(&pbw.options)
	}
	pbw.log = pbw.options.Logger.With("component", "pbWriter", "user", pbw.options.UserID)

	if sbAudio.ChannelsFromCount(pbw.options.Channels) == sbAudio.Channels_unknown {
		return nil, fmt.Errorf("unsupported amount of channels: %d", pbw.options.Channels)
	}

	// if no encoder set, create the default encoder
	if pbw.options.Encoder == nil {
		encChannels := opus.Channels(pbw.options.Channels)
		encSR := opus.Samplerate(int(pbw.options.Samplerate))
		enc, err := opus.NewEncoder(encChannels, encSR)
		if err != nil {
			return nil, err
		}
		pbw.options.Encoder = enc
	}

	return pbw, nil
}

// Start starts this audio sink.
func (pbw *PbWriter) Start() error {
	pbw.Lock()
	defer pbw.Unlock()
	pbw.enabled = true
	return nil
}

// Stop disables this audio sink.
func (pbw *PbWriter) Stop() error {
	pbw.Lock()
	defer pbw.Unlock()
	pbw.enabled = false
	pbw.stash = nil
	return nil
}

// Close releases the samplerate converter.
func (pbw *PbWriter) Close() error {
	pbw.Lock()
	defer pbw.Unlock()
	pbw.enabled = false
	if pbw.src != nil {
		err := gosamplerate.Delete(pbw.src.Src)
		pbw.src = nil
		return err
	}
	return nil
}

// Sent returns the number of frames handed to the ToWireCb.
func (pbw *PbWriter) Sent() int {
	pbw.Lock()
	defer pbw.Unlock()
	return pbw.sent
}

// Write encodes audio.Msg with the configured audio codec into protobufs.
// Each frame is handed to the ToWireCb as soon as it is complete.
func (pbw *PbWriter) Write(msg audio.Msg) error {

	pbw.Lock()
	defer pbw.Unlock()

	if !pbw.enabled || pbw.options.ToWireCb == nil {
		return nil
	}

	if pbw.options.Encoder == nil {
		return errors.New("no encoder set")
	}

	aData := audio.AdjustChannels(msg.Channels, pbw.options.Channels, msg.Data)

	if msg.Samplerate != pbw.options.Samplerate {
		if err := pbw.resample(msg.Samplerate); err != nil {
			return err
		}
		var err error
		aData, err = pbw.src.Process(aData, pbw.src.ratio, false)
		if err != nil {
			return err
		}
	}

	frameSize := pbw.options.FramesPerBuffer * pbw.options.Channels
	data := append(pbw.stash, aData...)
	pbw.stash = nil

	for len(data) >= frameSize {
		if err := pbw.send(data[:frameSize]); err != nil {
			pbw.log.Warn("unable to encode frame", "error", err)
		}
		data = data[frameSize:]
	}
	if len(data) > 0 {
		pbw.stash = append([]float32(nil), data...)
	}

	return nil
}

func (pbw *PbWriter) send(pcm []float32) error {
	num, err := pbw.options.Encoder.Encode(pcm, pbw.buffer)
	if err != nil {
		return err
	}

	frame := sbAudio.Frame{
		Data:         pbw.buffer[:num],
		Channels:     sbAudio.ChannelsFromCount(pbw.options.Channels),
		BitDepth:     16,
		Codec:        sbAudio.Codec_opus,
		FrameLength:  int32(pbw.options.FramesPerBuffer),
		SamplingRate: int32(pbw.options.Samplerate),
		UserId:       pbw.options.UserID,
	}

	pbw.options.ToWireCb(frame.Marshal())
	pbw.sent++
	return nil
}

// resample makes sure a converter from rate to the frame rate exists.
func (pbw *PbWriter) resample(rate float64) error {
	if pbw.src == nil {
		conv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST,
			pbw.options.Channels, 65536)
		if err != nil {
			return fmt.Errorf("pbWriter samplerate converter: %w", err)
		}
		pbw.src = &src{Src: conv}
	}
	if pbw.src.samplerate != rate {
		pbw.src.Reset()
		pbw.src.samplerate = rate
		pbw.src.ratio = pbw.options.Samplerate / rate
	}
	return nil
}

// Flush discards audio waiting for a complete frame.
func (pbw *PbWriter) Flush() {
	pbw.Lock()
	defer pbw.Unlock()
	pbw.stash = nil
}
