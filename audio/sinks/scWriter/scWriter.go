package scWriter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ringBuffer "github.com/dh1tw/golang-ring"
	"github.com/dh1tw/gosamplerate"
	pa "github.com/gordonklaus/portaudio"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/audio/device"
)

// ScWriter implements the audio.Sink interface and is used to write (play)
// audio on a local audio output device (e.g. speakers). Every device
// callback emits a heartbeat carrying the duration of the buffer played,
// which can drive a graph through graph.NewHeartbeatDriver.
type ScWriter struct {
	sync.RWMutex
	log        *slog.Logger
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	ring       ringBuffer.Ring
	stash      []float32
	volume     float32
	src        src
	bufFill    bool // indicates if the buffer is filling up
	heartbeat  chan time.Duration
	missed     int
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewScWriter returns a new soundcard writer for a specific audio output
// device. This is typically a speaker or a pair of headphones. portaudio
// must have been initialized.
func NewScWriter(opts ...Option) (*ScWriter, error) {

	w := &ScWriter{
		options: Options{
			DeviceName:      device.Default,
			HostAPI:         device.Default,
			Channels:        2,
			Samplerate:      48000,
			FramesPerBuffer: 480,
			RingBufferSize:  10,
			Latency:         time.Millisecond * 10,
			Logger:          slog.Default(),
		},
		ring:      ringBuffer.Ring{},
		volume:    0.7,
		heartbeat: make(chan time.Duration, 4),
	}

	for _, option := range opts {
		option(&w.options)
	}
	w.log = w.options.Logger.With("component", "scWriter")

	// setup a samplerate converter
	srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, w.options.Channels, 65536)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}

	w.src = src{
		Src:        srConv,
		samplerate: w.options.Samplerate,
		ratio:      1,
	}

	hostAPI, err := device.HostAPI(w.options.HostAPI)
	if err != nil {
		return nil, err
	}

	w.deviceInfo, err = device.Output(w.options.DeviceName, hostAPI)
	if err != nil {
		return nil, err
	}

	// setup Audio Stream
	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   w.deviceInfo,
		Channels: w.options.Channels,
		Latency:  w.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: w.options.FramesPerBuffer,
		Output:          streamDeviceParam,
		SampleRate:      w.options.Samplerate,
	}

	// setup ring buffer
	w.ring.SetCapacity(w.options.RingBufferSize)

	stream, err := pa.OpenStream(streamParm, w.playCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open playback audio stream on device %s: %w",
				w.options.DeviceName, err)
	}

	w.stream = stream
	w.log.Info("output sound device opened",
		"device", w.deviceInfo.Name, "host_api", w.deviceInfo.HostApi.Name)

	return w, nil
}

// Heartbeat returns the channel on which the duration of every buffer
// handed to the device is sent. Beats are dropped if nobody reads them.
func (p *ScWriter) Heartbeat() <-chan time.Duration {
	return p.heartbeat
}

// portaudio callback which will be called continuously when the stream is
// started; this function should be short and never block
func (p *ScWriter) playCb(in []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {

	p.beat(len(in) / p.options.Channels)

	switch iFlags {
	case pa.OutputUnderflow:
		p.log.Warn("output underflow")
		return // move on!
	case pa.OutputOverflow:
		p.log.Warn("output overflow")
		return // move on!
	}

	var data interface{}

	p.Lock()
	bufFill := p.bufFill
	bufCapacity := p.ring.Capacity()
	bufLength := p.ring.Length()
	// when filling up the buffer, don't dequeue data
	if !bufFill {
		//pull data from Ringbuffer
		data = p.ring.Dequeue()
	}

	// start filling buffer when buffer runs empty
	if bufLength == 0 {
		p.bufFill = true
	}

	// stop filling buffer when it's again half full
	if bufFill && bufLength >= bufCapacity/2 {
		p.bufFill = false
	}
	p.Unlock()

	// if no data is available we fill the audio package with silence
	if data == nil {
		for i := 0; i < len(in); i++ {
			in[i] = 0
		}
		return
	}

	audioData := data.([]float32)

	// should never happen
	if len(audioData) != len(in) {
		p.log.Error("unable to play audio frame",
			"expected", len(in), "got", len(audioData))
		return
	}

	//copy data into buffer
	copy(in, audioData)
}

// beat emits one heartbeat for a buffer of frames without blocking.
func (p *ScWriter) beat(frames int) {
	d := time.Duration(float64(frames) / p.options.Samplerate * float64(time.Second))
	select {
	case p.heartbeat <- d:
	default:
		p.Lock()
		p.missed++
		missed := p.missed
		p.Unlock()
		if missed == 1 {
			p.log.Warn("heartbeat not consumed, dropping beats")
		}
	}
}

// Start starts streaming audio to the Soundcard output device (e.g. Speaker).
func (p *ScWriter) Start() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Start()
}

// Stop stops streaming audio.
func (p *ScWriter) Stop() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Stop()
}

// Close shutsdown properly the soundcard audio device.
func (p *ScWriter) Close() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	p.stream.Abort()
	p.stream.Close()
	return gosamplerate.Delete(p.src.Src)
}

// SetVolume sets the volume for all upcoming audio frames.
func (p *ScWriter) SetVolume(v float32) {
	p.Lock()
	defer p.Unlock()
	if v < 0 {
		p.volume = 0
	} else if v > 1 {
		p.volume = 1
	} else {
		p.volume = v
	}
}

// Volume returns the current volume.
func (p *ScWriter) Volume() float32 {
	p.RLock()
	defer p.RUnlock()
	return p.volume
}

// Write converts the frames in the audio buffer into the right format
// and queues them into a ring buffer for playing on the speaker.
func (p *ScWriter) Write(msg audio.Msg) error {

	var aData []float32
	var err error

	// if necessary adjust the amount of audio channels
	if msg.Channels != p.options.Channels {
		aData = audio.AdjustChannels(msg.Channels, p.options.Channels, msg.Data)
	} else {
		aData = msg.Data
	}

	// if necessary, resample the audio
	if msg.Samplerate != p.options.Samplerate {
		if p.src.samplerate != msg.Samplerate {
			p.src.Reset()
			p.src.samplerate = msg.Samplerate
			p.src.ratio = p.options.Samplerate / msg.Samplerate
		}
		aData, err = p.src.Process(aData, p.src.ratio, false)
		if err != nil {
			return err
		}
	}

	// audio buffer size we want to write into our ring buffer
	// (size expected by portaudio callback)
	expBufferSize := p.options.FramesPerBuffer * p.options.Channels

	// if there is data stashed from previous calles, get it and prepend it
	// to the data received
	if len(p.stash) > 0 {
		aData = append(p.stash, aData...)
		p.stash = nil
	}

	// slice of audio buffers which will be enqueued into the ring buffer
	var bData [][]float32

	p.RLock()
	vol := p.volume
	p.RUnlock()

	// chop the data into buffers of the expected size
	for len(aData) >= expBufferSize {
		frame := make([]float32, expBufferSize)
		copy(frame, aData[:expBufferSize])
		if vol != 1 {
			audio.AdjustVolume(vol, frame)
		}
		bData = append(bData, frame)
		aData = aData[expBufferSize:]
	}

	// stash the left over
	if len(aData) > 0 {
		p.stash = append([]float32(nil), aData...)
	}

	if msg.EOF && len(p.stash) > 0 {
		// pad the remainder with silence
		frame := make([]float32, expBufferSize)
		copy(frame, p.stash)
		audio.AdjustVolume(vol, frame)
		bData = append(bData, frame)
		p.stash = nil
	}

	p.enqueue(bData)

	return nil
}

func (p *ScWriter) enqueue(bData [][]float32) {
	p.Lock()
	defer p.Unlock()
	for _, frame := range bData {
		p.ring.Enqueue(frame)
	}
}

// Flush clears all internal buffers
func (p *ScWriter) Flush() {
	p.Lock()
	defer p.Unlock()

	// delete the stash
	p.stash = []float32{}

	p.ring = ringBuffer.Ring{}
	p.ring.SetCapacity(p.options.RingBufferSize)
}
