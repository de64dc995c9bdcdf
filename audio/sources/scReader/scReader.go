package scReader

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/dh1tw/streamgraph/audio/device"
	"github.com/dh1tw/streamgraph/graph"
)

// ScReader is used to read (record) audio from a local sound card (e.g.
// microphone) into a track of a graph.SourceStream.
type ScReader struct {
	sync.RWMutex
	log        *slog.Logger
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	target     *graph.SourceStream
	trackAdded bool
	rejected   bool
}

// NewScReader returns a soundcard reader which streams audio
// asynchronously from a local audio device (e.g. a microphone) into target.
// portaudio must have been initialized.
func NewScReader(target *graph.SourceStream, opts ...Option) (*ScReader, error) {

	r := &ScReader{
		options: Options{
			HostAPI:         device.Default,
			DeviceName:      device.Default,
			Channels:        1,
			Samplerate:      48000,
			FramesPerBuffer: 480,
			Latency:         time.Millisecond * 10,
			TrackID:         1,
			Logger:          slog.Default(),
		},
		target: target,
	}

	for _, option := range opts {
		option(&r.options)
	}
	r.log = r.options.Logger.With("component", "scReader", "stream", target.ID())

	hostAPI, err := device.HostAPI(r.options.HostAPI)
	if err != nil {
		return nil, err
	}

	r.deviceInfo, err = device.Input(r.options.DeviceName, hostAPI)
	if err != nil {
		return nil, err
	}

	// setup Audio Stream
	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   r.deviceInfo,
		Channels: r.options.Channels,
		Latency:  r.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: r.options.FramesPerBuffer,
		Input:           streamDeviceParam,
		SampleRate:      r.options.Samplerate,
	}

	stream, err := pa.OpenStream(streamParm, r.paReadCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open recording audio stream on device %s: %w",
				r.deviceInfo.Name, err)
	}
	r.stream = stream

	// the capture is the only track of the stream
	target.AdvanceKnownTracksTime(graph.StreamTimeMax)

	r.log.Info("input sound device opened",
		"device", r.deviceInfo.Name, "host_api", r.deviceInfo.HostApi.Name)
	return r, nil
}

// paReadCb is the callback which will be executed each time there is new
// data available on the stream
func (r *ScReader) paReadCb(in []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {

	if iFlags == pa.InputOverflow {
		r.log.Warn("input overflow")
		return // data lost, move on!
	}

	// a copy is necessary, since portaudio reuses the slice "in"
	seg := graph.NewAudioSegment()
	seg.AppendFrames(append([]float32(nil), in...), r.options.Channels)

	r.Lock()
	defer r.Unlock()

	if !r.trackAdded {
		r.target.AddTrack(r.options.TrackID, graph.TrackRate(r.options.Samplerate), 0, seg)
		r.trackAdded = true
		return
	}

	if !r.target.AppendToTrack(r.options.TrackID, seg) && !r.rejected {
		r.rejected = true
		r.log.Warn("stream does not accept audio anymore")
	}
}

// Start will start streaming audio from a local soundcard device.
func (r *ScReader) Start() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return r.stream.Start()
}

// Stop stops streaming audio. The source stream will underrun until the
// reader is started again.
func (r *ScReader) Stop() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return r.stream.Stop()
}

// Close shutsdown properly the soundcard reader and finishes the source
// stream.
func (r *ScReader) Close() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	r.stream.Abort()
	r.stream.Close()
	r.target.Finish()
	return nil
}
