package mixer

import (
	"log/slog"
	"sync"

	"github.com/chewxy/math32"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/graph"
)

// Mixer is a graph.Processor which sums all audio tracks of all inputs into
// a single output track. Each input stream can be given a gain. The mix is
// clipped to [-1, 1]. Input tracks at a rate other than the mixer's are
// ignored.
type Mixer struct {
	sync.Mutex
	log      *slog.Logger
	rate     graph.TrackRate
	channels int
	trackID  graph.TrackID
	gains    map[uint64]float32
	out      *graph.Track
	warned   map[graph.TrackRate]bool
}

// New returns a Mixer. By default it mixes stereo at 48kHz into track 1.
func New(opts ...Option) *Mixer {
	options := Options{
		Logger:   slog.Default(),
		Rate:     48000,
		Channels: 2,
		TrackID:  1,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Mixer{
		log:      options.Logger.With("component", "mixer"),
		rate:     options.Rate,
		channels: options.Channels,
		trackID:  options.TrackID,
		gains:    make(map[uint64]float32),
		warned:   make(map[graph.TrackRate]bool),
	}
}

// SetGain sets the linear gain applied to the input stream with the given
// id. The default gain is 1. It is safe to call SetGain from any goroutine.
func (m *Mixer) SetGain(streamID uint64, gain float32) {
	m.Lock()
	defer m.Unlock()
	m.gains[streamID] = gain
}

// SetGainDB sets the gain of an input stream in decibel.
func (m *Mixer) SetGainDB(streamID uint64, db float32) {
	m.SetGain(streamID, math32.Pow(10, db/20))
}

// Gain returns the linear gain of an input stream.
func (m *Mixer) Gain(streamID uint64) float32 {
	m.Lock()
	defer m.Unlock()
	if g, ok := m.gains[streamID]; ok {
		return g
	}
	return 1
}

// ProduceOutput implements graph.Processor.
func (m *Mixer) ProduceOutput(ps *graph.ProcessedStream, from, to graph.GraphTime) {
	if m.out == nil {
		start := graph.TimeToTicksRoundDown(m.rate, ps.GraphTimeToStreamTime(from))
		m.out = ps.Buffer().AddTrack(m.trackID, m.rate, start, graph.NewAudioSegment())
	}
	outEnd := graph.TimeToTicksRoundDown(m.rate, ps.GraphTimeToStreamTime(to))
	frames := int(outEnd - m.out.End())
	if frames <= 0 {
		return
	}
	mix := make([]float32, frames*m.channels)
	base := m.out.End()

	for _, p := range ps.Inputs() {
		gain := m.Gain(p.Source().ID())
		for t := from; t < to; {
			iv := p.NextInputInterval(t)
			if iv.Start >= to || iv.Start == iv.End {
				break
			}
			end := min(iv.End, to)
			if !iv.InputIsBlocked {
				m.mixInterval(ps, p, mix, base, iv.Start, end, gain)
			}
			t = end
		}
	}

	audio.Clip(mix)
	m.out.AudioSegment().AppendFrames(mix, m.channels)
}

// mixInterval adds the enabled audio tracks of p's source for the graph
// interval [from, to) to mix, which starts at output tick base.
func (m *Mixer) mixInterval(ps *graph.ProcessedStream, p *graph.InputPort, mix []float32, base graph.TrackTicks, from, to graph.GraphTime, gain float32) {
	src := p.Source()
	dstStart := graph.TimeToTicksRoundDown(m.rate, ps.GraphTimeToStreamTime(from)) - base
	dstEnd := graph.TimeToTicksRoundDown(m.rate, ps.GraphTimeToStreamTime(to)) - base
	if dstEnd <= dstStart {
		return
	}
	srcStart := graph.TimeToTicksRoundDown(m.rate, src.GraphTimeToStreamTime(from))
	dst := mix[int(dstStart)*m.channels : int(dstEnd)*m.channels]

	for _, tr := range src.Buffer().TracksOfType(graph.Audio) {
		if !tr.Enabled() {
			continue
		}
		if tr.Rate() != m.rate {
			if !m.warned[tr.Rate()] {
				m.warned[tr.Rate()] = true
				m.log.Warn("input track rate differs from mixer rate, ignored",
					"source", src.ID(), "track", tr.ID(), "rate", tr.Rate(), "mixer_rate", m.rate)
			}
			continue
		}
		tr.AudioSegment().MixInto(dst, m.channels, srcStart, gain)
	}
}
