package vox

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/audio/nodes/union"
	"github.com/dh1tw/streamgraph/graph"
)

// Vox is a graph.Processor which passes its input through and detects if
// the audio level raises above or falls below a defined threshold level.
type Vox struct {
	sync.Mutex
	log            *slog.Logger
	union          *union.Union
	enabled        bool
	active         bool
	lastActivation graph.GraphTime
	onStateChange  func(voxOn bool)
	threshold      float32
	holdTime       time.Duration
	chWarning      sync.Once
}

// New is the constructor method for a Vox Object. Vox emits a StateChanged
// callback on the graph's control executor when the RMS (root mean square)
// of its output has risen above or fallen below the set threshold. The
// hold time is measured in graph time. By default the vox is enabled, the
// threshold is set to 0.1 and the hold time to 500ms.
func New(opts ...Option) *Vox {
	v := &Vox{
		log:       slog.Default(),
		enabled:   true,
		holdTime:  time.Millisecond * 500,
		threshold: 0.1,
	}

	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With("component", "vox")
	v.union = union.New(union.Logger(v.log))

	return v
}

// ProduceOutput implements graph.Processor.
func (v *Vox) ProduceOutput(ps *graph.ProcessedStream, from, to graph.GraphTime) {
	v.union.ProduceOutput(ps, from, to)

	v.Lock()
	defer v.Unlock()

	if !v.enabled {
		return
	}

	rmsValue, ok := v.level(ps, from, to)
	if !ok {
		return
	}

	if rmsValue >= v.threshold {
		v.lastActivation = to
		if !v.active {
			v.active = true
			v.log.Info("activating vox", "stream", ps.ID(), "rms", rmsValue)
			v.notify(ps.Graph(), true)
		}
		return
	}

	if v.active && (to-v.lastActivation).Duration() > v.holdTime {
		v.active = false
		v.log.Info("deactivating vox", "stream", ps.ID())
		v.notify(ps.Graph(), false)
	}
}

// level returns the highest RMS of the audio tracks of ps over [from, to).
// ok is false if no audio was produced in the interval.
func (v *Vox) level(ps *graph.ProcessedStream, from, to graph.GraphTime) (float32, bool) {
	chs := ps.Graph().Channels()
	if chs > 1 {
		v.multiChannelWarning()
	}

	var level float32
	ok := false
	for _, tr := range ps.Buffer().TracksOfType(graph.Audio) {
		start := graph.TimeToTicksRoundDown(tr.Rate(), ps.GraphTimeToStreamTime(from))
		end := min(tr.End(), graph.TimeToTicksRoundDown(tr.Rate(), ps.GraphTimeToStreamTime(to)))
		if end <= start {
			continue
		}
		buf := make([]float32, int(end-start)*chs)
		tr.AudioSegment().MixInto(buf, chs, start, 1)
		level = max(level, audio.RMS(buf))
		ok = true
	}
	return level, ok
}

func (v *Vox) notify(g *graph.Graph, on bool) {
	if v.onStateChange == nil {
		return
	}
	cb := v.onStateChange
	g.DispatchToControl(func() { cb(on) })
}

// Enable enables or disables the vox. A disabled vox still passes its
// input through.
func (v *Vox) Enable(state bool) {
	v.Lock()
	defer v.Unlock()
	v.enabled = state
	if !state {
		v.active = false
	}
}

// Enabled returns the state of the vox.
func (v *Vox) Enabled() bool {
	v.Lock()
	defer v.Unlock()
	return v.enabled
}

// Active reports whether the level is currently above the threshold or
// within the hold time.
func (v *Vox) Active() bool {
	v.Lock()
	defer v.Unlock()
	return v.active
}

// SetThreshold sets the threshold level. The range must be between 0 ... 1.
func (v *Vox) SetThreshold(t float32) {
	v.Lock()
	defer v.Unlock()
	v.threshold = t
}

// SetHoldTime sets the hold time.
func (v *Vox) SetHoldTime(t time.Duration) {
	v.Lock()
	defer v.Unlock()
	v.holdTime = t
}

func (v *Vox) multiChannelWarning() {
	v.chWarning.Do(func() {
		v.log.Warn("multiple channels detected; RMS will be calculated over all channel samples")
	})
}
