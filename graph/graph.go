package graph

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type lifecycle int

const (
	created lifecycle = iota
	running
	shutdown
)

// controlMessage is a change requested by the control side. run is
// executed on the scheduling goroutine unless the message targets a
// destroyed stream; onShutdown, if set, is executed instead when the graph
// shuts down before the message was applied.
type controlMessage struct {
	stream     *Stream
	run        func()
	onShutdown func()
}

type messageBatch struct {
	index    int64
	messages []controlMessage
}

// Graph synchronizes a set of streams against one virtual clock. Control
// methods may be called from any goroutine. The graph's state is owned by
// the scheduling goroutine: the driver's goroutine, or the caller of Step
// when the graph has no driver.
type Graph struct {
	options  Options
	log      *slog.Logger
	executor Executor
	ownExec  *SerialExecutor

	// control side
	ctlMu    sync.Mutex
	batch    []controlMessage
	nextID   uint64
	registry map[uint64]*Stream

	// shared between control side and scheduling goroutine
	mu            sync.Mutex
	state         lifecycle
	queue         []messageBatch
	flushedIndex  int64
	publishedTime GraphTime
	published     []*Stream

	// serializes iterations
	stepMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// scheduling goroutine only
	streams           []*Stream
	destroyedStreams  []*Stream
	currentTime       GraphTime
	stateComputedTime GraphTime
	streamOrderDirty  bool
	processingIndex   int64
	afterUpdate       []func()
	warnedRates       map[TrackRate]bool
}

// New creates a Graph. The graph does not advance before Init is called.
func New(opts ...Option) *Graph {
	o := Options{
		Logger:       slog.Default(),
		Driver:       NewSystemClockDriver(10 * time.Millisecond),
		SampleRate:   48000,
		Channels:     2,
		LowWaterMark: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Channels < 1 {
		o.Channels = 1
	}

	g := &Graph{
		options:     o,
		log:         o.Logger.With("component", "graph"),
		registry:    make(map[uint64]*Stream),
		nextID:      1,
		warnedRates: make(map[TrackRate]bool),
	}
	g.executor = o.Executor
	if g.executor == nil {
		g.ownExec = NewSerialExecutor()
		g.executor = g.ownExec
	}
	return g
}

// Init starts the graph's driver. Without a driver the graph is advanced
// by calling Step.
func (g *Graph) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case running:
		return ErrAlreadyInitialized
	case shutdown:
		return ErrShutdown
	}
	g.state = running

	if g.options.Driver == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go func() {
		defer close(g.done)
		if err := g.options.Driver.Run(ctx, g.iterate); err != nil {
			g.log.Error("graph driver stopped", "error", err)
		}
	}()
	g.log.Debug("graph started",
		"samplerate", g.options.SampleRate,
		"channels", g.options.Channels)
	return nil
}

// Shutdown stops the driver, destroys all streams and stops the control
// executor if the graph owns it. Messages not yet applied are discarded.
// Shutdown is idempotent.
func (g *Graph) Shutdown() {
	g.ctlMu.Lock()
	g.mu.Lock()
	if g.state == shutdown {
		g.mu.Unlock()
		g.ctlMu.Unlock()
		return
	}
	g.state = shutdown
	pending := g.queue
	g.queue = nil
	cancel, done := g.cancel, g.done
	g.mu.Unlock()
	pending = append(pending, messageBatch{messages: g.batch})
	g.batch = nil
	g.ctlMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	g.stepMu.Lock()
	for _, b := range pending {
		for _, m := range b.messages {
			if m.onShutdown != nil {
				m.onShutdown()
			}
		}
	}
	for _, s := range slices.Clone(g.streams) {
		s.destroyOnGraphThread()
	}
	g.publish()
	g.stepMu.Unlock()

	if g.ownExec != nil {
		g.ownExec.Close()
	}
	g.log.Debug("graph shut down")
}

// Step runs one scheduling iteration advancing the clock by advance. It
// is used to drive graphs created without a driver.
func (g *Graph) Step(advance time.Duration) error {
	g.mu.Lock()
	state, hasDriver := g.state, g.cancel != nil
	g.mu.Unlock()
	switch {
	case state == created:
		return ErrNotInitialized
	case state == shutdown:
		return ErrShutdown
	case hasDriver:
		return ErrDriverRunning
	}
	g.iterate(DurationToGraphTime(advance))
	return nil
}

func (g *Graph) iterate(advance GraphTime) {
	g.stepMu.Lock()
	defer g.stepMu.Unlock()

	g.mu.Lock()
	stopped := g.state == shutdown
	g.mu.Unlock()
	if stopped {
		return
	}
	g.runIteration(max(advance, 0))
}

// appendMessage queues m in the current batch. Messages are dropped once
// the graph has been shut down.
func (g *Graph) appendMessage(m controlMessage) {
	g.ctlMu.Lock()
	defer g.ctlMu.Unlock()
	g.mu.Lock()
	stopped := g.state == shutdown
	g.mu.Unlock()
	if stopped {
		return
	}
	g.batch = append(g.batch, m)
}

// FlushPendingChanges hands all changes requested since the last flush to
// the scheduler as one batch, which is applied atomically at the start of
// the next iteration. It returns the update index of the batch. Snapshots
// carry the index of the last batch applied.
func (g *Graph) FlushPendingChanges() int64 {
	g.ctlMu.Lock()
	defer g.ctlMu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.batch) == 0 || g.state == shutdown {
		return g.flushedIndex
	}
	g.flushedIndex++
	g.queue = append(g.queue, messageBatch{index: g.flushedIndex, messages: g.batch})
	g.batch = nil
	return g.flushedIndex
}

func (g *Graph) addStream(s *Stream, kind string) {
	g.ctlMu.Lock()
	id := g.nextID
	g.nextID++
	s.init(g, id, kind)
	g.registry[id] = s
	g.ctlMu.Unlock()

	g.appendMessage(controlMessage{stream: s, run: func() {
		s.bufferStartTime = g.currentTime
		s.live = true
		g.streams = append(g.streams, s)
		g.streamOrderDirty = true
		s.log.Debug("stream created")
	}})
}

// Stream returns the live stream with the given id, or nil.
func (g *Graph) Stream(id uint64) *Stream {
	g.ctlMu.Lock()
	defer g.ctlMu.Unlock()
	return g.registry[id]
}

// Snapshots returns the published state of all streams, ordered by id.
func (g *Graph) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := make([]Snapshot, 0, len(g.published))
	for _, s := range g.published {
		snap := s.published
		snap.Outputs = slices.Clone(snap.Outputs)
		res = append(res, snap)
	}
	slices.SortFunc(res, func(a, b Snapshot) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return res
}

// CurrentTime returns the graph time published by the last iteration.
func (g *Graph) CurrentTime() GraphTime {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.publishedTime
}

// SampleRate returns the rate at which audio is rendered.
func (g *Graph) SampleRate() TrackRate { return g.options.SampleRate }

// Channels returns the channel count of the rendered audio.
func (g *Graph) Channels() int { return g.options.Channels }

// Logger returns the graph's logger.
func (g *Graph) Logger() *slog.Logger { return g.log }

// RunAfterPendingUpdates dispatches fn on the control executor once all
// changes requested before it have been applied and their effect has been
// published. If the graph shuts down first, fn runs during shutdown.
// Control method.
func (g *Graph) RunAfterPendingUpdates(fn func()) {
	g.appendMessage(controlMessage{
		run:        func() { g.afterUpdate = append(g.afterUpdate, fn) },
		onShutdown: fn,
	})
}

// DispatchToControl runs fn on the control executor.
func (g *Graph) DispatchToControl(fn func()) {
	g.executor.Dispatch(fn)
}
