package graph

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func newTestGraph(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	defaults := []Option{
		WithDriver(nil),
		WithControlExecutor(SyncExecutor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	g := New(append(defaults, opts...)...)
	require.NoError(t, g.Init())
	t.Cleanup(g.Shutdown)
	return g
}

func step(t *testing.T, g *Graph, d time.Duration) {
	t.Helper()
	g.FlushPendingChanges()
	require.NoError(t, g.Step(d))
}

type recorder struct {
	NoopListener
	blocking []Blocking
	finished int
	removed  int
	outputs  []GraphTime
	changes  []TrackChange
	current  int
}

func (r *recorder) NotifyBlockingChanged(_ *Graph, b Blocking) { r.blocking = append(r.blocking, b) }
func (r *recorder) NotifyFinished(*Graph)                      { r.finished++ }
func (r *recorder) NotifyRemoved(*Graph)                       { r.removed++ }
func (r *recorder) NotifyOutput(_ *Graph, t GraphTime)         { r.outputs = append(r.outputs, t) }
func (r *recorder) NotifyHasCurrentData(*Graph)                { r.current++ }

func (r *recorder) NotifyQueuedTrackChanges(_ *Graph, c TrackChange) {
	r.changes = append(r.changes, c)
}

func (r *recorder) lastBlocking() Blocking {
	if len(r.blocking) == 0 {
		return Unblocked
	}
	return r.blocking[len(r.blocking)-1]
}

func TestStepRequiresInit(t *testing.T) {
	g := New(WithDriver(nil), WithControlExecutor(SyncExecutor))
	require.ErrorIs(t, g.Step(ms), ErrNotInitialized)
	require.NoError(t, g.Init())
	require.ErrorIs(t, g.Init(), ErrAlreadyInitialized)
	require.NoError(t, g.Step(ms))
	g.Shutdown()
	g.Shutdown()
	require.ErrorIs(t, g.Step(ms), ErrShutdown)
	require.ErrorIs(t, g.Init(), ErrShutdown)
}

func TestHeartbeatDriver(t *testing.T) {
	beats := make(chan time.Duration)
	g := New(WithDriver(NewHeartbeatDriver(beats)), WithControlExecutor(SyncExecutor))
	require.NoError(t, g.Init())
	defer g.Shutdown()

	require.ErrorIs(t, g.Step(ms), ErrDriverRunning)

	beats <- 10 * ms
	beats <- 10 * ms
	require.Eventually(t, func() bool {
		return g.CurrentTime() == 20000
	}, time.Second, time.Millisecond)
}

func TestMonotonicClock(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)

	var last GraphTime
	var lastStream StreamTime
	for _, d := range []time.Duration{0, 5 * ms, 0, ms, 10 * ms} {
		if d == ms {
			p.ChangeExplicitBlockerCount(0, 1)
		}
		step(t, g, d)
		now := g.CurrentTime()
		require.GreaterOrEqual(t, now, last)
		require.GreaterOrEqual(t, p.CurrentTime(), lastStream)
		last, lastStream = now, p.CurrentTime()
	}
	require.Equal(t, GraphTime(16000), last)
	// blocked for the last two iterations
	require.Equal(t, StreamTime(5000), lastStream)
}

func TestBlockedTimeAccounting(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)

	step(t, g, 10*ms)
	require.Equal(t, StreamTime(10000), p.CurrentTime())

	p.ChangeExplicitBlockerCount(0, 1)
	step(t, g, 20*ms)
	require.Equal(t, StreamTime(10000), p.CurrentTime())

	p.ChangeExplicitBlockerCount(0, -1)
	step(t, g, 10*ms)
	require.Equal(t, StreamTime(20000), p.CurrentTime())
	require.Equal(t, GraphTime(40000), g.CurrentTime())
}

func TestScenarioAFinishPropagates(t *testing.T) {
	g := newTestGraph(t)

	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, silence(480))
	s.EndTrack(1)
	s.AdvanceKnownTracksTime(StreamTimeMax)
	s.Finish()

	p := g.CreateProcessedStream(nil)
	p.SetAutofinish(true)
	p.AllocateInputPort(s, 0)
	rec := &recorder{}
	p.AddListener(rec)

	for i := 0; i < 5; i++ {
		step(t, g, 10*ms)
	}
	require.True(t, s.IsFinished())
	require.True(t, p.IsFinished())
	require.Equal(t, 1, rec.finished)
}

func TestAutofinishWaitsForInputToPlayOut(t *testing.T) {
	g := newTestGraph(t)

	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, silence(960))
	s.Finish()

	p := g.CreateProcessedStream(nil)
	p.SetAutofinish(true)
	p.AllocateInputPort(s, 0)

	step(t, g, 10*ms)
	require.False(t, p.IsFinished())
	step(t, g, 10*ms)
	require.True(t, p.IsFinished())
}

func TestAutofinishWithoutInputs(t *testing.T) {
	g := newTestGraph(t)

	calls := 0
	p := g.CreateProcessedStream(ProcessorFunc(func(*ProcessedStream, GraphTime, GraphTime) {
		calls++
	}))
	p.SetAutofinish(true)
	rec := &recorder{}
	p.AddListener(rec)

	step(t, g, 10*ms)
	require.Equal(t, 1, calls)
	require.True(t, p.IsFinished())
	require.Equal(t, 1, rec.finished)

	step(t, g, 10*ms)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, rec.finished)
}

func TestScenarioBAudioOutputs(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateProcessedStream(nil)

	s.AddAudioOutput("A", 0.3)
	s.AddAudioOutput("B", 0.7)
	step(t, g, 10*ms)
	require.Equal(t, []Volume{{Key: "A", Volume: 0.3}, {Key: "B", Volume: 0.7}}, s.Snapshot().Outputs)

	s.SetAudioOutputVolume("A", 0.9)
	step(t, g, 10*ms)
	require.Equal(t, []Volume{{Key: "A", Volume: 0.9}, {Key: "B", Volume: 0.7}}, s.Snapshot().Outputs)

	s.RemoveAudioOutput("unknown")
	s.RemoveAudioOutput("A")
	step(t, g, 10*ms)
	require.Equal(t, []Volume{{Key: "B", Volume: 0.7}}, s.Snapshot().Outputs)
}

func TestScenarioCBlockOutput(t *testing.T) {
	g := newTestGraph(t)
	x := g.CreateProcessedStream(nil)
	y := g.CreateProcessedStream(nil)
	y.AllocateInputPort(x, BlockOutput)
	yRec := &recorder{}
	y.AddListener(yRec)

	step(t, g, 10*ms)
	require.Equal(t, []Blocking{Unblocked}, yRec.blocking)

	x.ChangeExplicitBlockerCount(g.CurrentTime(), 1)
	step(t, g, 10*ms)
	require.Equal(t, Blocked, yRec.lastBlocking())
	require.Equal(t, StreamTime(10000), x.CurrentTime())
	require.Equal(t, StreamTime(10000), y.CurrentTime())
}

func TestScenarioCNoPropagationUpstream(t *testing.T) {
	g := newTestGraph(t)
	x := g.CreateProcessedStream(nil)
	y := g.CreateProcessedStream(nil)
	y.AllocateInputPort(x, BlockOutput)
	xRec := &recorder{}
	x.AddListener(xRec)

	step(t, g, 10*ms)
	y.ChangeExplicitBlockerCount(g.CurrentTime(), 1)
	step(t, g, 10*ms)

	require.Equal(t, []Blocking{Unblocked}, xRec.blocking)
	require.Equal(t, StreamTime(20000), x.CurrentTime())
	require.Equal(t, StreamTime(10000), y.CurrentTime())
}

func TestBlockInputPropagatesUpstream(t *testing.T) {
	g := newTestGraph(t)
	x := g.CreateProcessedStream(nil)
	y := g.CreateProcessedStream(nil)
	y.AllocateInputPort(x, BlockInput)

	step(t, g, 10*ms)
	y.ChangeExplicitBlockerCount(g.CurrentTime(), 1)
	step(t, g, 10*ms)

	require.Equal(t, StreamTime(10000), x.CurrentTime())
	require.Equal(t, StreamTime(10000), y.CurrentTime())

	// without the flag a blocked source does not block the destination
	x.ChangeExplicitBlockerCount(g.CurrentTime(), 1)
	y.ChangeExplicitBlockerCount(g.CurrentTime(), -1)
	step(t, g, 10*ms)
	require.Equal(t, StreamTime(10000), x.CurrentTime())
	require.Equal(t, StreamTime(20000), y.CurrentTime())
}

func TestSourceUnderrun(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, silence(480))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	rec := &recorder{}
	s.AddListener(rec)

	step(t, g, 20*ms)
	require.Equal(t, StreamTime(10000), s.CurrentTime())
	require.Equal(t, Blocked, rec.lastBlocking())
	require.Equal(t, 1, rec.current)

	// data covering exactly the next interval does not unblock
	require.True(t, s.AppendToTrack(1, silence(480)))
	step(t, g, 10*ms)
	require.Equal(t, StreamTime(10000), s.CurrentTime())

	require.True(t, s.AppendToTrack(1, silence(480)))
	step(t, g, 10*ms)
	require.Equal(t, StreamTime(20000), s.CurrentTime())
	require.Equal(t, Unblocked, rec.lastBlocking())
}

func TestSourceWithoutKnownTracksTimeBlocks(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, silence(4800))

	step(t, g, 10*ms)
	require.Equal(t, StreamTime(0), s.CurrentTime())
}

func TestQueuedTrackChanges(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	rec := &recorder{}
	s.AddListener(rec)
	s.AddTrack(3, 48000, 0, silence(480))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	step(t, g, 5*ms)

	s.AppendToTrack(3, silence(480))
	s.EndTrack(3)
	require.False(t, s.AppendToTrack(3, silence(480)))
	require.False(t, s.AppendToTrack(7, silence(480)))
	step(t, g, 5*ms)

	require.Len(t, rec.changes, 2)
	require.Equal(t, TrackCreated, rec.changes[0].Events)
	require.Equal(t, TrackTicks(0), rec.changes[0].Offset)
	require.Equal(t, TrackEnded, rec.changes[1].Events)
	require.Equal(t, TrackTicks(480), rec.changes[1].Offset)
	require.Equal(t, TrackTicks(480), rec.changes[1].Queued.Duration())
	require.Equal(t, TrackTicks(480), rec.changes[0].Queued.Duration())
}

type pullProducer struct {
	NoopListener
	s        *SourceStream
	produced TrackTicks
	pulls    []StreamTime
}

func (p *pullProducer) NotifyPull(_ *Graph, desired StreamTime) {
	p.pulls = append(p.pulls, desired)
	need := TimeToTicksRoundDown(48000, desired) - p.produced
	if need <= 0 {
		return
	}
	if p.produced == 0 {
		p.s.AddTrack(1, 48000, 0, silence(int(need)))
	} else {
		p.s.AppendToTrack(1, silence(int(need)))
	}
	p.produced += need
}

func TestPull(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	s.AdvanceKnownTracksTime(StreamTimeMax)
	s.SetPullEnabled(true)
	p := &pullProducer{s: s}
	s.AddListener(p)

	for i := 0; i < 3; i++ {
		step(t, g, 10*ms)
	}
	require.Equal(t, []StreamTime{10000, 20000, 30000}, p.pulls)
	require.Equal(t, StreamTime(30000), s.CurrentTime())
}

func TestBackpressure(t *testing.T) {
	g := newTestGraph(t, WithLowWaterMark(20*ms))
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, silence(480))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	require.False(t, s.HaveEnoughBuffered(1))

	s.AppendToTrack(1, silence(960))
	require.True(t, s.HaveEnoughBuffered(1))

	woken := 0
	s.DispatchWhenNotEnoughBuffered(1, SyncExecutor, func() { woken++ })
	require.Equal(t, 0, woken)

	step(t, g, 10*ms)
	require.Equal(t, 0, woken)
	require.True(t, s.HaveEnoughBuffered(1))

	step(t, g, 10*ms)
	require.Equal(t, 1, woken)
	require.False(t, s.HaveEnoughBuffered(1))

	// below the mark already: dispatched right away
	s.DispatchWhenNotEnoughBuffered(1, SyncExecutor, func() { woken++ })
	require.Equal(t, 2, woken)
	s.DispatchWhenNotEnoughBuffered(9, SyncExecutor, func() { woken++ })
	require.Equal(t, 3, woken)
}

func TestConcurrentProducer(t *testing.T) {
	g := newTestGraph(t, WithLowWaterMark(30*ms))
	s := g.CreateSourceStream()
	const buffers = 50

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.AddTrack(1, 48000, 0, silence(480))
		s.AdvanceKnownTracksTime(StreamTimeMax)
		for n := 1; n < buffers; {
			if s.HaveEnoughBuffered(1) {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			s.AppendToTrack(1, silence(480))
			n++
		}
		s.Finish()
	}()

	for i := 0; i < 10000 && !s.IsFinished(); i++ {
		step(t, g, 10*ms)
		time.Sleep(200 * time.Microsecond)
	}
	<-done

	require.True(t, s.IsFinished())
	require.Equal(t, StreamTime(buffers*10000), s.CurrentTime())
	require.Zero(t, s.GapTicks(1))
}

func TestBufferBudgetTurnsExcessIntoGap(t *testing.T) {
	g := newTestGraph(t, WithMaxBufferedDuration(50*ms))
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, constant(1920, 0.5))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	require.Equal(t, TrackTicks(0), s.GapTicks(1))

	require.True(t, s.AppendToTrack(1, constant(960, 0.5)))
	require.Equal(t, TrackTicks(960), s.GapTicks(1))

	step(t, g, 10*ms)
	require.Equal(t, StreamTime(10000), s.CurrentTime())
	tr := s.buffer.FindTrack(1)
	require.Equal(t, TrackTicks(2880), tr.End())
	chunks := tr.AudioSegment().Chunks()
	last := chunks[len(chunks)-1]
	require.True(t, last.IsNull())
	require.Equal(t, TrackTicks(960), last.Duration)
}

func TestDestroyIsIdempotent(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	p := g.CreateProcessedStream(nil)
	port := p.AllocateInputPort(s, BlockOutput|BlockInput)
	rec := &recorder{}
	s.AddListener(rec)
	s.AddAudioOutput("speaker", 1)
	step(t, g, 10*ms)
	require.Len(t, p.inputs, 1)
	require.Len(t, s.consumers, 1)

	s.Destroy()
	s.Destroy()
	s.AddAudioOutput("late", 1)
	step(t, g, 10*ms)

	port.Destroy()
	port.Destroy()
	step(t, g, 10*ms)

	require.Equal(t, 1, rec.removed)
	require.True(t, s.Snapshot().Destroyed)
	require.Nil(t, g.Stream(s.ID()))
	require.NotNil(t, g.Stream(p.ID()))
	require.False(t, s.AppendToTrack(1, silence(10)))

	// no references to the destroyed stream or its port remain
	require.Empty(t, s.consumers)
	require.Empty(t, s.listeners)
	require.Empty(t, s.audioOutputs)
	require.Empty(t, p.inputs)
	require.Nil(t, port.Source())
	require.Nil(t, port.Dest())
	for _, other := range g.streams {
		require.NotSame(t, &s.Stream, other)
		for _, c := range other.consumers {
			require.NotSame(t, port, c)
		}
	}
	for _, snap := range g.Snapshots() {
		require.NotEqual(t, s.ID(), snap.ID)
	}
}

func TestDestroyPortTwiceWhileConnected(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateProcessedStream(nil)
	p := g.CreateProcessedStream(nil)
	port := p.AllocateInputPort(s, 0)
	step(t, g, 10*ms)

	port.Destroy()
	port.Destroy()
	step(t, g, 10*ms)
	require.Empty(t, p.inputs)
	require.Empty(t, s.consumers)
}

func TestCycleDetection(t *testing.T) {
	g := newTestGraph(t)
	s := g.CreateSourceStream()
	a := g.CreateProcessedStream(nil)
	b := g.CreateProcessedStream(nil)
	c := g.CreateProcessedStream(nil)
	d := g.CreateProcessedStream(nil)
	a.AllocateInputPort(b, 0)
	b.AllocateInputPort(a, 0)
	c.AllocateInputPort(s, 0)
	d.AllocateInputPort(d, 0)
	step(t, g, 10*ms)

	require.True(t, a.InCycle())
	require.True(t, b.InCycle())
	require.True(t, d.InCycle())
	require.False(t, c.InCycle())

	index := func(st *Stream) int {
		for i, o := range g.streams {
			if o == st {
				return i
			}
		}
		return -1
	}
	require.Less(t, index(&s.Stream), index(&c.Stream))
	// same-cycle members are visited in id order
	require.Less(t, index(&a.Stream), index(&b.Stream))
}

func TestProcessingOrderFollowsPorts(t *testing.T) {
	g := newTestGraph(t)
	var order []string
	record := func(name string) Processor {
		return ProcessorFunc(func(*ProcessedStream, GraphTime, GraphTime) {
			order = append(order, name)
		})
	}
	// created in reverse dependency order
	last := g.CreateProcessedStream(record("last"))
	middle := g.CreateProcessedStream(record("middle"))
	first := g.CreateProcessedStream(record("first"))
	last.AllocateInputPort(middle, 0)
	middle.AllocateInputPort(first, 0)

	step(t, g, 10*ms)
	require.Equal(t, []string{"first", "middle", "last"}, order)
}

func TestNextInputInterval(t *testing.T) {
	g := newTestGraph(t)
	x := g.CreateProcessedStream(nil)
	var intervals []Interval
	y := g.CreateProcessedStream(ProcessorFunc(func(ps *ProcessedStream, from, to GraphTime) {
		port := ps.Inputs()[0]
		for t := from; t < to; {
			iv := port.NextInputInterval(t)
			if iv.Start >= to {
				break
			}
			intervals = append(intervals, iv)
			t = iv.End
		}
	}))
	y.AllocateInputPort(x, 0)
	x.ChangeExplicitBlockerCount(5000, 1)

	step(t, g, 10*ms)
	require.Equal(t, []Interval{
		{Start: 0, End: 5000},
		{Start: 5000, End: 10000, InputIsBlocked: true},
	}, intervals)
}

func TestListenerFirstNotifications(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)
	p.SetAutofinish(true)
	step(t, g, 10*ms)
	require.True(t, p.IsFinished())

	rec := &recorder{}
	p.AddListener(rec)
	step(t, g, 10*ms)
	require.Equal(t, []Blocking{Blocked}, rec.blocking)
	require.Equal(t, 1, rec.finished)

	p.RemoveListener(rec)
	p.RemoveListener(rec)
	step(t, g, 10*ms)
	require.Equal(t, 1, rec.removed)
}

func TestNotifyOutput(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)
	rec := &recorder{}
	p.AddListener(rec)

	step(t, g, 10*ms)
	p.ChangeExplicitBlockerCount(0, 1)
	step(t, g, 10*ms)
	require.Equal(t, []GraphTime{10000}, rec.outputs)
}

func TestProcessedHasCurrentData(t *testing.T) {
	g := newTestGraph(t)
	calls := 0
	p := g.CreateProcessedStream(ProcessorFunc(func(ps *ProcessedStream, from, to GraphTime) {
		calls++
		// nothing produced in the first iteration
		if calls == 1 {
			return
		}
		d := TimeToTicksRoundDown(48000, StreamTime(to-from))
		if tr := ps.Buffer().FindTrack(1); tr != nil {
			tr.Segment().AppendNullData(d)
			return
		}
		seg := NewAudioSegment()
		seg.AppendNullData(TimeToTicksRoundDown(48000, StreamTime(to)))
		ps.Buffer().AddTrack(1, 48000, 0, seg)
	}))
	rec := &recorder{}
	p.AddListener(rec)

	step(t, g, 10*ms)
	require.Equal(t, 0, rec.current)

	for i := 0; i < 3; i++ {
		step(t, g, 10*ms)
	}
	require.Equal(t, 1, rec.current)
}

func TestControlListenersAndUpdateIndex(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)
	p.SetAutofinish(true)
	var got []Snapshot
	p.AddControlListener(ControlListenerFunc(func(s Snapshot) { got = append(got, s) }))

	idx := g.FlushPendingChanges()
	require.Equal(t, int64(1), idx)
	require.NoError(t, g.Step(10*ms))
	require.Len(t, got, 1)
	require.True(t, got[0].Finished)
	require.Equal(t, int64(1), got[0].UpdateIndex)

	p.Destroy()
	step(t, g, 10*ms)
	require.Len(t, got, 2)
	require.True(t, got[1].Destroyed)
}

func TestRunAfterPendingUpdates(t *testing.T) {
	g := newTestGraph(t)
	p := g.CreateProcessedStream(nil)
	p.AddAudioOutput("speaker", 1)

	var outputs []Volume
	g.RunAfterPendingUpdates(func() { outputs = p.Snapshot().Outputs })
	require.Nil(t, outputs)

	step(t, g, 10*ms)
	require.Equal(t, []Volume{{Key: "speaker", Volume: 1}}, outputs)
}

func TestRunAfterPendingUpdatesRunsOnShutdown(t *testing.T) {
	g := New(WithDriver(nil), WithControlExecutor(SyncExecutor))
	require.NoError(t, g.Init())
	ran := false
	g.RunAfterPendingUpdates(func() { ran = true })
	g.Shutdown()
	require.True(t, ran)
}

func TestShutdownDestroysStreams(t *testing.T) {
	g := New(WithDriver(nil))
	require.NoError(t, g.Init())
	s := g.CreateSourceStream()
	rec := &recorder{}
	s.AddListener(rec)
	g.FlushPendingChanges()
	require.NoError(t, g.Step(10*ms))

	g.Shutdown()
	require.Equal(t, 1, rec.removed)
	require.True(t, s.Snapshot().Destroyed)
	require.False(t, s.AppendToTrack(1, silence(1)))
}

type msgSink struct {
	msgs []audio.Msg
}

func (s *msgSink) Write(m audio.Msg) error {
	s.msgs = append(s.msgs, m)
	return nil
}

func TestAudioRender(t *testing.T) {
	sink := &msgSink{}
	g := newTestGraph(t, WithAudioSink(sink), WithChannels(2), WithSampleRate(48000))
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, constant(960, 0.5))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	s.AddAudioOutput("a", 0.25)
	s.AddAudioOutput("b", 0.25)

	step(t, g, 10*ms)
	require.Len(t, sink.msgs, 1)
	msg := sink.msgs[0]
	require.Equal(t, 480, msg.Frames)
	require.Equal(t, 2, msg.Channels)
	require.Equal(t, float64(48000), msg.Samplerate)
	require.Len(t, msg.Data, 960)
	for _, v := range msg.Data {
		require.Equal(t, float32(0.25), v)
	}

	// the second half of the interval is an underrun and therefore silent
	step(t, g, 20*ms)
	msg = sink.msgs[1]
	require.Equal(t, 960, msg.Frames)
	for i, v := range msg.Data {
		if i < 960 {
			require.Equal(t, float32(0.25), v)
		} else {
			require.Equal(t, float32(0), v)
		}
	}
}

func TestAudioRenderSkipsDisabledTracks(t *testing.T) {
	sink := &msgSink{}
	g := newTestGraph(t, WithAudioSink(sink), WithChannels(1))
	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, constant(4800, 0.5))
	s.AdvanceKnownTracksTime(StreamTimeMax)
	s.AddAudioOutput("a", 1)
	s.SetTrackEnabled(1, false)

	step(t, g, 10*ms)
	for _, v := range sink.msgs[0].Data {
		require.Equal(t, float32(0), v)
	}

	s.SetTrackEnabled(1, true)
	step(t, g, 10*ms)
	for _, v := range sink.msgs[1].Data {
		require.Equal(t, float32(0.5), v)
	}
}

type frameSink struct {
	frames []*VideoFrame
	times  []GraphTime
}

func (s *frameSink) SetCurrentFrame(f *VideoFrame, t GraphTime) {
	s.frames = append(s.frames, f)
	s.times = append(s.times, t)
}

func TestVideoOutputOnlyOnChange(t *testing.T) {
	g := newTestGraph(t)
	f1 := &VideoFrame{}
	f2 := &VideoFrame{}
	seg := NewVideoSegment()
	seg.AppendFrame(f1, 900)
	seg.AppendFrame(f2, 900)
	seg.AppendNullData(2700)

	s := g.CreateSourceStream()
	s.AddTrack(1, VideoRate, 0, seg)
	s.AdvanceKnownTracksTime(StreamTimeMax)
	vs := &frameSink{}
	s.AddVideoOutput(vs)

	step(t, g, 5*ms)
	step(t, g, 5*ms)
	step(t, g, 10*ms)
	step(t, g, 10*ms)

	require.Len(t, vs.frames, 2)
	require.Same(t, f1, vs.frames[0])
	require.Same(t, f2, vs.frames[1])
	require.Equal(t, []GraphTime{0, 10000}, vs.times)

	s.RemoveVideoOutput(vs)
	step(t, g, 10*ms)
	require.Len(t, vs.frames, 2)
}
