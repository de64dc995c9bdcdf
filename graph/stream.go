package graph

import (
	"fmt"
	"log/slog"
	"slices"
)

// MediaStream is implemented by *Stream, *SourceStream and *ProcessedStream.
type MediaStream interface {
	base() *Stream
}

type audioOutput struct {
	key    any
	volume float32
}

type videoOutput struct {
	sink VideoSink
	last *VideoFrame
}

// Stream is the part common to every stream of a Graph. Methods documented
// as control methods may be called from any goroutine; they are queued and
// applied by the scheduler once the pending changes are flushed. Methods
// documented as graph methods may only be called on the scheduling
// goroutine, that is from listeners and processors.
type Stream struct {
	graph *Graph
	id    uint64
	kind  string
	log   *slog.Logger

	source    *SourceStream
	processed *ProcessedStream

	// scheduling goroutine only
	buffer               StreamBuffer
	bufferStartTime      GraphTime
	explicitBlockerCount TimeVarying[uint32]
	blocked              TimeVarying[bool]
	graphUpdateIndices   TimeVarying[int64]
	listeners            []Listener
	audioOutputs         []audioOutput
	videoOutputs         []videoOutput
	consumers            []*InputPort
	disabledTracks       map[TrackID]bool

	finished               bool
	notifiedFinished       bool
	notifiedBlocked        bool
	notifiedHasCurrentData bool
	live                   bool
	destroyed              bool

	// scratch state of the blocking computation
	inBlockingSet    bool
	blockInThisPhase bool

	// guarded by graph.mu
	published Snapshot

	// guarded by graph.ctlMu
	ctlDestroyed     bool
	controlListeners []ControlListener
}

func (s *Stream) init(g *Graph, id uint64, kind string) {
	s.graph = g
	s.id = id
	s.kind = kind
	s.log = g.log.With("stream", id, "kind", kind)
	s.explicitBlockerCount = NewTimeVarying[uint32](0)
	s.blocked = NewTimeVarying(false)
	s.graphUpdateIndices = NewTimeVarying[int64](0)
	s.published = Snapshot{ID: id, Kind: kind}
}

func (s *Stream) base() *Stream { return s }

// ID returns the unique id of the stream.
func (s *Stream) ID() uint64 { return s.id }

// Kind returns "source" or "processed".
func (s *Stream) Kind() string { return s.kind }

// Graph returns the graph owning the stream.
func (s *Stream) Graph() *Graph { return s.graph }

// AsSource returns the stream as SourceStream or nil.
func (s *Stream) AsSource() *SourceStream { return s.source }

// AsProcessed returns the stream as ProcessedStream or nil.
func (s *Stream) AsProcessed() *ProcessedStream { return s.processed }

// AddAudioOutput adds an audio output entry identified by key. Entries are
// independent; the same key may be added more than once. Control method.
func (s *Stream) AddAudioOutput(key any, volume float32) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		s.audioOutputs = append(s.audioOutputs, audioOutput{key: key, volume: volume})
	}})
}

// SetAudioOutputVolume sets the volume of every audio output entry with the
// given key. Control method.
func (s *Stream) SetAudioOutputVolume(key any, volume float32) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		for i := range s.audioOutputs {
			if s.audioOutputs[i].key == key {
				s.audioOutputs[i].volume = volume
			}
		}
	}})
}

// RemoveAudioOutput removes the first audio output entry with the given key.
// Control method.
func (s *Stream) RemoveAudioOutput(key any) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		for i := range s.audioOutputs {
			if s.audioOutputs[i].key == key {
				s.audioOutputs = slices.Delete(s.audioOutputs, i, i+1)
				return
			}
		}
	}})
}

// AddVideoOutput makes the stream's current video frame visible on sink.
// Control method.
func (s *Stream) AddVideoOutput(sink VideoSink) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		s.videoOutputs = append(s.videoOutputs, videoOutput{sink: sink})
	}})
}

// RemoveVideoOutput removes the first video output entry for sink. Control
// method.
func (s *Stream) RemoveVideoOutput(sink VideoSink) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		for i := range s.videoOutputs {
			if s.videoOutputs[i].sink == sink {
				s.videoOutputs = slices.Delete(s.videoOutputs, i, i+1)
				return
			}
		}
	}})
}

// ChangeExplicitBlockerCount adds delta to the stream's explicit blocker
// count from graph time t onward. The stream is blocked whenever the count
// is above zero. Times which have already been computed are clamped to the
// first time still open for decisions. Control method.
func (s *Stream) ChangeExplicitBlockerCount(t GraphTime, delta int) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		t := max(t, s.graph.stateComputedTime)
		count, _ := s.explicitBlockerCount.GetAt(t)
		n := max(int(count)+delta, 0)
		s.explicitBlockerCount.SetAtAndAfter(t, uint32(n))
	}})
}

// AddListener attaches a data-plane listener. Its first callbacks report
// the current blocking state and, if the stream has already finished, the
// finish. Listeners are compared by identity in RemoveListener. Control
// method.
func (s *Stream) AddListener(l Listener) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		s.listeners = append(s.listeners, l)
		b := Unblocked
		if s.notifiedBlocked || s.notifiedFinished {
			b = Blocked
		}
		l.NotifyBlockingChanged(s.graph, b)
		if s.notifiedFinished {
			l.NotifyFinished(s.graph)
		}
	}})
}

// RemoveListener detaches l and calls its NotifyRemoved. Control method.
func (s *Stream) RemoveListener(l Listener) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		i := slices.Index(s.listeners, l)
		if i < 0 {
			return
		}
		s.listeners = slices.Delete(s.listeners, i, i+1)
		l.NotifyRemoved(s.graph)
	}})
}

// SetTrackEnabled enables or disables track id. Disabled tracks are not
// rendered and read as null data by processors. Control method.
func (s *Stream) SetTrackEnabled(id TrackID, enabled bool) {
	s.graph.appendMessage(controlMessage{stream: s, run: func() {
		if s.disabledTracks == nil {
			s.disabledTracks = make(map[TrackID]bool)
		}
		if enabled {
			delete(s.disabledTracks, id)
		} else {
			s.disabledTracks[id] = true
		}
		if t := s.buffer.FindTrack(id); t != nil {
			t.enabled = enabled
		}
	}})
}

// Destroy removes the stream from the graph. All its ports are destroyed
// and its listeners receive NotifyRemoved. Destroy is idempotent. Control
// method.
func (s *Stream) Destroy() {
	g := s.graph
	g.ctlMu.Lock()
	if s.ctlDestroyed {
		g.ctlMu.Unlock()
		return
	}
	s.ctlDestroyed = true
	delete(g.registry, s.id)
	g.ctlMu.Unlock()

	g.appendMessage(controlMessage{stream: s, run: s.destroyOnGraphThread})
}

// AddControlListener registers l for changes of the stream's published
// state. l is called on the graph's control executor.
func (s *Stream) AddControlListener(l ControlListener) {
	s.graph.ctlMu.Lock()
	defer s.graph.ctlMu.Unlock()
	s.controlListeners = append(s.controlListeners, l)
}

// RemoveControlListener unregisters l.
func (s *Stream) RemoveControlListener(l ControlListener) {
	s.graph.ctlMu.Lock()
	defer s.graph.ctlMu.Unlock()
	if i := slices.Index(s.controlListeners, l); i >= 0 {
		s.controlListeners = slices.Delete(s.controlListeners, i, i+1)
	}
}

// Snapshot returns the state published by the last scheduling iteration.
func (s *Stream) Snapshot() Snapshot {
	s.graph.mu.Lock()
	defer s.graph.mu.Unlock()
	snap := s.published
	snap.Outputs = slices.Clone(snap.Outputs)
	return snap
}

// CurrentTime returns the stream time published by the last iteration.
func (s *Stream) CurrentTime() StreamTime {
	return s.Snapshot().CurrentTime
}

// IsFinished reports whether the stream has finished and played out all
// its data, as published by the last iteration.
func (s *Stream) IsFinished() bool {
	return s.Snapshot().Finished
}

// Buffer returns the stream's buffer. Graph method.
func (s *Stream) Buffer() *StreamBuffer { return &s.buffer }

// BufferStartTime returns the graph time at which the stream's time zero
// lies. Graph method.
func (s *Stream) BufferStartTime() GraphTime { return s.bufferStartTime }

// IsFinishedOnGraphThread reports whether the stream will receive no more
// data. Graph method.
func (s *Stream) IsFinishedOnGraphThread() bool { return s.finished }

// IsBlockedAt reports whether the stream is blocked at t and when that
// changes next. Graph method.
func (s *Stream) IsBlockedAt(t GraphTime) (bool, GraphTime) {
	return s.blocked.GetAt(t)
}

// GraphTimeToStreamTime converts t to the stream's time. Blocked intervals
// do not advance stream time. Graph method.
func (s *Stream) GraphTimeToStreamTime(t GraphTime) StreamTime {
	g := s.graph
	if t <= g.currentTime {
		return StreamTime(max(0, t-s.bufferStartTime))
	}
	result := StreamTime(g.currentTime - s.bufferStartTime)
	for gt := g.currentTime; gt < t; {
		blocked, end := s.blocked.GetAt(gt)
		if !blocked {
			result += StreamTime(min(t, end) - gt)
		}
		gt = end
	}
	return result
}

// StreamTimeToGraphTime converts t to graph time, assuming the stream is
// unblocked beyond the last computed time. With includeTrailingBlocked the
// result is moved past any blocked interval starting at the converted time.
// Graph method.
func (s *Stream) StreamTimeToGraphTime(t StreamTime, includeTrailingBlocked bool) GraphTime {
	if t >= StreamTimeMax {
		return GraphTimeMax
	}
	g := s.graph
	elapsed := StreamTime(g.currentTime - s.bufferStartTime)
	if t < elapsed || (t == elapsed && !includeTrailingBlocked) {
		return GraphTime(t) + s.bufferStartTime
	}
	remaining := GraphTime(t - elapsed)
	gt := g.currentTime
	for gt < GraphTimeMax {
		if !includeTrailingBlocked && remaining == 0 {
			return gt
		}
		blocked, end := false, GraphTimeMax
		if gt < g.stateComputedTime {
			blocked, end = s.blocked.GetAt(gt)
			end = min(end, g.stateComputedTime)
		}
		if blocked {
			gt = end
			continue
		}
		if remaining == 0 {
			break
		}
		step := min(remaining, end-gt)
		remaining -= step
		gt += step
	}
	return gt
}

// finishOnGraphThread marks the stream as receiving no more data. All its
// tracks are ended.
func (s *Stream) finishOnGraphThread() {
	if s.finished {
		return
	}
	s.finished = true
	s.buffer.AdvanceKnownTracksTime(StreamTimeMax)
	for _, t := range s.buffer.Tracks() {
		t.SetEnded()
	}
	s.graph.streamOrderDirty = true
	s.log.Debug("stream finished")
}

func (s *Stream) destroyOnGraphThread() {
	if s.destroyed {
		return
	}
	g := s.graph
	if s.processed != nil {
		for _, p := range slices.Clone(s.processed.inputs) {
			p.disconnect()
		}
	}
	for _, p := range slices.Clone(s.consumers) {
		p.disconnect()
	}
	listeners := s.listeners
	s.listeners = nil
	for _, l := range listeners {
		l.NotifyRemoved(g)
	}
	s.audioOutputs = nil
	s.videoOutputs = nil
	s.buffer.clear()
	if s.source != nil {
		s.source.destroyIngest()
	}
	if i := slices.Index(g.streams, s); i >= 0 {
		g.streams = slices.Delete(g.streams, i, i+1)
	}
	g.destroyedStreams = append(g.destroyedStreams, s)
	g.streamOrderDirty = true
	s.destroyed = true
	s.log.Debug("stream destroyed")
}

// publishedOutputs lists the audio output entries for a Snapshot.
func (s *Stream) publishedOutputs() []Volume {
	if len(s.audioOutputs) == 0 {
		return nil
	}
	res := make([]Volume, 0, len(s.audioOutputs))
	for _, o := range s.audioOutputs {
		res = append(res, Volume{Key: fmt.Sprint(o.key), Volume: o.volume})
	}
	return res
}
