package graph

import (
	"slices"
	"sync"
)

type pendingDispatch struct {
	executor Executor
	fn       func()
}

// trackData is a track as seen by the producer: data queued but not yet
// merged into the stream's buffer.
type trackData struct {
	id       TrackID
	rate     TrackRate
	start    TrackTicks
	commands TrackEvents
	data     Segment
	// end of the track including everything ever queued
	endTicks   TrackTicks
	haveEnough bool
	dispatch   []pendingDispatch
}

// SourceStream is a stream fed by a producer. Producer methods may be
// called from any goroutine; they only take the stream's own lock.
type SourceStream struct {
	Stream

	mu                    sync.Mutex
	updateTracks          []*trackData
	updateKnownTracksTime StreamTime
	updateFinished        bool
	pullEnabled           bool
	ingestDestroyed       bool
	// stream time of the last computed state and the buffering level
	// tracks must reach to have enough data
	playedTime  StreamTime
	desiredEnd  StreamTime
	maxBuffered StreamTime
	gapTicks    map[TrackID]TrackTicks
}

// CreateSourceStream creates a SourceStream. It becomes part of the graph
// once pending changes are flushed. Control method.
func (g *Graph) CreateSourceStream() *SourceStream {
	ss := &SourceStream{
		desiredEnd:  StreamTime(DurationToGraphTime(g.options.LowWaterMark)),
		maxBuffered: StreamTime(DurationToGraphTime(g.options.MaxBuffered)),
		gapTicks:    make(map[TrackID]TrackTicks),
	}
	ss.source = ss
	g.addStream(&ss.Stream, "source")
	return ss
}

func (ss *SourceStream) findTrack(id TrackID) *trackData {
	for _, td := range ss.updateTracks {
		if td.id == id {
			return td
		}
	}
	return nil
}

// admit applies the buffering budget to data about to be queued on td.
// Data which would be buffered beyond the budget is replaced by null data.
func (ss *SourceStream) admit(td *trackData, data Segment) {
	d := data.Duration()
	if ss.maxBuffered > 0 && !data.IsEmpty() &&
		TicksToTimeRoundDown(td.rate, td.endTicks+d)-ss.playedTime > ss.maxBuffered {
		if ss.gapTicks[td.id] == 0 {
			ss.log.Warn("buffer budget exceeded, replacing data with gap", "track", td.id)
		}
		ss.gapTicks[td.id] += d
		data.ReplaceWithNull()
	}
	td.endTicks += d
	td.haveEnough = TicksToTimeRoundDown(td.rate, td.endTicks) >= ss.desiredEnd
}

// AddTrack queues the creation of track id at rate, starting at start ticks
// of stream time, with initial data. It is ignored once the stream has
// finished or has been destroyed.
func (ss *SourceStream) AddTrack(id TrackID, rate TrackRate, start TrackTicks, data Segment) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.updateFinished || ss.ingestDestroyed || ss.findTrack(id) != nil {
		return
	}
	td := &trackData{
		id:       id,
		rate:     rate,
		start:    start,
		commands: TrackCreated,
		data:     data.CreateEmptyClone(),
		endTicks: start,
	}
	ss.admit(td, data)
	td.data.AppendFrom(data)
	ss.updateTracks = append(ss.updateTracks, td)
}

// AppendToTrack queues data at the end of track id and takes ownership of
// its content. It returns false, dropping data, if the track does not exist
// or has ended, or the stream has finished or has been destroyed.
func (ss *SourceStream) AppendToTrack(id TrackID, data Segment) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	td := ss.findTrack(id)
	if ss.updateFinished || ss.ingestDestroyed || td == nil || td.commands&TrackEnded != 0 {
		data.Clear()
		return false
	}
	ss.admit(td, data)
	td.data.AppendFrom(data)
	return true
}

// EndTrack declares that no more data will be appended to track id.
func (ss *SourceStream) EndTrack(id TrackID) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if td := ss.findTrack(id); td != nil {
		td.commands |= TrackEnded
	}
}

// AdvanceKnownTracksTime declares that no track will be added before t.
func (ss *SourceStream) AdvanceKnownTracksTime(t StreamTime) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.updateKnownTracksTime = max(ss.updateKnownTracksTime, t)
}

// Finish ends every open track and marks the stream finished. The finish
// notification follows once all data has played out.
func (ss *SourceStream) Finish() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for _, td := range ss.updateTracks {
		td.commands |= TrackEnded
	}
	ss.updateKnownTracksTime = StreamTimeMax
	ss.updateFinished = true
}

// EndAllTracksAndFinish is an alias for Finish.
func (ss *SourceStream) EndAllTracksAndFinish() {
	ss.Finish()
}

// SetPullEnabled enables NotifyPull calls on the stream's listeners.
func (ss *SourceStream) SetPullEnabled(enabled bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pullEnabled = enabled
}

// HaveEnoughBuffered reports whether track id is buffered at least the
// graph's low water mark ahead of the playback position.
func (ss *SourceStream) HaveEnoughBuffered(id TrackID) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	td := ss.findTrack(id)
	return td != nil && td.haveEnough
}

// DispatchWhenNotEnoughBuffered dispatches fn on e once track id falls
// below the low water mark. If it already is below, or the track is
// unknown, fn is dispatched immediately.
func (ss *SourceStream) DispatchWhenNotEnoughBuffered(id TrackID, e Executor, fn func()) {
	ss.mu.Lock()
	td := ss.findTrack(id)
	if td != nil && td.haveEnough && !ss.ingestDestroyed {
		td.dispatch = append(td.dispatch, pendingDispatch{executor: e, fn: fn})
		ss.mu.Unlock()
		return
	}
	ss.mu.Unlock()
	e.Dispatch(fn)
}

// GapTicks returns the number of ticks of track id which were replaced by
// null data because they exceeded the buffering budget.
func (ss *SourceStream) GapTicks(id TrackID) TrackTicks {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.gapTicks[id]
}

func (ss *SourceStream) destroyIngest() {
	ss.mu.Lock()
	ss.ingestDestroyed = true
	ss.updateTracks = nil
	ss.mu.Unlock()
}

// pendingTrack is queued track data detached from the producer side.
type pendingTrack struct {
	id     TrackID
	rate   TrackRate
	start  TrackTicks
	events TrackEvents
	data   Segment
}

// extractPendingInput merges the data queued by the producer into the
// buffer. Pull listeners are asked for data up to desired first.
func (g *Graph) extractPendingInput(ss *SourceStream, desired GraphTime) {
	ss.mu.Lock()
	pull := ss.pullEnabled && !ss.updateFinished
	ss.mu.Unlock()
	if pull && !ss.finished {
		t := ss.GraphTimeToStreamTime(desired)
		for _, l := range ss.listeners {
			l.NotifyPull(g, t)
		}
	}

	ss.mu.Lock()
	pending := make([]pendingTrack, 0, len(ss.updateTracks))
	for _, td := range ss.updateTracks {
		if td.data.IsEmpty() && td.commands == 0 {
			continue
		}
		pending = append(pending, pendingTrack{
			id:     td.id,
			rate:   td.rate,
			start:  td.start,
			events: td.commands,
			data:   td.data,
		})
		td.data = td.data.CreateEmptyClone()
		td.commands &^= TrackCreated
	}
	ss.updateTracks = slices.DeleteFunc(ss.updateTracks, func(td *trackData) bool {
		return td.commands&TrackEnded != 0
	})
	known := ss.updateKnownTracksTime
	finished := ss.updateFinished
	ss.mu.Unlock()

	for _, p := range pending {
		tr := ss.buffer.FindTrack(p.id)
		offset := p.start
		if tr != nil {
			offset = tr.End()
		}
		if len(ss.listeners) > 0 {
			// p.data is moved into the track below
			queued := p.data.CreateEmptyClone()
			queued.AppendSlice(p.data, 0, p.data.Duration())
			for _, l := range ss.listeners {
				l.NotifyQueuedTrackChanges(g, TrackChange{
					ID:     p.id,
					Rate:   p.rate,
					Offset: offset,
					Events: p.events,
					Queued: queued,
				})
			}
		}
		switch {
		case p.events&TrackCreated != 0 && tr == nil:
			tr = ss.buffer.AddTrack(p.id, p.rate, p.start, p.data)
			tr.enabled = !ss.disabledTracks[p.id]
		case tr != nil:
			tr.segment.AppendFrom(p.data)
		}
		if tr != nil && p.events&TrackEnded != 0 {
			tr.SetEnded()
		}
	}
	ss.buffer.AdvanceKnownTracksTime(known)
	if finished {
		ss.finishOnGraphThread()
	}
}

// updateBufferSufficiency recomputes which tracks have enough data buffered
// and wakes producers waiting for tracks which fell below the mark.
func (g *Graph) updateBufferSufficiency(ss *SourceStream) {
	played := ss.GraphTimeToStreamTime(g.stateComputedTime)
	var wake []pendingDispatch

	ss.mu.Lock()
	ss.playedTime = played
	ss.desiredEnd = played + StreamTime(DurationToGraphTime(g.options.LowWaterMark))
	for _, td := range ss.updateTracks {
		td.haveEnough = TicksToTimeRoundDown(td.rate, td.endTicks) >= ss.desiredEnd
		if !td.haveEnough {
			wake = append(wake, td.dispatch...)
			td.dispatch = nil
		}
	}
	ss.mu.Unlock()

	for _, w := range wake {
		w.executor.Dispatch(w.fn)
	}
}
