package graph

import "slices"

// runIteration advances the graph from currentTime by advance.
func (g *Graph) runIteration(advance GraphTime) {
	from := g.currentTime
	to := from + advance

	g.applyMessages()
	if g.streamOrderDirty {
		g.updateStreamOrder()
	}

	for _, s := range g.streams {
		if s.source != nil {
			g.extractPendingInput(s.source, to)
		}
	}

	g.recomputeBlocking(to)

	for _, s := range slices.Clone(g.streams) {
		ps := s.processed
		if ps == nil || ps.finished || ps.destroyed {
			continue
		}
		if ps.processor != nil {
			ps.processor.ProduceOutput(ps, from, to)
		}
		if ps.autofinish && ps.allInputsPlayedOut(to) {
			ps.finishOnGraphThread()
		}
	}

	g.renderAudio(from, to)
	g.playVideo(from, to)

	for _, s := range g.streams {
		if s.source != nil {
			g.updateBufferSufficiency(s.source)
		}
	}

	g.updateCurrentTime(to)
	g.publish()
}

// applyMessages applies all flushed batches in order. Messages addressed to
// a stream destroyed by an earlier message are skipped.
func (g *Graph) applyMessages() {
	g.mu.Lock()
	queue := g.queue
	g.queue = nil
	g.mu.Unlock()

	for _, b := range queue {
		for _, m := range b.messages {
			if m.stream != nil && m.stream.destroyed {
				continue
			}
			m.run()
		}
		g.processingIndex = b.index
	}
}

// recomputeBlocking decides the blocking state of every stream from
// stateComputedTime up to end.
func (g *Graph) recomputeBlocking(end GraphTime) {
	prev := g.stateComputedTime
	for _, s := range g.streams {
		s.inBlockingSet = false
		s.graphUpdateIndices.SetAtAndAfter(prev, g.processingIndex)
	}

	for _, s := range g.streams {
		if s.inBlockingSet {
			continue
		}
		set := g.addBlockingRelatedStreamsToSet(nil, s)
		for t := prev; t < end; {
			next := GraphTimeMax
			g.recomputeBlockingAt(set, t, end, &next)
			t = next
		}
	}
	g.stateComputedTime = end
}

// addBlockingRelatedStreamsToSet collects all streams whose blocking
// depends on s through ports carrying blocking flags.
func (g *Graph) addBlockingRelatedStreamsToSet(set []*Stream, s *Stream) []*Stream {
	if s.inBlockingSet {
		return set
	}
	s.inBlockingSet = true
	set = append(set, s)
	for _, p := range s.consumers {
		if p.flags&(BlockInput|BlockOutput) != 0 {
			set = g.addBlockingRelatedStreamsToSet(set, &p.dest.Stream)
		}
	}
	if s.processed != nil {
		for _, p := range s.processed.inputs {
			if p.flags&(BlockInput|BlockOutput) != 0 {
				set = g.addBlockingRelatedStreamsToSet(set, p.source)
			}
		}
	}
	return set
}

// recomputeBlockingAt decides the blocking state of set at t. next is
// lowered to the earliest time at which the decision may change.
func (g *Graph) recomputeBlockingAt(set []*Stream, t, end GraphTime, next *GraphTime) {
	for _, s := range set {
		s.blockInThisPhase = false
	}

	for _, s := range set {
		if s.finished {
			endTime := s.StreamTimeToGraphTime(s.buffer.GetAllTracksEnd(), true)
			if endTime <= t {
				g.markStreamBlocking(s)
				*next = min(*next, end)
				continue
			}
			*next = min(*next, endTime)
		}

		count, change := s.explicitBlockerCount.GetAt(t)
		*next = min(*next, change)
		if count > 0 {
			g.markStreamBlocking(s)
			continue
		}

		if g.willUnderrun(s, t, end, next) {
			g.markStreamBlocking(s)
			*next = min(*next, end)
		}
	}

	for _, s := range set {
		s.blocked.SetAtAndAfter(t, s.blockInThisPhase)
	}
}

// markStreamBlocking blocks s and whatever its ports' flags tie to it.
func (g *Graph) markStreamBlocking(s *Stream) {
	if s.blockInThisPhase {
		return
	}
	s.blockInThisPhase = true
	for _, p := range s.consumers {
		if p.flags&BlockOutput != 0 {
			g.markStreamBlocking(&p.dest.Stream)
		}
	}
	if s.processed != nil {
		for _, p := range s.processed.inputs {
			if p.flags&BlockInput != 0 {
				g.markStreamBlocking(p.source)
			}
		}
	}
}

// willUnderrun reports whether a source stream runs out of data at t.
// Processed and finished streams never underrun. A stream which is
// already blocked stays blocked unless it has data up to end.
func (g *Graph) willUnderrun(s *Stream, t, end GraphTime, next *GraphTime) bool {
	if s.finished || s.processed != nil {
		return false
	}
	bufferEnd := s.StreamTimeToGraphTime(s.buffer.GetEnd(), true)
	if bufferEnd <= t {
		return true
	}
	if bufferEnd <= end && s.blocked.GetBefore(t) {
		return true
	}
	*next = min(*next, bufferEnd)
	return false
}

// updateCurrentTime moves the clock to next. Blocked time of the elapsed
// interval is folded into each stream's buffer start, data before the new
// current time is released, and listeners are told what happened.
func (g *Graph) updateCurrentTime(next GraphTime) {
	prev := g.currentTime
	var finishing []*Stream

	for _, s := range slices.Clone(g.streams) {
		var blockedTime GraphTime
		for t := prev; t <= next; {
			blocked, end := s.blocked.GetAt(t)
			if blocked {
				blockedTime += min(end, next) - t
			}
			if blocked != s.notifiedBlocked && !s.notifiedFinished {
				b := Unblocked
				if blocked {
					b = Blocked
				}
				for _, l := range s.listeners {
					l.NotifyBlockingChanged(g, b)
				}
				s.notifiedBlocked = blocked
			}
			if end >= GraphTimeMax {
				break
			}
			t = end
		}

		hasData := !s.notifiedHasCurrentData && s.buffer.hasDataAfter(StreamTime(prev-s.bufferStartTime))
		s.advanceTimeVaryingValuesToCurrentTime(next, blockedTime)

		if blockedTime < next-prev {
			for _, l := range s.listeners {
				l.NotifyOutput(g, next)
			}
		}
		if hasData {
			for _, l := range s.listeners {
				l.NotifyHasCurrentData(g)
			}
			s.notifiedHasCurrentData = true
		}
		if s.finished && !s.notifiedFinished {
			finishing = append(finishing, s)
		}
	}

	g.currentTime = next

	for _, s := range finishing {
		end := s.buffer.GetAllTracksEnd()
		if end == StreamTimeMax || s.bufferStartTime+GraphTime(end) > next {
			continue
		}
		s.notifiedFinished = true
		g.streamOrderDirty = true
		for _, l := range s.listeners {
			l.NotifyFinished(g)
		}
	}
}

// advanceTimeVaryingValuesToCurrentTime rebases the stream's histories on
// t, the new current time, of which blockedTime was spent blocked since the
// previous current time.
func (s *Stream) advanceTimeVaryingValuesToCurrentTime(t, blockedTime GraphTime) {
	s.bufferStartTime += blockedTime
	s.blocked.AdvanceCurrentTime(t)
	s.explicitBlockerCount.AdvanceCurrentTime(t)
	s.graphUpdateIndices.AdvanceCurrentTime(t)
	s.buffer.ForgetUpTo(StreamTime(t - s.bufferStartTime))
}

// publish makes the state of this iteration visible to the control side,
// then dispatches control listeners and deferred runnables.
func (g *Graph) publish() {
	type notice struct {
		snap      Snapshot
		listeners []ControlListener
	}
	var changed []*Stream
	var snaps []Snapshot

	g.mu.Lock()
	g.publishedTime = g.currentTime
	g.published = slices.Clone(g.streams)
	for _, s := range g.streams {
		idx, _ := s.graphUpdateIndices.GetAt(g.currentTime)
		wasFinished := s.published.Finished
		s.published.CurrentTime = StreamTime(g.currentTime - s.bufferStartTime)
		s.published.Finished = s.notifiedFinished
		s.published.UpdateIndex = idx
		s.published.Outputs = s.publishedOutputs()
		if s.published.Finished != wasFinished {
			changed = append(changed, s)
			snaps = append(snaps, s.published)
		}
	}
	for _, s := range g.destroyedStreams {
		s.published.Destroyed = true
		s.published.Outputs = nil
		changed = append(changed, s)
		snaps = append(snaps, s.published)
	}
	g.destroyedStreams = nil
	g.mu.Unlock()

	if len(changed) > 0 {
		g.ctlMu.Lock()
		notices := make([]notice, 0, len(changed))
		for i, s := range changed {
			if len(s.controlListeners) == 0 {
				continue
			}
			notices = append(notices, notice{snap: snaps[i], listeners: slices.Clone(s.controlListeners)})
		}
		g.ctlMu.Unlock()

		for _, n := range notices {
			n := n // per-iteration copy; module targets go1.21 loop semantics
			g.executor.Dispatch(func() {
				for _, l := range n.listeners {
					l.NotifyStateChanged(n.snap)
				}
			})
		}
	}

	runnables := g.afterUpdate
	g.afterUpdate = nil
	for _, fn := range runnables {
		g.executor.Dispatch(fn)
	}
}
