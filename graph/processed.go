package graph

import "slices"

// PortFlags control how blocking propagates across an InputPort.
type PortFlags uint32

const (
	// BlockInput blocks the port's source whenever its destination is
	// blocked.
	BlockInput PortFlags = 1 << iota
	// BlockOutput blocks the port's destination whenever its source is
	// blocked.
	BlockOutput
)

// Processor computes the content of a ProcessedStream. ProduceOutput is
// called once per iteration, on the scheduling goroutine, for the interval
// [from, to). It must not block.
type Processor interface {
	ProduceOutput(ps *ProcessedStream, from, to GraphTime)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ps *ProcessedStream, from, to GraphTime)

func (f ProcessorFunc) ProduceOutput(ps *ProcessedStream, from, to GraphTime) { f(ps, from, to) }

// ProcessedStream is a stream whose content is computed from its inputs
// by a Processor.
type ProcessedStream struct {
	Stream

	processor  Processor
	inputs     []*InputPort
	autofinish bool
	inCycle    bool
}

// CreateProcessedStream creates a stream computed by p. It becomes part of
// the graph once pending changes are flushed. Control method.
func (g *Graph) CreateProcessedStream(p Processor) *ProcessedStream {
	ps := &ProcessedStream{processor: p}
	ps.processed = ps
	g.addStream(&ps.Stream, "processed")
	return ps
}

// SetAutofinish makes the stream finish once all of its inputs have
// finished and played out. Control method.
func (ps *ProcessedStream) SetAutofinish(autofinish bool) {
	ps.graph.appendMessage(controlMessage{stream: &ps.Stream, run: func() {
		ps.autofinish = autofinish
	}})
}

// AllocateInputPort connects src to ps. Without flags blocking does not
// propagate across the port. Control method.
func (ps *ProcessedStream) AllocateInputPort(src MediaStream, flags PortFlags) *InputPort {
	p := &InputPort{
		graph:  ps.graph,
		source: src.base(),
		dest:   ps,
		flags:  flags,
	}
	ps.graph.appendMessage(controlMessage{stream: &ps.Stream, run: p.connect})
	return p
}

// Processor returns the processor computing the stream, or nil.
func (ps *ProcessedStream) Processor() Processor { return ps.processor }

// Inputs returns the connected input ports. Graph method.
func (ps *ProcessedStream) Inputs() []*InputPort { return ps.inputs }

// InCycle reports whether the stream is part of a cycle of ports. Streams
// in a cycle may be processed before other members of the cycle have
// produced their output for the same interval. Graph method.
func (ps *ProcessedStream) InCycle() bool { return ps.inCycle }

// Finish marks the stream as receiving no more data. Graph method, to be
// called by processors.
func (ps *ProcessedStream) Finish() { ps.finishOnGraphThread() }

// allInputsPlayedOut reports whether every input has finished and played
// out all its data by t.
func (ps *ProcessedStream) allInputsPlayedOut(t GraphTime) bool {
	for _, p := range ps.inputs {
		src := p.source
		if !src.finished {
			return false
		}
		end := src.buffer.GetAllTracksEnd()
		if end == StreamTimeMax || src.StreamTimeToGraphTime(end, false) > t {
			return false
		}
	}
	return true
}

// InputPort connects a source stream to a ProcessedStream.
type InputPort struct {
	graph  *Graph
	source *Stream
	dest   *ProcessedStream
	flags  PortFlags

	// scheduling goroutine only
	connected bool
	// guarded by graph.ctlMu
	ctlDestroyed bool
}

// Source returns the source stream or nil once the port is disconnected.
// Graph method.
func (p *InputPort) Source() *Stream { return p.source }

// Dest returns the destination stream or nil once the port is
// disconnected. Graph method.
func (p *InputPort) Dest() *ProcessedStream { return p.dest }

// Flags returns the port's propagation flags.
func (p *InputPort) Flags() PortFlags { return p.flags }

// Destroy disconnects the port. It is idempotent and a no-op if either
// endpoint has been destroyed. Control method.
func (p *InputPort) Destroy() {
	g := p.graph
	g.ctlMu.Lock()
	if p.ctlDestroyed {
		g.ctlMu.Unlock()
		return
	}
	p.ctlDestroyed = true
	g.ctlMu.Unlock()

	g.appendMessage(controlMessage{run: p.disconnect})
}

func (p *InputPort) connect() {
	if p.connected || p.source == nil || !p.source.live || p.source.destroyed || p.dest.destroyed {
		return
	}
	p.source.consumers = append(p.source.consumers, p)
	p.dest.inputs = append(p.dest.inputs, p)
	p.connected = true
	p.graph.streamOrderDirty = true
}

func (p *InputPort) disconnect() {
	if !p.connected {
		return
	}
	if i := slices.Index(p.source.consumers, p); i >= 0 {
		p.source.consumers = slices.Delete(p.source.consumers, i, i+1)
	}
	if i := slices.Index(p.dest.inputs, p); i >= 0 {
		p.dest.inputs = slices.Delete(p.dest.inputs, i, i+1)
	}
	p.connected = false
	p.source = nil
	p.dest = nil
	p.graph.streamOrderDirty = true
}

// Interval is a span of graph time [Start, End).
type Interval struct {
	Start          GraphTime
	End            GraphTime
	InputIsBlocked bool
}

// NextInputInterval returns the next interval starting at or after t
// during which the destination is unblocked and the blocking state of the
// source is constant. If no such interval starts before the last computed
// time, Start equals End. Graph method.
func (p *InputPort) NextInputInterval(t GraphTime) Interval {
	g := p.graph
	res := Interval{Start: GraphTimeMax, End: GraphTimeMax}
	if p.source == nil || p.dest == nil || t >= g.stateComputedTime {
		return res
	}
	for {
		blocked, end := p.dest.blocked.GetAt(t)
		if end >= g.stateComputedTime {
			end = g.stateComputedTime
		}
		if !blocked {
			res.Start = t
			res.InputIsBlocked, res.End = p.source.blocked.GetAt(t)
			res.End = min(res.End, end)
			return res
		}
		if end >= g.stateComputedTime {
			res.Start, res.End = end, end
			return res
		}
		t = end
	}
}
