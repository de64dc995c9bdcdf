package graph

import (
	"slices"
)

// updateStreamOrder sorts the streams so that every stream comes after the
// sources of its input ports. Strongly connected components are found with
// Tarjan's algorithm; their processed streams are flagged as in a cycle
// and ordered by id among themselves.
func (g *Graph) updateStreamOrder() {
	slices.SortFunc(g.streams, func(a, b *Stream) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	t := tarjan{
		index:   make(map[*Stream]int, len(g.streams)),
		lowlink: make(map[*Stream]int, len(g.streams)),
		onStack: make(map[*Stream]bool, len(g.streams)),
		order:   make([]*Stream, 0, len(g.streams)),
	}
	for _, s := range g.streams {
		if _, visited := t.index[s]; !visited {
			t.visit(s)
		}
	}

	cycles := 0
	for _, s := range g.streams {
		if s.processed != nil && s.processed.inCycle {
			cycles++
		}
	}
	g.streams = t.order
	g.streamOrderDirty = false
	g.log.Debug("stream order updated", "streams", len(g.streams), "in_cycle", cycles)
}

type tarjan struct {
	next    int
	index   map[*Stream]int
	lowlink map[*Stream]int
	onStack map[*Stream]bool
	stack   []*Stream
	order   []*Stream
}

// visit follows edges from a stream to the sources of its inputs, so
// components are emitted sources first.
func (t *tarjan) visit(s *Stream) {
	t.index[s] = t.next
	t.lowlink[s] = t.next
	t.next++
	t.stack = append(t.stack, s)
	t.onStack[s] = true

	selfLoop := false
	if s.processed != nil {
		for _, p := range s.processed.inputs {
			src := p.source
			if src == s {
				selfLoop = true
			}
			if _, visited := t.index[src]; !visited {
				t.visit(src)
				t.lowlink[s] = min(t.lowlink[s], t.lowlink[src])
			} else if t.onStack[src] {
				t.lowlink[s] = min(t.lowlink[s], t.index[src])
			}
		}
	}

	if t.lowlink[s] != t.index[s] {
		return
	}

	i := len(t.stack) - 1
	for t.stack[i] != s {
		i--
	}
	component := slices.Clone(t.stack[i:])
	t.stack = t.stack[:i]
	for _, m := range component {
		t.onStack[m] = false
	}
	slices.SortFunc(component, func(a, b *Stream) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	inCycle := len(component) > 1 || selfLoop
	for _, m := range component {
		if m.processed != nil {
			m.processed.inCycle = inCycle
		}
	}
	t.order = append(t.order, component...)
}
