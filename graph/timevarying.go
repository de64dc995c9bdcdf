package graph

// TimeVarying holds a value of type V as a stepwise function of graph
// time. Values before the current time are forgotten; the function is
// constant from the last change onward.
type TimeVarying[V comparable] struct {
	current V
	changes []change[V]
}

type change[V comparable] struct {
	time  GraphTime
	value V
}

// NewTimeVarying returns a function which is initial for all times.
func NewTimeVarying[V comparable](initial V) TimeVarying[V] {
	return TimeVarying[V]{current: initial}
}

// SetAtAndAfter sets the value for all times >= t, discarding any change
// at or after t.
func (tv *TimeVarying[V]) SetAtAndAfter(t GraphTime, value V) {
	for i := len(tv.changes) - 1; i >= 0; i-- {
		if tv.changes[i].time < t {
			break
		}
		tv.changes = tv.changes[:i]
	}
	if tv.GetLast() == value {
		return
	}
	tv.changes = append(tv.changes, change[V]{time: t, value: value})
}

// GetLast returns the value the function settles on after its last change.
func (tv *TimeVarying[V]) GetLast() V {
	if len(tv.changes) == 0 {
		return tv.current
	}
	return tv.changes[len(tv.changes)-1].value
}

// GetAt returns the value at time t together with the time at which the
// value next changes (GraphTimeMax if it never does).
func (tv *TimeVarying[V]) GetAt(t GraphTime) (V, GraphTime) {
	value := tv.current
	for _, c := range tv.changes {
		if c.time > t {
			return value, c.time
		}
		value = c.value
	}
	return value, GraphTimeMax
}

// GetBefore returns the value just before time t.
func (tv *TimeVarying[V]) GetBefore(t GraphTime) V {
	value := tv.current
	for _, c := range tv.changes {
		if c.time >= t {
			break
		}
		value = c.value
	}
	return value
}

// AdvanceCurrentTime forgets all changes at or before t.
func (tv *TimeVarying[V]) AdvanceCurrentTime(t GraphTime) {
	n := 0
	for n < len(tv.changes) && tv.changes[n].time <= t {
		tv.current = tv.changes[n].value
		n++
	}
	tv.changes = append(tv.changes[:0], tv.changes[n:]...)
}

// HasChanges reports whether the value changes after the current time.
func (tv *TimeVarying[V]) HasChanges() bool {
	return len(tv.changes) > 0
}

// Changes calls fn for every pending change in time order.
func (tv *TimeVarying[V]) Changes(fn func(t GraphTime, value V)) {
	for _, c := range tv.changes {
		fn(c.time, c.value)
	}
}
