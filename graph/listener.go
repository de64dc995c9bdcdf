package graph

// Blocking is the blocking state reported to listeners.
type Blocking int

const (
	Unblocked Blocking = iota
	Blocked
)

func (b Blocking) String() string {
	if b == Blocked {
		return "blocked"
	}
	return "unblocked"
}

// TrackEvents flags what happened to a track in a queued change.
type TrackEvents uint32

const (
	TrackCreated TrackEvents = 1 << iota
	TrackEnded
)

// TrackChange describes data queued on a SourceStream track just before it
// is merged into the stream's buffer.
type TrackChange struct {
	ID     TrackID
	Rate   TrackRate
	Offset TrackTicks
	Events TrackEvents
	Queued Segment
}

// Listener receives data-plane notifications for one stream. All methods
// are called on the scheduling goroutine with no graph lock held and must
// not block. Embed NoopListener to implement only some of them.
type Listener interface {
	// NotifyPull asks a pull-enabled SourceStream's producer to supply data
	// up to desired. Implementations must not call control methods
	// synchronously.
	NotifyPull(g *Graph, desired StreamTime)
	NotifyBlockingChanged(g *Graph, b Blocking)
	NotifyHasCurrentData(g *Graph)
	// NotifyOutput is called after the stream's time advanced.
	NotifyOutput(g *Graph, current GraphTime)
	NotifyQueuedTrackChanges(g *Graph, c TrackChange)
	NotifyFinished(g *Graph)
	NotifyRemoved(g *Graph)
}

// NoopListener implements Listener with empty methods.
type NoopListener struct{}

func (NoopListener) NotifyPull(*Graph, StreamTime)                {}
func (NoopListener) NotifyBlockingChanged(*Graph, Blocking)       {}
func (NoopListener) NotifyHasCurrentData(*Graph)                  {}
func (NoopListener) NotifyOutput(*Graph, GraphTime)               {}
func (NoopListener) NotifyQueuedTrackChanges(*Graph, TrackChange) {}
func (NoopListener) NotifyFinished(*Graph)                        {}
func (NoopListener) NotifyRemoved(*Graph)                         {}

// Snapshot is the control-visible state of a stream, published once per
// scheduling iteration.
type Snapshot struct {
	ID          uint64     `json:"id"`
	Kind        string     `json:"kind"`
	CurrentTime StreamTime `json:"currentTime"`
	Finished    bool       `json:"finished"`
	Destroyed   bool       `json:"destroyed"`
	UpdateIndex int64      `json:"updateIndex"`
	Outputs     []Volume   `json:"outputs,omitempty"`
}

// Volume is one audio output entry as seen from the control side.
type Volume struct {
	Key    string  `json:"key"`
	Volume float32 `json:"volume"`
}

// ControlListener receives notifications on the control executor when the
// published state of a stream changes (finished or destroyed).
type ControlListener interface {
	NotifyStateChanged(s Snapshot)
}

// ControlListenerFunc adapts a function to ControlListener.
type ControlListenerFunc func(Snapshot)

func (f ControlListenerFunc) NotifyStateChanged(s Snapshot) { f(s) }
