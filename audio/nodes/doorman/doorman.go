package doorman

import (
	"log/slog"
	"sync"

	"github.com/dh1tw/streamgraph/audio/nodes/union"
	"github.com/dh1tw/streamgraph/graph"
)

// Doorman is a graph.Processor which lets only one track of its input
// through at a time. Its purpose is to avoid two clients transmitting
// audio at the same time when every client feeds its own track. The first
// track keeps the door until it ends; then the track with the lowest id
// takes over. The output is a single track.
type Doorman struct {
	sync.Mutex
	log             *slog.Logger
	rate            graph.TrackRate
	trackID         graph.TrackID
	owner           graph.TrackID
	out             *graph.Track
	onTxUserChanged func(graph.TrackID)
	warned          map[graph.TrackID]bool
}

// NewDoorman returns an instance of a Doorman processor. Through a
// functional option a callback can be provided which will be called on
// the graph's control executor whenever the transmitting track changes.
// graph.TrackInvalid means nobody is transmitting.
func NewDoorman(opts ...Option) *Doorman {
	options := Options{
		logger:  slog.Default(),
		rate:    48000,
		trackID: 1,
	}
	for _, option := range opts {
		option(&options)
	}

	return &Doorman{
		log:             options.logger.With("component", "doorman"),
		rate:            options.rate,
		trackID:         options.trackID,
		onTxUserChanged: options.txUserChangedCb,
		warned:          make(map[graph.TrackID]bool),
	}
}

// TxUser returns the track currently passed through.
func (d *Doorman) TxUser() graph.TrackID {
	d.Lock()
	defer d.Unlock()
	return d.owner
}

// ProduceOutput implements graph.Processor.
func (d *Doorman) ProduceOutput(ps *graph.ProcessedStream, from, to graph.GraphTime) {
	d.Lock()
	defer d.Unlock()

	if d.out == nil {
		start := graph.TimeToTicksRoundDown(d.rate, ps.GraphTimeToStreamTime(from))
		d.out = ps.Buffer().AddTrack(d.trackID, d.rate, start, graph.NewAudioSegment())
	}

	var port *graph.InputPort
	if inputs := ps.Inputs(); len(inputs) > 0 {
		port = inputs[0]
	}

	var in *graph.Track
	if port != nil {
		if d.owner != graph.TrackInvalid {
			in = port.Source().Buffer().FindTrack(d.owner)
			if in == nil {
				d.setOwner(ps.Graph(), graph.TrackInvalid)
			}
		}
		if in == nil {
			in = d.elect(port)
			if in != nil {
				d.setOwner(ps.Graph(), in.ID())
			}
		}
	} else if d.owner != graph.TrackInvalid {
		d.setOwner(ps.Graph(), graph.TrackInvalid)
	}

	if in != nil && union.CopyTrack(port, in, d.out, from, to) {
		d.setOwner(ps.Graph(), graph.TrackInvalid)
	}

	// fill up whatever the transmitting track did not cover
	target := graph.TimeToTicksRoundDown(d.rate, ps.GraphTimeToStreamTime(to))
	if n := target - d.out.End(); n > 0 {
		d.out.Segment().AppendNullData(n)
	}
}

// elect returns the live audio track with the lowest id at the doorman's
// rate, or nil.
func (d *Doorman) elect(p *graph.InputPort) *graph.Track {
	for _, tr := range p.Source().Buffer().TracksOfType(graph.Audio) {
		if tr.IsEnded() {
			continue
		}
		if tr.Rate() != d.rate {
			if !d.warned[tr.ID()] {
				d.warned[tr.ID()] = true
				d.log.Warn("track rate differs from doorman rate, ignored",
					"track", tr.ID(), "rate", tr.Rate())
			}
			continue
		}
		return tr
	}
	return nil
}

func (d *Doorman) setOwner(g *graph.Graph, id graph.TrackID) {
	if d.owner == id {
		return
	}
	d.owner = id
	d.log.Debug("tx user changed", "track", id)
	if d.onTxUserChanged == nil {
		return
	}
	cb := d.onTxUserChanged
	g.DispatchToControl(func() { cb(id) })
}
