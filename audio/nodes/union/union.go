package union

import (
	"log/slog"
	"slices"

	"github.com/dh1tw/streamgraph/graph"
)

type trackMap struct {
	port  *graph.InputPort
	inID  graph.TrackID
	out   *graph.Track
	ended bool
	seen  bool
}

// Union is a graph.Processor which mirrors every track of every input
// into the output stream. Output tracks keep the id of their input track
// unless it is already taken. While an input is blocked or its track is
// disabled, null data is written. An output track ends once its input
// track has ended and all of its data has been copied.
type Union struct {
	log  *slog.Logger
	maps []*trackMap
}

// New returns a Union processor.
func New(opts ...Option) *Union {
	options := Options{
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Union{
		log: options.Logger.With("component", "union"),
	}
}

// ProduceOutput implements graph.Processor.
func (u *Union) ProduceOutput(ps *graph.ProcessedStream, from, to graph.GraphTime) {
	for _, m := range u.maps {
		m.seen = false
	}

	for _, p := range ps.Inputs() {
		for _, in := range p.Source().Buffer().Tracks() {
			m := u.find(p, in.ID())
			if m == nil {
				m = u.add(ps, p, in, from)
			}
			m.seen = true
			if m.ended {
				continue
			}
			if CopyTrack(p, in, m.out, from, to) {
				m.out.SetEnded()
				m.ended = true
			}
		}
	}

	// input tracks which vanished or whose port was destroyed
	u.maps = slices.DeleteFunc(u.maps, func(m *trackMap) bool {
		if m.seen {
			return false
		}
		if !m.ended {
			m.out.SetEnded()
		}
		return true
	})
}

func (u *Union) find(p *graph.InputPort, id graph.TrackID) *trackMap {
	for _, m := range u.maps {
		if m.port == p && m.inID == id {
			return m
		}
	}
	return nil
}

func (u *Union) add(ps *graph.ProcessedStream, p *graph.InputPort, in *graph.Track, from graph.GraphTime) *trackMap {
	buf := ps.Buffer()
	id := in.ID()
	for buf.FindTrack(id) != nil {
		id++
	}
	start := graph.TimeToTicksRoundDown(in.Rate(), ps.GraphTimeToStreamTime(from))
	out := buf.AddTrack(id, in.Rate(), start, in.Segment().CreateEmptyClone())
	m := &trackMap{port: p, inID: in.ID(), out: out}
	u.maps = append(u.maps, m)
	u.log.Debug("mirroring track",
		"stream", ps.ID(), "source", p.Source().ID(), "input_track", in.ID(), "output_track", id)
	return m
}

// CopyTrack appends the data of input track in, read through port p, to
// out for the graph interval [from, to). Intervals during which the
// destination is blocked are skipped, intervals during which the source is
// blocked or in is disabled are written as null data. It returns true once
// in has ended and all of its data has been copied.
func CopyTrack(p *graph.InputPort, in, out *graph.Track, from, to graph.GraphTime) bool {
	src, dest := p.Source(), p.Dest()
	if src == nil || dest == nil {
		return false
	}
	rate := out.Rate()
	for t := from; t < to; {
		iv := p.NextInputInterval(t)
		if iv.Start >= to || iv.Start == iv.End {
			break
		}
		end := min(iv.End, to)
		n := graph.TimeToTicksRoundDown(rate, dest.GraphTimeToStreamTime(end)) - out.End()
		if n > 0 {
			inStart := graph.TimeToTicksRoundDown(rate, src.GraphTimeToStreamTime(iv.Start))
			switch {
			case iv.InputIsBlocked || !in.Enabled():
				out.Segment().AppendNullData(n)
			case in.IsEnded() && inStart+n >= in.End():
				if inStart < in.End() {
					out.Segment().AppendSlice(in.Segment(), inStart, in.End())
				}
				return true
			default:
				out.Segment().AppendSlice(in.Segment(), inStart, inStart+n)
			}
		}
		t = end
	}
	return false
}
