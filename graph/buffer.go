package graph

import "sort"

// Track is one track of a StreamBuffer. Its segment covers stream ticks
// [0, End()); data before Start() is null.
type Track struct {
	id      TrackID
	rate    TrackRate
	start   TrackTicks
	segment Segment
	ended   bool
	enabled bool
}

func (t *Track) ID() TrackID         { return t.id }
func (t *Track) Rate() TrackRate     { return t.rate }
func (t *Track) Start() TrackTicks   { return t.start }
func (t *Track) End() TrackTicks     { return t.segment.Duration() }
func (t *Track) Segment() Segment    { return t.segment }
func (t *Track) IsEnded() bool       { return t.ended }
func (t *Track) Type() MediaType     { return t.segment.Type() }
func (t *Track) SetEnded()           { t.ended = true }
func (t *Track) EndTime() StreamTime { return TicksToTimeRoundDown(t.rate, t.End()) }
func (t *Track) Enabled() bool       { return t.enabled }

func (t *Track) AudioSegment() *AudioSegment {
	s, _ := t.segment.(*AudioSegment)
	return s
}

func (t *Track) VideoSegment() *VideoSegment {
	s, _ := t.segment.(*VideoSegment)
	return s
}

// StreamBuffer is the multi-track content of a stream, indexed by stream
// time.
type StreamBuffer struct {
	tracks          []*Track
	tracksKnownTime StreamTime
	forgottenTime   StreamTime
}

// AddTrack adds a track starting at start ticks. segment holds the track's
// data beginning at start; it is padded with null data in front.
func (b *StreamBuffer) AddTrack(id TrackID, rate TrackRate, start TrackTicks, segment Segment) *Track {
	data := segment.CreateEmptyClone()
	data.AppendNullData(start)
	data.AppendFrom(segment)
	t := &Track{id: id, rate: rate, start: start, segment: data, enabled: true}
	i := sort.Search(len(b.tracks), func(i int) bool { return b.tracks[i].id >= id })
	b.tracks = append(b.tracks, nil)
	copy(b.tracks[i+1:], b.tracks[i:])
	b.tracks[i] = t
	return t
}

// FindTrack returns the track with the given id or nil.
func (b *StreamBuffer) FindTrack(id TrackID) *Track {
	i := sort.Search(len(b.tracks), func(i int) bool { return b.tracks[i].id >= id })
	if i < len(b.tracks) && b.tracks[i].id == id {
		return b.tracks[i]
	}
	return nil
}

// Tracks returns the tracks ordered by id. The slice must not be modified.
func (b *StreamBuffer) Tracks() []*Track {
	return b.tracks
}

// TracksOfType returns the tracks carrying the given media type.
func (b *StreamBuffer) TracksOfType(m MediaType) []*Track {
	var res []*Track
	for _, t := range b.tracks {
		if t.Type() == m {
			res = append(res, t)
		}
	}
	return res
}

// AdvanceKnownTracksTime declares that no track will be added before t.
func (b *StreamBuffer) AdvanceKnownTracksTime(t StreamTime) {
	if t > b.tracksKnownTime {
		b.tracksKnownTime = t
	}
}

// TracksKnownTime returns the time before which no new track can start.
func (b *StreamBuffer) TracksKnownTime() StreamTime {
	return b.tracksKnownTime
}

// GetEnd returns the time up to which all data is known: the end of the
// shortest track still growing, bounded by the known-tracks time.
func (b *StreamBuffer) GetEnd() StreamTime {
	end := b.tracksKnownTime
	for _, t := range b.tracks {
		if !t.ended {
			end = min(end, t.EndTime())
		}
	}
	return end
}

// hasDataAfter reports whether any track holds data past t.
func (b *StreamBuffer) hasDataAfter(t StreamTime) bool {
	for _, tr := range b.tracks {
		if tr.EndTime() > t {
			return true
		}
	}
	return false
}

// GetAllTracksEnd returns the end of the longest track once every track has
// ended and no new track can appear; StreamTimeMax otherwise.
func (b *StreamBuffer) GetAllTracksEnd() StreamTime {
	if b.tracksKnownTime < StreamTimeMax {
		return StreamTimeMax
	}
	var end StreamTime
	for _, t := range b.tracks {
		if !t.ended {
			return StreamTimeMax
		}
		end = max(end, t.EndTime())
	}
	return end
}

// ForgetUpTo drops data before t. Ended tracks lying entirely before t are
// removed.
func (b *StreamBuffer) ForgetUpTo(t StreamTime) {
	if t <= b.forgottenTime {
		return
	}
	b.forgottenTime = t
	kept := b.tracks[:0]
	for _, tr := range b.tracks {
		if tr.ended && tr.EndTime() <= t {
			continue
		}
		tr.segment.ForgetUpTo(TimeToTicksRoundDown(tr.rate, t))
		kept = append(kept, tr)
	}
	for i := len(kept); i < len(b.tracks); i++ {
		b.tracks[i] = nil
	}
	b.tracks = kept
}

// ForgottenTime returns the time before which data has been discarded.
func (b *StreamBuffer) ForgottenTime() StreamTime {
	return b.forgottenTime
}

func (b *StreamBuffer) clear() {
	b.tracks = nil
}
