package graph

import "fmt"

// MediaType is the kind of data a track carries.
type MediaType int

const (
	Audio MediaType = iota
	Video
)

func (m MediaType) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	}
	return fmt.Sprintf("MediaType(%d)", int(m))
}

// Segment is an ordered, appendable sequence of timestamped media chunks.
// Durations are in ticks of the owning track's rate. Null data means
// silence for audio and "hold the previous frame" for video.
type Segment interface {
	Type() MediaType
	Duration() TrackTicks
	IsEmpty() bool
	// AppendFrom moves all data of other (which must be of the same
	// type) to the end of this segment, leaving other empty.
	AppendFrom(other Segment)
	// AppendSlice copies the data of src in [start, end) to the end of
	// this segment. Parts of the range beyond src's end are null.
	AppendSlice(src Segment, start, end TrackTicks)
	AppendNullData(d TrackTicks)
	// ForgetUpTo releases the data before t, keeping the duration.
	ForgetUpTo(t TrackTicks)
	// ReplaceWithNull keeps the duration and drops all data.
	ReplaceWithNull()
	CreateEmptyClone() Segment
	Clear()
}

// clipSlice clips [start, end) against a segment of duration d. It returns
// the end of the part backed by data and the number of ticks that must be
// padded with null data.
func clipSlice(d, start, end TrackTicks) (TrackTicks, TrackTicks) {
	if start >= d {
		return start, end - start
	}
	if end <= d {
		return end, 0
	}
	return d, end - d
}
