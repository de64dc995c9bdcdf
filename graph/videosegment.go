package graph

import "image"

// VideoFrame is one decoded picture. Frames are compared by identity; the
// graph never inspects the image.
type VideoFrame struct {
	Image image.Image
	Size  image.Point
}

// VideoChunk shows Frame for Duration ticks. A chunk without a frame holds
// whatever was shown before.
type VideoChunk struct {
	Frame    *VideoFrame
	Duration TrackTicks
}

func (c *VideoChunk) IsNull() bool {
	return c.Frame == nil
}

// VideoSegment is a Segment of VideoChunks.
type VideoSegment struct {
	chunks   []VideoChunk
	duration TrackTicks
}

func NewVideoSegment() *VideoSegment {
	return &VideoSegment{}
}

func (s *VideoSegment) Type() MediaType      { return Video }
func (s *VideoSegment) Duration() TrackTicks { return s.duration }
func (s *VideoSegment) IsEmpty() bool        { return s.duration == 0 }

func (s *VideoSegment) Chunks() []VideoChunk {
	return s.chunks
}

// AppendFrame appends frame, shown for d ticks.
func (s *VideoSegment) AppendFrame(frame *VideoFrame, d TrackTicks) {
	s.appendChunk(VideoChunk{Frame: frame, Duration: d})
}

func (s *VideoSegment) appendChunk(c VideoChunk) {
	if c.Duration <= 0 {
		return
	}
	s.duration += c.Duration
	if len(s.chunks) > 0 {
		last := &s.chunks[len(s.chunks)-1]
		if last.Frame == c.Frame {
			last.Duration += c.Duration
			return
		}
	}
	s.chunks = append(s.chunks, c)
}

func (s *VideoSegment) AppendNullData(d TrackTicks) {
	s.appendChunk(VideoChunk{Duration: d})
}

func (s *VideoSegment) AppendFrom(other Segment) {
	o := other.(*VideoSegment)
	for _, c := range o.chunks {
		s.appendChunk(c)
	}
	o.Clear()
}

func (s *VideoSegment) AppendSlice(src Segment, start, end TrackTicks) {
	if end <= start {
		return
	}
	o := src.(*VideoSegment)
	dataEnd, pad := clipSlice(o.duration, start, end)
	var offset TrackTicks
	for _, c := range o.chunks {
		if offset >= dataEnd {
			break
		}
		cStart, cEnd := offset, offset+c.Duration
		offset = cEnd
		if cEnd <= start {
			continue
		}
		s.appendChunk(VideoChunk{
			Frame:    c.Frame,
			Duration: min(dataEnd, cEnd) - max(start, cStart),
		})
	}
	s.AppendNullData(pad)
}

func (s *VideoSegment) ForgetUpTo(t TrackTicks) {
	if t > s.duration {
		t = s.duration
	}
	if t <= 0 {
		return
	}
	var offset TrackTicks
	kept := []VideoChunk{{Duration: t}}
	for _, c := range s.chunks {
		cStart, cEnd := offset, offset+c.Duration
		offset = cEnd
		if cEnd <= t {
			continue
		}
		c.Duration = cEnd - max(t, cStart)
		if c.Frame == nil && len(kept) == 1 {
			kept[0].Duration += c.Duration
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
}

func (s *VideoSegment) ReplaceWithNull() {
	d := s.duration
	s.Clear()
	s.AppendNullData(d)
}

func (s *VideoSegment) CreateEmptyClone() Segment {
	return NewVideoSegment()
}

func (s *VideoSegment) Clear() {
	s.chunks = nil
	s.duration = 0
}

// FrameAt returns the frame shown at tick t and the tick at which its chunk
// starts. It returns nil if t lies in null data or beyond the end.
func (s *VideoSegment) FrameAt(t TrackTicks) (*VideoFrame, TrackTicks) {
	var offset TrackTicks
	for _, c := range s.chunks {
		if t < offset+c.Duration {
			return c.Frame, offset
		}
		offset += c.Duration
	}
	return nil, offset
}
