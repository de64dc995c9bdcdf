package graph

import "github.com/dh1tw/streamgraph/audio"

// AudioChunk is a run of interleaved float32 frames. A chunk without data
// is silence.
type AudioChunk struct {
	Data     []float32
	Channels int
	Duration TrackTicks
	Volume   float32
}

// IsNull reports whether the chunk is silence.
func (c *AudioChunk) IsNull() bool {
	return c.Data == nil
}

func (c *AudioChunk) slice(start, end TrackTicks) AudioChunk {
	s := AudioChunk{
		Channels: c.Channels,
		Duration: end - start,
		Volume:   c.Volume,
	}
	if c.Data != nil {
		s.Data = c.Data[int(start)*c.Channels : int(end)*c.Channels]
	}
	return s
}

// AudioSegment is a Segment of AudioChunks. Ticks are sample frames.
type AudioSegment struct {
	chunks   []AudioChunk
	duration TrackTicks
}

// NewAudioSegment returns an empty audio segment.
func NewAudioSegment() *AudioSegment {
	return &AudioSegment{}
}

// NewAudioSegmentFrom returns a segment holding the interleaved frames in
// data. The segment takes ownership of data.
func NewAudioSegmentFrom(data []float32, channels int) *AudioSegment {
	s := &AudioSegment{}
	s.AppendFrames(data, channels)
	return s
}

func (s *AudioSegment) Type() MediaType      { return Audio }
func (s *AudioSegment) Duration() TrackTicks { return s.duration }
func (s *AudioSegment) IsEmpty() bool        { return s.duration == 0 }

// Chunks returns the chunks of the segment. The result must not be
// modified.
func (s *AudioSegment) Chunks() []AudioChunk {
	return s.chunks
}

// AppendFrames appends interleaved frames. The segment takes ownership of
// data.
func (s *AudioSegment) AppendFrames(data []float32, channels int) {
	if channels < 1 || len(data) < channels {
		return
	}
	frames := len(data) / channels
	s.appendChunk(AudioChunk{
		Data:     data[:frames*channels],
		Channels: channels,
		Duration: TrackTicks(frames),
		Volume:   1,
	})
}

func (s *AudioSegment) appendChunk(c AudioChunk) {
	if c.Duration <= 0 {
		return
	}
	s.duration += c.Duration
	if c.IsNull() && len(s.chunks) > 0 {
		last := &s.chunks[len(s.chunks)-1]
		if last.IsNull() {
			last.Duration += c.Duration
			return
		}
	}
	s.chunks = append(s.chunks, c)
}

func (s *AudioSegment) AppendNullData(d TrackTicks) {
	s.appendChunk(AudioChunk{Duration: d, Volume: 1})
}

func (s *AudioSegment) AppendFrom(other Segment) {
	o := other.(*AudioSegment)
	for _, c := range o.chunks {
		s.appendChunk(c)
	}
	o.Clear()
}

func (s *AudioSegment) AppendSlice(src Segment, start, end TrackTicks) {
	if end <= start {
		return
	}
	o := src.(*AudioSegment)
	dataEnd, pad := clipSlice(o.duration, start, end)
	var offset TrackTicks
	for i := range o.chunks {
		if offset >= dataEnd {
			break
		}
		c := &o.chunks[i]
		cStart, cEnd := offset, offset+c.Duration
		offset = cEnd
		if cEnd <= start {
			continue
		}
		from := max(start, cStart) - cStart
		to := min(dataEnd, cEnd) - cStart
		s.appendChunk(c.slice(from, to))
	}
	s.AppendNullData(pad)
}

func (s *AudioSegment) ForgetUpTo(t TrackTicks) {
	if t > s.duration {
		t = s.duration
	}
	if t <= 0 {
		return
	}
	var offset TrackTicks
	kept := []AudioChunk{{Duration: t, Volume: 1}}
	for i := range s.chunks {
		c := &s.chunks[i]
		cStart, cEnd := offset, offset+c.Duration
		offset = cEnd
		if cEnd <= t {
			continue
		}
		tail := c.slice(max(t, cStart)-cStart, c.Duration)
		if tail.IsNull() && len(kept) == 1 {
			kept[0].Duration += tail.Duration
			continue
		}
		kept = append(kept, tail)
	}
	s.chunks = kept
}

func (s *AudioSegment) ReplaceWithNull() {
	d := s.duration
	s.Clear()
	s.AppendNullData(d)
}

func (s *AudioSegment) CreateEmptyClone() Segment {
	return NewAudioSegment()
}

func (s *AudioSegment) Clear() {
	s.chunks = nil
	s.duration = 0
}

// MixInto adds the frames in [start, start+frames) scaled by volume to dst,
// which holds interleaved frames with the given channel count. Null chunks
// and ticks beyond the segment's end contribute silence.
func (s *AudioSegment) MixInto(dst []float32, channels int, start TrackTicks, volume float32) {
	frames := TrackTicks(len(dst) / channels)
	end := start + frames
	var offset TrackTicks
	for i := range s.chunks {
		if offset >= end {
			return
		}
		c := &s.chunks[i]
		cStart, cEnd := offset, offset+c.Duration
		offset = cEnd
		if cEnd <= start || c.IsNull() {
			continue
		}
		from := max(start, cStart)
		to := min(end, cEnd)
		part := c.slice(from-cStart, to-cStart)
		data := part.Data
		if part.Channels != channels {
			data = audio.AdjustChannels(part.Channels, channels, data)
		}
		pos := int(from-start) * channels
		audio.MixInto(dst[pos:pos+len(data)], data, volume*part.Volume)
	}
}
