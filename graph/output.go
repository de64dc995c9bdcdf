package graph

import "github.com/dh1tw/streamgraph/audio"

// VideoSink receives the frame a stream currently shows. SetCurrentFrame is
// called on the scheduling goroutine, only when the frame changes, with
// non-decreasing times.
type VideoSink interface {
	SetCurrentFrame(frame *VideoFrame, t GraphTime)
}

// renderAudio mixes the audio outputs of all streams for [from, to) into
// one block and writes it to the audio sink. Blocked intervals and null
// data are silent.
func (g *Graph) renderAudio(from, to GraphTime) {
	sink := g.options.AudioSink
	if sink == nil || to <= from {
		return
	}
	rate := g.options.SampleRate
	chs := g.options.Channels
	start := TimeToTicksRoundDown(rate, StreamTime(from))
	end := TimeToTicksRoundDown(rate, StreamTime(to))
	frames := int(end - start)
	if frames <= 0 {
		return
	}
	mix := make([]float32, frames*chs)

	for _, s := range g.streams {
		if len(s.audioOutputs) == 0 {
			continue
		}
		var volume float32
		for _, o := range s.audioOutputs {
			volume += o.volume
		}
		tracks := s.buffer.TracksOfType(Audio)
		for t := from; t < to; {
			blocked, next := s.blocked.GetAt(t)
			next = min(next, to)
			if !blocked {
				g.mixTracks(s, tracks, mix, start, t, next, volume)
			}
			t = next
		}
	}

	msg := audio.Msg{
		Data:       mix,
		Samplerate: float64(rate),
		Channels:   chs,
		Frames:     frames,
	}
	if err := sink.Write(msg); err != nil {
		g.log.Warn("audio sink write failed", "error", err)
	}
}

// mixTracks adds the tracks of s for the unblocked interval [from, to) to
// mix, which starts at tick base of the graph rate.
func (g *Graph) mixTracks(s *Stream, tracks []*Track, mix []float32, base TrackTicks, from, to GraphTime, volume float32) {
	rate := g.options.SampleRate
	chs := g.options.Channels
	dstStart := TimeToTicksRoundDown(rate, StreamTime(from)) - base
	dstEnd := TimeToTicksRoundDown(rate, StreamTime(to)) - base
	if dstEnd <= dstStart {
		return
	}
	srcStart := TimeToTicksRoundDown(rate, s.GraphTimeToStreamTime(from))
	dst := mix[int(dstStart)*chs : int(dstEnd)*chs]

	for _, tr := range tracks {
		if !tr.Enabled() {
			continue
		}
		if tr.Rate() != rate {
			if !g.warnedRates[tr.Rate()] {
				g.warnedRates[tr.Rate()] = true
				g.log.Warn("audio track rate differs from graph rate, not rendered",
					"stream", s.id, "track", tr.ID(), "rate", tr.Rate(), "graph_rate", rate)
			}
			continue
		}
		tr.AudioSegment().MixInto(dst, chs, srcStart, volume)
	}
}

// playVideo hands the frame each stream shows at the end of [from, to) to
// its video outputs. Blocked streams and null data keep the previous frame.
func (g *Graph) playVideo(from, to GraphTime) {
	t := max(from, to-1)
	for _, s := range g.streams {
		if len(s.videoOutputs) == 0 {
			continue
		}
		if blocked, _ := s.blocked.GetAt(t); blocked {
			continue
		}
		st := s.GraphTimeToStreamTime(t)
		var frame *VideoFrame
		var frameTime GraphTime
		for _, tr := range s.buffer.TracksOfType(Video) {
			if !tr.Enabled() {
				continue
			}
			f, chunkStart := tr.VideoSegment().FrameAt(TimeToTicksRoundDown(tr.Rate(), st))
			if f == nil {
				continue
			}
			frame = f
			frameTime = s.StreamTimeToGraphTime(TicksToTimeRoundDown(tr.Rate(), chunkStart), false)
		}
		if frame == nil {
			continue
		}
		for i := range s.videoOutputs {
			o := &s.videoOutputs[i]
			if o.last == frame {
				continue
			}
			o.sink.SetCurrentFrame(frame, max(frameTime, from))
			o.last = frame
		}
	}
}
