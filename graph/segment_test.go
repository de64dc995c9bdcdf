package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func constant(frames int, v float32) *AudioSegment {
	data := make([]float32, frames)
	for i := range data {
		data[i] = v
	}
	return NewAudioSegmentFrom(data, 1)
}

func silence(frames int) *AudioSegment {
	return NewAudioSegmentFrom(make([]float32, frames), 1)
}

func TestAudioSegmentAppendSlice(t *testing.T) {
	src := constant(10, 0.5)

	dst := NewAudioSegment()
	dst.AppendSlice(src, 8, 14)
	require.Equal(t, TrackTicks(6), dst.Duration())
	chunks := dst.Chunks()
	require.Len(t, chunks, 2)
	require.Equal(t, TrackTicks(2), chunks[0].Duration)
	require.False(t, chunks[0].IsNull())
	require.True(t, chunks[1].IsNull())
	require.Equal(t, TrackTicks(4), chunks[1].Duration)

	// entirely beyond the end
	dst = NewAudioSegment()
	dst.AppendSlice(src, 12, 15)
	require.Equal(t, TrackTicks(3), dst.Duration())
	require.True(t, dst.Chunks()[0].IsNull())
}

func TestAudioSegmentAppendFromMovesData(t *testing.T) {
	a := constant(4, 0.1)
	b := constant(6, 0.2)
	a.AppendFrom(b)
	require.Equal(t, TrackTicks(10), a.Duration())
	require.True(t, b.IsEmpty())
}

func TestAudioSegmentNullChunksMerge(t *testing.T) {
	s := NewAudioSegment()
	s.AppendNullData(5)
	s.AppendNullData(5)
	require.Len(t, s.Chunks(), 1)
	require.Equal(t, TrackTicks(10), s.Duration())
}

func TestAudioSegmentForgetUpTo(t *testing.T) {
	s := constant(10, 0.5)
	s.AppendFrom(constant(10, 0.25))
	s.ForgetUpTo(12)

	require.Equal(t, TrackTicks(20), s.Duration())
	chunks := s.Chunks()
	require.Len(t, chunks, 2)
	require.True(t, chunks[0].IsNull())
	require.Equal(t, TrackTicks(12), chunks[0].Duration)
	require.Len(t, chunks[1].Data, 8)
}

func TestAudioSegmentReplaceWithNull(t *testing.T) {
	s := constant(10, 0.5)
	s.ReplaceWithNull()
	require.Equal(t, TrackTicks(10), s.Duration())
	require.Len(t, s.Chunks(), 1)
	require.True(t, s.Chunks()[0].IsNull())
}

func TestAudioSegmentMixInto(t *testing.T) {
	s := NewAudioSegment()
	s.AppendNullData(2)
	s.AppendFrom(constant(2, 0.5))

	// 5 stereo frames; the last one lies beyond the segment
	dst := make([]float32, 10)
	s.MixInto(dst, 2, 0, 0.5)
	require.Equal(t, []float32{0, 0, 0, 0, 0.25, 0.25, 0.25, 0.25, 0, 0}, dst)

	dst = make([]float32, 2)
	s.MixInto(dst, 2, 3, 1)
	require.Equal(t, []float32{0.5, 0.5}, dst)
}

func TestVideoSegment(t *testing.T) {
	f1 := &VideoFrame{}
	f2 := &VideoFrame{}

	s := NewVideoSegment()
	s.AppendFrame(f1, 10)
	s.AppendFrame(f1, 10)
	s.AppendFrame(f2, 10)
	s.AppendNullData(10)
	require.Len(t, s.Chunks(), 3)
	require.Equal(t, TrackTicks(40), s.Duration())

	f, start := s.FrameAt(15)
	require.Same(t, f1, f)
	require.Equal(t, TrackTicks(0), start)

	f, start = s.FrameAt(25)
	require.Same(t, f2, f)
	require.Equal(t, TrackTicks(20), start)

	f, _ = s.FrameAt(35)
	require.Nil(t, f)

	s.ForgetUpTo(25)
	require.Equal(t, TrackTicks(40), s.Duration())
	f, _ = s.FrameAt(26)
	require.Same(t, f2, f)

	dst := NewVideoSegment()
	dst.AppendSlice(s, 30, 50)
	require.Equal(t, TrackTicks(20), dst.Duration())
	f, _ = dst.FrameAt(0)
	require.Nil(t, f)
}
