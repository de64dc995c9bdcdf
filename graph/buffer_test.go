package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamBufferGetEnd(t *testing.T) {
	var b StreamBuffer
	require.Equal(t, StreamTime(0), b.GetEnd())

	b.AdvanceKnownTracksTime(StreamTimeMax)
	require.Equal(t, StreamTimeMax, b.GetEnd())
	require.Equal(t, StreamTime(0), b.GetAllTracksEnd())

	short := b.AddTrack(2, 48000, 0, silence(480))
	b.AddTrack(1, 48000, 0, silence(960))
	require.Equal(t, StreamTime(10000), b.GetEnd())
	require.Equal(t, StreamTimeMax, b.GetAllTracksEnd())

	// tracks are kept ordered by id
	require.Equal(t, TrackID(1), b.Tracks()[0].ID())

	short.SetEnded()
	require.Equal(t, StreamTime(20000), b.GetEnd())
	b.FindTrack(1).SetEnded()
	require.Equal(t, StreamTime(20000), b.GetAllTracksEnd())
}

func TestStreamBufferAddTrackStart(t *testing.T) {
	var b StreamBuffer
	tr := b.AddTrack(1, 48000, 480, silence(480))
	require.Equal(t, TrackTicks(960), tr.End())
	require.Equal(t, TrackTicks(480), tr.Start())
	require.True(t, tr.AudioSegment().Chunks()[0].IsNull())
	require.Nil(t, tr.VideoSegment())
}

func TestStreamBufferForgetUpTo(t *testing.T) {
	var b StreamBuffer
	b.AdvanceKnownTracksTime(StreamTimeMax)
	ended := b.AddTrack(1, 48000, 0, silence(480))
	ended.SetEnded()
	b.AddTrack(2, 48000, 0, silence(960))

	b.ForgetUpTo(10000)
	require.Nil(t, b.FindTrack(1))
	require.NotNil(t, b.FindTrack(2))
	require.Equal(t, StreamTime(10000), b.ForgottenTime())
	require.Equal(t, TrackTicks(960), b.FindTrack(2).End())
	require.Len(t, b.TracksOfType(Audio), 1)
	require.Empty(t, b.TracksOfType(Video))
}
