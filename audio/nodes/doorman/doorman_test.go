package doorman

import (
	"testing"
	"time"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/graph"
	"github.com/stretchr/testify/require"
)

type msgSink struct {
	msgs []audio.Msg
}

func (s *msgSink) Write(m audio.Msg) error {
	s.msgs = append(s.msgs, m)
	return nil
}

func constant(frames int, v float32) *graph.AudioSegment {
	data := make([]float32, frames)
	for i := range data {
		data[i] = v
	}
	return graph.NewAudioSegmentFrom(data, 1)
}

func TestDoormanHandsOver(t *testing.T) {
	sink := &msgSink{}
	g := graph.New(
		graph.WithDriver(nil),
		graph.WithControlExecutor(graph.SyncExecutor),
		graph.WithAudioSink(sink),
		graph.WithChannels(1),
	)
	require.NoError(t, g.Init())
	defer g.Shutdown()

	s := g.CreateSourceStream()
	s.AddTrack(1, 48000, 0, constant(480, 0.5))
	s.AddTrack(2, 48000, 0, constant(1920, 0.25))
	s.AdvanceKnownTracksTime(graph.StreamTimeMax)

	var users []graph.TrackID
	d := NewDoorman(TXUserChanged(func(id graph.TrackID) { users = append(users, id) }))
	ps := g.CreateProcessedStream(d)
	ps.AllocateInputPort(s, 0)
	ps.AddAudioOutput("radio", 1)

	step := func() {
		g.FlushPendingChanges()
		require.NoError(t, g.Step(10*time.Millisecond))
	}

	step()
	for _, v := range sink.msgs[0].Data {
		require.Equal(t, float32(0.5), v)
	}
	require.Equal(t, []graph.TrackID{1}, users)

	// track 1 ends without further data: the door opens for the next one
	s.EndTrack(1)
	step()
	for _, v := range sink.msgs[1].Data {
		require.Equal(t, float32(0), v)
	}
	require.Equal(t, []graph.TrackID{1, graph.TrackInvalid}, users)

	step()
	for _, v := range sink.msgs[2].Data {
		require.Equal(t, float32(0.25), v)
	}
	require.Equal(t, []graph.TrackID{1, graph.TrackInvalid, 2}, users)
	require.Equal(t, graph.TrackID(2), d.TxUser())
}

func TestDoormanWithoutInputIsSilent(t *testing.T) {
	sink := &msgSink{}
	g := graph.New(
		graph.WithDriver(nil),
		graph.WithControlExecutor(graph.SyncExecutor),
		graph.WithAudioSink(sink),
		graph.WithChannels(1),
	)
	require.NoError(t, g.Init())
	defer g.Shutdown()

	ps := g.CreateProcessedStream(NewDoorman())
	ps.AddAudioOutput("radio", 1)
	g.FlushPendingChanges()
	require.NoError(t, g.Step(10*time.Millisecond))

	require.Len(t, sink.msgs[0].Data, 480)
	for _, v := range sink.msgs[0].Data {
		require.Equal(t, float32(0), v)
	}
	require.Equal(t, graph.TrackTicks(480), ps.Buffer().Tracks()[0].End())
}
