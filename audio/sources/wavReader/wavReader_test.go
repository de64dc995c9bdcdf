package wavReader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/dh1tw/streamgraph/audio"
	"github.com/dh1tw/streamgraph/graph"
)

type msgSink struct {
	msgs []audio.Msg
}

func (s *msgSink) Write(m audio.Msg) error {
	s.msgs = append(s.msgs, m)
	return nil
}

// writeWav creates a mono 16 bit file with frames samples of value v.
func writeWav(t *testing.T, frames, v int) string {
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 48000, 16, 1, 1)
	buf := &ga.IntBuffer{
		Format:         &ga.Format{NumChannels: 1, SampleRate: 48000},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	for i := range buf.Data {
		buf.Data[i] = v
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestNewWavReaderInvalidFile(t *testing.T) {
	g := graph.New(graph.WithDriver(nil))
	defer g.Shutdown()

	path := filepath.Join(t.TempDir(), "invalid.wav")
	require.NoError(t, os.WriteFile(path, []byte("no wav"), 0o644))
	_, err := NewWavReader(path, g.CreateSourceStream())
	require.Error(t, err)

	_, err = NewWavReader(filepath.Join(t.TempDir(), "missing.wav"), g.CreateSourceStream())
	require.Error(t, err)
}

func TestWavReaderFeedsStream(t *testing.T) {
	sink := &msgSink{}
	g := graph.New(
		graph.WithDriver(nil),
		graph.WithControlExecutor(graph.SyncExecutor),
		graph.WithAudioSink(sink),
		graph.WithChannels(1),
		graph.WithLowWaterMark(20*time.Millisecond),
	)
	require.NoError(t, g.Init())
	defer g.Shutdown()

	s := g.CreateSourceStream()
	s.AddAudioOutput("speaker", 1)
	g.FlushPendingChanges()

	r, err := NewWavReader(writeWav(t, 4800, 16384), s,
		FramesPerBuffer(480),
		Executor(graph.SyncExecutor),
		FinishAtEOF(true),
	)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, graph.TrackRate(48000), r.Rate())
	require.Equal(t, 1, r.Channels())

	require.NoError(t, r.Start())
	// reads ahead up to the low water mark only
	require.True(t, s.HaveEnoughBuffered(1))
	require.Equal(t, 960, r.frames)

	for i := 0; i < 10; i++ {
		g.FlushPendingChanges()
		require.NoError(t, g.Step(10*time.Millisecond))
	}

	require.Len(t, sink.msgs, 10)
	for _, msg := range sink.msgs {
		require.Len(t, msg.Data, 480)
		for _, v := range msg.Data {
			require.Equal(t, float32(0.5), v)
		}
	}
	require.Equal(t, 4800, r.frames)
	require.True(t, s.IsFinished())
}
