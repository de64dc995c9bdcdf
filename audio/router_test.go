package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	started bool
	msgs    []Msg
	flushed int
	err     error
}

func (s *recordingSink) Start() error { s.started = true; return nil }
func (s *recordingSink) Stop() error  { s.started = false; return nil }
func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) Flush()       { s.flushed++ }

func (s *recordingSink) Write(m Msg) error {
	s.msgs = append(s.msgs, m)
	return s.err
}

func TestRouterWritesToActiveSinks(t *testing.T) {
	r := NewDefaultRouter()
	active := &recordingSink{}
	inactive := &recordingSink{}
	r.AddSink("speaker", active, true)
	r.AddSink("file", inactive, false)

	msg := Msg{Data: []float32{0.1, 0.2}, Channels: 1, Frames: 2, Samplerate: 48000}
	require.NoError(t, r.Write(msg))
	require.Len(t, active.msgs, 1)
	require.Empty(t, inactive.msgs)

	// sinks receive a copy
	active.msgs[0].Data[0] = 1
	require.Equal(t, float32(0.1), msg.Data[0])

	require.NoError(t, r.EnableSink("file", true))
	require.True(t, inactive.started)
	require.NoError(t, r.Write(msg))
	require.Len(t, inactive.msgs, 1)

	r.Flush()
	require.Equal(t, 1, active.flushed)
	require.Equal(t, []string{"file", "speaker"}, r.Sinks())
}

func TestRouterSinkErrors(t *testing.T) {
	r := NewDefaultRouter()
	errBroken := errors.New("broken")
	r.AddSink("broken", &recordingSink{err: errBroken}, true)
	r.AddSink("ok", &recordingSink{}, true)

	err := r.Write(Msg{})
	require.ErrorIs(t, err, errBroken)
	var sErr *SinkError
	require.ErrorAs(t, err, &sErr)
	require.Equal(t, "broken", sErr.Name)
}

func TestRouterUnknownSink(t *testing.T) {
	r := NewDefaultRouter()
	require.ErrorIs(t, r.RemoveSink("nope"), ErrUnknownSink)
	require.ErrorIs(t, r.EnableSink("nope", true), ErrUnknownSink)
	_, err := r.Sink("nope")
	require.ErrorIs(t, err, ErrUnknownSink)

	s := &recordingSink{}
	r.AddSink("a", s, true)
	got, err := r.Sink("a")
	require.NoError(t, err)
	require.Same(t, s, got)
	require.NoError(t, r.RemoveSink("a"))
	require.Empty(t, r.Sinks())
}
