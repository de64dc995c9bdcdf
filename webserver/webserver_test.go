package webserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dh1tw/streamgraph/graph"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*graph.Graph, *graph.SourceStream, *WebServer) {
	g := graph.New(
		graph.WithDriver(nil),
		graph.WithControlExecutor(graph.SyncExecutor),
		graph.WithLogger(discard),
	)
	require.NoError(t, g.Init())
	t.Cleanup(g.Shutdown)

	s := g.CreateSourceStream()
	s.AddAudioOutput("speaker", 1)
	g.FlushPendingChanges()
	require.NoError(t, g.Step(10*time.Millisecond))

	return g, s, NewWebServer(g, Logger(discard))
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStreams(t *testing.T) {
	_, s, web := setup(t)

	for _, url := range []string{"/api/v1.0/streams", "/api/streams"} {
		rec := do(t, web, "GET", url, "")
		require.Equal(t, http.StatusOK, rec.Code, url)

		var snaps []graph.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
		require.Len(t, snaps, 1)
		require.Equal(t, s.ID(), snaps[0].ID)
		require.Equal(t, []graph.Volume{{Key: "speaker", Volume: 1}}, snaps[0].Outputs)
	}
}

func TestStream(t *testing.T) {
	_, s, web := setup(t)

	rec := do(t, web, "GET", "/api/streams/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap graph.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, s.ID(), snap.ID)
	require.Equal(t, "source", snap.Kind)
	// blocked without data since creation
	require.Equal(t, graph.StreamTime(0), snap.CurrentTime)

	rec = do(t, web, "GET", "/api/v1.0/streams/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, web, "GET", "/api/v1.0/streams/abc", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVolume(t *testing.T) {
	g, s, web := setup(t)

	rec := do(t, web, "PUT", "/api/v1.0/streams/1/volume", `{"key": "speaker", "volume": 0.5}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, g.Step(10*time.Millisecond))
	require.Equal(t, []graph.Volume{{Key: "speaker", Volume: 0.5}}, s.Snapshot().Outputs)

	tests := []struct {
		name string
		url  string
		body string
		code int
	}{
		{"invalid json", "/api/v1.0/streams/1/volume", `{"key":`, http.StatusBadRequest},
		{"missing key", "/api/v1.0/streams/1/volume", `{"volume": 0.5}`, http.StatusBadRequest},
		{"missing volume", "/api/v1.0/streams/1/volume", `{"key": "speaker"}`, http.StatusBadRequest},
		{"negative volume", "/api/v1.0/streams/1/volume", `{"key": "speaker", "volume": -1}`, http.StatusBadRequest},
		{"unknown stream", "/api/v1.0/streams/7/volume", `{"key": "speaker", "volume": 1}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, web, "PUT", tc.url, tc.body)
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestChangesUpdateWsClients(t *testing.T) {
	g, _, web := setup(t)
	c := &wsClient{send: make(chan []byte, 4)}
	web.addWsClient(c)

	rec := do(t, web, "PUT", "/api/v1.0/streams/1/volume", `{"key": "speaker", "volume": 0.5}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, c.send)

	require.NoError(t, g.Step(10*time.Millisecond))
	require.Len(t, c.send, 1)
	var snaps []graph.Snapshot
	require.NoError(t, json.Unmarshal(<-c.send, &snaps))
	require.Equal(t, []graph.Volume{{Key: "speaker", Volume: 0.5}}, snaps[0].Outputs)

	rec = do(t, web, "PUT", "/api/v1.0/streams/1/blocked", `{"blocked": true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, g.Step(10*time.Millisecond))
	require.Len(t, c.send, 1)
}

type blockingRecorder struct {
	graph.NoopListener
	states []graph.Blocking
}

func (r *blockingRecorder) NotifyBlockingChanged(_ *graph.Graph, b graph.Blocking) {
	r.states = append(r.states, b)
}

func TestBlocked(t *testing.T) {
	g, s, web := setup(t)

	// keep the stream supplied so only the explicit blocker matters
	seg := graph.NewAudioSegment()
	seg.AppendNullData(48000)
	s.AddTrack(1, 48000, 0, seg)
	s.AdvanceKnownTracksTime(graph.StreamTimeMax)

	rec := &blockingRecorder{}
	s.AddListener(rec)
	g.FlushPendingChanges()
	require.NoError(t, g.Step(10*time.Millisecond))
	require.Equal(t, []graph.Blocking{graph.Blocked, graph.Unblocked}, rec.states)

	res := do(t, web, "PUT", "/api/v1.0/streams/1/blocked", `{"blocked": true}`)
	require.Equal(t, http.StatusNoContent, res.Code)
	// repeated requests do not stack
	res = do(t, web, "PUT", "/api/v1.0/streams/1/blocked", `{"blocked": true}`)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.NoError(t, g.Step(10*time.Millisecond))
	require.Equal(t, []graph.Blocking{graph.Blocked, graph.Unblocked, graph.Blocked}, rec.states)

	res = do(t, web, "GET", "/api/v1.0/streams/1/blocked", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"blocked": true}`, res.Body.String())

	res = do(t, web, "PUT", "/api/v1.0/streams/1/blocked", `{"blocked": false}`)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.NoError(t, g.Step(10*time.Millisecond))
	require.Equal(t, []graph.Blocking{graph.Blocked, graph.Unblocked, graph.Blocked, graph.Unblocked}, rec.states)

	res = do(t, web, "PUT", "/api/v1.0/streams/1/blocked", `{}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = do(t, web, "DELETE", "/api/v1.0/streams/1/blocked", "")
	require.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestWebsocket(t *testing.T) {
	g, s, web := setup(t)
	web.Watch(&s.Stream)

	srv := httptest.NewServer(web)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() []graph.Snapshot {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var snaps []graph.Snapshot
		require.NoError(t, json.Unmarshal(data, &snaps))
		return snaps
	}

	// the current state is sent on connect
	snaps := read()
	require.Len(t, snaps, 1)
	require.False(t, snaps[0].Destroyed)

	s.Destroy()
	g.FlushPendingChanges()
	require.NoError(t, g.Step(10*time.Millisecond))

	snaps = read()
	require.Empty(t, snaps)
}
