package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dh1tw/streamgraph/graph"
)

// StreamVolume is the body of a volume request.
type StreamVolume struct {
	Key    string   `json:"key"`
	Volume *float32 `json:"volume"`
}

// StreamBlocked is the body of a blocking request and response.
type StreamBlocked struct {
	Blocked *bool `json:"blocked"`
}

func (web *WebServer) webSocketHdlr(w http.ResponseWriter, req *http.Request) {

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		web.log.Warn("unable to open websocket", "remote", req.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		ws:           conn,
		send:         make(chan []byte, 16),
		removeClient: web.removeWsClient,
	}

	web.addWsClient(c)

	go c.write()
	go c.read()

	web.updateWsClients()
}

func (web *WebServer) streamsHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	if err := json.NewEncoder(w).Encode(web.graph.Snapshots()); err != nil {
		web.log.Error("unable to encode snapshots", "error", err)
	}
}

func (web *WebServer) streamHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	id, ok := streamID(w, req)
	if !ok {
		return
	}

	for _, snap := range web.graph.Snapshots() {
		if snap.ID != id {
			continue
		}
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			web.log.Error("unable to encode snapshot", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(fmt.Sprintf("404 - unable to find stream %d", id)))
}

func (web *WebServer) volumeHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	s, ok := web.stream(w, req)
	if !ok {
		return
	}

	var volMsg StreamVolume
	if err := json.NewDecoder(req.Body).Decode(&volMsg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("400 - invalid JSON"))
		return
	}
	if volMsg.Key == "" || volMsg.Volume == nil || *volMsg.Volume < 0 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("400 - invalid Request"))
		return
	}

	s.SetAudioOutputVolume(volMsg.Key, *volMsg.Volume)
	web.apply()
	w.WriteHeader(http.StatusNoContent)
}

func (web *WebServer) blockedHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	s, ok := web.stream(w, req)
	if !ok {
		return
	}

	switch req.Method {
	case "GET":
		web.Lock()
		blocked := web.blocked[s.ID()]
		web.Unlock()
		if err := json.NewEncoder(w).Encode(StreamBlocked{Blocked: &blocked}); err != nil {
			web.log.Error("unable to encode blocked state", "error", err)
		}

	case "PUT":
		var blockedMsg StreamBlocked
		if err := json.NewDecoder(req.Body).Decode(&blockedMsg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("400 - invalid JSON"))
			return
		}
		if blockedMsg.Blocked == nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("400 - invalid Request"))
			return
		}

		web.Lock()
		changed := web.blocked[s.ID()] != *blockedMsg.Blocked
		web.blocked[s.ID()] = *blockedMsg.Blocked
		web.Unlock()

		if changed {
			delta := -1
			if *blockedMsg.Blocked {
				delta = 1
			}
			s.ChangeExplicitBlockerCount(web.graph.CurrentTime(), delta)
			web.apply()
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// apply flushes the queued changes and updates the websocket clients once
// they have taken effect. The update has to be queued in the same batch.
func (web *WebServer) apply() {
	web.graph.RunAfterPendingUpdates(web.updateWsClients)
	web.graph.FlushPendingChanges()
}

// stream looks up the stream addressed by the request. It writes the error
// response if there is none.
func (web *WebServer) stream(w http.ResponseWriter, req *http.Request) (*graph.Stream, bool) {
	id, ok := streamID(w, req)
	if !ok {
		return nil, false
	}
	s := web.graph.Stream(id)
	if s == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(fmt.Sprintf("404 - unable to find stream %d", id)))
		return nil, false
	}
	return s, true
}

func streamID(w http.ResponseWriter, req *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("400 - invalid stream id"))
		return 0, false
	}
	return id, true
}
