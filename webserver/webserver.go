// Package webserver provides the HTTP and websocket control surface of a
// stream graph. Every request acts as a control client of the graph: it
// reads the published stream snapshots and queues changes.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dh1tw/streamgraph/graph"
)

var upgrader = websocket.Upgrader{}

// WebServer serves the REST api and pushes the stream snapshots to
// websocket clients whenever a watched stream finishes or is destroyed.
type WebServer struct {
	sync.Mutex
	log        *slog.Logger
	options    Options
	graph      *graph.Graph
	router     *mux.Router
	handler    http.Handler
	apiVersion string
	apiMatch   *regexp.Regexp
	clients    map[*wsClient]bool
	blocked    map[uint64]bool
}

// NewWebServer returns a webserver controlling g.
func NewWebServer(g *graph.Graph, opts ...Option) *WebServer {

	web := &WebServer{
		options: Options{
			Address:    "127.0.0.1:6060",
			APIVersion: "1.0",
			Logger:     slog.Default(),
		},
		graph:   g,
		router:  mux.NewRouter().StrictSlash(true),
		clients: make(map[*wsClient]bool),
		blocked: make(map[uint64]bool),
	}

	for _, o := range opts {
		o(&web.options)
	}
	web.log = web.options.Logger.With("component", "webserver")
	web.apiVersion = web.options.APIVersion
	web.apiMatch = regexp.MustCompile(`^/api/v[0-9]+\.[0-9]+/`)

	web.routes()
	web.handler = web.apiRedirectRouter(web.router)
	return web
}

// ServeHTTP implements http.Handler.
func (web *WebServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	web.handler.ServeHTTP(w, req)
}

// ListenAndServe serves until ctx is cancelled.
func (web *WebServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              web.options.Address,
		Handler:           web,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		web.log.Info("webserver listening", "address", web.options.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	web.closeWsClients()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Watch makes the webserver push the snapshots to its websocket clients
// whenever the published state of s changes.
func (web *WebServer) Watch(s *graph.Stream) {
	s.AddControlListener(web)
}

// NotifyStateChanged implements graph.ControlListener.
func (web *WebServer) NotifyStateChanged(graph.Snapshot) {
	web.updateWsClients()
}

// updateWsClients sends the published snapshots of all streams to every
// websocket client.
func (web *WebServer) updateWsClients() {
	data, err := json.Marshal(web.graph.Snapshots())
	if err != nil {
		web.log.Error("unable to encode snapshots", "error", err)
		return
	}

	web.Lock()
	defer web.Unlock()
	for c := range web.clients {
		select {
		case c.send <- data:
		default:
			web.log.Warn("websocket client too slow, dropping it", "remote", c.ws.RemoteAddr())
			web.removeLocked(c)
		}
	}
}

func (web *WebServer) addWsClient(c *wsClient) {
	web.Lock()
	defer web.Unlock()
	web.clients[c] = true
}

func (web *WebServer) removeWsClient(c *wsClient) {
	web.Lock()
	defer web.Unlock()
	web.removeLocked(c)
}

func (web *WebServer) removeLocked(c *wsClient) {
	if _, ok := web.clients[c]; ok {
		delete(web.clients, c)
		close(c.send)
	}
}

func (web *WebServer) closeWsClients() {
	web.Lock()
	defer web.Unlock()
	for c := range web.clients {
		web.removeLocked(c)
	}
}

type wsClient struct {
	ws           *websocket.Conn
	send         chan []byte
	removeClient func(*wsClient)
}

func (c *wsClient) write() {
	defer c.ws.Close()

	for message := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			c.removeClient(c)
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

// read only detects the closing of the connection; clients do not send
// commands over the websocket.
func (c *wsClient) read() {
	defer c.removeClient(c)

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
