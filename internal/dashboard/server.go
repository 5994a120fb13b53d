// Package dashboard serves a read-only view of a training run: the history
// as JSON, the latest sample grid, and a websocket feed of scalars.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"ganforge/internal/metrics"
)

const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Scalar is one message on the websocket feed.
type Scalar struct {
	Name  string        `json:"name"`
	Value metrics.Value `json:"value"`
	Step  int           `json:"step"`
}

// Server is the dashboard. It implements metrics.ScalarLogger.
type Server struct {
	history *metrics.History
	router  *mux.Router

	mu      sync.Mutex
	latest  string
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a dashboard over h.
func New(h *metrics.History) *Server {
	s := &Server{history: h, clients: make(map[*client]struct{})}
	r := mux.NewRouter()
	r.HandleFunc("/history", s.History()).Methods("GET")
	r.HandleFunc("/history/{name}", s.Series()).Methods("GET")
	r.HandleFunc("/samples/latest", s.LatestSample()).Methods("GET")
	r.HandleFunc("/ws", s.Websocket())
	s.router = r
	return s
}

// Handler returns the dashboard router.
func (s *Server) Handler() http.Handler { return s.router }

// History handler returns every series as JSON.
func (s *Server) History() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.history)
	}
}

// Series handler returns a single named series.
func (s *Server) Series() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if s.history.Len(name) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, metrics.Values(s.history.Values(name)))
	}
}

// LatestSample handler serves the most recently written sample grid.
func (s *Server) LatestSample() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		path := s.latest
		s.mu.Unlock()
		if path == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, path)
	}
}

// SampleWritten records path as the latest grid. It matches the
// sampler.GridSampler Notify hook.
func (s *Server) SampleWritten(path string) {
	s.mu.Lock()
	s.latest = path
	s.mu.Unlock()
}

// Websocket handler registers a feed subscriber.
func (s *Server) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("dashboard: websocket upgrade: %v", err)
			return
		}
		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		go s.writeLoop(c)
		go s.readLoop(c)
	}
}

// Log broadcasts a scalar to every subscriber without blocking. A subscriber
// whose buffer is full is dropped.
func (s *Server) Log(name string, value float64, step int) error {
	msg, err := json.Marshal(Scalar{Name: name, Value: metrics.Value(value), Step: step})
	if err != nil {
		return errors.Wrap(err, "dashboard: marshal scalar")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("dashboard: dropping slow websocket client %s", c.conn.RemoteAddr())
			s.removeLocked(c)
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()
	log.Printf("dashboard: listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return errors.Wrap(err, "dashboard")
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards client messages and notices disconnects.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	s.removeLocked(c)
	s.mu.Unlock()
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	for c := range s.clients {
		s.removeLocked(c)
	}
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("dashboard: encode response: %v", err)
	}
}
