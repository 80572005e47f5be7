// Package statusfeed serves session status over HTTP and streams session
// events to WebSocket clients.
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBacklog = 64
)

// StatusSource reports the sessions of a page. viewer.Page satisfies it.
type StatusSource interface {
	Statuses() []viewer.Status
}

// AssetCache is the model asset cache. *assets.Cache satisfies it.
type AssetCache interface {
	Stats() assets.CacheStats
	Clear()
}

// Message is what WebSocket clients receive. A snapshot is sent on
// connect; events follow as sessions publish them.
type Message struct {
	Type     string          `json:"type"`
	Sessions []viewer.Status `json:"sessions,omitempty"`
	Event    *viewer.Event   `json:"event,omitempty"`
}

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
)

// Server is the status feed. It implements viewer.Observer so it can be
// passed to sessions directly.
type Server struct {
	log      *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	mu      sync.Mutex
	src     StatusSource
	cache   AssetCache
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// New creates a feed over src. A nil src reports no sessions until
// SetSource is called.
func New(src StatusSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		src:     src,
		log:     log,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{mountID}", s.getSession)
	r.Get("/assets", s.assetStats)
	r.Delete("/assets", s.clearAssets)
	r.Get("/ws", s.serveWS)
	s.router = r
	return s
}

// SetSource replaces the status source.
func (s *Server) SetSource(src StatusSource) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

// SetAssetCache exposes c on /assets.
func (s *Server) SetAssetCache(c AssetCache) {
	s.mu.Lock()
	s.cache = c
	s.mu.Unlock()
}

func (s *Server) assetCache() AssetCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

func (s *Server) statuses() []viewer.Status {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	return src.Statuses()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("status feed listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.statuses()
	if sessions == nil {
		sessions = []viewer.Status{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mountID")
	for _, st := range s.statuses() {
		if st.MountID == id {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session in mount " + id})
}

func (s *Server) assetStats(w http.ResponseWriter, _ *http.Request) {
	c := s.assetCache()
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "asset cache disabled"})
		return
	}
	writeJSON(w, http.StatusOK, c.Stats())
}

func (s *Server) clearAssets(w http.ResponseWriter, _ *http.Request) {
	c := s.assetCache()
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "asset cache disabled"})
		return
	}
	before := c.Stats()
	c.Clear()
	s.log.Info("asset cache cleared", zap.Int("entries", before.Entries), zap.Int("bytes", before.Bytes))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBacklog)}

	snapshot, err := json.Marshal(Message{Type: TypeSnapshot, Sessions: s.statuses()})
	if err != nil {
		s.log.Error("encoding snapshot", zap.Error(err))
		conn.Close()
		return
	}
	c.send <- snapshot

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Debug("websocket client connected", zap.Int("clients", n))

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (s *Server) readPump(c *client) {
	defer s.drop(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("websocket write failed", zap.Error(err))
				s.drop(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(c)
				return
			}
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.close()
	}
}

// Notify implements viewer.Observer. It never blocks: a client whose
// backlog is full is disconnected.
func (s *Server) Notify(e viewer.Event) {
	data, err := json.Marshal(Message{Type: TypeEvent, Event: &e})
	if err != nil {
		s.log.Error("encoding event", zap.Error(err))
		return
	}
	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.Unlock()
	for _, c := range slow {
		s.log.Warn("dropping slow websocket client")
		s.drop(c)
	}
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client. Later connections are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}
