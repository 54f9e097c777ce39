// Package remote streams lifecycle events to an out-of-process observer
// over a server-push HTTP connection (Server-Sent Events), and consumes such
// a stream on the other side (Client).
//
// The transport is an observer, never a dependency of the run: a slow or
// absent remote client must not stall the engine, so server pushes are
// fire-and-forget with per-client unbounded buffering.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/weavegraph/weave/graph/pipeline"
)

// ServerConfig configures a streaming server.
type ServerConfig struct {
	// Host to bind, e.g. "127.0.0.1". Empty binds all interfaces.
	Host string

	// Port to bind. Zero picks a free port; read it back via Addr.
	Port int

	// AwaitInitialConnection makes AwaitInitialConnection block until a
	// client has connected to the event stream.
	AwaitInitialConnection bool

	// AwaitInitialConnectionTimeout bounds that wait. On timeout the server
	// logs a warning and proceeds; observability never blocks execution.
	AwaitInitialConnectionTimeout time.Duration

	// Filter, when set, limits which events are streamed. Unlike the
	// pipeline's global filter it affects only this server.
	Filter pipeline.Filter

	// Logger for operational messages. Nil uses slog.Default().
	Logger *slog.Logger
}

const serverOwner pipeline.OwnerKey = "remote.server"

// Server pushes pipeline events to connected clients.
//
//	srv := remote.NewServer(remote.ServerConfig{Port: 8585})
//	if err := srv.Start(); err != nil { ... }
//	defer srv.Close()
//	srv.Attach(p)
//
// Endpoints: GET /health answers 200 once the server accepts connections;
// GET /events is the long-lived event stream. Events are delivered to every
// connected client in send order.
type Server struct {
	cfg   ServerConfig
	log   *slog.Logger
	httpd *http.Server
	lis   net.Listener

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	firstOnce sync.Once
	firstConn chan struct{}
}

// NewServer creates a server. Call Start to bind the listener.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		log:       logger,
		conns:     make(map[*serverConn]struct{}),
		firstConn: make(chan struct{}),
	}
}

// Start binds the listener and begins serving. Returns once the server is
// accepting connections; /health answers success from then on.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remote server: listen on %s: %w", addr, err)
	}
	s.lis = lis

	mux := http.NewServeMux()
	mux.HandleFunc("/health", requireGet(s.handleHealth))
	mux.HandleFunc("/events", requireGet(s.handleEvents))
	s.httpd = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.httpd.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.log.Error("remote server stopped", "error", err)
		}
	}()

	s.log.Info("remote event server listening", "addr", lis.Addr().String())
	return nil
}

// Addr returns the bound listen address, useful when Port was zero.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// AwaitInitialConnection blocks until a client has connected to /events,
// when the config asks for it. On timeout it logs a warning and returns nil
// so the caller proceeds; only context cancellation returns an error.
func (s *Server) AwaitInitialConnection(ctx context.Context) error {
	if !s.cfg.AwaitInitialConnection {
		return nil
	}

	timeout := s.cfg.AwaitInitialConnectionTimeout
	if timeout <= 0 {
		select {
		case <-s.firstConn:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.firstConn:
		return nil
	case <-timer.C:
		s.log.Warn("no client connected before timeout, proceeding without remote observer",
			"timeout", timeout)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach installs the server on the pipeline for every event kind.
func (s *Server) Attach(p *pipeline.Pipeline) {
	p.InstallBroadcast(serverOwner, s.Handle)
}

// Handle serializes the event and queues it on every connected client.
// Never returns an error: transport trouble must not abort the run, so
// serialization failures are logged and dropped.
func (s *Server) Handle(_ context.Context, event pipeline.Event) error {
	if s.cfg.Filter != nil && !s.cfg.Filter(event) {
		return nil
	}

	frame, err := pipeline.Marshal(event)
	if err != nil {
		s.log.Warn("dropping unserializable event", "kind", event.Kind(), "error", err)
		return nil
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.push(frame)
	}
	s.mu.Unlock()
	return nil
}

// Close stops accepting connections and terminates open streams.
func (s *Server) Close() error {
	s.mu.Lock()
	for conn := range s.conns {
		conn.close()
	}
	s.conns = make(map[*serverConn]struct{})
	s.mu.Unlock()

	if s.httpd == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpd.Shutdown(ctx)
}

// requireGet rejects non-GET requests, matching the behavior of a
// "GET /path" ServeMux pattern.
func requireGet(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := newServerConn()
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.firstOnce.Do(func() { close(s.firstConn) })
	s.log.Info("remote client connected", "remote", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.log.Info("remote client disconnected", "remote", r.RemoteAddr)
	}()

	go func() {
		<-r.Context().Done()
		conn.close()
	}()

	for {
		frame, ok := conn.next()
		if !ok {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			conn.close()
			return
		}
		flusher.Flush()
	}
}

// serverConn is one client's unbounded send queue. push never blocks; the
// writer goroutine drains in order.
type serverConn struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
}

func newServerConn() *serverConn {
	c := &serverConn{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *serverConn) push(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, frame)
	c.cond.Signal()
}

func (c *serverConn) next() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return nil, false
	}
	frame := c.queue[0]
	c.queue = c.queue[1:]
	return frame, true
}

func (c *serverConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}
