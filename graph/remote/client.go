package remote

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/weavegraph/weave/graph/pipeline"
)

// ClientConfig configures a streaming client.
type ClientConfig struct {
	Host string
	Port int

	// Protocol is "http" or "https". Empty defaults to "http".
	Protocol string

	// Headers are added to every request, e.g. an auth token.
	Headers map[string]string

	// ReconnectionDelay, when positive, makes the client re-dial after a
	// lost connection (and retry the initial handshake). Zero means a
	// refused or dropped connection is final.
	ReconnectionDelay time.Duration

	// RequestTimeout bounds the health-check request. Zero means 10s.
	RequestTimeout time.Duration

	// ConnectTimeout bounds dialing the server. Zero means 10s.
	ConnectTimeout time.Duration

	// Logger for operational messages. Nil uses slog.Default().
	Logger *slog.Logger
}

// Client consumes a server's event stream.
//
//	c := remote.NewClient(remote.ClientConfig{Host: "127.0.0.1", Port: 8585})
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Close()
//	for event := range c.Events() {
//	    ...
//	}
//
// Connect performs a health-check handshake first; a refused connection is a
// hard failure unless ReconnectionDelay opts into retrying. Received events
// come out of Events in send order. The internal queue is unbounded, so a
// slow consumer delays delivery but never the server.
type Client struct {
	cfg    ClientConfig
	log    *slog.Logger
	base   string
	health *http.Client
	stream *http.Client

	cancel context.CancelFunc
	out    chan pipeline.Event

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pipeline.Event
	closed bool
}

// NewClient creates a client. Call Connect to start receiving.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	protocol := cfg.Protocol
	if protocol == "" {
		protocol = "http"
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	c := &Client{
		cfg:  cfg,
		log:  logger,
		base: fmt.Sprintf("%s://%s:%d", protocol, cfg.Host, cfg.Port),
		health: &http.Client{
			Timeout:   requestTimeout,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		// The stream request stays open for the connection's lifetime, so
		// no overall timeout; only dialing is bounded.
		stream: &http.Client{
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		out: make(chan pipeline.Event),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Connect performs the health handshake and starts the receive loop.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.handshake(ctx); err != nil {
		if c.cfg.ReconnectionDelay <= 0 {
			return err
		}
		c.log.Warn("handshake failed, will retry", "error", err, "delay", c.cfg.ReconnectionDelay)
		if err := c.handshakeWithRetry(ctx); err != nil {
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.receiveLoop(loopCtx)
	go c.pump()
	return nil
}

// Events returns the ordered stream of received events. The channel closes
// when the connection is lost for good or Close is called.
func (c *Client) Events() <-chan pipeline.Event {
	return c.out
}

// Close stops the receive loop and closes the Events channel once queued
// events have been delivered.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.shutdown()
}

func (c *Client) handshake(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.health.Do(req)
	if err != nil {
		return fmt.Errorf("remote client: health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote client: health check returned %s", resp.Status)
	}
	return nil
}

func (c *Client) handshakeWithRetry(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectionDelay):
		}
		if err := c.handshake(ctx); err == nil {
			return nil
		}
	}
}

// receiveLoop reads the event stream, re-dialing per config until the
// context is cancelled or reconnection is not enabled.
func (c *Client) receiveLoop(ctx context.Context) {
	defer c.shutdown()

	for {
		err := c.consumeStream(ctx)
		if ctx.Err() != nil {
			return
		}
		if c.cfg.ReconnectionDelay <= 0 {
			if err != nil {
				c.log.Warn("event stream ended", "error", err)
			}
			return
		}

		c.log.Warn("event stream lost, reconnecting", "error", err, "delay", c.cfg.ReconnectionDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectionDelay):
		}
	}
}

func (c *Client) consumeStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.applyHeaders(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		event, err := pipeline.Unmarshal([]byte(payload))
		if err != nil {
			// Forward-compatibility: an unknown event shape is this
			// client's problem, not the stream's.
			c.log.Warn("skipping undecodable event", "error", err)
			continue
		}
		c.enqueue(event)
	}
	return scanner.Err()
}

func (c *Client) applyHeaders(req *http.Request) {
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}
}

func (c *Client) enqueue(event pipeline.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, event)
	c.cond.Signal()
}

// pump moves queued events to the output channel, preserving order while
// keeping the receive loop unblocked by a slow consumer.
func (c *Client) pump() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) == 0 && c.closed {
			c.mu.Unlock()
			close(c.out)
			return
		}
		event := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.out <- event
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cond.Broadcast()
}
