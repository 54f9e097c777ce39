package remote

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/weavegraph/weave/graph/pipeline"
)

// startServer binds a server on a free port and returns it with the client
// config pointing at it.
func startServer(t *testing.T, cfg ServerConfig) (*Server, ClientConfig) {
	t.Helper()
	cfg.Host = "127.0.0.1"
	srv := NewServer(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	host, portStr, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("parsing addr %q: %v", srv.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port %q: %v", portStr, err)
	}
	return srv, ClientConfig{Host: host, Port: port}
}

func receiveOne(t *testing.T, events <-chan pipeline.Event) pipeline.Event {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("event channel closed early")
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func TestServerHealth(t *testing.T) {
	srv, _ := startServer(t, ServerConfig{})

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServerClientDelivery(t *testing.T) {
	srv, clientCfg := startServer(t, ServerConfig{AwaitInitialConnection: true})

	p := pipeline.New()
	srv.Attach(p)

	client := NewClient(clientCfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// Block until the stream connection is registered, so no events are
	// pushed into the void.
	if err := srv.AwaitInitialConnection(context.Background()); err != nil {
		t.Fatalf("AwaitInitialConnection failed: %v", err)
	}

	ctx := context.Background()
	sent := []pipeline.Event{
		pipeline.NewAgentStarting("agent-1", "run-1"),
		pipeline.NewNodeExecutionStarting("run-1", "echo", "hi"),
		pipeline.NewAgentCompleted("agent-1", "run-1", "done"),
	}
	for _, event := range sent {
		if err := p.Notify(ctx, event); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	for i, want := range sent {
		got := receiveOne(t, client.Events())
		if got.Kind() != want.Kind() {
			t.Errorf("event %d kind = %s, want %s", i, got.Kind(), want.Kind())
		}
	}

	// Nothing else was sent.
	select {
	case event := <-client.Events():
		t.Errorf("unexpected extra event: %v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServerClientDeliveryOrderAndFields(t *testing.T) {
	srv, clientCfg := startServer(t, ServerConfig{AwaitInitialConnection: true})

	p := pipeline.New()
	srv.Attach(p)

	client := NewClient(clientCfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	if err := srv.AwaitInitialConnection(context.Background()); err != nil {
		t.Fatalf("AwaitInitialConnection failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		event := pipeline.NewNodeExecutionStarting("run-1", fmt.Sprintf("node-%d", i), "")
		if err := p.Notify(ctx, event); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		got, ok := receiveOne(t, client.Events()).(pipeline.NodeExecutionStarting)
		if !ok {
			t.Fatal("received an unexpected event type")
		}
		if want := fmt.Sprintf("node-%d", i); got.NodeName != want {
			t.Errorf("event %d names %q, want %q", i, got.NodeName, want)
		}
	}
}

func TestServerFilter(t *testing.T) {
	onlyNodeEvents := func(event pipeline.Event) bool {
		_, ok := event.(pipeline.NodeExecutionStarting)
		return ok
	}
	srv, clientCfg := startServer(t, ServerConfig{
		AwaitInitialConnection: true,
		Filter:                 onlyNodeEvents,
	})

	p := pipeline.New()
	srv.Attach(p)

	client := NewClient(clientCfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	if err := srv.AwaitInitialConnection(context.Background()); err != nil {
		t.Fatalf("AwaitInitialConnection failed: %v", err)
	}

	ctx := context.Background()
	p.Notify(ctx, pipeline.NewAgentStarting("agent-1", "run-1"))
	p.Notify(ctx, pipeline.NewNodeExecutionStarting("run-1", "kept", ""))

	got := receiveOne(t, client.Events())
	node, ok := got.(pipeline.NodeExecutionStarting)
	if !ok {
		t.Fatalf("filtered stream delivered %T", got)
	}
	if node.NodeName != "kept" {
		t.Errorf("node name = %q", node.NodeName)
	}
}

func TestAwaitInitialConnectionTimeout(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	srv, _ := startServer(t, ServerConfig{
		AwaitInitialConnection:        true,
		AwaitInitialConnectionTimeout: 100 * time.Millisecond,
		Logger:                        logger,
	})

	started := time.Now()
	if err := srv.AwaitInitialConnection(context.Background()); err != nil {
		t.Fatalf("AwaitInitialConnection returned %v, want nil", err)
	}
	elapsed := time.Since(started)
	if elapsed < 100*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
	if !bytes.Contains(logs.Bytes(), []byte("no client connected")) {
		t.Errorf("no warning logged; log output:\n%s", logs.String())
	}
}

func TestAwaitInitialConnectionDisabled(t *testing.T) {
	srv, _ := startServer(t, ServerConfig{})

	started := time.Now()
	if err := srv.AwaitInitialConnection(context.Background()); err != nil {
		t.Fatalf("AwaitInitialConnection returned %v", err)
	}
	if time.Since(started) > 50*time.Millisecond {
		t.Error("disabled wait blocked")
	}
}

func TestAwaitInitialConnectionCancelled(t *testing.T) {
	srv, _ := startServer(t, ServerConfig{AwaitInitialConnection: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.AwaitInitialConnection(ctx); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestClientConnectRefused(t *testing.T) {
	// Bind and immediately close a listener to get a port nothing answers on.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(lis.Addr().String())
	port, _ := strconv.Atoi(portStr)
	lis.Close()

	client := NewClient(ClientConfig{Host: "127.0.0.1", Port: port})
	if err := client.Connect(context.Background()); err == nil {
		client.Close()
		t.Fatal("expected Connect to fail against a dead server")
	}
}

func TestClientCloseClosesEvents(t *testing.T) {
	_, clientCfg := startServer(t, ServerConfig{})

	client := NewClient(clientCfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	client.Close()

	select {
	case _, ok := <-client.Events():
		if ok {
			t.Fatal("received an event after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Events channel did not close")
	}
}
