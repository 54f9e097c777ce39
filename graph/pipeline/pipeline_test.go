package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestInstallOrder(t *testing.T) {
	p := New()

	var order []string
	p.Install("a", KindNodeExecutionStarting, func(context.Context, Event) error {
		order = append(order, "first")
		return nil
	})
	p.Install("b", KindNodeExecutionStarting, func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	})
	p.Install("c", KindNodeExecutionStarting, func(context.Context, Event) error {
		order = append(order, "third")
		return nil
	})

	if err := p.Notify(context.Background(), NewNodeExecutionStarting("run", "n", "")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d handler calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], order[i])
		}
	}
}

func TestNotifyOnlyMatchingKind(t *testing.T) {
	p := New()

	calls := 0
	p.Install("owner", KindNodeExecutionCompleted, func(context.Context, Event) error {
		calls++
		return nil
	})

	if err := p.Notify(context.Background(), NewNodeExecutionStarting("run", "n", "")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler for another kind ran %d times", calls)
	}

	if err := p.Notify(context.Background(), NewNodeExecutionCompleted("run", "n", "", "")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRejectAllFilter(t *testing.T) {
	p := New()

	calls := 0
	p.InstallBroadcast("owner", func(context.Context, Event) error {
		calls++
		return nil
	})
	p.SetFilter(func(Event) bool { return false })

	events := []Event{
		NewAgentStarting("agent", "run"),
		NewNodeExecutionStarting("run", "n", "in"),
		NewNodeExecutionCompleted("run", "n", "in", "out"),
		NewToolCallStarting("run", "call", "tool", "{}"),
		NewLLMCallCompleted("run", "call", "p", "m", []string{"r"}),
	}
	for _, event := range events {
		if err := p.Notify(context.Background(), event); err != nil {
			t.Fatalf("Notify(%s) failed: %v", event.Kind(), err)
		}
	}

	if calls != 0 {
		t.Errorf("reject-all filter let %d events through", calls)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	p := New()

	boom := errors.New("observer broke")
	ran := false
	p.Install("failing", KindNodeExecutionStarting, func(context.Context, Event) error {
		return boom
	})
	p.Install("after", KindNodeExecutionStarting, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := p.Notify(context.Background(), NewNodeExecutionStarting("run", "n", ""))
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if ran {
		t.Error("handler after the failing one should not run")
	}
}

func TestUninstall(t *testing.T) {
	p := New()

	calls := 0
	p.InstallBroadcast("gone", func(context.Context, Event) error {
		calls++
		return nil
	})
	p.Install("stays", KindAgentStarting, func(context.Context, Event) error {
		calls += 10
		return nil
	})

	p.Uninstall("gone")

	if err := p.Notify(context.Background(), NewAgentStarting("agent", "run")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if calls != 10 {
		t.Errorf("expected only the remaining handler to run, calls=%d", calls)
	}
	if got := p.HandlerCount(KindNodeExecutionStarting); got != 0 {
		t.Errorf("expected 0 handlers after uninstall, got %d", got)
	}
}

func TestInstallBroadcastCoversAllKinds(t *testing.T) {
	p := New()
	p.InstallBroadcast("owner", func(context.Context, Event) error { return nil })

	for _, kind := range Kinds() {
		if got := p.HandlerCount(kind); got != 1 {
			t.Errorf("kind %s: expected 1 handler, got %d", kind, got)
		}
	}
}
