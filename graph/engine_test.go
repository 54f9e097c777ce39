package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/weavegraph/weave/graph/pipeline"
)

// eventRecorder captures every pipeline event for order assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func newRecordingPipeline() (*pipeline.Pipeline, *eventRecorder) {
	p := pipeline.New()
	r := &eventRecorder{}
	p.InstallBroadcast("test.recorder", func(_ context.Context, event pipeline.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
		return nil
	})
	return p, r
}

func (r *eventRecorder) all() []pipeline.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pipeline.Event, len(r.events))
	copy(out, r.events)
	return out
}

// trace renders events as "Kind:subject" strings for compact comparisons.
func (r *eventRecorder) trace() []string {
	var out []string
	for _, event := range r.all() {
		switch e := event.(type) {
		case pipeline.NodeExecutionStarting:
			out = append(out, "Starting:"+e.NodeName)
		case pipeline.NodeExecutionCompleted:
			out = append(out, "Completed:"+e.NodeName)
		case pipeline.NodeExecutionFailed:
			out = append(out, "Failed:"+e.NodeName)
		case pipeline.SubgraphExecutionStarting:
			out = append(out, "SubgraphStarting:"+e.SubgraphName)
		case pipeline.SubgraphExecutionCompleted:
			out = append(out, "SubgraphCompleted:"+e.SubgraphName)
		case pipeline.SubgraphExecutionFailed:
			out = append(out, "SubgraphFailed:"+e.SubgraphName)
		default:
			out = append(out, string(event.Kind()))
		}
	}
	return out
}

func assertTrace(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s (full: %v)", i, want[i], got[i], got)
		}
	}
}

func buildLinearEcho(t *testing.T) *Subgraph {
	t.Helper()
	b := NewBuilder("linear")
	echo := b.AddNode("echo", "string", "string", passThrough)
	b.AddEdge(b.Start(), echo, nil)
	b.AddEdge(echo, b.Finish(), nil)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return sub
}

func TestRunLinearEcho(t *testing.T) {
	// A 3-node linear graph run with "hello" yields "hello" and exactly
	// six node events in order.
	sub := buildLinearEcho(t)
	p, recorder := newRecordingPipeline()
	rc := NewRunContext(p)

	output, err := NewEngine().Run(context.Background(), sub, rc, "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "hello" {
		t.Errorf("output = %v, want %q", output, "hello")
	}

	assertTrace(t, recorder.trace(), []string{
		"Starting:start", "Completed:start",
		"Starting:echo", "Completed:echo",
		"Starting:finish", "Completed:finish",
	})
}

func TestRunFailingNode(t *testing.T) {
	// A failing body yields a propagated error, exactly one failure event
	// for the node, and no completion event for it.
	b := NewBuilder("failing")
	bomb := b.AddNode("bomb", "string", "string",
		func(_ context.Context, _ *RunContext, input any) (any, error) {
			if input == "bad" {
				return nil, errors.New("refused input")
			}
			return input, nil
		})
	b.AddEdge(b.Start(), bomb, nil)
	b.AddEdge(bomb, b.Finish(), nil)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	p, recorder := newRecordingPipeline()
	rc := NewRunContext(p)

	_, err = NewEngine().Run(context.Background(), sub, rc, "bad")
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected *NodeError, got %v", err)
	}
	if nodeErr.NodeName != "bomb" {
		t.Errorf("error names node %q, want %q", nodeErr.NodeName, "bomb")
	}

	failed, completed := 0, 0
	for _, event := range recorder.all() {
		switch e := event.(type) {
		case pipeline.NodeExecutionFailed:
			if e.NodeName == "bomb" {
				failed++
			}
		case pipeline.NodeExecutionCompleted:
			if e.NodeName == "bomb" {
				completed++
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly 1 failure event for bomb, got %d", failed)
	}
	if completed != 0 {
		t.Errorf("expected 0 completion events for bomb, got %d", completed)
	}
}

func TestEdgeDeclarationOrder(t *testing.T) {
	// With edges [never-matches, matches, matches], the second edge always
	// wins.
	b := NewBuilder("routing")
	route := b.AddNode("route", "string", "string", passThrough)
	left := b.AddNode("left", "string", "string", passThrough)
	middle := b.AddNode("middle", "string", "string", passThrough)
	right := b.AddNode("right", "string", "string", passThrough)

	never := ForwardAlways.When(func(*RunContext, any) bool { return false })
	b.AddEdge(b.Start(), route, nil)
	b.AddEdge(route, left, never)
	b.AddEdge(route, middle, nil)
	b.AddEdge(route, right, nil)
	b.AddEdge(left, b.Finish(), nil)
	b.AddEdge(middle, b.Finish(), nil)
	b.AddEdge(right, b.Finish(), nil)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for i := 0; i < 10; i++ {
		p, recorder := newRecordingPipeline()
		rc := NewRunContext(p)
		if _, err := NewEngine().Run(context.Background(), sub, rc, "x"); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		visitedMiddle := false
		for _, step := range recorder.trace() {
			if step == "Starting:right" || step == "Starting:left" {
				t.Fatalf("engine took the wrong edge: %v", recorder.trace())
			}
			if step == "Starting:middle" {
				visitedMiddle = true
			}
		}
		if !visitedMiddle {
			t.Fatalf("engine skipped the matching edge: %v", recorder.trace())
		}
	}
}

func TestEdgeMapTransformsValue(t *testing.T) {
	b := NewBuilder("mapping")
	shout := b.AddNode("shout", "string", "string", passThrough)
	b.AddEdge(b.Start(), shout, nil)
	b.AddEdge(shout, b.Finish(), ForwardAlways.Map(func(_ *RunContext, v any) any {
		return fmt.Sprintf("%v!", v)
	}))
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	output, err := NewEngine().Run(context.Background(), sub, NewRunContext(nil), "hey")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "hey!" {
		t.Errorf("output = %v, want %q", output, "hey!")
	}
}

func TestRunDeadEnd(t *testing.T) {
	b := NewBuilder("stuck")
	wall := b.AddNode("wall", "string", "string", passThrough)
	never := ForwardAlways.When(func(*RunContext, any) bool { return false })
	b.AddEdge(b.Start(), wall, nil)
	b.AddEdge(wall, b.Finish(), never)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = NewEngine().Run(context.Background(), sub, NewRunContext(nil), "x")
	if !errors.Is(err, ErrDeadEnd) {
		t.Fatalf("expected ErrDeadEnd, got %v", err)
	}
	var traversal *TraversalError
	if !errors.As(err, &traversal) {
		t.Fatalf("expected *TraversalError, got %T", err)
	}
	if traversal.NodeName != "wall" {
		t.Errorf("error names %q, want %q", traversal.NodeName, "wall")
	}
}

func TestRunIterationLimit(t *testing.T) {
	b := NewBuilder("cyclic")
	loop := b.AddNode("loop", "string", "string", passThrough)
	never := ForwardAlways.When(func(*RunContext, any) bool { return false })
	b.AddEdge(b.Start(), loop, nil)
	b.AddEdge(loop, loop, nil)
	b.AddEdge(loop, b.Finish(), never)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rc := NewRunContext(nil, WithIterationLimit(5))
	_, err = NewEngine().Run(context.Background(), sub, rc, "x")
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected ErrIterationLimit, got %v", err)
	}
}

func TestRunNestedSubgraph(t *testing.T) {
	inner := NewBuilder("inner")
	double := inner.AddNode("double", "string", "string",
		func(_ context.Context, _ *RunContext, input any) (any, error) {
			return fmt.Sprintf("%v%v", input, input), nil
		})
	inner.AddEdge(inner.Start(), double, nil)
	inner.AddEdge(double, inner.Finish(), nil)
	innerSub, err := inner.Build()
	if err != nil {
		t.Fatalf("build inner: %v", err)
	}

	outer := NewBuilder("outer")
	nested := outer.AddSubgraph(innerSub)
	outer.AddEdge(outer.Start(), nested, nil)
	outer.AddEdge(nested, outer.Finish(), nil)
	outerSub, err := outer.Build()
	if err != nil {
		t.Fatalf("build outer: %v", err)
	}

	p, recorder := newRecordingPipeline()
	output, err := NewEngine().Run(context.Background(), outerSub, NewRunContext(p), "ab")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "abab" {
		t.Errorf("output = %v, want %q", output, "abab")
	}

	assertTrace(t, recorder.trace(), []string{
		"Starting:start", "Completed:start",
		"Starting:inner",
		"SubgraphStarting:inner",
		"Starting:start", "Completed:start",
		"Starting:double", "Completed:double",
		"Starting:finish", "Completed:finish",
		"SubgraphCompleted:inner",
		"Completed:inner",
		"Starting:finish", "Completed:finish",
	})
}

func TestRunHandlerFailureAbortsRun(t *testing.T) {
	sub := buildLinearEcho(t)

	p := pipeline.New()
	boom := errors.New("observer exploded")
	p.Install("failing", pipeline.KindNodeExecutionCompleted,
		func(context.Context, pipeline.Event) error { return boom })

	_, err := NewEngine().Run(context.Background(), sub, NewRunContext(p), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error to abort the run, got %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	sub := buildLinearEcho(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Run(ctx, sub, NewRunContext(nil), "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
