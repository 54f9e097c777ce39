package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weavegraph/weave/graph/store"
)

func constantNode(name, value string, delay time.Duration) *Node {
	return NewNode(name, "string", "string",
		func(ctx context.Context, rc *RunContext, _ any) (any, error) {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			rc.Set("winner", name)
			return value, nil
		})
}

func buildParallel(t *testing.T, merge MergeFunc, branches ...*Node) *Subgraph {
	t.Helper()
	b := NewBuilder("fanout")
	par := b.AddParallel("spread", "string", "string", merge, branches...)
	b.AddEdge(b.Start(), par, nil)
	b.AddEdge(par, b.Finish(), nil)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return sub
}

func TestParallelPickFirstBranch(t *testing.T) {
	// Branch 0 is the slowest; picking index 0 must still yield its output
	// and its forked context, regardless of completion order.
	sub := buildParallel(t, SelectBranch(0),
		constantNode("a", "1", 30*time.Millisecond),
		constantNode("b", "2", 10*time.Millisecond),
		constantNode("c", "3", 0),
	)

	p, _ := newRecordingPipeline()
	rc := NewRunContext(p)
	output, err := NewEngine().Run(context.Background(), sub, rc, "go")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "1" {
		t.Errorf("output = %v, want %q", output, "1")
	}
	if winner, _ := rc.Get("winner"); winner != "a" {
		t.Errorf("parent adopted context of %v, want branch a", winner)
	}
}

func TestParallelEveryIndexWins(t *testing.T) {
	for index, want := range []string{"1", "2", "3"} {
		sub := buildParallel(t, SelectBranch(index),
			constantNode("a", "1", 0),
			constantNode("b", "2", 5*time.Millisecond),
			constantNode("c", "3", 10*time.Millisecond),
		)
		rc := NewRunContext(nil)
		output, err := NewEngine().Run(context.Background(), sub, rc, "go")
		if err != nil {
			t.Fatalf("index %d: Run failed: %v", index, err)
		}
		if output != want {
			t.Errorf("index %d: output = %v, want %q", index, output, want)
		}
	}
}

func TestParallelBranchEventsPrecedeComposite(t *testing.T) {
	sub := buildParallel(t, SelectBranch(0),
		constantNode("a", "1", 0),
		constantNode("b", "2", 0),
	)

	p, recorder := newRecordingPipeline()
	if _, err := NewEngine().Run(context.Background(), sub, NewRunContext(p), "go"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	compositeDone := -1
	lastBranchEvent := -1
	for i, step := range recorder.trace() {
		switch step {
		case "Completed:spread":
			compositeDone = i
		case "Completed:a", "Completed:b", "Failed:a", "Failed:b":
			if i > lastBranchEvent {
				lastBranchEvent = i
			}
		}
	}
	if compositeDone == -1 {
		t.Fatalf("composite completion missing: %v", recorder.trace())
	}
	if lastBranchEvent > compositeDone {
		t.Errorf("branch event at %d after composite completion at %d: %v",
			lastBranchEvent, compositeDone, recorder.trace())
	}
}

func TestParallelBranchFailureAborts(t *testing.T) {
	failing := NewNode("fail", "string", "string",
		func(context.Context, *RunContext, any) (any, error) {
			return nil, errors.New("branch broke")
		})
	sub := buildParallel(t, SelectBranch(0),
		failing,
		constantNode("slow", "2", 50*time.Millisecond),
	)

	_, err := NewEngine().Run(context.Background(), sub, NewRunContext(nil), "go")
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected *NodeError, got %v", err)
	}
}

func TestParallelRejectsCheckpointInBranch(t *testing.T) {
	checkpointing := NewNode("saver", "string", "string",
		func(ctx context.Context, rc *RunContext, input any) (any, error) {
			if err := rc.Checkpoint(ctx, "mid", input); err != nil {
				return nil, err
			}
			return input, nil
		})
	sub := buildParallel(t, SelectBranch(0),
		checkpointing,
		constantNode("b", "2", 0),
	)

	backend := store.NewMemoryStore()
	defer backend.Close()
	rc := NewRunContext(nil, WithCheckpointer(NewCheckpointer(backend)))

	_, err := NewEngine().Run(context.Background(), sub, rc, "go")
	if !errors.Is(err, ErrCheckpointInParallel) {
		t.Fatalf("expected ErrCheckpointInParallel, got %v", err)
	}
}

func TestParallelRejectsForeignContext(t *testing.T) {
	foreign := NewRunContext(nil)
	badMerge := func(results []BranchResult) (BranchResult, error) {
		winner := results[0]
		winner.Context = foreign
		return winner, nil
	}
	sub := buildParallel(t, badMerge,
		constantNode("a", "1", 0),
		constantNode("b", "2", 0),
	)

	_, err := NewEngine().Run(context.Background(), sub, NewRunContext(nil), "go")
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected *MergeError, got %v", err)
	}
}

func TestParallelMergeErrorPropagates(t *testing.T) {
	boom := errors.New("cannot decide")
	sub := buildParallel(t,
		func([]BranchResult) (BranchResult, error) { return BranchResult{}, boom },
		constantNode("a", "1", 0),
		constantNode("b", "2", 0),
	)

	_, err := NewEngine().Run(context.Background(), sub, NewRunContext(nil), "go")
	if !errors.Is(err, boom) {
		t.Fatalf("expected merge error, got %v", err)
	}
}

func TestParallelParentUntouchedUntilMerge(t *testing.T) {
	// Branches mutate only their forks; the parent sees the winner's value
	// exactly once, after the merge.
	sub := buildParallel(t, SelectBranch(1),
		constantNode("a", "1", 0),
		constantNode("b", "2", 0),
		constantNode("c", "3", 0),
	)

	rc := NewRunContext(nil)
	rc.Set("winner", "parent")
	output, err := NewEngine().Run(context.Background(), sub, rc, "go")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if output != "2" {
		t.Errorf("output = %v, want %q", output, "2")
	}
	if winner, _ := rc.Get("winner"); winner != "b" {
		t.Errorf("parent storage = %v, want branch b's", winner)
	}
}

func TestParallelConcurrencyLimit(t *testing.T) {
	par := NewParallelNode("limited", "string", "string", SelectBranch(0),
		constantNode("a", "1", 10*time.Millisecond),
		constantNode("b", "2", 10*time.Millisecond),
		constantNode("c", "3", 10*time.Millisecond),
	).WithMaxConcurrency(1)

	b := NewBuilder("serial")
	b.Add(par)
	b.AddEdge(b.Start(), par, nil)
	b.AddEdge(par, b.Finish(), nil)
	sub, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	started := time.Now()
	if _, err := NewEngine().Run(context.Background(), sub, NewRunContext(nil), "go"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 30*time.Millisecond {
		t.Errorf("branches overlapped under limit 1: finished in %v", elapsed)
	}
}
