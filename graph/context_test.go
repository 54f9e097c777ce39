package graph

import (
	"testing"

	"github.com/weavegraph/weave/graph/model"
)

func TestRunContextStorage(t *testing.T) {
	rc := NewRunContext(nil)

	if _, ok := rc.Get("missing"); ok {
		t.Error("Get on an empty context reported a value")
	}

	rc.Set("memory.summary", "short")
	if v, ok := rc.Get("memory.summary"); !ok || v != "short" {
		t.Errorf("Get = %v, %v", v, ok)
	}

	rc.Delete("memory.summary")
	if _, ok := rc.Get("memory.summary"); ok {
		t.Error("value survived Delete")
	}
}

func TestForkIsIndependent(t *testing.T) {
	rc := NewRunContext(nil)
	rc.Set("shared", "original")

	fork := rc.Fork()
	if v, _ := fork.Get("shared"); v != "original" {
		t.Errorf("fork did not inherit value, got %v", v)
	}

	fork.Set("shared", "branch")
	if v, _ := rc.Get("shared"); v != "original" {
		t.Errorf("fork write leaked into parent: %v", v)
	}

	rc.Set("late", "parent")
	// Storage was copied at fork time, but the parent chain still resolves
	// keys the fork never had.
	if v, ok := fork.Get("late"); !ok || v != "parent" {
		t.Errorf("fork did not see inherited late value: %v, %v", v, ok)
	}
}

func TestForkSharesIdentity(t *testing.T) {
	rc := NewRunContext(nil, WithAgentID("agent-1"))
	fork := rc.Fork()

	if fork.RunID() != rc.RunID() {
		t.Errorf("fork run id %q differs from parent %q", fork.RunID(), rc.RunID())
	}
	if fork.AgentID() != "agent-1" {
		t.Errorf("fork agent id = %q", fork.AgentID())
	}
	if fork.Checkpointed() {
		t.Error("fresh fork carries a checkpoint marker")
	}
}

func TestHistoryCopies(t *testing.T) {
	rc := NewRunContext(nil)
	rc.AppendHistory(model.Message{Role: model.RoleUser, Content: "hi"})

	history := rc.History()
	history[0].Content = "mutated"

	if rc.History()[0].Content != "hi" {
		t.Error("History returned a shared slice")
	}

	fork := rc.Fork()
	fork.AppendHistory(model.Message{Role: model.RoleAssistant, Content: "branch"})
	if len(rc.History()) != 1 {
		t.Error("fork history write leaked into parent")
	}
}

func TestStateManagerLimit(t *testing.T) {
	sm := NewStateManager(3)
	for i := 0; i < 3; i++ {
		if err := sm.Advance(); err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
	}
	if err := sm.Advance(); err == nil {
		t.Fatal("expected the limit to reject a fourth step")
	}
	if sm.Iterations() != 3 {
		t.Errorf("iterations = %d, want 3", sm.Iterations())
	}
}
