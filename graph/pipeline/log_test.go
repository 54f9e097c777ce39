package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogHandlerText(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	NewLogHandler(&buf, false).Attach(p)

	if err := p.Notify(context.Background(), NewNodeExecutionStarting("run-1", "echo", `"hi"`)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	line := buf.String()
	if !strings.HasPrefix(line, "[NodeExecutionStarting]") {
		t.Errorf("expected kind prefix, got %q", line)
	}
	if !strings.Contains(line, `"nodeName":"echo"`) {
		t.Errorf("expected node name in output, got %q", line)
	}
}

func TestLogHandlerJSONL(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	NewLogHandler(&buf, true).Attach(p)

	if err := p.Notify(context.Background(), NewAgentStarting("agent-1", "run-1")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if err := p.Notify(context.Background(), NewAgentCompleted("agent-1", "run-1", "ok")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}
	for _, line := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Errorf("line is not valid JSON: %q: %v", line, err)
		}
		if m["type"] == "" {
			t.Errorf("line missing type discriminator: %q", line)
		}
	}
}
