package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LogHandler writes every event it observes to a writer.
//
// Two output modes:
//   - Text mode (default): one human-readable line per event,
//     "[NodeExecutionCompleted] {...fields...}"
//   - JSON mode: the tagged wire record, one per line (JSONL), suitable for
//     replaying through Unmarshal.
//
// Install it on a pipeline with Attach. The handler is synchronous like all
// pipeline handlers; point it at a fast writer.
type LogHandler struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogHandler creates a LogHandler. A nil writer defaults to os.Stdout.
func NewLogHandler(writer io.Writer, jsonMode bool) *LogHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogHandler{writer: writer, jsonMode: jsonMode}
}

// Owner is the key LogHandler registers under.
const logOwner OwnerKey = "pipeline.log"

// Attach installs the handler for every event kind.
func (l *LogHandler) Attach(p *Pipeline) {
	p.InstallBroadcast(logOwner, l.Handle)
}

// Handle writes one event. Marshal failures are reported on the stream
// itself rather than failing the run.
func (l *LogHandler) Handle(_ context.Context, event Event) error {
	data, err := Marshal(event)
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return nil
	}
	if l.jsonMode {
		fmt.Fprintf(l.writer, "%s\n", data)
		return nil
	}
	fmt.Fprintf(l.writer, "[%s] %s\n", event.Kind(), data)
	return nil
}
