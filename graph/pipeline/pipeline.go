// Package pipeline implements the lifecycle event fabric for workflow
// execution.
//
// Every engine step notifies the pipeline before, after, and on failure of
// the work it performs. The pipeline forwards each event, in order, to the
// handlers installed for that event's kind. Handlers are the integration
// point for every observability feature: logging, metrics, tracing, and the
// remote event stream all plug in the same way.
package pipeline

import (
	"context"
	"sync"
)

// OwnerKey identifies the feature that installed a handler. Handlers are
// uninstalled by owner, so a feature can remove everything it registered
// without knowing which kinds it touched.
type OwnerKey string

// Handler processes a single lifecycle event.
//
// Handlers run synchronously on the goroutine that produced the event. The
// engine does not proceed past a lifecycle boundary until every handler for
// that boundary has returned. A handler error propagates as a run failure:
// observability bugs are surfaced, never swallowed.
type Handler func(ctx context.Context, event Event) error

// Filter decides whether an event is dispatched at all. A rejected event
// runs zero handlers. The zero-value pipeline allows everything.
type Filter func(event Event) bool

type registration struct {
	owner   OwnerKey
	handler Handler
}

// Pipeline is a typed registry of handler lists, one ordered list per event
// kind, with a process-wide filter predicate applied before dispatch.
//
// Install order is significant: handlers for the same kind fire in the order
// they were installed. Dispatch is O(1) per kind (map lookup plus a slice
// walk over that kind's handlers only).
//
// Pipeline is safe for concurrent use. Notify may be called from parallel
// branches while handlers are being installed from another goroutine,
// although installing mid-run is unusual.
type Pipeline struct {
	mu       sync.RWMutex
	handlers map[Kind][]registration
	filter   Filter
}

// New creates an empty pipeline with the allow-all filter.
func New() *Pipeline {
	return &Pipeline{
		handlers: make(map[Kind][]registration),
	}
}

// Install appends a handler for one event kind on behalf of owner.
func (p *Pipeline) Install(owner OwnerKey, kind Kind, h Handler) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = append(p.handlers[kind], registration{owner: owner, handler: h})
}

// InstallBroadcast installs the same handler for every known event kind.
// This is how whole-stream observers (the event log, the remote writer)
// attach themselves.
func (p *Pipeline) InstallBroadcast(owner OwnerKey, h Handler) {
	for _, kind := range Kinds() {
		p.Install(owner, kind, h)
	}
}

// Uninstall removes every handler the owner installed, for all kinds.
// Relative order of the remaining handlers is preserved.
func (p *Pipeline) Uninstall(owner OwnerKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for kind, regs := range p.handlers {
		kept := regs[:0]
		for _, reg := range regs {
			if reg.owner != owner {
				kept = append(kept, reg)
			}
		}
		if len(kept) == 0 {
			delete(p.handlers, kind)
			continue
		}
		p.handlers[kind] = kept
	}
}

// SetFilter replaces the process-wide filter predicate. A nil filter
// restores the allow-all default.
func (p *Pipeline) SetFilter(f Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
}

// Notify dispatches an event to every handler installed for its kind, in
// installation order. The filter runs first; rejected events invoke no
// handlers and return nil.
//
// The first handler error aborts dispatch and is returned to the caller.
// Callers in the engine treat that error as a run failure.
func (p *Pipeline) Notify(ctx context.Context, event Event) error {
	p.mu.RLock()
	filter := p.filter
	regs := p.handlers[event.Kind()]
	// Copy so a handler that mutates the registry cannot shift the slice
	// under us mid-dispatch.
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	p.mu.RUnlock()

	if filter != nil && !filter(event) {
		return nil
	}
	for _, reg := range snapshot {
		if err := reg.handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// HandlerCount reports how many handlers are installed for a kind.
func (p *Pipeline) HandlerCount(kind Kind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers[kind])
}
