package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/weavegraph/weave/graph/model"
)

// Registry holds the tools available to a workflow, keyed by name.
//
// Registration rejects duplicate names: two tools answering to the same name
// would make model-requested calls ambiguous. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error when the name is empty or already
// taken.
func (r *Registry) Register(t Tool) error {
	name := t.Describe().Name
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// MustRegister is Register that panics on error, for static tool sets built
// at startup.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the named tool, or a NotFoundError.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, &NotFoundError{Tool: name}
	}
	return t, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns model.ToolSpec values for the tools admitted by the
// selection, in sorted name order, ready to hand to a ChatModel.
func (r *Registry) Specs(sel Selection) []model.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var specs []model.ToolSpec
	for _, name := range names {
		if sel != nil && !sel(name) {
			continue
		}
		desc := r.tools[name].Describe()
		specs = append(specs, model.ToolSpec{
			Name:        desc.Name,
			Description: desc.Description,
			Schema:      desc.Schema,
		})
	}
	return specs
}

// Selection restricts which registered tools a node exposes to the model.
// A nil Selection admits everything.
type Selection func(name string) bool

// SelectAll admits every registered tool.
func SelectAll() Selection {
	return func(string) bool { return true }
}

// SelectNone admits no tools.
func SelectNone() Selection {
	return func(string) bool { return false }
}

// SelectNamed admits only the listed tool names.
func SelectNamed(names ...string) Selection {
	admitted := make(map[string]struct{}, len(names))
	for _, name := range names {
		admitted[name] = struct{}{}
	}
	return func(name string) bool {
		_, ok := admitted[name]
		return ok
	}
}
