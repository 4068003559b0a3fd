package tool

import (
	"sort"
	"sync"

	"github.com/fitforge/coachkit/model"
)

// Registry binds declarative tool descriptors to executable functions and
// exposes them to the chat API in its required schema format. The registry
// holds no mutable state beyond the static tool list, alias map and the set
// of declared parallel-safe groups; registration normally happens once at
// agent construction.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string            // registration order for stable Definitions output
	aliases  map[string]string   // tool name -> semantic result key
	parallel map[string][]string // member tool name -> full group
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		aliases:  make(map[string]string),
		parallel: make(map[string][]string),
	}
}

// Register adds a tool under its name, replacing any previous registration.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// RegisterAll adds multiple tools at once.
func (r *Registry) RegisterAll(tools ...Tool) {
	for _, t := range tools {
		r.Register(t)
	}
}

// Lookup retrieves a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions exports the registered tools as model tool declarations in
// registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Alias maps a tool name to a semantic result key. Outputs of that tool are
// stored in the ResultStore under the alias instead of the raw tool name, so
// later tools and the final assembler can read by stable semantic name even
// if tool ids change.
func (r *Registry) Alias(toolName, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[toolName] = key
}

// ResultKey resolves the semantic storage key for a tool name (the alias if
// one was declared, otherwise the tool name itself).
func (r *Registry) ResultKey(toolName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key, ok := r.aliases[toolName]; ok {
		return key
	}
	return toolName
}

// MarkParallelSafe declares that the named tools have no data dependency on
// each other within one model turn and may be dispatched concurrently when
// requested together. Safety is scoped to exactly this group; arbitrary tool
// combinations are never assumed concurrency safe.
func (r *Registry) MarkParallelSafe(names ...string) {
	if len(names) < 2 {
		return
	}
	group := make([]string, len(names))
	copy(group, names)
	sort.Strings(group)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.parallel[n] = group
	}
}

// ParallelSafe reports whether every requested tool name belongs to one
// declared parallel-safe group.
func (r *Registry) ParallelSafe(names []string) bool {
	if len(names) < 2 {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.parallel[names[0]]
	if !ok {
		return false
	}

	for _, n := range names[1:] {
		if !contains(group, n) {
			return false
		}
		other, ok := r.parallel[n]
		if !ok || len(other) != len(group) {
			return false
		}
	}

	return true
}

func contains(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}
