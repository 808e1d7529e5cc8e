package tool

import (
	"fmt"
	"sort"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// Registry maps capability names to handlers. It is built once per stage and
// is read-only afterwards, so it is safe for concurrent use without locking.
type Registry struct {
	tools map[string]Tool
	names []string
}

// NewRegistry builds a registry from tools. Names must be non-empty and unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("nil tool")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools[name] = t
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustRegistry is NewRegistry for static tool sets; it panics on error.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the handler registered under name. Unknown names yield a
// *core.CapabilityNotFoundError; the caller decides whether that is fatal.
func (r *Registry) Resolve(name string) (Tool, error) {
	if r != nil {
		if t, ok := r.tools[name]; ok {
			return t, nil
		}
	}
	return nil, &core.CapabilityNotFoundError{Name: name}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Definitions describes every registered tool, sorted by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	if r == nil || len(r.names) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, Definition(r.tools[name]))
	}
	return defs
}
