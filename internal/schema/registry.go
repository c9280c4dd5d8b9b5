// Package schema owns the Schema Registry: the map of schema name to
// Schema built up as user scripts are loaded, with first-writer-wins
// collision handling.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/pool"
)

// ScriptError is a non-fatal load error (duplicate schema name, or a
// per-script eval failure) collected during a load pass without aborting
// the rest of the pass.
type ScriptError struct {
	ScriptName string
	Message    string
}

func (e ScriptError) Error() string {
	return fmt.Sprintf("script %q: %s", e.ScriptName, e.Message)
}

// Registry holds every Schema currently loaded, keyed by name. Schema
// names are unique within one registry; the first script to declare a
// name wins.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*model.Schema
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{schemas: make(map[string]*model.Schema)}
}

// Register adds s to the registry unless a schema with the same name is
// already present, in which case it returns a ScriptError and leaves the
// existing registration untouched.
func (r *Registry) Register(scriptName string, s *model.Schema) *ScriptError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name]; exists {
		return &ScriptError{
			ScriptName: scriptName,
			Message:    fmt.Sprintf("schema %q already registered; first declaration wins", s.Name),
		}
	}
	r.schemas[s.Name] = s
	return nil
}

// Get returns the named schema, or nil if unknown.
func (r *Registry) Get(name string) *model.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// All returns every registered schema, sorted by name for deterministic
// output in the introspection surface.
func (r *Registry) All() []*model.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered schema name, sorted. get_node_types is
// called on every shell refresh, so the scratch buffer is pooled; the
// returned slice itself is a fresh, exactly-sized copy.
func (r *Registry) Names() []string {
	all := r.All()
	buf := pool.GetStringSlice()
	for _, s := range all {
		buf = append(buf, s.Name)
	}
	names := make([]string, len(buf))
	copy(names, buf)
	pool.PutStringSlice(buf)
	return names
}

// Clear empties the registry, used before a full reload.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*model.Schema)
}
