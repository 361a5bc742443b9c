package sink

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a sink from bound arguments.
type Constructor func(env Env, name string, args Args) (Sink, error)

// Factory describes how to build one sink kind.
type Factory struct {
	Kind        Kind
	Aliases     []string
	Description string
	Params      []Param
	// Processors are attached when a handler names none.
	Processors []string
	// Batch sinks buffer records and deliver them on Close.
	Batch bool
	New   Constructor
}

// Registry maps kind names and aliases to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]Factory
	aliases   map[string]Kind
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
		aliases:   make(map[string]Kind),
	}
}

// Register adds a factory. Registering a kind twice replaces it.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[f.Kind] = f
	r.aliases[normalizeKind(string(f.Kind))] = f.Kind
	for _, alias := range f.Aliases {
		r.aliases[normalizeKind(alias)] = f.Kind
	}
}

// Lookup resolves a kind name, alias or namespaced class name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.aliases[normalizeKind(name)]
	if !ok {
		return Factory{}, false
	}
	f, ok := r.factories[kind]
	return f, ok
}

// Factories returns all registered factories sorted by kind.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Factory, 0, len(r.factories))
	for _, f := range r.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Describe renders the parameter list of a factory for CLI listings.
func (f Factory) Describe() (required, optional []string) {
	for _, p := range f.Params {
		if p.Required {
			required = append(required, p.Name)
			continue
		}
		if p.Default == nil || p.Default == "" {
			optional = append(optional, p.Name)
		} else {
			optional = append(optional, fmt.Sprintf("%s=%v", p.Name, p.Default))
		}
	}
	return required, optional
}

func normalizeKind(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `\/.`); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// Builtin returns a registry with every sink kind this module ships.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(consoleFactory)
	r.Register(relayFactory)
	r.Register(searchFactory)
	r.Register(mailFactory)
	r.Register(heartbeatFactory)
	return r
}
