package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for identifiers with no registered constructor.
var ErrNotFound = errors.New("component not found")

// Constructor creates a component instance.
type Constructor func() (interface{}, error)

// Container resolves identifiers to components. Each identifier is
// constructed at most once.
type Container struct {
	mu        sync.Mutex
	ctors     map[string]Constructor
	instances map[string]interface{}
}

// New creates an empty container
func New() *Container {
	return &Container{
		ctors:     make(map[string]Constructor),
		instances: make(map[string]interface{}),
	}
}

// Register adds a constructor under name, replacing any previous one.
func (c *Container) Register(name string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctors[name] = ctor
	delete(c.instances, name)
}

// Set registers a ready instance under name.
func (c *Container) Set(name string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ctors, name)
	c.instances[name] = v
}

// Resolve returns the component registered under name.
func (c *Container) Resolve(name string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.instances[name]; ok {
		return v, nil
	}
	ctor, ok := c.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	v, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", name, err)
	}
	c.instances[name] = v
	return v, nil
}

// Names returns all registered identifiers, sorted.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.ctors)+len(c.instances))
	seen := make(map[string]bool)
	for name := range c.ctors {
		names = append(names, name)
		seen[name] = true
	}
	for name := range c.instances {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
