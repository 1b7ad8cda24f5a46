package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/skillet-data/skillet/internal/errs"
)

// Registry maps connector names to implementations. Like the step
// registry it is populated once at startup and read-only during a
// run.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Connector
}

// NewRegistry returns an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Connector)}
}

// Register adds a connector. Registering a name twice is a startup
// configuration error.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[c.Name()]; dup {
		return fmt.Errorf("%w: connector %q", errs.ErrDuplicateKind, c.Name())
	}
	r.byName[c.Name()] = c
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is
// a programming error.
func (r *Registry) MustRegister(c Connector) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Resolve returns the named connector.
func (r *Registry) Resolve(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrConnectorNotFound, name)
	}
	return c, nil
}

// Names returns registered connector names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a registry with every built-in connector.
func Defaults() *Registry {
	r := NewRegistry()
	r.MustRegister(NewFileConnector())
	r.MustRegister(NewTestConnector())
	r.MustRegister(NewPostgresConnector())
	r.MustRegister(NewObjectStoreConnector())
	r.MustRegister(NewInferenceConnector())
	return r
}
