// Package registry catalogues step kinds. A kind is a tagged
// variant: its name, a configuration schema, and a factory that
// builds an executable step from validated configuration. Adding a
// kind is a registration, not a subclass.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
)

// ValueType names the expected shape of one configuration value.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "integer"
	TypeNumber ValueType = "number"
	TypeBool   ValueType = "boolean"
	TypeList   ValueType = "array"
	TypeMap    ValueType = "object"
	TypeAny    ValueType = "any"
)

// Schema declares a kind's configuration contract, published to the
// validator and to the generated JSON Schema artifact.
type Schema struct {
	Description string
	Required    map[string]ValueType
	Optional    map[string]ValueType

	// Open permits configuration keys beyond Required/Optional
	// (custom functions, connectors with free-form locations).
	Open bool

	// RowCapable marks kinds whose steps can be applied row by row,
	// which is what makes on_error: skip_row meaningful. The
	// executor consults this flag; it never special-cases kinds.
	RowCapable bool

	// NestedSteps names configuration keys that hold nested step
	// lists (conditional groups, read-combinator sources). The
	// validator recurses into them; the executor resolves them
	// through the same registry.
	NestedSteps []string
}

// Step is one executable unit of work over the dataset.
type Step interface {
	Apply(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error)
}

// RowStep is the optional row-wise capability behind RowCapable.
type RowStep interface {
	ApplyRow(ctx context.Context, row map[string]interface{}) (map[string]interface{}, error)
}

// RunEnv carries the run-scoped collaborators a factory may wire
// into its step: connector access, credential lookup, template
// variables.
type RunEnv struct {
	Connectors     *connector.Registry
	Credentials    func(name string) connector.Credentials
	Variables      map[string]string
	RowConcurrency int

	// Kinds resolves nested step lists (conditional groups) through
	// the same run-scoped view the executor uses.
	Kinds Resolver
}

// Factory builds a step instance from validated configuration.
type Factory func(cfg map[string]interface{}, env RunEnv) (Step, error)

// Entry pairs a kind's schema with its factory.
type Entry struct {
	Kind    string
	Schema  Schema
	Factory Factory
}

// Resolver is the read-side view shared by the validator and the
// executor; satisfied by Registry and by run-scoped Overlays.
type Resolver interface {
	Resolve(kind string) (Entry, error)
	Kinds() []string
}

// Registry is the process-wide kind catalogue. Built-ins register at
// initialization; the registry is read-only during a run.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register associates a kind with its schema and factory. A second
// registration of the same kind is a startup-time fatal
// configuration error, surfaced as ErrDuplicateKind.
func (r *Registry) Register(kind string, schema Schema, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[kind]; dup {
		return fmt.Errorf("%w: %q", errs.ErrDuplicateKind, kind)
	}
	r.entries[kind] = Entry{Kind: kind, Schema: schema, Factory: factory}
	return nil
}

// MustRegister is Register for startup wiring.
func (r *Registry) MustRegister(kind string, schema Schema, factory Factory) {
	if err := r.Register(kind, schema, factory); err != nil {
		panic(err)
	}
}

// Override replaces an existing registration. Unlike Register it
// never fails on duplicates; overriding is always an explicit act.
func (r *Registry) Override(kind string, schema Schema, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[kind] = Entry{Kind: kind, Schema: schema, Factory: factory}
}

// Resolve returns the entry for a kind.
func (r *Registry) Resolve(kind string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", errs.ErrKindNotRegistered, kind)
	}
	return e, nil
}

// Kinds returns all registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Overlay is a run-scoped registry layered over the process-wide
// one. Custom functions register here so they are visible only to
// the owning run and never leak across runs.
type Overlay struct {
	parent Resolver
	local  map[string]Entry
}

// NewOverlay layers an empty run-scoped registry over parent.
func NewOverlay(parent Resolver) *Overlay {
	return &Overlay{parent: parent, local: make(map[string]Entry)}
}

// Register adds a run-scoped kind. Local kinds may not shadow
// built-ins; custom functions live in their own namespace.
func (o *Overlay) Register(kind string, schema Schema, factory Factory) error {
	if _, err := o.parent.Resolve(kind); err == nil {
		return fmt.Errorf("%w: %q shadows a built-in", errs.ErrDuplicateKind, kind)
	}
	if _, dup := o.local[kind]; dup {
		return fmt.Errorf("%w: %q", errs.ErrDuplicateKind, kind)
	}
	o.local[kind] = Entry{Kind: kind, Schema: schema, Factory: factory}
	return nil
}

// Resolve checks run-scoped kinds first, then the parent.
func (o *Overlay) Resolve(kind string) (Entry, error) {
	if e, ok := o.local[kind]; ok {
		return e, nil
	}
	return o.parent.Resolve(kind)
}

// Kinds returns parent and run-scoped kind names, sorted.
func (o *Overlay) Kinds() []string {
	kinds := o.parent.Kinds()
	for k := range o.local {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
