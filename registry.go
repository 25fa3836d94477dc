package grove

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	// ErrUnknownType is returned when a descriptor names an unregistered type.
	ErrUnknownType = errors.New("grove: unknown element type")
	// ErrDuplicateType is returned by Register under DuplicateReject.
	ErrDuplicateType = errors.New("grove: element type already registered")
)

// Factory constructs the value of a new element. Services the value needs are
// pulled from ctx by name.
type Factory func(ctx *Context) (any, error)

// ElementType is the constructor record for a named element type. Its pointer
// identity keys the injectable list in a Registry.
type ElementType struct {
	Name     string
	New      Factory
	DataKeys []DataKey
}

// DuplicatePolicy decides what Register does when a name is already taken.
type DuplicatePolicy uint8

const (
	DuplicateWarn     DuplicatePolicy = iota // log a warning, then override
	DuplicateOverride                        // override silently
	DuplicateReject                          // return ErrDuplicateType
)

// Registry maps type names to constructor records, and constructor records
// to the ordered list of property names resolved by injection.
type Registry struct {
	policy      DuplicatePolicy
	logger      *slog.Logger
	types       map[string]*ElementType
	injectables map[*ElementType][]string
}

// NewRegistry creates an empty registry.
func NewRegistry(policy DuplicatePolicy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = Logger()
	}
	return &Registry{
		policy:      policy,
		logger:      logger,
		types:       make(map[string]*ElementType),
		injectables: make(map[*ElementType][]string),
	}
}

// Register records t under name. The last registration of a name wins unless
// the policy is DuplicateReject.
func (r *Registry) Register(name string, t *ElementType) error {
	if t == nil || t.New == nil {
		return fmt.Errorf("grove: register %q: nil factory", name)
	}
	if t.Name == "" {
		t.Name = name
	}
	if prev, ok := r.types[name]; ok && prev != t {
		switch r.policy {
		case DuplicateReject:
			return fmt.Errorf("%w: %q", ErrDuplicateType, name)
		case DuplicateWarn:
			r.logger.Warn("element type overridden", "type", name)
		}
	}
	r.types[name] = t
	return nil
}

// Define creates, registers and returns a new type with its injectables.
func (r *Registry) Define(name string, factory Factory, dataKeys []DataKey, injectables ...string) (*ElementType, error) {
	t := &ElementType{Name: name, New: factory, DataKeys: dataKeys}
	if err := r.Register(name, t); err != nil {
		return nil, err
	}
	for _, p := range injectables {
		r.RecordInjectable(t, p)
	}
	return t, nil
}

// Extend registers a derived type. The base type's injectables are
// propagated first, then extra is appended.
func (r *Registry) Extend(base *ElementType, name string, factory Factory, dataKeys []DataKey, extra ...string) (*ElementType, error) {
	t := &ElementType{Name: name, New: factory, DataKeys: dataKeys}
	if dataKeys == nil {
		t.DataKeys = base.DataKeys
	}
	r.Propagate(base, t)
	for _, p := range extra {
		r.RecordInjectable(t, p)
	}
	if err := r.Register(name, t); err != nil {
		delete(r.injectables, t)
		return nil, err
	}
	return t, nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*ElementType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Unregister removes name. Injectables recorded for the type are kept since
// the record may still be registered under another name.
func (r *Registry) Unregister(name string) {
	delete(r.types, name)
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RecordInjectable appends prop to t's injectable list. Repeats are ignored.
func (r *Registry) RecordInjectable(t *ElementType, prop string) {
	list := r.injectables[t]
	if slices.Contains(list, prop) {
		return
	}
	r.injectables[t] = append(list, prop)
}

// Injectables returns t's injectable property names in recording order.
func (r *Registry) Injectables(t *ElementType) ([]string, bool) {
	list, ok := r.injectables[t]
	return list, ok
}

// Propagate copies old's injectable list onto next so wrapping a type does
// not lose what the base recorded.
func (r *Registry) Propagate(old, next *ElementType) {
	list, ok := r.injectables[old]
	if !ok {
		return
	}
	for _, p := range list {
		r.RecordInjectable(next, p)
	}
}
