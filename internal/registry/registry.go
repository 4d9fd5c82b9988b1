// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package registry maps operation names to descriptors. Built-ins are
// registered first, then declarative definitions; the registry is frozen
// before the first call is served.
package registry

import (
	"regexp"
	"sync"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Registry is a thread-safe, insertion-ordered set of descriptors.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	order  []string
	frozen bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds d. Names must be unique; a second registration of the same
// name is rejected and names both sources.
func (r *Registry) Register(d Descriptor) error {
	if err := validate(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return quarryerr.New(quarryerr.CodeRegistryFrozen, "registry is frozen",
			quarryerr.FieldOperation(d.Name))
	}
	if prev, ok := r.byName[d.Name]; ok {
		return quarryerr.New(quarryerr.CodeRegistryOperationConflict,
			"operation "+d.Name+" from "+sourceOf(d)+" is already defined by "+sourceOf(*prev),
			quarryerr.FieldOperation(d.Name),
		)
	}

	stored := d
	r.byName[d.Name] = &stored
	r.order = append(r.order, d.Name)
	return nil
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, quarryerr.New(quarryerr.CodeRegistryOperationNotFound,
			"unknown operation: "+name, quarryerr.FieldOperation(name))
	}
	return *d, nil
}

// List returns descriptors in registration order, optionally filtered by type.
// An empty filter returns everything.
func (r *Registry) List(types ...Type) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		if len(types) > 0 && !containsType(types, d.Type) {
			continue
		}
		out = append(out, *d)
	}
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Freeze rejects all further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func validate(d Descriptor) error {
	invalid := func(msg string) error {
		return quarryerr.New(quarryerr.CodeRegistryDefinitionInvalid, msg, quarryerr.FieldOperation(d.Name))
	}
	if !namePattern.MatchString(d.Name) {
		return invalid("invalid operation name " + `"` + d.Name + `"`)
	}
	if d.Handler == nil {
		return invalid("operation " + d.Name + " has no handler")
	}
	switch d.Kind {
	case KindAction, KindQuery, KindVectorQuery:
	default:
		return invalid("operation " + d.Name + " has unknown kind " + `"` + string(d.Kind) + `"`)
	}
	switch d.Type {
	case TypeTool, TypePrompt:
	default:
		return invalid("operation " + d.Name + " has unknown type " + `"` + string(d.Type) + `"`)
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if p.Name == "" || seen[p.Name] {
			return invalid("operation " + d.Name + " has an empty or duplicate parameter name")
		}
		seen[p.Name] = true
	}
	return nil
}

func sourceOf(d Descriptor) string {
	if d.Source == "" {
		return SourceBuiltin
	}
	return d.Source
}

func containsType(types []Type, t Type) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
