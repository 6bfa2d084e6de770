// Package component provides the capability registry and the container that
// resolves a capability category to a lazily constructed implementation.
package component

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrDuplicateName is returned when an implementation name is registered twice in a category.
	ErrDuplicateName = errors.New("duplicate implementation name")
	// ErrNoDefault is returned when a category has no default implementation, or more than one.
	ErrNoDefault = errors.New("no unique default implementation")
	// ErrUnknownImplementation is returned for implementation names that were never registered.
	ErrUnknownImplementation = errors.New("unknown implementation")
	// ErrInitialization is returned when a component fails to construct or initialize.
	ErrInitialization = errors.New("component initialization failed")
)

// Category is a capability role that may have several interchangeable implementations.
type Category int

const (
	CategoryDetector Category = iota
	CategoryAnalyzer
	CategoryConfig
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryDetector, CategoryAnalyzer, CategoryConfig}

func (c Category) String() string {
	switch c {
	case CategoryDetector:
		return "detector"
	case CategoryAnalyzer:
		return "analyzer"
	case CategoryConfig:
		return "config"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory converts a category name back to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Component is the contract shared by every registered implementation.
type Component interface {
	// Name returns the implementation name used for selection.
	Name() string
	// Description returns a short human-readable summary.
	Description() string
	// Initialize prepares the component for use. It is called once by the
	// container right after construction.
	Initialize() error
}

// Descriptor describes one registered implementation.
type Descriptor struct {
	Category    Category
	Name        string
	Description string
	IsDefault   bool
	Factory     func() Component
}

// Registry is the catalogue of implementations available per category.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[Category][]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[Category][]Descriptor),
	}
}

// Register adds an implementation. Registering a name twice in the same
// category returns ErrDuplicateName; declaring a second default in a
// category returns ErrNoDefault.
func (r *Registry) Register(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%s implementation must have a name", d.Category)
	}
	if d.Factory == nil {
		return fmt.Errorf("%s implementation %q must have a factory", d.Category, name)
	}
	d.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.descriptors[d.Category] {
		if existing.Name == name {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, d.Category, name)
		}
		if d.IsDefault && existing.IsDefault {
			return fmt.Errorf("%w: %s %q and %q both claim default", ErrNoDefault, d.Category, existing.Name, name)
		}
	}

	r.descriptors[d.Category] = append(r.descriptors[d.Category], d)
	return nil
}

// List returns the implementations of a category, default first and then
// in registration order.
func (r *Registry) List(category Category) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registered := r.descriptors[category]
	result := make([]Descriptor, 0, len(registered))
	for _, d := range registered {
		if d.IsDefault {
			result = append(result, d)
		}
	}
	for _, d := range registered {
		if !d.IsDefault {
			result = append(result, d)
		}
	}
	return result
}

// ResolveDefault returns the single default implementation of a category.
func (r *Registry) ResolveDefault(category Category) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []Descriptor
	for _, d := range r.descriptors[category] {
		if d.IsDefault {
			found = append(found, d)
		}
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Descriptor{}, fmt.Errorf("%w: %s has no default", ErrNoDefault, category)
	default:
		return Descriptor{}, fmt.Errorf("%w: %s has %d defaults", ErrNoDefault, category, len(found))
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(category Category, name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.descriptors[category] {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %s %q", ErrUnknownImplementation, category, name)
}

// Validate checks that each of the given categories resolves to exactly one
// default implementation. It is meant to run at startup so that a missing
// or ambiguous default is reported before anything is resolved.
func (r *Registry) Validate(categories ...Category) error {
	var errs []error
	for _, c := range categories {
		if _, err := r.ResolveDefault(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
