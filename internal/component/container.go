package component

import (
	"fmt"
	"io"
	"log"
	"sync"
)

type instanceKey struct {
	category Category
	name     string
}

// Container resolves categories to component instances. Each
// (category, implementation) pair is constructed at most once and cached
// until ClearCache is called.
type Container struct {
	registry *Registry

	mu        sync.Mutex
	selected  map[Category]string
	instances map[instanceKey]Component
	building  map[instanceKey]*sync.Mutex
}

// NewContainer creates a container backed by the given registry.
func NewContainer(r *Registry) *Container {
	return &Container{
		registry:  r,
		selected:  make(map[Category]string),
		instances: make(map[instanceKey]Component),
		building:  make(map[instanceKey]*sync.Mutex),
	}
}

// Registry returns the registry the container resolves against.
func (c *Container) Registry() *Registry {
	return c.registry
}

// Get returns the instance backing the active implementation of category,
// constructing and initializing it on first use. If initialization fails
// the instance is discarded and the next call tries again.
func (c *Container) Get(category Category) (Component, error) {
	name, err := c.Active(category)
	if err != nil {
		return nil, err
	}
	return c.instance(category, name)
}

// Select makes name the active implementation for category. The previous
// selection is kept when name is not registered.
func (c *Container) Select(category Category, name string) error {
	if _, err := c.registry.Lookup(category, name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected[category] = name
	return nil
}

// Active returns the name of the implementation currently backing category.
func (c *Container) Active(category Category) (string, error) {
	c.mu.Lock()
	name, ok := c.selected[category]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	d, err := c.registry.ResolveDefault(category)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// Cached reports whether an instance of the named implementation exists.
func (c *Container) Cached(category Category, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.instances[instanceKey{category, name}]
	return ok
}

// ClearCache drops every cached instance, closing those that hold
// resources. Selections are kept.
func (c *Container) ClearCache() {
	c.mu.Lock()
	instances := c.instances
	c.instances = make(map[instanceKey]Component)
	c.mu.Unlock()

	for key, inst := range instances {
		closer, ok := inst.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			log.Printf("Error closing %s %q: %v", key.category, key.name, err)
		}
	}
}

// Close releases all cached instances.
func (c *Container) Close() error {
	c.ClearCache()
	return nil
}

func (c *Container) instance(category Category, name string) (Component, error) {
	key := instanceKey{category, name}

	c.mu.Lock()
	if inst, ok := c.instances[key]; ok {
		c.mu.Unlock()
		return inst, nil
	}
	lock, ok := c.building[key]
	if !ok {
		lock = &sync.Mutex{}
		c.building[key] = lock
	}
	c.mu.Unlock()

	// Only one caller constructs a given implementation; the rest wait here
	// and pick up the cached result.
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	if inst, ok := c.instances[key]; ok {
		c.mu.Unlock()
		return inst, nil
	}
	c.mu.Unlock()

	d, err := c.registry.Lookup(category, name)
	if err != nil {
		return nil, err
	}

	inst := d.Factory()
	if inst == nil {
		return nil, fmt.Errorf("%w: %s %q: factory returned nil", ErrInitialization, category, name)
	}
	if err := inst.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrInitialization, category, name, err)
	}

	c.mu.Lock()
	c.instances[key] = inst
	c.mu.Unlock()

	log.Printf("Initialized %s %q", category, name)
	return inst, nil
}
