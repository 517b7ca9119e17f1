package plugin

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrEmptyName is returned when a descriptor has no name.
	ErrEmptyName = errors.New("plugin name cannot be empty")

	// ErrInvalidPatch is returned when a descriptor carries a malformed patch.
	ErrInvalidPatch = errors.New("invalid patch")
)

// Validate checks that the patch names a known bridge method and carries at
// least one handler.
func (p PatchSpec) Validate() error {
	if !p.Bridge.Valid() {
		return fmt.Errorf("%w: unknown bridge %d", ErrInvalidPatch, int(p.Bridge))
	}
	if !p.Bridge.HasMethod(p.Method) {
		return fmt.Errorf("%w: %s has no method %q", ErrInvalidPatch, p.Bridge, p.Method)
	}
	if !p.HasHandler() {
		return fmt.Errorf("%w: no handler set for %s.%s", ErrInvalidPatch, p.Bridge, p.Method)
	}
	return nil
}

// Validate checks the parts of a descriptor that can be checked statically.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	for i, p := range d.Patches {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("plugin %s: patch %d: %w", d.Name, i, err)
		}
	}
	return nil
}

// Catalog holds the descriptors compiled into the binary.
// Built-in plugins add themselves from init() functions; the lifecycle
// manager later registers everything in the catalog, in catalog order.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		descriptors: make(map[string]Descriptor),
		order:       make([]string, 0),
	}
}

// Register adds a descriptor to the catalog.
// A second descriptor with an existing name is ignored with a warning.
func (c *Catalog) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.descriptors[d.Name]; exists {
		zap.L().Warn("Plugin already in catalog, ignoring duplicate",
			zap.String("plugin", d.Name))
		return nil
	}

	c.descriptors[d.Name] = d.Clone()
	c.order = append(c.order, d.Name)

	zap.L().Debug("Plugin added to catalog",
		zap.String("plugin", d.Name),
		zap.String("version", d.Version))

	return nil
}

// Get returns the descriptor for a given name, or nil if not found.
func (c *Catalog) Get(name string) *Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.descriptors[name]
	if !ok {
		return nil
	}
	d = d.Clone()
	return &d
}

// List returns all descriptors in registration order.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.descriptors[name].Clone())
	}
	return result
}

// Names returns the names of all descriptors in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// Clear removes all descriptors. Useful for testing.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.descriptors = make(map[string]Descriptor)
	c.order = make([]string, 0)
}

// Global catalog instance
var globalCatalog = NewCatalog()

// Register adds a descriptor to the global catalog.
// This is typically called from init() functions in plugin packages.
func Register(d Descriptor) error {
	return globalCatalog.Register(d)
}

// MustRegister is Register for init() functions: it panics on an invalid descriptor.
func MustRegister(d Descriptor) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Get returns a descriptor from the global catalog.
func Get(name string) *Descriptor {
	return globalCatalog.Get(name)
}

// List returns all descriptors from the global catalog.
func List() []Descriptor {
	return globalCatalog.List()
}

// Names returns all plugin names from the global catalog.
func Names() []string {
	return globalCatalog.Names()
}

// ClearGlobal clears the global catalog. Useful for testing.
func ClearGlobal() {
	globalCatalog.Clear()
}
