// Package registry holds unit libraries implemented in Go.
//
// A bundle names its binary with lv2:binary. When that binary is not a
// WebAssembly module, the World looks it up here, first by full path and
// then by file name, so a Go package can stand in for "amp.so" by
// registering under that name:
//
//	func init() {
//		registry.MustRegister("amp.so", registry.Descriptors(ampDescriptor{}))
//	}
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/reglet-dev/lv2host/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry implements ports.LibraryRegistry.
type Registry struct {
	config    registryConfig
	libraries sync.Map // map[string]ports.UnitLibrary
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by Worlds that are not
// given one.
func Default() *Registry {
	return defaultRegistry
}

// MustRegister registers lib in the default registry and panics on failure.
func MustRegister(name string, lib ports.UnitLibrary) {
	if err := defaultRegistry.Register(name, lib); err != nil {
		panic(err)
	}
}

// Register adds a library under name.
func (r *Registry) Register(name string, lib ports.UnitLibrary) error {
	if name == "" {
		return fmt.Errorf("library name must not be empty")
	}
	if lib == nil {
		return fmt.Errorf("library %q is nil", name)
	}
	if r.config.strictMode {
		if _, loaded := r.libraries.LoadOrStore(name, lib); loaded {
			return fmt.Errorf("library %q already registered", name)
		}
		return nil
	}
	r.libraries.Store(name, lib)
	return nil
}

// Lookup retrieves the library registered under name.
func (r *Registry) Lookup(name string) (ports.UnitLibrary, bool) {
	v, ok := r.libraries.Load(name)
	if !ok {
		return nil, false
	}
	return v.(ports.UnitLibrary), true
}

// Unregister removes name. It reports whether a library was registered.
func (r *Registry) Unregister(name string) bool {
	_, ok := r.libraries.LoadAndDelete(name)
	return ok
}

// List returns all registered library names, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.libraries.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.Sort(keys)
	return keys
}

// DescriptorTable is a UnitLibrary serving a fixed list of descriptors.
// Close does nothing: registered libraries live for the whole process.
type DescriptorTable []ports.UnitDescriptor

// Descriptors returns a library serving descs in order.
func Descriptors(descs ...ports.UnitDescriptor) DescriptorTable {
	return DescriptorTable(descs)
}

// Descriptor implements ports.UnitLibrary.
func (t DescriptorTable) Descriptor(index uint32) (ports.UnitDescriptor, bool) {
	if uint64(index) >= uint64(len(t)) {
		return nil, false
	}
	return t[index], true
}

// Close implements ports.UnitLibrary.
func (t DescriptorTable) Close() error { return nil }
