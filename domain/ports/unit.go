package ports

import (
	"context"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
)

// UnitLibrary is an opened unit binary exposing a table of descriptors.
type UnitLibrary interface {
	// Descriptor returns the descriptor at index, or false past the end of
	// the table.
	Descriptor(index uint32) (UnitDescriptor, bool)

	// Close releases the binary. No handle produced by it may be used after.
	Close() error
}

// LibraryLoader opens unit binaries from a file path.
type LibraryLoader interface {
	Load(ctx context.Context, path string) (UnitLibrary, error)
}

// UnitDescriptor is the construction entry point of one unit.
type UnitDescriptor interface {
	URI() string

	// Instantiate constructs the unit. Returning an error is the unit's only
	// way to refuse construction.
	Instantiate(sampleRate float64, bundlePath string, features []entities.Feature) (UnitHandle, error)
}

// UnitHandle is a constructed unit.
//
// ConnectPort and Run are called on the processing path and must not block
// or allocate. Out-of-range port indices are undefined behaviour.
type UnitHandle interface {
	ConnectPort(port uint32, data unsafe.Pointer)
	Run(frames uint32)
	Cleanup()
}

// Activator is implemented by handles with an activation hook.
type Activator interface {
	Activate()
}

// Deactivator is implemented by handles with a deactivation hook.
type Deactivator interface {
	Deactivate()
}

// ExtensionDataProvider is implemented by descriptors that expose extension
// interfaces. The returned value is opaque; callers must know what the URI
// promises.
type ExtensionDataProvider interface {
	ExtensionData(uri string) (any, bool)
}
