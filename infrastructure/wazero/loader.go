package wazero

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/internal/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	// DefaultMaxBlockLength is the number of frames a port buffer holds.
	DefaultMaxBlockLength = 4096

	// DefaultMaxStringSize limits strings read from guest memory.
	DefaultMaxStringSize = 64 * 1024

	// maxDescriptors bounds the descriptor table walk.
	maxDescriptors = 1024
)

// LoaderConfig holds configuration for the loader.
type LoaderConfig struct {
	// ModuleName is the host module name (default: "lv2").
	ModuleName string

	// MaxBlockLength is the largest number of frames passed to one guest
	// run call, and the size of audio port buffers.
	MaxBlockLength uint32

	// MaxStringSize limits URIs and log messages read from guest memory.
	MaxStringSize uint32

	// Logger receives loader and unit log messages.
	Logger *slog.Logger
}

// LoaderOption configures the loader.
type LoaderOption func(*LoaderConfig)

// WithModuleName sets the host module name (default: "lv2").
func WithModuleName(name string) LoaderOption {
	return func(c *LoaderConfig) {
		c.ModuleName = name
	}
}

// WithMaxBlockLength sets the guest block length in frames. Zero keeps the
// default.
func WithMaxBlockLength(frames uint32) LoaderOption {
	return func(c *LoaderConfig) {
		if frames > 0 {
			c.MaxBlockLength = frames
		}
	}
}

// WithMaxStringSize sets the maximum size of strings read from guest memory.
func WithMaxStringSize(size uint32) LoaderOption {
	return func(c *LoaderConfig) {
		c.MaxStringSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LoaderOption {
	return func(c *LoaderConfig) {
		c.Logger = l
	}
}

// defaultLoaderConfig returns the default loader configuration.
func defaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		ModuleName:     abi.HostModule,
		MaxBlockLength: DefaultMaxBlockLength,
		MaxStringSize:  DefaultMaxStringSize,
		Logger:         slog.Default(),
	}
}

// Loader opens WebAssembly unit binaries. It implements ports.LibraryLoader.
type Loader struct {
	config LoaderConfig
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// Load reads and compiles the module at path and reads its descriptor table.
func (l *Loader) Load(ctx context.Context, path string) (ports.UnitLibrary, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	return l.LoadBytes(ctx, path, wasm)
}

// LoadBytes compiles wasm, naming the library path in logs and errors.
func (l *Loader) LoadBytes(ctx context.Context, path string, wasm []byte) (_ ports.UnitLibrary, err error) {
	rt := wazero.NewRuntime(ctx)
	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
		}
	}()

	if err := registerHostModule(ctx, rt, l.config); err != nil {
		return nil, fmt.Errorf("failed to register host module: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	if err := checkExports(compiled); err != nil {
		return nil, err
	}

	lib := &library{
		path:     path,
		runtime:  rt,
		compiled: compiled,
		config:   l.config,
	}
	uris, err := lib.descriptorURIs(ctx)
	if err != nil {
		return nil, err
	}
	for i, uri := range uris {
		lib.descriptors = append(lib.descriptors, &descriptor{lib: lib, index: uint32(i), uri: uri}) //nolint:gosec // G115: bounded by maxDescriptors
	}
	l.config.Logger.Debug("loaded wasm library", "path", path, "descriptors", len(uris))
	return lib, nil
}

// checkExports verifies the module exports every mandatory ABI function.
func checkExports(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()
	for _, name := range []string{
		abi.ExportAllocate,
		abi.ExportDescriptorURI,
		abi.ExportInstantiate,
		abi.ExportConnectPort,
		abi.ExportRun,
		abi.ExportCleanup,
	} {
		if _, ok := exports[name]; !ok {
			return fmt.Errorf("module does not export %q", name)
		}
	}
	if _, ok := compiled.ExportedMemories()[abi.ExportMemory]; !ok {
		return fmt.Errorf("module does not export %q", abi.ExportMemory)
	}
	return nil
}

// readString reads a guest string, bounded by maxSize.
func readString(mem api.Memory, ptr, length, maxSize uint32) (string, error) {
	if length > maxSize {
		return "", fmt.Errorf("string size %d exceeds maximum %d bytes", length, maxSize)
	}
	b, ok := mem.Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("string at %d+%d is out of range", ptr, length)
	}
	return string(b), nil
}
