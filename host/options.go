package host

import (
	"log/slog"

	"github.com/reglet-dev/lv2host/domain/ports"
	"go.opentelemetry.io/otel/trace"
)

// worldConfig holds configuration for a World.
type worldConfig struct {
	store          ports.Store
	parser         ports.BundleParser
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	searchPath     []string
	libraries      ports.LibraryRegistry
	loader         ports.LibraryLoader
	lang           string
	filterLang     bool
}

// Option configures a World.
type Option func(*worldConfig)

// WithStore sets the metadata store. The World takes ownership and closes
// it when released.
func WithStore(s ports.Store) Option {
	return func(c *worldConfig) {
		c.store = s
	}
}

// WithParser sets the bundle document parser.
func WithParser(p ports.BundleParser) Option {
	return func(c *worldConfig) {
		c.parser = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *worldConfig) {
		c.logger = l
	}
}

// WithTracerProvider sets the tracer provider used for load and instantiate
// spans. Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *worldConfig) {
		c.tracerProvider = tp
	}
}

// WithSearchPath sets the directories LoadAll scans, in priority order.
func WithSearchPath(dirs ...string) Option {
	return func(c *worldConfig) {
		c.searchPath = append([]string(nil), dirs...)
	}
}

// WithLibraries sets the registry of in-process unit libraries.
// Default is the process-wide registry.Default().
func WithLibraries(r ports.LibraryRegistry) Option {
	return func(c *worldConfig) {
		c.libraries = r
	}
}

// WithLibraryLoader sets the loader used for .wasm unit binaries.
func WithLibraryLoader(l ports.LibraryLoader) Option {
	return func(c *worldConfig) {
		c.loader = l
	}
}

// WithLang sets the preferred language for literal values, e.g. "en-gb".
func WithLang(lang string) Option {
	return func(c *worldConfig) {
		c.lang = lang
	}
}

// WithFilterLang enables or disables language filtering of literal values.
func WithFilterLang(enabled bool) Option {
	return func(c *worldConfig) {
		c.filterLang = enabled
	}
}
