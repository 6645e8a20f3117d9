package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/reglet-dev/lv2host/config"
	"github.com/reglet-dev/lv2host/domain/entities"
	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/host/registry"
	wasmloader "github.com/reglet-dev/lv2host/infrastructure/wazero"
	"github.com/reglet-dev/lv2host/infrastructure/memstore"
	"github.com/reglet-dev/lv2host/infrastructure/parser"
	"github.com/reglet-dev/lv2host/infrastructure/sqlitestore"
	"github.com/reglet-dev/lv2host/internal/fileuri"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/reglet-dev/lv2host/vocabulary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/reglet-dev/lv2host/host"

// Options recognised by SetOption.
const (
	// OptionFilterLang takes a bool node.
	OptionFilterLang = "urn:lv2host:option#filter-lang"
	// OptionLang takes a string node holding a language tag.
	OptionLang = "urn:lv2host:option#lang"
	// OptionLV2Path takes a string node holding a search path list.
	OptionLV2Path = "urn:lv2host:option#lv2-path"
)

// World is the registry of all loaded bundle metadata.
//
// Every operation, including those reached through Nodes, collections,
// Plugins and Ports derived from the World, holds the World's lock for its
// full duration. The store is released once the creator has called Close and
// every Instance has been released.
type World struct {
	mu     sync.Mutex
	config worldConfig
	store  ports.Store
	logger *slog.Logger
	tracer trace.Tracer

	refs      int // creator plus live instances
	closed    bool
	destroyed bool

	plugins   []*pluginData // sorted by URI
	byURI     map[string]*pluginData
	classes   []*classData
	rootClass *classData
	bundles   map[string]*bundleData
	graphs    map[string]string // loaded graph -> owning bundle, "" for none
	resources map[entities.Term][]string
	specsDone map[entities.Term]bool

	libMu     sync.Mutex
	libraries map[string]ports.UnitLibrary // opened binaries by path
}

type bundleData struct {
	uri    string
	graphs []string
}

func defaultWorldConfig() worldConfig {
	return worldConfig{
		logger:         slog.Default(),
		tracerProvider: otel.GetTracerProvider(),
		searchPath:     config.DefaultSearchPath(),
		libraries:      registry.Default(),
		lang:           config.NormalizeLang(os.Getenv("LANG")),
		filterLang:     true,
	}
}

// New creates an empty World.
func New(opts ...Option) *World {
	cfg := defaultWorldConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = memstore.New()
	}
	if cfg.parser == nil {
		cfg.parser = parser.NewCachingParser(
			parser.NewTurtleParser(parser.WithLogger(cfg.logger)),
			parser.WithCacheLogger(cfg.logger),
		)
	}
	if cfg.loader == nil {
		cfg.loader = wasmloader.NewLoader(wasmloader.WithLogger(cfg.logger))
	}

	root := &classData{uri: vocabulary.LV2Plugin, label: "Plugin"}
	return &World{
		config:    cfg,
		store:     cfg.store,
		logger:    cfg.logger,
		tracer:    cfg.tracerProvider.Tracer(tracerName),
		refs:      1,
		byURI:     make(map[string]*pluginData),
		classes:   []*classData{root},
		rootClass: root,
		bundles:   make(map[string]*bundleData),
		graphs:    make(map[string]string),
		resources: make(map[entities.Term][]string),
		specsDone: make(map[entities.Term]bool),
		libraries: make(map[string]ports.UnitLibrary),
	}
}

// NewFromConfig creates a World wired to the store, search path, language
// and unit loader settings of cfg. Options are applied after cfg and take
// precedence. The logger defaults to the one carried by ctx.
func NewFromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := hostlog.FromContext(ctx)

	var store ports.Store
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlitestore.Open(sqlitestore.WithPath(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = memstore.New()
	}

	base := []Option{
		WithStore(store),
		WithLogger(logger),
		WithSearchPath(cfg.SearchPath...),
		WithLang(cfg.Lang),
		WithFilterLang(cfg.FilterLang),
		WithLibraryLoader(wasmloader.NewLoader(
			wasmloader.WithLogger(logger),
			wasmloader.WithMaxBlockLength(cfg.MaxBlockLength),
		)),
	}
	return New(append(base, opts...)...), nil
}

// Close releases the creator's reference. The store and every opened unit
// binary are released now, or when the last Instance is released.
// Load operations fail with ErrWorldClosed afterwards.
func (w *World) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.release()
}

func (w *World) retain() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domainerrors.ErrWorldClosed
	}
	w.refs++
	return nil
}

func (w *World) release() error {
	w.mu.Lock()
	w.refs--
	if w.refs > 0 {
		w.mu.Unlock()
		return nil
	}
	w.destroyed = true
	w.plugins = nil
	clear(w.byURI)
	storeErr := w.store.Close()
	w.mu.Unlock()

	w.libMu.Lock()
	defer w.libMu.Unlock()
	errs := []error{storeErr}
	for path, lib := range w.libraries {
		if err := lib.Close(); err != nil {
			errs = append(errs, &domainerrors.LibraryError{Path: path, Err: err})
		}
	}
	clear(w.libraries)
	w.logger.Debug("world released")
	return errors.Join(errs...)
}

// SetOption changes a World option. See OptionFilterLang, OptionLang and
// OptionLV2Path.
func (w *World) SetOption(uri string, value Node) error {
	term, ok := value.resolve()
	if !ok {
		return fmt.Errorf("option %s: value is absent", uri)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch uri {
	case OptionFilterLang:
		if term.Kind != entities.KindBool {
			return fmt.Errorf("option %s expects a bool, got %s", uri, term.Kind)
		}
		w.config.filterLang = term.Value == "true"
	case OptionLang:
		if term.Kind != entities.KindString {
			return fmt.Errorf("option %s expects a string, got %s", uri, term.Kind)
		}
		w.config.lang = config.NormalizeLang(term.Value)
	case OptionLV2Path:
		if term.Kind != entities.KindString {
			return fmt.Errorf("option %s expects a string, got %s", uri, term.Kind)
		}
		w.config.searchPath = filepath.SplitList(term.Value)
	default:
		return fmt.Errorf("unknown option %s", uri)
	}
	return nil
}

// NewURI returns an owned URI node.
func (w *World) NewURI(uri string) Node {
	return w.owned(entities.URI(uri))
}

// NewFileURI returns an owned node for the file URI of path on hostname,
// which may be empty.
func (w *World) NewFileURI(hostname, path string) Node {
	return w.owned(entities.URI(fileuri.New(hostname, path)))
}

// NewString returns an owned string literal node.
func (w *World) NewString(s string) Node {
	return w.owned(entities.String(s))
}

// NewInt returns an owned integer literal node.
func (w *World) NewInt(v int32) Node {
	return w.owned(entities.Int(v))
}

// NewFloat returns an owned decimal literal node.
func (w *World) NewFloat(v float32) Node {
	return w.owned(entities.Float(v))
}

// NewBool returns an owned boolean literal node.
func (w *World) NewBool(v bool) Node {
	return w.owned(entities.Bool(v))
}

func (w *World) owned(t entities.Term) Node {
	return Node{world: w, term: t}
}

// AllPlugins returns the live table of loaded plugins. The collection is
// borrowed: it reflects later loads and unloads and must not be freed.
func (w *World) AllPlugins() Plugins {
	return newPlugins(w, func() []*pluginData { return w.plugins }, false)
}

// PluginClass returns the root class, lv2:Plugin.
func (w *World) PluginClass() PluginClass {
	return PluginClass{world: w, data: w.rootClass}
}

// PluginClasses returns the live table of plugin classes.
func (w *World) PluginClasses() PluginClasses {
	return newPluginClasses(w, func() []*classData { return w.classes }, false)
}

func (w *World) bundleOf(uri string) string {
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}
