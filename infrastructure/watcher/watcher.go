// Package watcher loads bundles that appear in the search path while the
// host runs.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/reglet-dev/lv2host/host"
	"github.com/reglet-dev/lv2host/internal/fileuri"
	hostlog "github.com/reglet-dev/lv2host/log"
)

// Watcher monitors search path directories and loads new bundles into a
// World.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	world     *host.World
	dirs      []string
	debounce  time.Duration
	logger    *slog.Logger
	loaded    chan string
	done      chan struct{}
	stopped   chan struct{}

	started  bool
	pending  map[string]bool
	watching map[string]bool
}

// Config holds watcher configuration options.
type Config struct {
	Dirs        []string
	DebounceDur time.Duration
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dirs ...string) Config {
	return Config{
		Dirs:        dirs,
		DebounceDur: 200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// New creates a watcher loading into world.
func New(world *host.World, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		fsWatcher: fsw,
		world:     world,
		dirs:      slices.Clone(cfg.Dirs),
		debounce:  cfg.DebounceDur,
		logger:    cfg.Logger,
		loaded:    make(chan string, 16),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		pending:   make(map[string]bool),
		watching:  make(map[string]bool),
	}, nil
}

// Start begins watching. The returned channel receives the directory of
// every bundle loaded by the watcher; announcements are dropped while the
// channel is full. Search path entries that do not exist are skipped.
func (w *Watcher) Start(ctx context.Context) (<-chan string, error) {
	watched := 0
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Debug("not watching search path entry", "dir", dir, "error", err)
			continue
		}
		w.watching[dir] = true
		watched++
	}
	if watched == 0 && len(w.dirs) > 0 {
		return nil, fmt.Errorf("none of the %d search path directories can be watched", len(w.dirs))
	}

	w.started = true
	go w.loop(ctx)

	return w.loaded, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	if w.started {
		<-w.stopped
	}
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)
	var timer *time.Timer

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			bundle, ok := w.bundleOf(event)
			if !ok {
				continue
			}
			w.pending[bundle] = true

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			w.flush(ctx)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("bundle watcher error", "error", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// bundleOf returns the bundle directory an event concerns: a directory
// created in a search path entry, or a manifest written inside one.
func (w *Watcher) bundleOf(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return "", false
	}
	parent := filepath.Dir(event.Name)
	if w.isSearchDir(parent) {
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return "", false
		}
		if !w.watching[event.Name] {
			// The manifest may be written after the directory appears.
			if err := w.fsWatcher.Add(event.Name); err == nil {
				w.watching[event.Name] = true
			}
		}
		return event.Name, true
	}
	if filepath.Base(event.Name) == host.ManifestName && w.isSearchDir(filepath.Dir(parent)) {
		return parent, true
	}
	return "", false
}

func (w *Watcher) isSearchDir(dir string) bool {
	return slices.Contains(w.dirs, dir)
}

// flush loads every pending bundle that now has a manifest.
func (w *Watcher) flush(ctx context.Context) {
	var loaded []string
	for bundle := range w.pending {
		if _, err := os.Stat(filepath.Join(bundle, host.ManifestName)); err != nil {
			continue
		}
		delete(w.pending, bundle)
		if err := w.world.LoadBundle(ctx, w.world.NewURI(fileuri.NewDir(bundle))); err != nil {
			w.logger.Warn("failed to load new bundle", "bundle", bundle, hostlog.ErrorAttr(err))
			continue
		}
		loaded = append(loaded, bundle)
	}
	if len(loaded) == 0 {
		return
	}
	if err := w.world.LoadSpecifications(ctx); err != nil {
		w.logger.Warn("failed to load specifications", hostlog.ErrorAttr(err))
	}
	w.world.LoadPluginClasses()

	slices.Sort(loaded)
	for _, bundle := range loaded {
		w.logger.Info("loaded new bundle", "bundle", bundle)
		select {
		case w.loaded <- bundle:
		default:
		}
	}
}
