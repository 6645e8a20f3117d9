package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/reglet-dev/lv2host/domain/entities"
	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/internal/fileuri"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/reglet-dev/lv2host/vocabulary"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ManifestName is the file every bundle directory must contain.
const ManifestName = "manifest.ttl"

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LoadAll loads every bundle found in the search path, then the
// specifications and plugin classes they declare. A bundle that fails to
// load is logged and skipped; the returned error joins every such failure.
// Bundles found earlier in the search path take priority over later ones
// declaring the same plugin, unless the later one has a newer version.
func (w *World) LoadAll(ctx context.Context) (err error) {
	ctx, span := w.tracer.Start(ctx, "World.LoadAll")
	defer func() { endSpan(span, err) }()

	w.mu.Lock()
	dirs := slices.Clone(w.config.searchPath)
	w.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		bundles, scanErr := discoverBundles(dir)
		if scanErr != nil {
			w.logger.Debug("skipping search path entry", "dir", dir, "error", scanErr)
			continue
		}
		for _, b := range bundles {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.LoadBundle(ctx, w.NewURI(fileuri.NewDir(b))); err != nil {
				if errors.Is(err, domainerrors.ErrWorldClosed) {
					return err
				}
				w.logger.Warn("failed to load bundle", "bundle", b, hostlog.ErrorAttr(err))
				errs = append(errs, err)
			}
		}
	}
	if err := w.LoadSpecifications(ctx); err != nil {
		errs = append(errs, err)
	}
	w.LoadPluginClasses()
	span.SetAttributes(attribute.Int("lv2.plugins", w.AllPlugins().Size()))
	return errors.Join(errs...)
}

// discoverBundles lists the subdirectories of dir holding a manifest, in
// lexical order.
func discoverBundles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && e.Type()&os.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if info, err := os.Stat(filepath.Join(path, ManifestName)); err == nil && !info.IsDir() {
			out = append(out, path)
		}
	}
	return out, nil
}

// LoadBundle loads the manifest of the bundle directory named by the file
// URI node. Loading a bundle twice is a no-op. Plugin data files are parsed
// lazily on first use.
func (w *World) LoadBundle(ctx context.Context, bundle Node) (err error) {
	term, ok := bundle.resolve()
	if !ok || term.Kind != entities.KindURI {
		return &domainerrors.BundleError{Bundle: bundle.String(), Err: domainerrors.ErrNotResource}
	}
	bundleURI := w.bundleOf(term.Value)

	ctx, span := w.tracer.Start(ctx, "World.LoadBundle", trace.WithAttributes(
		attribute.String("lv2.bundle", bundleURI),
	))
	defer func() { endSpan(span, err) }()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domainerrors.ErrWorldClosed
	}
	if _, loaded := w.bundles[bundleURI]; loaded {
		return nil
	}

	manifestURI := bundleURI + ManifestName
	triples, err := w.config.parser.Parse(ctx, manifestURI)
	if err != nil {
		return &domainerrors.BundleError{Bundle: bundleURI, Err: err}
	}
	if err := w.store.Insert(manifestURI, triples); err != nil {
		return &domainerrors.BundleError{Bundle: bundleURI, Err: err}
	}
	w.bundles[bundleURI] = &bundleData{uri: bundleURI, graphs: []string{manifestURI}}
	w.graphs[manifestURI] = bundleURI

	for _, pd := range pluginsInManifest(bundleURI, triples) {
		w.addPluginLocked(pd)
	}
	w.logger.Info("loaded bundle", "bundle", bundleURI, "statements", len(triples))
	return nil
}

// pluginsInManifest extracts the plugins a manifest declares along with the
// properties the registry needs before their data files are read.
func pluginsInManifest(bundleURI string, triples []entities.Triple) []*pluginData {
	typ := entities.URI(vocabulary.RDFType)
	plugin := entities.URI(vocabulary.LV2Plugin)

	byURI := make(map[string]*pluginData)
	var order []*pluginData
	for _, t := range triples {
		if t.Predicate == typ && t.Object == plugin && t.Subject.Kind == entities.KindURI {
			if _, ok := byURI[t.Subject.Value]; !ok {
				pd := &pluginData{uri: t.Subject.Value, bundleURI: bundleURI}
				byURI[pd.uri] = pd
				order = append(order, pd)
			}
		}
	}
	for _, t := range triples {
		pd, ok := byURI[t.Subject.Value]
		if !ok || t.Subject.Kind != entities.KindURI {
			continue
		}
		switch t.Predicate.Value {
		case vocabulary.RDFSSeeAlso:
			if t.Object.Kind == entities.KindURI && !slices.Contains(pd.dataURIs, t.Object.Value) {
				pd.dataURIs = append(pd.dataURIs, t.Object.Value)
			}
		case vocabulary.LV2MinorVersion:
			if t.Object.Kind == entities.KindInt {
				pd.minor = atoi32(t.Object.Value)
			}
		case vocabulary.LV2MicroVersion:
			if t.Object.Kind == entities.KindInt {
				pd.micro = atoi32(t.Object.Value)
			}
		}
	}
	return order
}

func (w *World) addPluginLocked(pd *pluginData) {
	existing, ok := w.byURI[pd.uri]
	if ok {
		if !pd.newerThan(existing) {
			w.logger.Warn("duplicate plugin ignored",
				"plugin", pd.uri, "bundle", pd.bundleURI, "kept", existing.bundleURI)
			return
		}
		w.logger.Warn("plugin replaced by newer version",
			"plugin", pd.uri, "old_bundle", existing.bundleURI, "new_bundle", pd.bundleURI)
		existing.replaced = true
		i := slices.Index(w.plugins, existing)
		w.plugins = slices.Delete(w.plugins, i, i+1)
	}
	w.byURI[pd.uri] = pd
	i, _ := slices.BinarySearchFunc(w.plugins, pd.uri, func(p *pluginData, uri string) int {
		return strings.Compare(p.uri, uri)
	})
	w.plugins = slices.Insert(w.plugins, i, pd)
}

// UnloadBundle removes a bundle's metadata and the plugins it declares.
// Plugin handles from the bundle remain valid values but answer absent or
// empty to every query afterwards.
func (w *World) UnloadBundle(bundle Node) error {
	term, ok := bundle.resolve()
	if !ok || term.Kind != entities.KindURI {
		return &domainerrors.BundleError{Bundle: bundle.String(), Err: domainerrors.ErrNotResource}
	}
	bundleURI := w.bundleOf(term.Value)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return domainerrors.ErrWorldClosed
	}
	bd, ok := w.bundles[bundleURI]
	if !ok {
		return nil
	}

	w.plugins = slices.DeleteFunc(w.plugins, func(pd *pluginData) bool {
		if pd.bundleURI != bundleURI {
			return false
		}
		pd.unloaded = true
		delete(w.byURI, pd.uri)
		return true
	})

	var errs []error
	for _, g := range bd.graphs {
		if _, err := w.store.DropGraph(g); err != nil {
			errs = append(errs, err)
		}
		delete(w.graphs, g)
	}
	delete(w.bundles, bundleURI)
	w.logger.Info("unloaded bundle", "bundle", bundleURI)
	if err := errors.Join(errs...); err != nil {
		return &domainerrors.BundleError{Bundle: bundleURI, Err: err}
	}
	return nil
}

// loadGraphLocked parses fileURI into its own graph unless already loaded,
// attributing it to owner. It reports whether a document was parsed.
func (w *World) loadGraphLocked(ctx context.Context, fileURI, owner string) (bool, error) {
	if _, loaded := w.graphs[fileURI]; loaded {
		return false, nil
	}
	triples, err := w.config.parser.Parse(ctx, fileURI)
	if err != nil {
		return false, err
	}
	if err := w.store.Insert(fileURI, triples); err != nil {
		return false, err
	}
	w.graphs[fileURI] = owner
	if bd, ok := w.bundles[owner]; ok {
		bd.graphs = append(bd.graphs, fileURI)
	}
	return true, nil
}

// ownerOf returns the loaded bundle containing fileURI, or "".
func (w *World) ownerOfLocked(fileURI string) string {
	for uri := range w.bundles {
		if strings.HasPrefix(fileURI, uri) {
			return uri
		}
	}
	return ""
}

// LoadResource loads every document the resource names with rdfs:seeAlso,
// such as the files of a preset. It returns how many documents were parsed.
func (w *World) LoadResource(ctx context.Context, resource Node) (n int, err error) {
	term, ok := resource.resolve()
	if !ok || !term.IsResource() {
		return 0, domainerrors.ErrNotResource
	}

	ctx, span := w.tracer.Start(ctx, "World.LoadResource", trace.WithAttributes(
		attribute.String("lv2.resource", term.Value),
	))
	defer func() {
		span.SetAttributes(attribute.Int("lv2.documents", n))
		endSpan(span, err)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, domainerrors.ErrWorldClosed
	}
	return w.loadResourceLocked(ctx, term)
}

func (w *World) loadResourceLocked(ctx context.Context, term entities.Term) (int, error) {
	n := 0
	for _, file := range w.objectTermsLocked(term, entities.URI(vocabulary.RDFSSeeAlso)) {
		if file.Kind != entities.KindURI {
			continue
		}
		parsed, err := w.loadGraphLocked(ctx, file.Value, w.ownerOfLocked(file.Value))
		if err != nil {
			return n, err
		}
		if parsed {
			n++
			w.resources[term] = append(w.resources[term], file.Value)
		}
	}
	return n, nil
}

// UnloadResource drops the documents loaded by LoadResource for resource.
// The caller must not unload a resource a live descriptor still refers to.
func (w *World) UnloadResource(resource Node) error {
	term, ok := resource.resolve()
	if !ok || !term.IsResource() {
		return domainerrors.ErrNotResource
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return domainerrors.ErrWorldClosed
	}
	var errs []error
	for _, g := range w.resources[term] {
		if _, err := w.store.DropGraph(g); err != nil {
			errs = append(errs, err)
		}
		if owner := w.graphs[g]; owner != "" {
			if bd, ok := w.bundles[owner]; ok {
				bd.graphs = slices.DeleteFunc(bd.graphs, func(s string) bool { return s == g })
			}
		}
		delete(w.graphs, g)
	}
	delete(w.resources, term)
	return errors.Join(errs...)
}

// LoadSpecifications loads the data files of every lv2:Specification
// declared by a loaded manifest.
func (w *World) LoadSpecifications(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domainerrors.ErrWorldClosed
	}

	var errs []error
	specs := w.subjectTermsLocked(entities.URI(vocabulary.RDFType), entities.URI(vocabulary.LV2Specification))
	for _, spec := range specs {
		if w.specsDone[spec] {
			continue
		}
		if _, err := w.loadResourceLocked(ctx, spec); err != nil {
			w.logger.Warn("failed to load specification", "spec", spec.Value, hostlog.ErrorAttr(err))
			errs = append(errs, fmt.Errorf("specification %s: %w", spec.Value, err))
			continue
		}
		w.specsDone[spec] = true
	}
	return errors.Join(errs...)
}

// LoadPluginClasses rebuilds the class table from every loaded rdfs:Class
// that has both a parent class and a label.
func (w *World) LoadPluginClasses() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}

	classes := []*classData{w.rootClass}
	subclass := entities.URI(vocabulary.RDFSSubClass)
	label := entities.URI(vocabulary.RDFSLabel)
	for _, c := range w.subjectTermsLocked(entities.URI(vocabulary.RDFType), entities.URI(vocabulary.RDFSClass)) {
		if c.Kind != entities.KindURI || c.Value == vocabulary.LV2Plugin {
			continue
		}
		parent, ok := w.firstObjectTermLocked(c, subclass)
		if !ok || parent.Kind != entities.KindURI {
			continue
		}
		lbl, ok := w.firstObjectTermLocked(c, label)
		if !ok {
			continue
		}
		classes = append(classes, &classData{uri: c.Value, parent: parent.Value, label: lbl.Value})
	}
	slices.SortFunc(classes[1:], func(a, b *classData) int { return strings.Compare(a.uri, b.uri) })
	w.classes = classes
}
