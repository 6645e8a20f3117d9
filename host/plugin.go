package host

import (
	"context"
	"iter"
	"math"
	"slices"

	"github.com/reglet-dev/lv2host/domain/entities"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/reglet-dev/lv2host/vocabulary"
)

type pluginData struct {
	uri       string
	bundleURI string
	dataURIs  []string
	minor     int32
	micro     int32

	replaced bool // superseded by a newer version in another bundle
	unloaded bool // bundle unloaded
	loaded   bool // data files parsed
	ports    []*portData
}

func (pd *pluginData) newerThan(o *pluginData) bool {
	if pd.minor != o.minor {
		return pd.minor > o.minor
	}
	return pd.micro > o.micro
}

func (pd *pluginData) term() entities.Term {
	return entities.URI(pd.uri)
}

// Plugin describes one discovered unit. Plugins are owned by their World and
// are never freed individually. A Plugin whose bundle has been unloaded
// answers absent or empty to every data query.
type Plugin struct {
	world *World
	data  *pluginData
}

// ensureLoadedLocked parses the plugin's data files the first time its data
// is needed.
func (w *World) ensureLoadedLocked(pd *pluginData) {
	if pd.loaded {
		return
	}
	pd.loaded = true
	for _, uri := range pd.dataURIs {
		if _, err := w.loadGraphLocked(context.Background(), uri, pd.bundleURI); err != nil {
			w.logger.Warn("failed to load plugin data", "plugin", pd.uri, "file", uri, hostlog.ErrorAttr(err))
		}
	}
}

// locked runs fn with the World lock held and the plugin's data loaded. It
// reports false without calling fn if the plugin is gone.
func (p Plugin) locked(fn func(w *World, pd *pluginData)) bool {
	if p.world == nil || p.data == nil {
		return false
	}
	w := p.world
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed || p.data.unloaded {
		return false
	}
	w.ensureLoadedLocked(p.data)
	fn(w, p.data)
	return true
}

func (p Plugin) objects(predicate string) []Node {
	var out []Node
	p.locked(func(w *World, pd *pluginData) {
		out = w.objectsLocked(pd.term(), entities.URI(predicate))
	})
	return out
}

func (p Plugin) first(predicate string) (Node, bool) {
	nodes := p.objects(predicate)
	if len(nodes) == 0 {
		return Node{}, false
	}
	return nodes[0], true
}

// URI returns the plugin URI.
func (p Plugin) URI() Node {
	if p.data == nil {
		return Node{}
	}
	return p.world.owned(p.data.term())
}

// BundleURI returns the URI of the bundle directory declaring the plugin.
func (p Plugin) BundleURI() Node {
	if p.data == nil {
		return Node{}
	}
	return p.world.owned(entities.URI(p.data.bundleURI))
}

// DataURIs returns the data files describing the plugin.
func (p Plugin) DataURIs() Nodes {
	if p.data == nil {
		return Nodes{}
	}
	out := make([]Node, len(p.data.dataURIs))
	for i, uri := range p.data.dataURIs {
		out[i] = p.world.owned(entities.URI(uri))
	}
	return newNodes(p.world, out, true)
}

// LibraryURI returns the URI of the unit binary.
func (p Plugin) LibraryURI() (Node, bool) {
	n, ok := p.first(vocabulary.LV2Binary)
	if !ok || !n.IsURI() {
		return Node{}, false
	}
	return n, true
}

// Name returns the doap:name of the plugin in the preferred language.
func (p Plugin) Name() (Node, bool) {
	for _, n := range p.objects(vocabulary.DOAPName) {
		if n.IsString() {
			return n, true
		}
	}
	return Node{}, false
}

// Class returns the most specific known class of the plugin, or the root
// class.
func (p Plugin) Class() PluginClass {
	class := PluginClass{world: p.world}
	p.locked(func(w *World, pd *pluginData) {
		class.data = w.rootClass
		for _, t := range w.objectTermsLocked(pd.term(), entities.URI(vocabulary.RDFType)) {
			if t.Kind != entities.KindURI || t.Value == vocabulary.LV2Plugin {
				continue
			}
			for _, cd := range w.classes {
				if cd.uri == t.Value {
					class.data = cd
					return
				}
			}
		}
	})
	return class
}

// Value returns the objects of predicate for the plugin.
func (p Plugin) Value(predicate Node) Nodes {
	pred, ok := predicate.resolve()
	if !ok || p.world == nil {
		return newNodes(p.world, nil, true)
	}
	var out []Node
	p.locked(func(w *World, pd *pluginData) {
		out = w.objectsLocked(pd.term(), pred)
	})
	return newNodes(p.world, out, true)
}

// RequiredFeatures returns the features the plugin cannot be instantiated
// without.
func (p Plugin) RequiredFeatures() Nodes {
	return newNodes(p.world, p.objects(vocabulary.LV2RequiredFeature), true)
}

// OptionalFeatures returns the features the plugin uses when available.
func (p Plugin) OptionalFeatures() Nodes {
	return newNodes(p.world, p.objects(vocabulary.LV2OptionalFeature), true)
}

// SupportedFeatures returns the required and optional features.
func (p Plugin) SupportedFeatures() Nodes {
	return p.RequiredFeatures().Merge(p.OptionalFeatures())
}

// HasFeature reports whether the plugin requires or optionally supports
// feature.
func (p Plugin) HasFeature(feature Node) bool {
	f, ok := feature.resolve()
	if !ok {
		return false
	}
	found := false
	p.locked(func(w *World, pd *pluginData) {
		found = w.askLocked(pd.term(), entities.URI(vocabulary.LV2RequiredFeature), f) ||
			w.askLocked(pd.term(), entities.URI(vocabulary.LV2OptionalFeature), f)
	})
	return found
}

// ExtensionData returns the extension data URIs the plugin provides.
func (p Plugin) ExtensionData() Nodes {
	return newNodes(p.world, p.objects(vocabulary.LV2ExtensionData), true)
}

// HasExtensionData reports whether the plugin provides extension data uri.
func (p Plugin) HasExtensionData(uri Node) bool {
	u, ok := uri.resolve()
	if !ok {
		return false
	}
	found := false
	p.locked(func(w *World, pd *pluginData) {
		found = w.askLocked(pd.term(), entities.URI(vocabulary.LV2ExtensionData), u)
	})
	return found
}

// NumPorts returns the number of ports with a valid index.
func (p Plugin) NumPorts() uint32 {
	var n uint32
	p.locked(func(w *World, pd *pluginData) {
		n = uint32(len(w.portsLocked(pd)))
	})
	return n
}

// PortRangesFloat returns the minimum, maximum and default value of every
// port, indexed by port. Values that are absent or not numeric are NaN.
func (p Plugin) PortRangesFloat() (mins, maxs, defs []float32) {
	p.locked(func(w *World, pd *pluginData) {
		ports := w.portsLocked(pd)
		mins = make([]float32, len(ports))
		maxs = make([]float32, len(ports))
		defs = make([]float32, len(ports))
		for i, port := range ports {
			mins[i] = w.portFloatLocked(port, vocabulary.LV2Minimum)
			maxs[i] = w.portFloatLocked(port, vocabulary.LV2Maximum)
			defs[i] = w.portFloatLocked(port, vocabulary.LV2Default)
		}
	})
	return mins, maxs, defs
}

func (w *World) portFloatLocked(port *portData, predicate string) float32 {
	if t, ok := w.firstObjectTermLocked(port.node, entities.URI(predicate)); ok {
		if v, ok := termFloat(t); ok {
			return v
		}
	}
	return float32(math.NaN())
}

// NumPortsOfClass returns the number of ports that are an instance of every
// given class.
func (p Plugin) NumPortsOfClass(classes ...Node) uint32 {
	terms := make([]entities.Term, 0, len(classes))
	for _, c := range classes {
		t, ok := c.resolve()
		if !ok {
			return 0
		}
		terms = append(terms, t)
	}
	var n uint32
	p.locked(func(w *World, pd *pluginData) {
		for _, port := range w.portsLocked(pd) {
			if w.portIsLocked(port, terms...) {
				n++
			}
		}
	})
	return n
}

// HasLatency reports whether the plugin reports its latency on an output
// port.
func (p Plugin) HasLatency() bool {
	_, ok := p.LatencyPortIndex()
	return ok
}

// LatencyPortIndex returns the index of the output port reporting latency.
func (p Plugin) LatencyPortIndex() (uint32, bool) {
	var (
		index uint32
		found bool
	)
	output := entities.URI(vocabulary.LV2OutputPort)
	p.locked(func(w *World, pd *pluginData) {
		for _, port := range w.portsLocked(pd) {
			if !w.portIsLocked(port, output) {
				continue
			}
			if w.askLocked(port.node, entities.URI(vocabulary.LV2PortProperty), entities.URI(vocabulary.LV2ReportsLatency)) ||
				w.askLocked(port.node, entities.URI(vocabulary.LV2Designation), entities.URI(vocabulary.LV2Latency)) {
				index, found = port.index, true
				return
			}
		}
	})
	return index, found
}

// PortByIndex returns the port with the given index.
func (p Plugin) PortByIndex(index uint32) (Port, bool) {
	var port Port
	p.locked(func(w *World, pd *pluginData) {
		for _, pt := range w.portsLocked(pd) {
			if pt.index == index {
				port = Port{plugin: p, data: pt}
				return
			}
		}
	})
	return port, port.data != nil
}

// PortBySymbol returns the port with the given lv2:symbol.
func (p Plugin) PortBySymbol(symbol Node) (Port, bool) {
	sym, ok := symbol.AsString()
	if !ok {
		return Port{}, false
	}
	var port Port
	p.locked(func(w *World, pd *pluginData) {
		for _, pt := range w.portsLocked(pd) {
			if pt.symbol == sym {
				port = Port{plugin: p, data: pt}
				return
			}
		}
	})
	return port, port.data != nil
}

// PortByDesignation returns the port with the given lv2:designation that is
// an instance of portClass. A nil portClass matches any port.
func (p Plugin) PortByDesignation(portClass *Node, designation Node) (Port, bool) {
	des, ok := designation.resolve()
	if !ok {
		return Port{}, false
	}
	var classes []entities.Term
	if portClass != nil {
		c, ok := portClass.resolve()
		if !ok {
			return Port{}, false
		}
		classes = append(classes, c)
	}
	var port Port
	p.locked(func(w *World, pd *pluginData) {
		for _, pt := range w.portsLocked(pd) {
			if w.askLocked(pt.node, entities.URI(vocabulary.LV2Designation), des) && w.portIsLocked(pt, classes...) {
				port = Port{plugin: p, data: pt}
				return
			}
		}
	})
	return port, port.data != nil
}

// Ports returns the ports in index order.
func (p Plugin) Ports() iter.Seq[Port] {
	if p.world == nil || p.data == nil {
		return func(func(Port) bool) {}
	}
	src := func() []*portData {
		if p.data.unloaded || p.world.destroyed {
			return nil
		}
		p.world.ensureLoadedLocked(p.data)
		return p.world.portsLocked(p.data)
	}
	get := func(pt *portData) Port { return Port{plugin: p, data: pt} }
	return newCollection(p.world, src, sliceCursor(src, get), false, nil).All()
}

// Project returns the doap project the plugin belongs to.
func (p Plugin) Project() (Node, bool) {
	n, ok := p.first(vocabulary.LV2Project)
	if !ok || !n.IsURI() && !n.IsBlank() {
		return Node{}, false
	}
	return n, true
}

// AuthorName returns the foaf:name of the plugin's maintainer.
func (p Plugin) AuthorName() (Node, bool) { return p.authorProperty(vocabulary.FOAFName) }

// AuthorEmail returns the foaf:mbox of the plugin's maintainer.
func (p Plugin) AuthorEmail() (Node, bool) { return p.authorProperty(vocabulary.FOAFMbox) }

// AuthorHomepage returns the foaf:homepage of the plugin's maintainer.
func (p Plugin) AuthorHomepage() (Node, bool) { return p.authorProperty(vocabulary.FOAFHomepage) }

// authorProperty reads a property of the plugin's doap:maintainer, falling
// back to the maintainer of its project.
func (p Plugin) authorProperty(predicate string) (Node, bool) {
	var (
		found Node
		ok    bool
	)
	p.locked(func(w *World, pd *pluginData) {
		maintainer := entities.URI(vocabulary.DOAPMaintainer)
		authors := w.objectTermsLocked(pd.term(), maintainer)
		if len(authors) == 0 {
			if project, has := w.firstObjectTermLocked(pd.term(), entities.URI(vocabulary.LV2Project)); has {
				authors = w.objectTermsLocked(project, maintainer)
			}
		}
		for _, a := range authors {
			if nodes := w.objectsLocked(a, entities.URI(predicate)); len(nodes) > 0 {
				found, ok = nodes[0], true
				return
			}
		}
	})
	return found, ok
}

// IsReplaced reports whether another loaded plugin declares that it
// replaces this one.
func (p Plugin) IsReplaced() bool {
	replaced := false
	p.locked(func(w *World, pd *pluginData) {
		replaced = pd.replaced || len(w.matchLocked(entities.Pattern{
			Predicate: entities.URI(vocabulary.DCTermsReplace),
			Object:    pd.term(),
		})) > 0
	})
	return replaced
}

// Related returns the resources that apply to the plugin, such as presets,
// optionally restricted to instances of typ. Each must be loaded with
// World.LoadResource before its own data can be queried.
func (p Plugin) Related(typ *Node) Nodes {
	var class entities.Term
	if typ != nil {
		t, ok := typ.resolve()
		if !ok {
			return newNodes(p.world, nil, true)
		}
		class = t
	}
	var out []Node
	p.locked(func(w *World, pd *pluginData) {
		for _, n := range w.subjectsLocked(entities.URI(vocabulary.LV2AppliesTo), pd.term()) {
			t, ok := w.termLocked(n.id)
			if !ok {
				continue
			}
			if typ != nil && !w.askLocked(t, entities.URI(vocabulary.RDFType), class) {
				continue
			}
			out = append(out, w.owned(t))
		}
	})
	return newNodes(p.world, out, true)
}

// Verify reports whether the plugin description is well formed: it has a
// type, a name and a binary, and every port has a unique integer index, the
// indices are contiguous from zero and every symbol is a unique C
// identifier. Problems are logged.
func (p Plugin) Verify() bool {
	valid := false
	p.locked(func(w *World, pd *pluginData) {
		valid = w.verifyLocked(pd)
	})
	return valid
}

func (w *World) verifyLocked(pd *pluginData) bool {
	subject := pd.term()
	invalid := func(reason string, args ...any) bool {
		w.logger.Warn("invalid plugin", append([]any{"plugin", pd.uri, "reason", reason}, args...)...)
		return false
	}

	if !w.askLocked(subject, entities.URI(vocabulary.RDFType), entities.URI(vocabulary.LV2Plugin)) {
		return invalid("missing rdf:type lv2:Plugin")
	}
	if name, ok := w.firstObjectTermLocked(subject, entities.URI(vocabulary.DOAPName)); !ok || name.Kind != entities.KindString {
		return invalid("missing doap:name")
	}
	if bin, ok := w.firstObjectTermLocked(subject, entities.URI(vocabulary.LV2Binary)); !ok || bin.Kind != entities.KindURI {
		return invalid("missing lv2:binary")
	}

	var indices []int32
	symbols := make(map[string]bool)
	for _, port := range w.objectTermsLocked(subject, entities.URI(vocabulary.LV2Port)) {
		idx := w.objectTermsLocked(port, entities.URI(vocabulary.LV2Index))
		if len(idx) != 1 || idx[0].Kind != entities.KindInt {
			return invalid("port without a single integer lv2:index", "port", port.Value)
		}
		indices = append(indices, atoi32(idx[0].Value))

		sym, ok := w.firstObjectTermLocked(port, entities.URI(vocabulary.LV2Symbol))
		if !ok || sym.Kind != entities.KindString || !isSymbol(sym.Value) {
			return invalid("port without a valid lv2:symbol", "port", port.Value)
		}
		if symbols[sym.Value] {
			return invalid("duplicate port symbol", "symbol", sym.Value)
		}
		symbols[sym.Value] = true
	}
	slices.Sort(indices)
	for i, idx := range indices {
		if idx != int32(i) {
			return invalid("port indices are not contiguous from zero", "index", idx)
		}
	}
	return true
}
