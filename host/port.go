package host

import (
	"cmp"
	"slices"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/vocabulary"
)

type portData struct {
	node   entities.Term
	index  uint32
	symbol string
}

// portsLocked returns the plugin's ports sorted by index, building the table
// on first use. Ports without an integer index are skipped.
func (w *World) portsLocked(pd *pluginData) []*portData {
	if pd.ports != nil {
		return pd.ports
	}
	seen := make(map[uint32]bool)
	ports := []*portData{}
	for _, node := range w.objectTermsLocked(pd.term(), entities.URI(vocabulary.LV2Port)) {
		idx, ok := w.firstObjectTermLocked(node, entities.URI(vocabulary.LV2Index))
		if !ok || idx.Kind != entities.KindInt || atoi32(idx.Value) < 0 {
			w.logger.Warn("port without an index ignored", "plugin", pd.uri, "port", node.Value)
			continue
		}
		index := uint32(atoi32(idx.Value))
		if seen[index] {
			w.logger.Warn("duplicate port index ignored", "plugin", pd.uri, "index", index)
			continue
		}
		seen[index] = true
		pt := &portData{node: node, index: index}
		if sym, ok := w.firstObjectTermLocked(node, entities.URI(vocabulary.LV2Symbol)); ok && sym.Kind == entities.KindString {
			pt.symbol = sym.Value
		}
		ports = append(ports, pt)
	}
	slices.SortFunc(ports, func(a, b *portData) int { return cmp.Compare(a.index, b.index) })
	pd.ports = ports
	return ports
}

// portIsLocked reports whether port is an instance of every class.
func (w *World) portIsLocked(port *portData, classes ...entities.Term) bool {
	for _, c := range classes {
		if !w.askLocked(port.node, entities.URI(vocabulary.RDFType), c) {
			return false
		}
	}
	return true
}

// layoutLocked describes the buffer of every port for loaders that copy
// port data.
func (w *World) layoutLocked(pd *pluginData) entities.PortLayout {
	ports := w.portsLocked(pd)
	layout := make(entities.PortLayout, 0, len(ports))
	for _, pt := range ports {
		spec := entities.PortSpec{
			Index:  pt.index,
			Output: w.portIsLocked(pt, entities.URI(vocabulary.LV2OutputPort)),
		}
		switch {
		case w.portIsLocked(pt, entities.URI(vocabulary.LV2AudioPort)):
			spec.Kind = entities.PortAudio
		case w.portIsLocked(pt, entities.URI(vocabulary.LV2ControlPort)):
			spec.Kind = entities.PortControl
		case w.portIsLocked(pt, entities.URI(vocabulary.LV2CVPort)):
			spec.Kind = entities.PortCV
		}
		layout = append(layout, spec)
	}
	return layout
}

// Port describes one port of a Plugin.
type Port struct {
	plugin Plugin
	data   *portData
}

func (p Port) locked(fn func(w *World, pt *portData)) bool {
	if p.data == nil {
		return false
	}
	return p.plugin.locked(func(w *World, _ *pluginData) { fn(w, p.data) })
}

func (p Port) objects(predicate entities.Term) []Node {
	var out []Node
	p.locked(func(w *World, pt *portData) {
		out = w.objectsLocked(pt.node, predicate)
	})
	return out
}

// Node returns the node describing the port, usually a blank node.
func (p Port) Node() Node {
	if p.data == nil {
		return Node{}
	}
	return p.plugin.world.owned(p.data.node)
}

// Index returns the port index.
func (p Port) Index() uint32 {
	if p.data == nil {
		return 0
	}
	return p.data.index
}

// Symbol returns the lv2:symbol of the port.
func (p Port) Symbol() (Node, bool) {
	if p.data == nil || p.data.symbol == "" {
		return Node{}, false
	}
	return p.plugin.world.owned(entities.String(p.data.symbol)), true
}

// Name returns the lv2:name of the port in the preferred language.
func (p Port) Name() (Node, bool) {
	for _, n := range p.objects(entities.URI(vocabulary.LV2Name)) {
		if n.IsString() {
			return n, true
		}
	}
	return Node{}, false
}

// Classes returns the rdf:type objects of the port.
func (p Port) Classes() Nodes {
	return newNodes(p.plugin.world, p.objects(entities.URI(vocabulary.RDFType)), true)
}

// IsA reports whether the port is an instance of class.
func (p Port) IsA(class Node) bool {
	c, ok := class.resolve()
	if !ok {
		return false
	}
	is := false
	p.locked(func(w *World, pt *portData) { is = w.portIsLocked(pt, c) })
	return is
}

// Properties returns the lv2:portProperty objects of the port.
func (p Port) Properties() Nodes {
	return newNodes(p.plugin.world, p.objects(entities.URI(vocabulary.LV2PortProperty)), true)
}

// HasProperty reports whether the port has lv2:portProperty property.
func (p Port) HasProperty(property Node) bool {
	return p.ask(entities.URI(vocabulary.LV2PortProperty), property)
}

// SupportsEvent reports whether the port accepts events or atoms of type
// event.
func (p Port) SupportsEvent(event Node) bool {
	return p.ask(entities.URI(vocabulary.EventSupportsEvent), event) ||
		p.ask(entities.URI(vocabulary.AtomSupports), event)
}

func (p Port) ask(predicate entities.Term, object Node) bool {
	o, ok := object.resolve()
	if !ok {
		return false
	}
	found := false
	p.locked(func(w *World, pt *portData) { found = w.askLocked(pt.node, predicate, o) })
	return found
}

// Value returns the objects of predicate for the port.
func (p Port) Value(predicate Node) Nodes {
	pred, ok := predicate.resolve()
	if !ok {
		return newNodes(p.plugin.world, nil, true)
	}
	return newNodes(p.plugin.world, p.objects(pred), true)
}

// Get returns the first object of predicate for the port.
func (p Port) Get(predicate Node) (Node, bool) {
	pred, ok := predicate.resolve()
	if !ok {
		return Node{}, false
	}
	nodes := p.objects(pred)
	if len(nodes) == 0 {
		return Node{}, false
	}
	return nodes[0], true
}

// Range returns the default, minimum and maximum values of the port. Any of
// them may be absent.
func (p Port) Range() (def, minimum, maximum Node) {
	p.locked(func(w *World, pt *portData) {
		first := func(predicate string) Node {
			if nodes := w.objectsLocked(pt.node, entities.URI(predicate)); len(nodes) > 0 {
				return nodes[0]
			}
			return Node{}
		}
		def = first(vocabulary.LV2Default)
		minimum = first(vocabulary.LV2Minimum)
		maximum = first(vocabulary.LV2Maximum)
	})
	return def, minimum, maximum
}

// ScalePoints returns the labelled values of the port sorted by value.
func (p Port) ScalePoints() ScalePoints {
	var points []ScalePoint
	p.locked(func(w *World, pt *portData) {
		for _, sp := range w.objectTermsLocked(pt.node, entities.URI(vocabulary.LV2ScalePoint)) {
			value, ok := w.firstObjectTermLocked(sp, entities.URI(vocabulary.RDFValue))
			if !ok {
				continue
			}
			label, ok := w.firstObjectTermLocked(sp, entities.URI(vocabulary.RDFSLabel))
			if !ok {
				continue
			}
			points = append(points, ScalePoint{value: w.owned(value), label: w.owned(label)})
		}
	})
	slices.SortStableFunc(points, func(a, b ScalePoint) int {
		av, _ := termFloat(a.value.term)
		bv, _ := termFloat(b.value.term)
		return cmp.Compare(av, bv)
	})
	return newScalePoints(p.plugin.world, points)
}
