package host

import "github.com/reglet-dev/lv2host/domain/entities"

type classData struct {
	uri    string
	parent string
	label  string
}

// PluginClass is a category of plugins, such as lv2:ReverbPlugin.
type PluginClass struct {
	world *World
	data  *classData
}

// URI returns the class URI.
func (c PluginClass) URI() Node {
	if c.data == nil {
		return Node{}
	}
	return c.world.owned(entities.URI(c.data.uri))
}

// ParentURI returns the URI of the parent class. The root class has none.
func (c PluginClass) ParentURI() (Node, bool) {
	if c.data == nil || c.data.parent == "" {
		return Node{}, false
	}
	return c.world.owned(entities.URI(c.data.parent)), true
}

// Label returns the human readable class name.
func (c PluginClass) Label() Node {
	if c.data == nil {
		return Node{}
	}
	return c.world.owned(entities.String(c.data.label))
}

// Children returns the direct subclasses of c, as an owned snapshot.
func (c PluginClass) Children() PluginClasses {
	if c.data == nil {
		return PluginClasses{}
	}
	w := c.world
	w.mu.Lock()
	var children []*classData
	for _, cd := range w.classes {
		if cd.parent == c.data.uri {
			children = append(children, cd)
		}
	}
	w.mu.Unlock()
	return newPluginClasses(w, func() []*classData { return children }, true)
}

// PluginClasses is a collection of plugin classes.
type PluginClasses struct {
	*Collection[func() []*classData, int, PluginClass]
}

func newPluginClasses(w *World, src func() []*classData, owned bool) PluginClasses {
	get := func(cd *classData) PluginClass { return PluginClass{world: w, data: cd} }
	return PluginClasses{newCollection(w, src, sliceCursor(src, get), owned, nil)}
}

// Size returns the number of classes.
func (cs PluginClasses) Size() int {
	n := 0
	cs.withLock(func(src func() []*classData) { n = len(src()) })
	return n
}

// ByURI returns the class with the given URI.
func (cs PluginClasses) ByURI(uri Node) (PluginClass, bool) {
	want, ok := uri.AsURI()
	if !ok {
		return PluginClass{}, false
	}
	var found PluginClass
	cs.withLock(func(src func() []*classData) {
		for _, cd := range src() {
			if cd.uri == want {
				found = PluginClass{world: cs.world, data: cd}
				return
			}
		}
	})
	return found, found.data != nil
}
