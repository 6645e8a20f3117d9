package host

// Plugins is a collection of plugins. The table returned by
// World.AllPlugins is live: loads and unloads made while iterating are seen
// by the following steps.
type Plugins struct {
	*Collection[func() []*pluginData, int, Plugin]
}

func newPlugins(w *World, src func() []*pluginData, owned bool) Plugins {
	get := func(pd *pluginData) Plugin { return Plugin{world: w, data: pd} }
	return Plugins{newCollection(w, src, sliceCursor(src, get), owned, nil)}
}

// Size returns the number of plugins.
func (ps Plugins) Size() int {
	n := 0
	ps.withLock(func(src func() []*pluginData) { n = len(src()) })
	return n
}

// ByURI returns the plugin with the given URI.
func (ps Plugins) ByURI(uri Node) (Plugin, bool) {
	want, ok := uri.AsURI()
	if !ok {
		return Plugin{}, false
	}
	var found Plugin
	ps.withLock(func(src func() []*pluginData) {
		for _, pd := range src() {
			if pd.uri == want {
				found = Plugin{world: ps.world, data: pd}
				return
			}
		}
	})
	return found, found.data != nil
}
