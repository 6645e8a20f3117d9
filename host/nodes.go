package host

import "github.com/reglet-dev/lv2host/domain/entities"

type nodeList struct {
	items []Node
}

// Nodes is a collection of Nodes returned by queries.
type Nodes struct {
	*Collection[*nodeList, int, Node]
}

var nodeCursor = Cursor[*nodeList, int, Node]{
	Begin: func(*nodeList) int { return 0 },
	IsEnd: func(l *nodeList, i int) bool { return i >= len(l.items) },
	Next:  func(_ *nodeList, i int) int { return i + 1 },
	Get:   func(l *nodeList, i int) Node { return l.items[i] },
}

func newNodes(w *World, items []Node, owned bool) Nodes {
	return Nodes{newCollection(w, &nodeList{items: items}, nodeCursor, owned, func(l *nodeList) {
		l.items = nil
	})}
}

// Size returns the number of nodes.
func (ns Nodes) Size() int {
	n := 0
	ns.withLock(func(l *nodeList) { n = len(l.items) })
	return n
}

// First returns the first node.
func (ns Nodes) First() (Node, bool) {
	for n := range ns.All() {
		return n, true
	}
	return Node{}, false
}

// Contains reports whether a node equal to value is in the collection.
func (ns Nodes) Contains(value Node) bool {
	want, ok := value.resolve()
	if !ok {
		return false
	}
	found := false
	ns.withLock(func(l *nodeList) {
		for _, n := range l.items {
			if t, ok := n.resolveLocked(); ok && t == want {
				found = true
				return
			}
		}
	})
	return found
}

// Merge returns a new owned collection holding the union of ns and other,
// in order, without duplicates.
func (ns Nodes) Merge(other Nodes) Nodes {
	var w *World
	for _, c := range []Nodes{ns, other} {
		if c.Collection != nil && c.world != nil {
			w = c.world
			break
		}
	}
	if w == nil {
		return Nodes{}
	}

	seen := make(map[entities.Term]bool)
	var out []Node
	for _, c := range []Nodes{ns, other} {
		for n := range c.All() {
			t, ok := n.resolve()
			if !ok || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, w.owned(t))
		}
	}
	return newNodes(w, out, true)
}
