package host

import (
	"strconv"
	"strings"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/vocabulary"
)

// FindNodes returns the nodes completing a triple pattern. Exactly one of
// subject and object may be nil; the collection then holds the matching
// objects or subjects. Both nil, or a nil predicate, is a caller bug: it is
// logged and answered with an empty collection. When neither is nil the
// collection holds object if the statement exists.
func (w *World) FindNodes(subject, predicate, object *Node) Nodes {
	if (subject == nil && object == nil) || predicate == nil {
		w.logger.Error("find nodes called without a subject or object, or without a predicate")
		return newNodes(w, nil, true)
	}
	s, p, o, ok := resolvePattern(subject, predicate, object)
	if !ok {
		return newNodes(w, nil, true)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case object == nil:
		return newNodes(w, w.objectsLocked(s, p), true)
	case subject == nil:
		return newNodes(w, w.subjectsLocked(p, o), true)
	default:
		if !w.askLocked(s, p, o) {
			return newNodes(w, nil, true)
		}
		return newNodes(w, []Node{w.owned(o)}, true)
	}
}

// Get returns a single node completing a triple pattern in which exactly one
// of subject, predicate and object is nil.
func (w *World) Get(subject, predicate, object *Node) (Node, bool) {
	nils := 0
	for _, n := range []*Node{subject, predicate, object} {
		if n == nil {
			nils++
		}
	}
	if nils != 1 {
		w.logger.Error("get requires exactly one wildcard", "wildcards", nils)
		return Node{}, false
	}
	s, p, o, ok := resolvePattern(subject, predicate, object)
	if !ok {
		return Node{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var found []Node
	switch {
	case object == nil:
		found = w.objectsLocked(s, p)
	case subject == nil:
		found = w.subjectsLocked(p, o)
	default:
		for _, ref := range w.matchLocked(entities.Pattern{Subject: s, Object: o}) {
			found = append(found, w.borrowed(ref.Predicate))
		}
	}
	if len(found) == 0 {
		return Node{}, false
	}
	return found[0], true
}

// Ask reports whether any statement matches the pattern. Any position may
// be nil.
func (w *World) Ask(subject, predicate, object *Node) bool {
	s, p, o, ok := resolvePattern(subject, predicate, object)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.askLocked(s, p, o)
}

// GetSymbol returns the lv2:symbol of subject, or a symbol derived from the
// last segment of its URI.
func (w *World) GetSymbol(subject Node) (Node, bool) {
	t, ok := subject.resolve()
	if !ok {
		return Node{}, false
	}
	w.mu.Lock()
	sym, found := w.firstObjectTermLocked(t, entities.URI(vocabulary.LV2Symbol))
	w.mu.Unlock()
	if found && sym.Kind == entities.KindString {
		return w.owned(entities.String(sym.Value)), true
	}
	if t.Kind != entities.KindURI {
		return Node{}, false
	}
	return w.owned(entities.String(symbolify(t.Value))), true
}

// symbolify derives a C identifier from the last segment of a URI.
func symbolify(uri string) string {
	uri = strings.TrimRight(uri, "/#")
	if i := strings.LastIndexAny(uri, "/#:"); i >= 0 {
		uri = uri[i+1:]
	}
	var b strings.Builder
	for i, r := range uri {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// isSymbol reports whether s is a valid C identifier.
func isSymbol(s string) bool {
	return s != "" && symbolify(s) == s && !strings.ContainsAny(s, "/#:")
}

func resolvePattern(subject, predicate, object *Node) (s, p, o entities.Term, ok bool) {
	resolve := func(n *Node, dst *entities.Term) bool {
		if n == nil {
			return true
		}
		t, ok := n.resolve()
		*dst = t
		return ok
	}
	ok = resolve(subject, &s) && resolve(predicate, &p) && resolve(object, &o)
	return s, p, o, ok
}

func (w *World) borrowed(id entities.TermID) Node {
	return Node{world: w, id: id, borrowed: true}
}

func (w *World) termLocked(id entities.TermID) (entities.Term, bool) {
	if w.destroyed {
		return entities.Term{}, false
	}
	return w.store.Term(id)
}

func (w *World) matchLocked(p entities.Pattern) []entities.TripleRef {
	if w.destroyed {
		return nil
	}
	refs, err := w.store.Match(p)
	if err != nil {
		w.logger.Error("metadata query failed", "error", err)
		return nil
	}
	return refs
}

func (w *World) askLocked(s, p, o entities.Term) bool {
	return len(w.matchLocked(entities.Pattern{Subject: s, Predicate: p, Object: o})) > 0
}

// objectsLocked returns the objects of (s, p), filtered by language.
func (w *World) objectsLocked(s, p entities.Term) []Node {
	refs := w.matchLocked(entities.Pattern{Subject: s, Predicate: p})
	items := make([]langItem, 0, len(refs))
	for _, ref := range refs {
		if t, ok := w.termLocked(ref.Object); ok {
			items = append(items, langItem{id: ref.Object, term: t})
		}
	}
	items = w.filterLangLocked(items)
	out := make([]Node, len(items))
	for i, it := range items {
		out[i] = w.borrowed(it.id)
	}
	return out
}

// subjectsLocked returns the distinct subjects of (p, o).
func (w *World) subjectsLocked(p, o entities.Term) []Node {
	var out []Node
	var last entities.TermID
	for _, ref := range w.matchLocked(entities.Pattern{Predicate: p, Object: o}) {
		if ref.Subject != last {
			out = append(out, w.borrowed(ref.Subject))
			last = ref.Subject
		}
	}
	return out
}

func (w *World) objectTermsLocked(s, p entities.Term) []entities.Term {
	nodes := w.objectsLocked(s, p)
	out := make([]entities.Term, 0, len(nodes))
	for _, n := range nodes {
		if t, ok := w.termLocked(n.id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (w *World) subjectTermsLocked(p, o entities.Term) []entities.Term {
	nodes := w.subjectsLocked(p, o)
	out := make([]entities.Term, 0, len(nodes))
	for _, n := range nodes {
		if t, ok := w.termLocked(n.id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (w *World) firstObjectTermLocked(s, p entities.Term) (entities.Term, bool) {
	terms := w.objectTermsLocked(s, p)
	if len(terms) == 0 {
		return entities.Term{}, false
	}
	return terms[0], true
}

type langItem struct {
	id   entities.TermID
	term entities.Term
}

type langRank int

const (
	rankOther langRank = iota // not a string literal, always kept
	rankExact
	rankPartial
	rankUntagged
	rankForeign
)

// filterLangLocked keeps non-string values plus the best available language
// variant of string literals: an exact match of the configured language,
// else a match of its primary subtag, else untagged literals, else all.
func (w *World) filterLangLocked(items []langItem) []langItem {
	if !w.config.filterLang || len(items) < 2 {
		return items
	}
	lang := w.config.lang
	primary, _, _ := strings.Cut(lang, "-")

	rank := func(t entities.Term) langRank {
		switch {
		case t.Kind != entities.KindString:
			return rankOther
		case t.Lang == "":
			return rankUntagged
		case lang != "" && strings.EqualFold(t.Lang, lang):
			return rankExact
		case primary != "":
			if p, _, _ := strings.Cut(t.Lang, "-"); strings.EqualFold(p, primary) {
				return rankPartial
			}
		}
		return rankForeign
	}

	best := rankForeign + 1
	for _, it := range items {
		if r := rank(it.term); r != rankOther && r < best {
			best = r
		}
	}
	out := items[:0:0]
	for _, it := range items {
		if r := rank(it.term); r == rankOther || r == best {
			out = append(out, it)
		}
	}
	return out
}

func atoi32(s string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
