// Package memstore implements an indexed in-memory metadata store.
package memstore

import (
	"cmp"
	"errors"
	"slices"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
)

var errClosed = errors.New("store is closed")

type refSet map[entities.TripleRef]struct{}

type termEntry struct {
	term entities.Term
	refs int
}

// Store keeps every graph in memory with one index per statement position.
// It is not safe for concurrent use.
type Store struct {
	terms  map[entities.TermID]*termEntry
	ids    map[entities.Term]entities.TermID
	nextID entities.TermID

	graphs map[string]refSet
	// number of graphs holding each statement
	counts map[entities.TripleRef]int

	bySubject   map[entities.TermID]refSet
	byPredicate map[entities.TermID]refSet
	byObject    map[entities.TermID]refSet

	closed bool
}

var _ ports.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		terms:       make(map[entities.TermID]*termEntry),
		ids:         make(map[entities.Term]entities.TermID),
		graphs:      make(map[string]refSet),
		counts:      make(map[entities.TripleRef]int),
		bySubject:   make(map[entities.TermID]refSet),
		byPredicate: make(map[entities.TermID]refSet),
		byObject:    make(map[entities.TermID]refSet),
	}
}

// Insert adds statements to graph.
func (s *Store) Insert(graph string, triples []entities.Triple) error {
	if s.closed {
		return errClosed
	}
	set, ok := s.graphs[graph]
	if !ok {
		set = make(refSet)
		s.graphs[graph] = set
	}
	for _, t := range triples {
		if ref, ok := s.existing(t); ok {
			if _, dup := set[ref]; dup {
				continue
			}
		}
		ref := entities.TripleRef{
			Subject:   s.intern(t.Subject),
			Predicate: s.intern(t.Predicate),
			Object:    s.intern(t.Object),
		}
		set[ref] = struct{}{}
		s.counts[ref]++
		if s.counts[ref] == 1 {
			index(s.bySubject, ref.Subject, ref)
			index(s.byPredicate, ref.Predicate, ref)
			index(s.byObject, ref.Object, ref)
		}
	}
	return nil
}

// DropGraph removes graph and releases terms no other statement refers to.
func (s *Store) DropGraph(graph string) (int, error) {
	if s.closed {
		return 0, errClosed
	}
	set, ok := s.graphs[graph]
	if !ok {
		return 0, nil
	}
	delete(s.graphs, graph)
	for ref := range set {
		s.counts[ref]--
		if s.counts[ref] == 0 {
			delete(s.counts, ref)
			unindex(s.bySubject, ref.Subject, ref)
			unindex(s.byPredicate, ref.Predicate, ref)
			unindex(s.byObject, ref.Object, ref)
		}
		s.release(ref.Subject)
		s.release(ref.Predicate)
		s.release(ref.Object)
	}
	return len(set), nil
}

// Match returns the statements matching pattern.
func (s *Store) Match(pattern entities.Pattern) ([]entities.TripleRef, error) {
	if s.closed {
		return nil, errClosed
	}
	var want entities.TripleRef
	var candidates refSet
	narrow := func(term entities.Term, idx map[entities.TermID]refSet, dst *entities.TermID) bool {
		if term.IsZero() {
			return true
		}
		id, ok := s.ids[term]
		if !ok {
			return false
		}
		*dst = id
		if set := idx[id]; candidates == nil || len(set) < len(candidates) {
			candidates = set
		}
		return true
	}
	if !narrow(pattern.Subject, s.bySubject, &want.Subject) ||
		!narrow(pattern.Predicate, s.byPredicate, &want.Predicate) ||
		!narrow(pattern.Object, s.byObject, &want.Object) {
		return nil, nil
	}

	var out []entities.TripleRef
	match := func(ref entities.TripleRef) {
		if (want.Subject == 0 || ref.Subject == want.Subject) &&
			(want.Predicate == 0 || ref.Predicate == want.Predicate) &&
			(want.Object == 0 || ref.Object == want.Object) {
			out = append(out, ref)
		}
	}
	if candidates == nil && pattern.Wildcards() == 3 {
		for ref := range s.counts {
			match(ref)
		}
	} else {
		for ref := range candidates {
			match(ref)
		}
	}
	slices.SortFunc(out, compareRefs)
	return out, nil
}

// Term resolves id.
func (s *Store) Term(id entities.TermID) (entities.Term, bool) {
	e, ok := s.terms[id]
	if !ok {
		return entities.Term{}, false
	}
	return e.term, true
}

// Len returns the number of distinct statements across all graphs.
func (s *Store) Len() int {
	return len(s.counts)
}

// Close drops every graph.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	clear(s.terms)
	clear(s.ids)
	clear(s.graphs)
	clear(s.counts)
	clear(s.bySubject)
	clear(s.byPredicate)
	clear(s.byObject)
	return nil
}

func (s *Store) existing(t entities.Triple) (entities.TripleRef, bool) {
	sid, ok1 := s.ids[t.Subject]
	pid, ok2 := s.ids[t.Predicate]
	oid, ok3 := s.ids[t.Object]
	return entities.TripleRef{Subject: sid, Predicate: pid, Object: oid}, ok1 && ok2 && ok3
}

func (s *Store) intern(term entities.Term) entities.TermID {
	if id, ok := s.ids[term]; ok {
		s.terms[id].refs++
		return id
	}
	s.nextID++
	s.ids[term] = s.nextID
	s.terms[s.nextID] = &termEntry{term: term, refs: 1}
	return s.nextID
}

func (s *Store) release(id entities.TermID) {
	e, ok := s.terms[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(s.terms, id)
		delete(s.ids, e.term)
	}
}

func index(idx map[entities.TermID]refSet, id entities.TermID, ref entities.TripleRef) {
	set, ok := idx[id]
	if !ok {
		set = make(refSet)
		idx[id] = set
	}
	set[ref] = struct{}{}
}

func unindex(idx map[entities.TermID]refSet, id entities.TermID, ref entities.TripleRef) {
	set := idx[id]
	delete(set, ref)
	if len(set) == 0 {
		delete(idx, id)
	}
}

func compareRefs(a, b entities.TripleRef) int {
	if c := cmp.Compare(a.Subject, b.Subject); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	return cmp.Compare(a.Object, b.Object)
}
