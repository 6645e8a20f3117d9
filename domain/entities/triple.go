package entities

// TermID identifies a term interned by a store. IDs are never reused within
// the lifetime of a store, so a stale ID resolves to nothing rather than to a
// different value.
type TermID uint64

// Triple is a subject/predicate/object statement made of term values.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// TripleRef is a statement whose positions refer to interned terms.
type TripleRef struct {
	Subject   TermID
	Predicate TermID
	Object    TermID
}

// Pattern is a triple pattern; zero Terms match anything.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Wildcards returns how many positions of the pattern are elided.
func (p Pattern) Wildcards() int {
	n := 0
	for _, t := range [3]Term{p.Subject, p.Predicate, p.Object} {
		if t.IsZero() {
			n++
		}
	}
	return n
}
