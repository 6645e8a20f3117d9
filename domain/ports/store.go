package ports

import "github.com/reglet-dev/lv2host/domain/entities"

// Store is the metadata store a World wraps. Implementations are not
// required to be safe for concurrent use; the World serialises every call.
//
// Terms are interned on insert and identified by TermID until the last
// statement referring to them is dropped. IDs are never reused.
type Store interface {
	// Insert adds statements to the named graph, interning their terms.
	// Inserting a statement already present in the graph is a no-op.
	Insert(graph string, triples []entities.Triple) error

	// DropGraph removes every statement of the graph and returns how many
	// statements were removed.
	DropGraph(graph string) (int, error)

	// Match returns the distinct statements, across all graphs, matching the
	// pattern. Zero terms in the pattern match anything. Results are ordered
	// by subject, predicate and object ID.
	Match(pattern entities.Pattern) ([]entities.TripleRef, error)

	// Term resolves an interned term. It reports false once the term has been
	// dropped.
	Term(id entities.TermID) (entities.Term, bool)

	// Close releases the store.
	Close() error
}
