// Package sqlitestore implements a metadata store on SQLite.
//
// It trades the speed of the in-memory store for a bounded heap, which
// matters on systems with thousands of installed bundles, and for the
// ability to keep the metadata in a file between runs.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS terms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind INTEGER NOT NULL,
	value TEXT NOT NULL,
	datatype TEXT NOT NULL DEFAULT '',
	lang TEXT NOT NULL DEFAULT '',
	UNIQUE (kind, value, datatype, lang)
);

CREATE TABLE IF NOT EXISTS quads (
	graph TEXT NOT NULL,
	s INTEGER NOT NULL REFERENCES terms(id),
	p INTEGER NOT NULL REFERENCES terms(id),
	o INTEGER NOT NULL REFERENCES terms(id),
	PRIMARY KEY (graph, s, p, o)
);

CREATE INDEX IF NOT EXISTS quads_s ON quads(s, p);
CREATE INDEX IF NOT EXISTS quads_p ON quads(p, o);
CREATE INDEX IF NOT EXISTS quads_o ON quads(o);
`

const dropOrphans = `
DELETE FROM terms WHERE id NOT IN (
	SELECT s FROM quads UNION SELECT p FROM quads UNION SELECT o FROM quads
)`

// storeConfig holds configuration for the Store.
type storeConfig struct {
	path  string // database file, or ":memory:"
	reset bool   // drop existing data on open
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		path:  ":memory:",
		reset: true,
	}
}

// StoreOption configures a Store instance.
type StoreOption func(*storeConfig)

// WithPath stores the metadata in the database file at path.
func WithPath(path string) StoreOption {
	return func(c *storeConfig) {
		c.path = path
	}
}

// WithReset controls whether data left in the file by a previous run is
// discarded on open. Default is true: bundles are rescanned on every start.
func WithReset(enabled bool) StoreOption {
	return func(c *storeConfig) {
		c.reset = enabled
	}
}

// Store is a ports.Store backed by a single SQLite connection.
type Store struct {
	db *sql.DB
}

var _ ports.Store = (*Store)(nil)

// Open creates or opens the database and prepares its schema.
func Open(opts ...StoreOption) (*Store, error) {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", cfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	// A private in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if cfg.reset {
		if _, err := db.Exec(`DROP TABLE IF EXISTS quads; DROP TABLE IF EXISTS terms;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to reset metadata database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create metadata schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert adds statements to graph in one transaction.
func (s *Store) Insert(graph string, triples []entities.Triple) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	internStmt, err := tx.Prepare(`INSERT OR IGNORE INTO terms (kind, value, datatype, lang) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer internStmt.Close()
	lookupStmt, err := tx.Prepare(`SELECT id FROM terms WHERE kind = ? AND value = ? AND datatype = ? AND lang = ?`)
	if err != nil {
		return err
	}
	defer lookupStmt.Close()
	quadStmt, err := tx.Prepare(`INSERT OR IGNORE INTO quads (graph, s, p, o) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer quadStmt.Close()

	intern := func(t entities.Term) (int64, error) {
		if _, err := internStmt.Exec(int64(t.Kind), t.Value, t.Datatype, t.Lang); err != nil {
			return 0, fmt.Errorf("failed to intern term %q: %w", t.Value, err)
		}
		var id int64
		if err := lookupStmt.QueryRow(int64(t.Kind), t.Value, t.Datatype, t.Lang).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to intern term %q: %w", t.Value, err)
		}
		return id, nil
	}

	for _, t := range triples {
		sid, err := intern(t.Subject)
		if err != nil {
			return err
		}
		pid, err := intern(t.Predicate)
		if err != nil {
			return err
		}
		oid, err := intern(t.Object)
		if err != nil {
			return err
		}
		if _, err := quadStmt.Exec(graph, sid, pid, oid); err != nil {
			return fmt.Errorf("failed to insert statement: %w", err)
		}
	}
	return tx.Commit()
}

// DropGraph removes graph and every term left unreferenced.
func (s *Store) DropGraph(graph string) (n int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin drop: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Exec(`DELETE FROM quads WHERE graph = ?`, graph)
	if err != nil {
		return 0, fmt.Errorf("failed to drop graph %s: %w", graph, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(dropOrphans); err != nil {
		return 0, fmt.Errorf("failed to release terms: %w", err)
	}
	return int(affected), tx.Commit()
}

// Match returns the distinct statements matching pattern.
func (s *Store) Match(pattern entities.Pattern) ([]entities.TripleRef, error) {
	query := `SELECT DISTINCT s, p, o FROM quads WHERE 1 = 1`
	var args []any
	for _, pos := range []struct {
		column string
		term   entities.Term
	}{
		{"s", pattern.Subject},
		{"p", pattern.Predicate},
		{"o", pattern.Object},
	} {
		if pos.term.IsZero() {
			continue
		}
		id, ok, err := s.lookup(pos.term)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		query += " AND " + pos.column + " = ?"
		args = append(args, id)
	}
	query += ` ORDER BY s, p, o`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to match pattern: %w", err)
	}
	defer rows.Close()

	var out []entities.TripleRef
	for rows.Next() {
		var ref entities.TripleRef
		if err := rows.Scan(&ref.Subject, &ref.Predicate, &ref.Object); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Term resolves id.
func (s *Store) Term(id entities.TermID) (entities.Term, bool) {
	var t entities.Term
	err := s.db.QueryRow(`SELECT kind, value, datatype, lang FROM terms WHERE id = ?`, int64(id)).
		Scan(&t.Kind, &t.Value, &t.Datatype, &t.Lang)
	if err != nil {
		return entities.Term{}, false
	}
	return t, true
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lookup(t entities.Term) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM terms WHERE kind = ? AND value = ? AND datatype = ? AND lang = ?`,
		int64(t.Kind), t.Value, t.Datatype, t.Lang).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up term: %w", err)
	}
	return id, true, nil
}
