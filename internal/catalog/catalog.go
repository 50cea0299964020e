// Package catalog persists named HPL requirement definitions, so a
// fleet of simulation rigs can share a library of named properties
// instead of copy-pasting HPL text into every run. Grounded on
// scheduler.Store's SQLite schema and migration shape, renamed from
// tasks/executions to the one table this domain needs.
//
// The catalog never stores a run verdict: only the requirement's name
// and its HPL source text. Verdicts are the Manager's concern, not the
// catalog's — see internal/report for rendering one.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Definition is one named requirement entry: a human-chosen name and
// the HPL source text that, when parsed, produces one or more
// requirements-tree patterns.
type Definition struct {
	ID        string
	Name      string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQLite-backed catalog of Definitions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog database at dbPath and
// runs its migration.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requirement_defs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewID generates a new UUIDv7, falling back to v4 if the clock-based
// generator fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Add inserts a new named definition. name must be unique.
func (s *Store) Add(name, source string) (*Definition, error) {
	now := time.Now()
	d := &Definition{
		ID:        NewID(),
		Name:      name,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO requirement_defs (id, name, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.Source, d.CreatedAt.Format(time.RFC3339Nano), d.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("catalog: add %q: %w", name, err)
	}
	return d, nil
}

// Get retrieves a definition by name. Returns nil, nil if no such name
// exists.
func (s *Store) Get(name string) (*Definition, error) {
	row := s.db.QueryRow(`
		SELECT id, name, source, created_at, updated_at
		FROM requirement_defs WHERE name = ?
	`, name)

	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// List returns every definition, ordered by name.
func (s *Store) List() ([]*Definition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, source, created_at, updated_at
		FROM requirement_defs ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		var d Definition
		var createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.Name, &d.Source, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		defs = append(defs, &d)
	}
	return defs, rows.Err()
}

// Remove deletes a definition by name. Returns sql.ErrNoRows if it
// doesn't exist.
func (s *Store) Remove(name string) error {
	res, err := s.db.Exec(`DELETE FROM requirement_defs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("catalog: remove %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanDefinition(row *sql.Row) (*Definition, error) {
	var d Definition
	var createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.Name, &d.Source, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &d, nil
}
