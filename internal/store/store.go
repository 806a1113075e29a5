// Package store is a SQLite-backed (modernc.org/sqlite, pure Go, no
// cgo) implementation of hostiface.Storage and hostiface.Allocator,
// standing in for the real contract storage backend: the core sees
// storage only through an abstract fact reference and the host's
// load/store primitives. The CLI and integration tests use it so the
// engine can be exercised against something closer to persistent
// storage than mockhost's in-memory map.
//
// sql.Open("sqlite", path) plus WAL/synchronous pragma setup and
// MkdirAll-before-open sequencing, scoped down to the one fact-field
// table this engine needs, with one mutex per Store so several
// contract instances' stores can coexist.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Alon769/lity/internal/hostiface"
	_ "modernc.org/sqlite"
)

// Store is a durable hostiface.Storage/Allocator backed by a single
// SQLite database file: one row per fact instance, its type name and a
// JSON-encoded field map.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates (if needed) and opens the SQLite database at path,
// creating its parent directory and the fact_records schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS fact_records (
	ref        INTEGER PRIMARY KEY,
	type_name  TEXT NOT NULL,
	fields     TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// storedValue is Value's JSON wire shape; hostiface.Value carries all
// three kinds' payloads inline, so only Kind plus the one populated
// field round-trips meaningfully.
type storedValue struct {
	Kind hostiface.ValueKind `json:"kind"`
	Int  int64               `json:"int,omitempty"`
	Bool bool                `json:"bool,omitempty"`
	Str  string              `json:"str,omitempty"`
}

func toStored(v hostiface.Value) storedValue {
	return storedValue{Kind: v.Kind, Int: v.Int, Bool: v.Bool, Str: v.Str}
}

func fromStored(sv storedValue) hostiface.Value {
	return hostiface.Value{Kind: sv.Kind, Int: sv.Int, Bool: sv.Bool, Str: sv.Str}
}

// New implements hostiface.Allocator: it inserts a fresh row and returns
// its rowid as the fact reference — factInsert captures this ref
// without dereferencing fields.
func (s *Store) New(typeName string, fields map[string]hostiface.Value) (hostiface.Ref, error) {
	encoded := make(map[string]storedValue, len(fields))
	for k, v := range fields {
		encoded[k] = toStored(v)
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return 0, fmt.Errorf("store: encode fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`INSERT INTO fact_records(type_name, fields) VALUES (?, ?)`, typeName, string(data))
	if err != nil {
		return 0, fmt.Errorf("store: insert %s: %w", typeName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: read rowid: %w", err)
	}
	return hostiface.Ref(id), nil
}

// Load implements hostiface.Storage, returning a Record whose Get/Set
// methods read and write straight through to this row.
func (s *Store) Load(ref hostiface.Ref) (hostiface.Record, error) {
	s.mu.Lock()
	var typeName, fieldsJSON string
	err := s.db.QueryRow(`SELECT type_name, fields FROM fact_records WHERE ref = ?`, int64(ref)).Scan(&typeName, &fieldsJSON)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store: load ref %d: %w", ref, err)
	}
	return &sqliteRecord{store: s, ref: ref, typeName: typeName}, nil
}

// sqliteRecord is a live view onto one fact_records row, re-reading and
// re-writing the whole JSON blob on every Get/Set. The engine never
// caches field values itself, so this simple round-trip-per-access
// strategy is sufficient and keeps concurrent mutation from the host
// and from RHS code trivially consistent.
type sqliteRecord struct {
	store    *Store
	ref      hostiface.Ref
	typeName string
}

func (r *sqliteRecord) TypeName() string { return r.typeName }

func (r *sqliteRecord) readFields() (map[string]storedValue, error) {
	r.store.mu.Lock()
	var fieldsJSON string
	err := r.store.db.QueryRow(`SELECT fields FROM fact_records WHERE ref = ?`, int64(r.ref)).Scan(&fieldsJSON)
	r.store.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store: read fields for ref %d: %w", r.ref, err)
	}
	var out map[string]storedValue
	if err := json.Unmarshal([]byte(fieldsJSON), &out); err != nil {
		return nil, fmt.Errorf("store: decode fields for ref %d: %w", r.ref, err)
	}
	return out, nil
}

func (r *sqliteRecord) Get(field string) (hostiface.Value, bool) {
	fields, err := r.readFields()
	if err != nil {
		return hostiface.Value{}, false
	}
	sv, ok := fields[field]
	if !ok {
		return hostiface.Value{}, false
	}
	return fromStored(sv), true
}

func (r *sqliteRecord) Set(field string, v hostiface.Value) error {
	fields, err := r.readFields()
	if err != nil {
		return err
	}
	fields[field] = toStored(v)
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: encode fields for ref %d: %w", r.ref, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, err := r.store.db.Exec(`UPDATE fact_records SET fields = ? WHERE ref = ?`, string(data), int64(r.ref)); err != nil {
		return fmt.Errorf("store: update ref %d: %w", r.ref, err)
	}
	return nil
}
