// Package persist stores reverse-index snapshots in a SQLite database so an
// index survives between runs. The snapshot is stamped with the workspace
// root; loading against a different root is rejected, the same contract as
// the in-memory blob restore.
package persist

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkowalski/depspider/internal/model"
)

const schemaVersion = 1

// Store is the SQLite data access layer for index snapshots.
type Store struct {
	db *sql.DB
}

// Snapshot is one persisted index: per-source dependency lists plus the
// source file identities recorded at index time.
type Snapshot struct {
	Root    string
	Deps    map[string][]model.Dependency
	Sources map[string]model.FileMeta
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the snapshot tables. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  mtime           INTEGER NOT NULL,
  size            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deps (
  source          TEXT NOT NULL REFERENCES files(path),
  target          TEXT NOT NULL,
  kind            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  module          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deps_source ON deps(source);
CREATE INDEX IF NOT EXISTS idx_deps_target ON deps(target);
`

// Save transactionally replaces the stored snapshot.
func (s *Store) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM deps", "DELETE FROM files", "DELETE FROM meta"} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	metaStmt := "INSERT INTO meta (key, value) VALUES (?, ?)"
	if _, err := tx.Exec(metaStmt, "root", snap.Root); err != nil {
		return fmt.Errorf("store root: %w", err)
	}
	if _, err := tx.Exec(metaStmt, "schema_version", fmt.Sprint(schemaVersion)); err != nil {
		return fmt.Errorf("store schema version: %w", err)
	}

	for path, meta := range snap.Sources {
		if _, err := tx.Exec("INSERT INTO files (path, mtime, size) VALUES (?, ?, ?)",
			path, meta.ModTime, meta.Size); err != nil {
			return fmt.Errorf("insert file %s: %w", path, err)
		}
	}
	for source, deps := range snap.Deps {
		for _, d := range deps {
			if _, err := tx.Exec(
				"INSERT INTO deps (source, target, kind, line, module) VALUES (?, ?, ?, ?, ?)",
				source, d.Path, string(d.Kind), d.Line, d.Module); err != nil {
				return fmt.Errorf("insert dep %s -> %s: %w", source, d.Path, err)
			}
		}
	}
	return tx.Commit()
}

// Load reads the stored snapshot for the given root. Returns (nil, nil)
// when the database is empty or was built for a different root or schema
// version — a discarded restore, not an error.
func (s *Store) Load(root string) (*Snapshot, error) {
	var storedRoot, version string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'root'").Scan(&storedRoot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read root: %w", err)
	}
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if storedRoot != root || version != fmt.Sprint(schemaVersion) {
		return nil, nil
	}

	snap := &Snapshot{
		Root:    root,
		Deps:    make(map[string][]model.Dependency),
		Sources: make(map[string]model.FileMeta),
	}

	rows, err := s.db.Query("SELECT path, mtime, size FROM files")
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	for rows.Next() {
		var path string
		var meta model.FileMeta
		if err := rows.Scan(&path, &meta.ModTime, &meta.Size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		snap.Sources[path] = meta
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("files rows: %w", err)
	}

	rows, err = s.db.Query("SELECT source, target, kind, line, module FROM deps")
	if err != nil {
		return nil, fmt.Errorf("query deps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source, kind string
		var d model.Dependency
		if err := rows.Scan(&source, &d.Path, &kind, &d.Line, &d.Module); err != nil {
			return nil, fmt.Errorf("scan dep: %w", err)
		}
		d.Kind = model.DependencyKind(kind)
		snap.Deps[source] = append(snap.Deps[source], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deps rows: %w", err)
	}
	return snap, nil
}
