// Package store persists correction sessions in SQLite.
//
// One database file holds any number of ingested guides. Each guide row owns
// its extracted rules and guide chunks together with their embedding vectors
// (stored as little-endian float32 BLOBs), so a guide ingested once serves
// document corrections across process runs. Row position preserves the
// index's lock-step ordering between metadata and vectors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.redline/redline.db"

// Store is the SQLite-backed session store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens the session database at path, creating file and schema when
// missing. Pass ":memory:" for in-memory databases (testing).
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = expandPath(path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path after default and ~ expansion.
func (s *Store) Path() string {
	return s.dbPath
}

// Stats holds observability statistics about the store.
type Stats struct {
	Guides      int64
	Rules       int64
	Chunks      int64
	DBSizeBytes int64
}

// Stats returns row counts and the database file size.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM guides", &st.Guides},
		{"SELECT COUNT(*) FROM rules", &st.Rules},
		{"SELECT COUNT(*) FROM chunks", &st.Chunks},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}

	// DB size only works for file-based databases.
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		st.DBSizeBytes = pageCount * pageSize
	}
	return st, nil
}

// Vacuum runs VACUUM on the database. Manual only, never automatic.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
