package store

import "fmt"

// schemaVersion is bumped whenever the bootstrap DDL changes shape.
const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
// Everything is IF NOT EXISTS, so it is safe to run on every open.
func (s *Store) migrate() error {
	statements := []string{
		// One row per ingested guide session. embed_spec records the
		// provider/model that produced the vectors; loading with a different
		// embedder would make query distances meaningless.
		`CREATE TABLE IF NOT EXISTS guides (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			embed_spec TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			sections   INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Extracted rules in extraction order. position is the lock-step
		// ordinal shared between metadata and vector; vector holds the raw
		// rule-space embedding as little-endian float32s.
		`CREATE TABLE IF NOT EXISTS rules (
			guide_id    INTEGER NOT NULL REFERENCES guides(id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			rule_id     TEXT NOT NULL,
			category    TEXT NOT NULL,
			rule_type   TEXT NOT NULL,
			description TEXT,
			pattern     TEXT NOT NULL,
			replacement TEXT,
			examples    TEXT,
			context     TEXT,
			vector      BLOB NOT NULL,
			PRIMARY KEY (guide_id, position)
		)`,

		// Guide chunks in ingestion order; vector holds the normalized
		// chunk-space embedding.
		`CREATE TABLE IF NOT EXISTS chunks (
			guide_id  INTEGER NOT NULL REFERENCES guides(id) ON DELETE CASCADE,
			position  INTEGER NOT NULL,
			chunk_id  TEXT NOT NULL,
			content   TEXT NOT NULL,
			section   TEXT,
			rule_type TEXT,
			examples  TEXT,
			metadata  TEXT,
			vector    BLOB NOT NULL,
			PRIMARY KEY (guide_id, position)
		)`,

		// Schema metadata.
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`,
		schemaVersion,
	)
	if err != nil {
		return fmt.Errorf("seeding schema version: %w", err)
	}
	return nil
}
