package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/rules"
)

// ErrNotFound is returned when no guide matches a lookup.
var ErrNotFound = errors.New("guide not found")

// Guide is one persisted guide session's metadata.
type Guide struct {
	ID         int64
	Name       string
	EmbedSpec  string
	Dimensions int
	Sections   int
	CreatedAt  time.Time
	Rules      int
	Chunks     int
}

const guideColumns = `g.id, g.name, g.embed_spec, g.dimensions, g.sections, g.created_at,
	(SELECT COUNT(*) FROM rules r WHERE r.guide_id = g.id),
	(SELECT COUNT(*) FROM chunks c WHERE c.guide_id = g.id)`

// SaveGuide persists an index snapshot as a new guide session and returns its
// id. Previous sessions are kept; LatestGuide resolves the newest one. The
// snapshot's lock-step ordering is written as an explicit position column and
// every vector must match the stated dimensions.
func (s *Store) SaveGuide(ctx context.Context, name, embedSpec string, dims, sections int, snap *index.Snapshot) (int64, error) {
	if len(snap.Rules) != len(snap.RuleVecs) {
		return 0, fmt.Errorf("snapshot out of lock-step: %d rules, %d rule vectors", len(snap.Rules), len(snap.RuleVecs))
	}
	if len(snap.Chunks) != len(snap.ChunkVecs) {
		return 0, fmt.Errorf("snapshot out of lock-step: %d chunks, %d chunk vectors", len(snap.Chunks), len(snap.ChunkVecs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO guides (name, embed_spec, dimensions, sections, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		name, embedSpec, dims, sections, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting guide: %w", err)
	}
	guideID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting guide id: %w", err)
	}

	ruleStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rules (guide_id, position, rule_id, category, rule_type, description,
		                    pattern, replacement, examples, context, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing rule insert: %w", err)
	}
	defer ruleStmt.Close()

	for i, r := range snap.Rules {
		vec := snap.RuleVecs[i]
		if len(vec) != dims {
			return 0, fmt.Errorf("rule %d: vector has %d values, want %d", i, len(vec), dims)
		}
		examples, err := json.Marshal(r.Examples)
		if err != nil {
			return 0, fmt.Errorf("rule %d: encoding examples: %w", i, err)
		}
		rctx, err := json.Marshal(r.Context)
		if err != nil {
			return 0, fmt.Errorf("rule %d: encoding context: %w", i, err)
		}
		_, err = ruleStmt.ExecContext(ctx,
			guideID, i, r.ID, string(r.Category), string(r.Type), r.Description,
			r.Pattern, r.Replacement, string(examples), string(rctx), float32ToBytes(vec),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting rule %d: %w", i, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (guide_id, position, chunk_id, content, section, rule_type, examples, metadata, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	for i, c := range snap.Chunks {
		vec := snap.ChunkVecs[i]
		if len(vec) != dims {
			return 0, fmt.Errorf("chunk %d: vector has %d values, want %d", i, len(vec), dims)
		}
		examples, err := json.Marshal(c.Examples)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: encoding examples: %w", i, err)
		}
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: encoding metadata: %w", i, err)
		}
		_, err = chunkStmt.ExecContext(ctx,
			guideID, i, c.ID, c.Content, c.Section, c.RuleType, string(examples), string(metadata), float32ToBytes(vec),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing guide: %w", err)
	}
	return guideID, nil
}

// GetGuide returns one guide's metadata by id.
func (s *Store) GetGuide(ctx context.Context, id int64) (*Guide, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+guideColumns+" FROM guides g WHERE g.id = ?", id)
	return scanGuide(row)
}

// LatestGuide returns the most recently saved guide session.
func (s *Store) LatestGuide(ctx context.Context) (*Guide, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+guideColumns+" FROM guides g ORDER BY g.id DESC LIMIT 1")
	return scanGuide(row)
}

// ListGuides returns all guide sessions, newest first.
func (s *Store) ListGuides(ctx context.Context) ([]*Guide, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+guideColumns+" FROM guides g ORDER BY g.id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing guides: %w", err)
	}
	defer rows.Close()

	var guides []*Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}

// DeleteGuide removes a guide session and, through the cascade, its rules and
// chunks.
func (s *Store) DeleteGuide(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM guides WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting guide %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadSnapshot reads a guide session back into an index snapshot, rules and
// chunks in their stored lock-step order. A vector whose length disagrees
// with the guide's dimensions means the row is corrupt and fails the load.
func (s *Store) LoadSnapshot(ctx context.Context, guideID int64) (*index.Snapshot, error) {
	g, err := s.GetGuide(ctx, guideID)
	if err != nil {
		return nil, err
	}

	snap := &index.Snapshot{}

	ruleRows, err := s.db.QueryContext(ctx,
		`SELECT rule_id, category, rule_type, description, pattern, replacement, examples, context, vector
		 FROM rules WHERE guide_id = ? ORDER BY position`, guideID)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var r rules.Rule
		var category, ruleType, examples, rctx string
		var blob []byte
		if err := ruleRows.Scan(&r.ID, &category, &ruleType, &r.Description,
			&r.Pattern, &r.Replacement, &examples, &rctx, &blob); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		r.Category = rules.Category(category)
		r.Type = rules.Type(ruleType)
		if err := json.Unmarshal([]byte(examples), &r.Examples); err != nil {
			return nil, fmt.Errorf("decoding rule examples: %w", err)
		}
		if err := json.Unmarshal([]byte(rctx), &r.Context); err != nil {
			return nil, fmt.Errorf("decoding rule context: %w", err)
		}
		vec := bytesToFloat32(blob)
		if len(vec) != g.Dimensions {
			return nil, fmt.Errorf("guide %d rule %d: vector has %d values, want %d",
				guideID, len(snap.Rules), len(vec), g.Dimensions)
		}
		snap.Rules = append(snap.Rules, r)
		snap.RuleVecs = append(snap.RuleVecs, vec)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	chunkRows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, content, section, rule_type, examples, metadata, vector
		 FROM chunks WHERE guide_id = ? ORDER BY position`, guideID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer chunkRows.Close()
	for chunkRows.Next() {
		var c index.Chunk
		var examples, metadata string
		var blob []byte
		if err := chunkRows.Scan(&c.ID, &c.Content, &c.Section, &c.RuleType, &examples, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(examples), &c.Examples); err != nil {
			return nil, fmt.Errorf("decoding chunk examples: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding chunk metadata: %w", err)
		}
		vec := bytesToFloat32(blob)
		if len(vec) != g.Dimensions {
			return nil, fmt.Errorf("guide %d chunk %d: vector has %d values, want %d",
				guideID, len(snap.Chunks), len(vec), g.Dimensions)
		}
		snap.Chunks = append(snap.Chunks, c)
		snap.ChunkVecs = append(snap.ChunkVecs, vec)
	}
	if err := chunkRows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// scanGuide reads one guide row from a row or rows scanner.
func scanGuide(row interface{ Scan(dest ...interface{}) error }) (*Guide, error) {
	g := &Guide{}
	err := row.Scan(&g.ID, &g.Name, &g.EmbedSpec, &g.Dimensions, &g.Sections,
		&g.CreatedAt, &g.Rules, &g.Chunks)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning guide row: %w", err)
	}
	return g, nil
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
