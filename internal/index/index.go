// Package index provides nearest-neighbor retrieval over extracted style
// rules and style-guide chunks.
//
// Two vector spaces live side by side in one index. Rule vectors embed
// "pattern replacement" text and are compared raw; matches are audit
// candidates and use a permissive distance ceiling. Chunk vectors embed
// guide prose and are unit-normalized, so squared distance falls in [0, 4]
// and the ceiling can be tight.
//
// Search is exact brute-force over squared Euclidean distance. A style guide
// yields hundreds of rules and chunks, not millions, so a full scan is
// microseconds and recall is perfect; an approximate graph would only add
// tuning surface.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/rules"
)

// RuleDistanceMax is the largest squared distance at which a rule is still
// considered related to a paragraph.
const RuleDistanceMax float32 = 100

// ChunkDistanceMax is the largest squared distance at which a guide chunk is
// still considered related. Chunk vectors are unit length, so 1.5 admits
// moderately similar text and rejects unrelated text (distance near 2).
const ChunkDistanceMax float32 = 1.5

// ErrInconsistent reports persisted vectors that disagree with their
// metadata. An index in this state cannot be trusted for retrieval.
var ErrInconsistent = errors.New("index inconsistent: vector and metadata counts differ")

// Chunk is a style-guide passage stored for retrieval.
type Chunk struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Section  string            `json:"section"`
	RuleType string            `json:"rule_type"`
	Examples []string          `json:"examples,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RuleMatch is a rule retrieved for a query, with its squared distance.
type RuleMatch struct {
	Rule     rules.Rule
	Distance float32 // squared L2; lower = more similar
}

// ChunkMatch is a guide chunk retrieved for a query.
type ChunkMatch struct {
	Chunk    Chunk
	Distance float32 // squared L2 between unit vectors; range [0, 4]
}

// Index holds rule and chunk vectors with their metadata in lock-step
// slices. Safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	embedder embed.Embedder

	rules    []rules.Rule
	ruleVecs [][]float32

	chunks    []Chunk
	chunkVecs [][]float32
}

// candidate is a scan hit before metadata lookup.
type candidate struct {
	idx  int
	dist float32
}

// New creates an empty index backed by the given embedder.
func New(embedder embed.Embedder) *Index {
	return &Index{embedder: embedder}
}

// AddRules embeds and stores the given rules. Rule text is the pattern and
// replacement joined with a space, matching how queries describe a fix.
func (ix *Index) AddRules(ctx context.Context, rs []rules.Rule) error {
	if len(rs) == 0 {
		return nil
	}
	texts := make([]string, len(rs))
	for i, r := range rs {
		texts[i] = r.Pattern + " " + r.Replacement
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d rules: %w", len(rs), err)
	}
	if len(vecs) != len(rs) {
		return fmt.Errorf("%w: embedded %d of %d rules", ErrInconsistent, len(vecs), len(rs))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.rules = append(ix.rules, rs...)
	ix.ruleVecs = append(ix.ruleVecs, vecs...)
	return nil
}

// AddChunks embeds and stores the given guide chunks. Chunk vectors are
// normalized to unit length before storage.
func (ix *Index) AddChunks(ctx context.Context, cs []Chunk) error {
	if len(cs) == 0 {
		return nil
	}
	texts := make([]string, len(cs))
	for i, c := range cs {
		texts[i] = c.Content
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(cs), err)
	}
	if len(vecs) != len(cs) {
		return fmt.Errorf("%w: embedded %d of %d chunks", ErrInconsistent, len(vecs), len(cs))
	}
	for i := range vecs {
		vecs[i] = l2normalize(vecs[i])
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, cs...)
	ix.chunkVecs = append(ix.chunkVecs, vecs...)
	return nil
}

// SearchRules returns up to k rules related to the query, closest first.
// Rules beyond RuleDistanceMax are not returned.
func (ix *Index) SearchRules(ctx context.Context, query string, k int) ([]RuleMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := topK(vec, ix.ruleVecs, k, RuleDistanceMax)
	matches := make([]RuleMatch, 0, len(hits))
	for _, h := range hits {
		if h.idx >= len(ix.rules) {
			continue
		}
		matches = append(matches, RuleMatch{Rule: ix.rules[h.idx], Distance: h.dist})
	}
	return matches, nil
}

// SearchChunks returns up to k guide chunks related to the query, closest
// first. The query vector is normalized to match stored chunk vectors;
// chunks beyond ChunkDistanceMax are not returned.
func (ix *Index) SearchChunks(ctx context.Context, query string, k int) ([]ChunkMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vec = l2normalize(vec)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := topK(vec, ix.chunkVecs, k, ChunkDistanceMax)
	matches := make([]ChunkMatch, 0, len(hits))
	for _, h := range hits {
		if h.idx >= len(ix.chunks) {
			continue
		}
		matches = append(matches, ChunkMatch{Chunk: ix.chunks[h.idx], Distance: h.dist})
	}
	return matches, nil
}

// RuleCount returns the number of stored rules.
func (ix *Index) RuleCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.rules)
}

// ChunkCount returns the number of stored chunks.
func (ix *Index) ChunkCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Rules returns a copy of the stored rules in insertion order.
func (ix *Index) Rules() []rules.Rule {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]rules.Rule, len(ix.rules))
	copy(out, ix.rules)
	return out
}

// Chunks returns a copy of the stored chunks in insertion order.
func (ix *Index) Chunks() []Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Chunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// Confidence maps a squared distance between unit vectors to a [0, 1] score:
// 0 distance is full confidence, distance 2 or more is none.
func Confidence(distance float32) float64 {
	c := 1.0 - float64(distance)/2.0
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// RuleConfidence maps a raw rule-space distance to a [0, 1] score relative to
// RuleDistanceMax. Rule vectors are unnormalized, so the acceptance ceiling is
// the only distance with a defined meaning in that space: a match at the
// ceiling scores 0, an exact match scores 1.
func RuleConfidence(distance float32) float64 {
	c := 1.0 - float64(distance)/float64(RuleDistanceMax)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Snapshot is the persistable state of an index.
type Snapshot struct {
	Rules     []rules.Rule
	RuleVecs  [][]float32
	Chunks    []Chunk
	ChunkVecs [][]float32
}

// Snapshot returns a copy of the index state for persistence.
func (ix *Index) Snapshot() *Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := &Snapshot{
		Rules:     make([]rules.Rule, len(ix.rules)),
		RuleVecs:  make([][]float32, len(ix.ruleVecs)),
		Chunks:    make([]Chunk, len(ix.chunks)),
		ChunkVecs: make([][]float32, len(ix.chunkVecs)),
	}
	copy(snap.Rules, ix.rules)
	copy(snap.Chunks, ix.chunks)
	for i, v := range ix.ruleVecs {
		snap.RuleVecs[i] = append([]float32(nil), v...)
	}
	for i, v := range ix.chunkVecs {
		snap.ChunkVecs[i] = append([]float32(nil), v...)
	}
	return snap
}

// Restore builds an index from persisted state. Chunk vectors are stored
// normalized, so no renormalization happens here. Mismatched counts return
// ErrInconsistent.
func Restore(embedder embed.Embedder, snap *Snapshot) (*Index, error) {
	if len(snap.Rules) != len(snap.RuleVecs) {
		return nil, fmt.Errorf("%w: %d rules, %d rule vectors", ErrInconsistent, len(snap.Rules), len(snap.RuleVecs))
	}
	if len(snap.Chunks) != len(snap.ChunkVecs) {
		return nil, fmt.Errorf("%w: %d chunks, %d chunk vectors", ErrInconsistent, len(snap.Chunks), len(snap.ChunkVecs))
	}
	return &Index{
		embedder:  embedder,
		rules:     snap.Rules,
		ruleVecs:  snap.RuleVecs,
		chunks:    snap.Chunks,
		chunkVecs: snap.ChunkVecs,
	}, nil
}

// topK scans vecs for the k nearest to query within maxDist, ascending.
func topK(query []float32, vecs [][]float32, k int, maxDist float32) []candidate {
	var hits []candidate
	for i, v := range vecs {
		d := sqDistance(query, v)
		if d > maxDist {
			continue
		}
		if len(hits) >= k && d >= hits[len(hits)-1].dist {
			continue
		}
		hits = insertSorted(hits, candidate{idx: i, dist: d})
		if len(hits) > k {
			hits = hits[:k]
		}
	}
	return hits
}

// insertSorted inserts a candidate into a sorted slice (ascending by distance).
func insertSorted(s []candidate, c candidate) []candidate {
	i := sort.Search(len(s), func(i int) bool { return s[i].dist >= c.dist })
	s = append(s, candidate{})
	copy(s[i+1:], s[i:])
	s[i] = c
	return s
}

// sqDistance returns the squared Euclidean distance between two vectors.
// Mismatched lengths return the maximum distance so the pair never matches.
func sqDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat32
	}
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// l2normalize scales a vector to unit length. Zero vectors are returned
// unchanged.
func l2normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
