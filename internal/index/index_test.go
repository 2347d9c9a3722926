package index

import (
	"context"
	"errors"
	"testing"

	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/rules"
)

// stubEmbedder returns fixed vectors per text so distances are exact.
type stubEmbedder struct {
	vecs map[string][]float32
	dims int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vecs[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return make([]float32, s.dims), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }

func threeRuleIndex(t *testing.T) *Index {
	t.Helper()
	stub := &stubEmbedder{
		dims: 2,
		vecs: map[string][]float32{
			"alpha beta":  {3, 0},
			"gamma delta": {1, 0},
			"eps zeta":    {2, 0},
			"q":           {0, 0},
		},
	}
	ix := New(stub)
	err := ix.AddRules(context.Background(), []rules.Rule{
		{ID: "a", Pattern: "alpha", Replacement: "beta"},
		{ID: "b", Pattern: "gamma", Replacement: "delta"},
		{ID: "c", Pattern: "eps", Replacement: "zeta"},
	})
	if err != nil {
		t.Fatalf("AddRules failed: %v", err)
	}
	return ix
}

func TestSearchRules_AscendingOrder(t *testing.T) {
	ix := threeRuleIndex(t)

	matches, err := ix.SearchRules(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}

	wantIDs := []string{"b", "c", "a"}
	wantDists := []float32{1, 4, 9}
	for i, m := range matches {
		if m.Rule.ID != wantIDs[i] {
			t.Errorf("match %d: ID = %q, want %q", i, m.Rule.ID, wantIDs[i])
		}
		if m.Distance != wantDists[i] {
			t.Errorf("match %d: Distance = %f, want %f", i, m.Distance, wantDists[i])
		}
	}
}

func TestSearchRules_CapsAtK(t *testing.T) {
	ix := threeRuleIndex(t)

	matches, err := ix.SearchRules(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Rule.ID != "b" || matches[1].Rule.ID != "c" {
		t.Errorf("got IDs %q, %q, want b, c", matches[0].Rule.ID, matches[1].Rule.ID)
	}
}

func TestSearchRules_FewerStoredThanK(t *testing.T) {
	ix := threeRuleIndex(t)

	matches, err := ix.SearchRules(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("got %d matches, want 3", len(matches))
	}
}

func TestSearchRules_ThresholdExcludesFar(t *testing.T) {
	stub := &stubEmbedder{
		dims: 2,
		vecs: map[string][]float32{
			"near fix": {1, 0},
			"far fix":  {20, 0}, // squared distance 400, past the ceiling
			"q":        {0, 0},
		},
	}
	ix := New(stub)
	err := ix.AddRules(context.Background(), []rules.Rule{
		{ID: "near", Pattern: "near", Replacement: "fix"},
		{ID: "far", Pattern: "far", Replacement: "fix"},
	})
	if err != nil {
		t.Fatalf("AddRules failed: %v", err)
	}

	matches, err := ix.SearchRules(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Rule.ID != "near" {
		t.Errorf("got ID %q, want near", matches[0].Rule.ID)
	}
}

func TestSearchRules_EmptyIndex(t *testing.T) {
	ix := New(&stubEmbedder{dims: 2, vecs: map[string][]float32{}})

	matches, err := ix.SearchRules(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0", len(matches))
	}
}

func TestSearchChunks_ThresholdAfterNormalization(t *testing.T) {
	stub := &stubEmbedder{
		dims: 2,
		vecs: map[string][]float32{
			"near content": {2, 0},  // normalizes to (1, 0)
			"far content":  {-3, 0}, // normalizes to (-1, 0)
			"q":            {5, 0},  // query normalizes to (1, 0)
		},
	}
	ix := New(stub)
	err := ix.AddChunks(context.Background(), []Chunk{
		{ID: "c1", Content: "near content"},
		{ID: "c2", Content: "far content"},
	})
	if err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}

	matches, err := ix.SearchChunks(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Chunk.ID != "c1" {
		t.Errorf("got chunk %q, want c1", matches[0].Chunk.ID)
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("Distance = %f, want ~0", matches[0].Distance)
	}
}

func TestSearchChunks_SelfMatchWithHashEmbedder(t *testing.T) {
	ix := New(embed.NewHash(64))
	content := "p-values should be reported to three decimal places"

	err := ix.AddChunks(context.Background(), []Chunk{{ID: "c1", Content: content}})
	if err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}

	matches, err := ix.SearchChunks(context.Background(), content, 3)
	if err != nil {
		t.Fatalf("SearchChunks failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("self-match Distance = %f, want ~0", matches[0].Distance)
	}
	if conf := Confidence(matches[0].Distance); conf < 0.99 {
		t.Errorf("self-match Confidence = %f, want ~1", conf)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1.0},
		{0.5, 0.75},
		{1, 0.5},
		{2, 0},
		{3, 0},
	}
	for _, tt := range tests {
		if got := Confidence(tt.distance); got != tt.want {
			t.Errorf("Confidence(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestRuleConfidence(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1.0},
		{25, 0.75},
		{50, 0.5},
		{100, 0},
		{150, 0},
	}
	for _, tt := range tests {
		if got := RuleConfidence(tt.distance); got != tt.want {
			t.Errorf("RuleConfidence(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestAddRules_Empty(t *testing.T) {
	ix := New(&stubEmbedder{dims: 2})
	if err := ix.AddRules(context.Background(), nil); err != nil {
		t.Fatalf("AddRules failed: %v", err)
	}
	if ix.RuleCount() != 0 {
		t.Errorf("RuleCount = %d, want 0", ix.RuleCount())
	}
}

func TestRestore_CountMismatch(t *testing.T) {
	_, err := Restore(embed.NewHash(8), &Snapshot{
		Rules:    []rules.Rule{{ID: "a"}, {ID: "b"}},
		RuleVecs: [][]float32{{1, 0}},
	})
	if !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected ErrInconsistent for rule mismatch, got %v", err)
	}

	_, err = Restore(embed.NewHash(8), &Snapshot{
		Chunks:    []Chunk{{ID: "c"}},
		ChunkVecs: nil,
	})
	if !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected ErrInconsistent for chunk mismatch, got %v", err)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	h := embed.NewHash(64)
	ix := New(h)
	ctx := context.Background()

	err := ix.AddRules(ctx, []rules.Rule{
		{ID: "r1", Pattern: "patient", Replacement: "subject"},
		{ID: "r2", Pattern: "p-value", Replacement: "P value"},
	})
	if err != nil {
		t.Fatalf("AddRules failed: %v", err)
	}
	err = ix.AddChunks(ctx, []Chunk{
		{ID: "c1", Content: "always write subject instead of patient"},
	})
	if err != nil {
		t.Fatalf("AddChunks failed: %v", err)
	}

	restored, err := Restore(h, ix.Snapshot())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.RuleCount() != 2 || restored.ChunkCount() != 1 {
		t.Fatalf("restored counts = %d rules, %d chunks; want 2, 1", restored.RuleCount(), restored.ChunkCount())
	}

	orig, err := ix.SearchRules(ctx, "patient terminology", 2)
	if err != nil {
		t.Fatalf("SearchRules failed: %v", err)
	}
	back, err := restored.SearchRules(ctx, "patient terminology", 2)
	if err != nil {
		t.Fatalf("SearchRules on restored index failed: %v", err)
	}
	if len(orig) != len(back) {
		t.Fatalf("result counts differ: %d vs %d", len(orig), len(back))
	}
	for i := range orig {
		if orig[i].Rule.ID != back[i].Rule.ID || orig[i].Distance != back[i].Distance {
			t.Errorf("result %d differs: %s@%f vs %s@%f",
				i, orig[i].Rule.ID, orig[i].Distance, back[i].Rule.ID, back[i].Distance)
		}
	}
}
