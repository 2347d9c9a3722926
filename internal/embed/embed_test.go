package embed

import (
	"context"
	"reflect"
	"testing"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		want    *Config
		wantErr bool
	}{
		{
			name: "hash with dimensions",
			flag: "hash/384",
			want: &Config{
				Provider:    "hash",
				Model:       "384",
				MaxRetries:  3,
				TimeoutSecs: 60,
			},
		},
		{
			name: "openai simple",
			flag: "openai/text-embedding-3-small",
			want: &Config{
				Provider:    "openai",
				Model:       "text-embedding-3-small",
				MaxRetries:  3,
				TimeoutSecs: 60,
			},
		},
		{
			name: "model with slash",
			flag: "openai/org/custom-model",
			want: &Config{
				Provider:    "openai",
				Model:       "org/custom-model",
				MaxRetries:  3,
				TimeoutSecs: 60,
			},
		},
		{
			name:    "empty flag",
			flag:    "",
			wantErr: true,
		},
		{
			name:    "no slash",
			flag:    "hash",
			wantErr: true,
		},
		{
			name:    "empty provider",
			flag:    "/model",
			wantErr: true,
		},
		{
			name:    "empty model",
			flag:    "hash/",
			wantErr: true,
		},
		{
			name:    "unknown provider",
			flag:    "unknown/model",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlag(tt.flag)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFlag() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if got.Provider != tt.want.Provider {
				t.Errorf("Provider = %v, want %v", got.Provider, tt.want.Provider)
			}
			if got.Model != tt.want.Model {
				t.Errorf("Model = %v, want %v", got.Model, tt.want.Model)
			}
			if got.MaxRetries != tt.want.MaxRetries {
				t.Errorf("MaxRetries = %v, want %v", got.MaxRetries, tt.want.MaxRetries)
			}
			if got.TimeoutSecs != tt.want.TimeoutSecs {
				t.Errorf("TimeoutSecs = %v, want %v", got.TimeoutSecs, tt.want.TimeoutSecs)
			}
		})
	}
}

func TestResolve_Priority(t *testing.T) {
	t.Setenv("REDLINE_EMBED", "")

	config, err := Resolve("hash/128", "hash/64")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if config.Model != "128" {
		t.Errorf("Expected CLI flag to win, got model %q", config.Model)
	}

	config, err = Resolve("", "hash/64")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if config.Model != "64" {
		t.Errorf("Expected file value, got model %q", config.Model)
	}

	config, err = Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if config.Provider != "hash" || config.Model != "384" {
		t.Errorf("Expected default spec hash/384, got %s/%s", config.Provider, config.Model)
	}
}

func TestResolve_EnvOverride(t *testing.T) {
	t.Setenv("REDLINE_EMBED", "hash/512")

	config, err := Resolve("", "hash/64")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if config.Model != "512" {
		t.Errorf("Expected env var to beat file value, got model %q", config.Model)
	}

	config, err = Resolve("hash/128", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if config.Model != "128" {
		t.Errorf("Expected CLI flag to beat env var, got model %q", config.Model)
	}
}

func TestNew_HashDimensionsFromModel(t *testing.T) {
	emb, err := New(&Config{Provider: "hash", Model: "256"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if emb.Dimensions() != 256 {
		t.Errorf("Expected 256 dimensions, got %d", emb.Dimensions())
	}

	// Non-numeric model falls back to the default size.
	emb, err = New(&Config{Provider: "hash", Model: "local"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if emb.Dimensions() != DefaultDimensions {
		t.Errorf("Expected %d dimensions, got %d", DefaultDimensions, emb.Dimensions())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(&Config{Provider: "bogus", Model: "m"})
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(DefaultDimensions)
	ctx := context.Background()

	a, err := h.Embed(ctx, "adverse events were recorded at each visit")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := h.Embed(ctx, "adverse events were recorded at each visit")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical vectors for identical input")
	}
	if len(a) != DefaultDimensions {
		t.Errorf("Expected %d dimensions, got %d", DefaultDimensions, len(a))
	}
}

func TestHash_SharedVocabularyIsCloser(t *testing.T) {
	h := NewHash(DefaultDimensions)
	ctx := context.Background()

	base, _ := h.Embed(ctx, "adverse event reporting")
	near, _ := h.Embed(ctx, "adverse event summary")
	far, _ := h.Embed(ctx, "cardiovascular outcomes trial")

	if sqDist(base, near) >= sqDist(base, far) {
		t.Errorf("Expected overlapping text to be closer: near=%f far=%f",
			sqDist(base, near), sqDist(base, far))
	}
}

func TestHash_EmptyText(t *testing.T) {
	h := NewHash(64)
	vec, err := h.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 64 {
		t.Errorf("Expected 64 dimensions, got %d", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Errorf("Expected zero vector for empty text, got %f at index %d", v, i)
		}
	}
}

func TestHash_BatchMatchesSingle(t *testing.T) {
	h := NewHash(128)
	ctx := context.Background()
	texts := []string{"first sentence", "second sentence", "third"}

	batch, err := h.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("Expected %d vectors, got %d", len(texts), len(batch))
	}

	for i, text := range texts {
		single, err := h.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if !reflect.DeepEqual(batch[i], single) {
			t.Errorf("Batch vector %d differs from single embedding", i)
		}
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(&Config{Provider: "openai", Model: "text-embedding-3-small"})
	if err == nil {
		t.Error("Expected error when API key is missing")
	}
}

func TestModelDimensions(t *testing.T) {
	if got := modelDimensions("text-embedding-3-large"); got != 3072 {
		t.Errorf("Expected 3072, got %d", got)
	}
	if got := modelDimensions("text-embedding-3-small"); got != 1536 {
		t.Errorf("Expected 1536, got %d", got)
	}
	if got := modelDimensions("text-embedding-ada-002"); got != 1536 {
		t.Errorf("Expected 1536, got %d", got)
	}
}

func sqDist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
