package embed

import (
	"context"
	"hash/fnv"
	"strings"
)

// Hash is a local embedding provider that hashes tokens into a fixed-size
// vector. It needs no network or model files, and identical text always
// produces identical vectors. Texts that share vocabulary land near each
// other, which is enough for rule and chunk retrieval in tests and demos.
type Hash struct {
	dims int
}

// NewHash creates a hash embedder producing vectors of the given size.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hash{dims: dims}
}

func (h *Hash) Dimensions() int { return h.dims }

// Embed hashes each lowercased token (and each adjacent token pair) into a
// bucket and accumulates counts. The raw count vector is returned without
// normalization; callers that need unit vectors normalize on their side.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dims)
	tokens := strings.Fields(strings.ToLower(text))
	for i, tok := range tokens {
		vec[h.bucket(tok)] += 1.0
		if i+1 < len(tokens) {
			vec[h.bucket(tok+" "+tokens[i+1])] += 0.5
		}
	}
	return vec, nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (h *Hash) bucket(token string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(token))
	return int(hasher.Sum32() % uint32(h.dims))
}
