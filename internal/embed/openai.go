package embed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	client     *openai.Client
	model      string
	dims       int
	maxRetries int
	timeout    time.Duration
}

// NewOpenAI creates an OpenAI embedder from the config. The API key comes
// from Config.APIKey (already resolved from the environment by ParseFlag).
func NewOpenAI(config *Config) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set (export OPENAI_API_KEY or REDLINE_EMBED_API_KEY)")
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeoutSecs := config.TimeoutSecs
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}
	return &OpenAI{
		client:     openai.NewClient(config.APIKey),
		model:      config.Model,
		dims:       modelDimensions(config.Model),
		maxRetries: maxRetries,
		timeout:    time.Duration(timeoutSecs) * time.Second,
	}, nil
}

func modelDimensions(model string) int {
	if strings.Contains(model, "3-large") {
		return 3072
	}
	return 1536
}

func (o *OpenAI) Dimensions() int { return o.dims }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in a single API request. Empty texts are not
// accepted by the API, so they are filtered out before the call and restored
// as zero vectors in the result.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	nonEmpty := make([]string, 0, len(texts))
	indexMap := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, text)
			indexMap = append(indexMap, i)
		}
	}

	results := make([][]float32, len(texts))
	for i := range results {
		results[i] = make([]float32, o.dims)
	}
	if len(nonEmpty) == 0 {
		return results, nil
	}

	resp, err := o.createWithRetry(ctx, nonEmpty)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(nonEmpty) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(nonEmpty), len(resp.Data))
	}

	// The API documents ordered output but also tags each vector with its
	// input index. Sort by that index before mapping back.
	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		results[indexMap[i]] = vec
	}
	return results, nil
}

func (o *OpenAI) createWithRetry(ctx context.Context, texts []string) (openai.EmbeddingResponse, error) {
	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return openai.EmbeddingResponse{}, ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
		resp, err := o.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(o.model),
			Input: texts,
		})
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return openai.EmbeddingResponse{}, fmt.Errorf("embedding request failed after %d attempts: %w", o.maxRetries, lastErr)
}

// retryable reports whether the request should be tried again: rate limits
// and server-side errors qualify, auth and validation errors do not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeouts, resets) come through as plain
	// errors and are worth retrying.
	return true
}
