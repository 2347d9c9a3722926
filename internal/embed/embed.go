// Package embed provides text-to-vector embedding for the style pipeline.
//
// Two providers are supported:
//   - hash: local deterministic feature-hash vectors, no network, suitable
//     for tests and offline runs
//   - openai: OpenAI embeddings API (text-embedding-3-small and friends)
//
// Providers are selected with "provider/model" specs, e.g. "hash/384" or
// "openai/text-embedding-3-small".
package embed

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Embedder generates embedding vectors from text. Vectors are deterministic
// for identical input and have a fixed dimension per instance.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// DefaultDimensions is the vector size of the local hash provider.
const DefaultDimensions = 384

// DefaultSpec is the provider/model used when nothing is configured.
const DefaultSpec = "hash/384"

// Config holds embedding provider configuration.
type Config struct {
	Provider    string // "hash" or "openai"
	Model       string // model name, or vector size for the hash provider
	APIKey      string
	MaxRetries  int // default: 3
	TimeoutSecs int // per-request timeout (default: 60)
}

// ParseFlag parses an "--embed provider/model" spec. Model names may contain
// further slashes.
func ParseFlag(flag string) (*Config, error) {
	if flag == "" {
		return nil, fmt.Errorf("empty embedding flag")
	}

	slashIdx := strings.Index(flag, "/")
	if slashIdx == -1 {
		return nil, fmt.Errorf("invalid embed format: expected 'provider/model', got %q", flag)
	}

	provider := flag[:slashIdx]
	model := flag[slashIdx+1:]
	if provider == "" {
		return nil, fmt.Errorf("empty provider in embed flag: %q", flag)
	}
	if model == "" {
		return nil, fmt.Errorf("empty model in embed flag: %q", flag)
	}

	config := &Config{
		Provider:    provider,
		Model:       model,
		MaxRetries:  3,
		TimeoutSecs: 60,
	}

	switch provider {
	case "hash":
		// Local provider, no key needed.
	case "openai":
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		return nil, fmt.Errorf("unknown provider %q. Supported: hash, openai", provider)
	}

	if apiKey := os.Getenv("REDLINE_EMBED_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}

	return config, nil
}

// Resolve picks the embedding configuration from, in priority order: the CLI
// flag, the REDLINE_EMBED environment variable, the given config-file value,
// and finally DefaultSpec.
func Resolve(cliFlag, fileValue string) (*Config, error) {
	if cliFlag != "" {
		return ParseFlag(cliFlag)
	}
	if envSpec := os.Getenv("REDLINE_EMBED"); envSpec != "" {
		config, err := ParseFlag(envSpec)
		if err != nil {
			return nil, fmt.Errorf("parsing REDLINE_EMBED env var: %w", err)
		}
		return config, nil
	}
	if fileValue != "" {
		return ParseFlag(fileValue)
	}
	return ParseFlag(DefaultSpec)
}

// New constructs the Embedder described by the config.
func New(config *Config) (Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch config.Provider {
	case "hash":
		dims := DefaultDimensions
		if n, err := strconv.Atoi(config.Model); err == nil && n > 0 {
			dims = n
		}
		return NewHash(dims), nil
	case "openai":
		return NewOpenAI(config)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}
