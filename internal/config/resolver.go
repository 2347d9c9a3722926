package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath   string
	CLIEmbed     string
	CLIDBPath    string
	CLIChunkSize string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	EmbedSpec   ResolvedValue `json:"embed_spec"`
	EmbedAPIKey ResolvedValue `json:"embed_api_key"`
	ChunkSize   ResolvedValue `json:"chunk_size"`
}

type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	ChunkSize int    `yaml:"chunk_size"`
	Embed     struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"embed"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".redline", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.EmbedSpec, cfg.Embed.Provider, SourceConfig, path)
		if cfg.ChunkSize > 0 {
			apply(&out.ChunkSize, strconv.Itoa(cfg.ChunkSize), SourceConfig, path)
		}
		if key := strings.TrimSpace(cfg.Embed.APIKey); key != "" {
			out.EmbedAPIKey = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "REDLINE_DB")
	applyEnv(&out.DBPath, "REDLINE_DB_PATH")

	applyEnv(&out.EmbedSpec, "REDLINE_EMBED")
	applyEnv(&out.ChunkSize, "REDLINE_CHUNK_SIZE")

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		out.EmbedAPIKey = ResolvedValue{Value: v, Source: SourceEnv, From: "OPENAI_API_KEY"}
	}
	if v := strings.TrimSpace(os.Getenv("REDLINE_EMBED_API_KEY")); v != "" {
		out.EmbedAPIKey = ResolvedValue{Value: v, Source: SourceEnv, From: "REDLINE_EMBED_API_KEY"}
	}

	apply(&out.EmbedSpec, opts.CLIEmbed, SourceCLI, "--embed")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.ChunkSize, opts.CLIChunkSize, SourceCLI, "--chunk-size")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// ChunkSizeValue parses the resolved chunk size. Zero means unset; callers
// fall back to their own default.
func (r ResolvedConfig) ChunkSizeValue() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.ChunkSize.Value))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
