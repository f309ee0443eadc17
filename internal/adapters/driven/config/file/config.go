// Package file loads and persists pipeline configuration as TOML.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the config file name inside the config directory.
const DefaultFileName = "config.toml"

// Config is the on-disk pipeline configuration.
type Config struct {
	Tenant    string          `toml:"tenant"`
	DataDir   string          `toml:"data_dir"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Index     IndexConfig     `toml:"index"`
	Chunking  ChunkingConfig  `toml:"chunking"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKeyEnv  string `toml:"api_key_env"`
	Dimensions int    `toml:"dimensions"`
	BatchSize  int    `toml:"batch_size"`
}

// LLMConfig selects and tunes the generation provider.
type LLMConfig struct {
	// Provider is "openai", "anthropic" or "ollama".
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
}

// IndexConfig tunes the vector index.
type IndexConfig struct {
	M                   int     `toml:"m"`
	EFConstruction      int     `toml:"ef_construction"`
	EFSearch            int     `toml:"ef_search"`
	BruteForceThreshold int     `toml:"brute_force_threshold"`
	ScoreThreshold      float64 `toml:"score_threshold"`
}

// ChunkingConfig sets the default chunking behaviour.
type ChunkingConfig struct {
	Strategy string `toml:"strategy"`
	Size     int    `toml:"size"`
	Overlap  int    `toml:"overlap"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Tenant: "default",
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Chunking: ChunkingConfig{
			Strategy: "paragraph",
		},
	}
}

// Load reads the config file from dir, falling back to defaults when
// the file does not exist. If dir is empty, ~/.ragcore is used.
func Load(dir string) (Config, error) {
	path, err := configPath(dir)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file to dir, creating the directory if needed.
func Save(dir string, cfg Config) error {
	path, err := configPath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func configPath(dir string) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragcore")
	}
	return filepath.Join(dir, DefaultFileName), nil
}
