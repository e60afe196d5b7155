package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codemem/codemem-mcp/internal/tracker"
)

// Vector backend names
const (
	VectorBackendMemory = "memory"
	VectorBackendQdrant = "qdrant"
)

// Config is the full server configuration, loaded from YAML with
// environment overrides
type Config struct {
	DataDir string `yaml:"data_dir"`

	Vector struct {
		Backend string `yaml:"backend"` // memory or qdrant
		URL     string `yaml:"url"`
	} `yaml:"vector"`

	Embedding struct {
		Provider  string `yaml:"provider"` // openai, ollama, local
		Model     string `yaml:"model"`
		OllamaURL string `yaml:"ollama_url"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"embedding"`

	Tracker struct {
		Weights tracker.Weights `yaml:"weights"`
	} `yaml:"tracker"`

	Search struct {
		DefaultLimit int           `yaml:"default_limit"`
		MinScore     float64       `yaml:"min_score"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
	} `yaml:"search"`

	Pipeline struct {
		EmbedWorkers int `yaml:"embed_workers"`
	} `yaml:"pipeline"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.DataDir = "~/.codemem"
	cfg.Vector.Backend = VectorBackendMemory
	cfg.Vector.URL = "http://localhost:6333"
	cfg.Embedding.Provider = ""
	cfg.Embedding.CacheSize = 1000
	cfg.Tracker.Weights = tracker.DefaultWeights()
	cfg.Search.DefaultLimit = 10
	cfg.Search.MinScore = 0.2
	cfg.Search.CacheTTL = 5 * time.Minute
	return cfg
}

// Load reads the configuration file at path, falling back to defaults when
// path is empty or the file does not exist. Environment variables win over
// the file for deployment-sensitive values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CODEMEM_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CODEMEM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CODEMEM_VECTOR_BACKEND"); v != "" {
		cfg.Vector.Backend = v
	}
	if v := os.Getenv("CODEMEM_QDRANT_URL"); v != "" {
		cfg.Vector.URL = v
	}
	if v := os.Getenv("CODEMEM_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("CODEMEM_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CODEMEM_OLLAMA_URL"); v != "" {
		cfg.Embedding.OllamaURL = v
	}
}

func (c *Config) validate() error {
	switch c.Vector.Backend {
	case VectorBackendMemory, VectorBackendQdrant:
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	if c.Vector.Backend == VectorBackendQdrant && c.Vector.URL == "" {
		return fmt.Errorf("qdrant backend requires vector.url")
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be positive")
	}
	return nil
}

// GraphDBPath returns the SQLite file location, creating the data
// directory if needed
func (c *Config) GraphDBPath() (string, error) {
	dir := c.DataDir
	if dir == "~/.codemem" || dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".codemem")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dir, "graph.db"), nil
}
