package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string // Ollama only
	CacheSize int
}

// New creates an embedder from explicit configuration
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. CODEMEM_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present selects openai
//  3. Fallback to the offline local provider
func NewFromEnv() (Embedder, error) {
	cfg := Config{
		Provider: os.Getenv("CODEMEM_EMBEDDING_PROVIDER"),
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:    os.Getenv("CODEMEM_EMBEDDING_MODEL"),
		BaseURL:  os.Getenv("CODEMEM_OLLAMA_URL"),
	}

	if cfg.Provider == "" && cfg.APIKey != "" {
		cfg.Provider = ProviderOpenAI
	}
	return New(cfg)
}
