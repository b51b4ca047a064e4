package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by the factory
const (
	EnvProvider     = "SEMCLUSTER_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider string
	APIKey   string
	Model    string // Optional: override the provider default
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. SEMCLUSTER_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider()})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderLocal, "":
		return NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
