package ai

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// Config selects and configures the advisory model provider.
type Config struct {
	Provider       string
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
}

// NewAdvisorFromConfig wires the configured provider. ProviderNone (or an
// empty provider) yields an advisor that only uses the fallbacks.
func NewAdvisorFromConfig(cfg Config, opts ...ClientOption) (*Advisor, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.BaseURL != "" {
		opts = append([]ClientOption{WithBaseURL(cfg.BaseURL)}, opts...)
	}
	switch provider {
	case "", ProviderNone:
		return NewAdvisor(nil, nil, cfg.Timeout), nil
	case ProviderGemini:
		client, err := NewGeminiClient(cfg.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		model := firstNonEmpty(cfg.Model, defaultGeminiModel)
		embModel := firstNonEmpty(cfg.EmbeddingModel, defaultGeminiEmbeddingModel)
		return NewAdvisor(NewGeminiGenerator(client, model), NewGeminiEmbedder(client, embModel), cfg.Timeout), nil
	case ProviderOllama:
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("ollama provider requires a model")
		}
		client := NewOllamaClient(cfg.BaseURL, opts...)
		var emb Embedder
		if strings.TrimSpace(cfg.EmbeddingModel) != "" {
			emb = NewOllamaEmbedder(client, cfg.EmbeddingModel, 0)
		}
		return NewAdvisor(NewOllamaGenerator(client, cfg.Model), emb, cfg.Timeout), nil
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("openai provider requires base url and model")
		}
		return NewAdvisor(NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, opts...), nil, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
