package ai

import (
	"context"
	"net/http"
	"strings"
)

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StructuredGenerator is implemented by providers that can constrain output
// to a JSON document.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientOption customizes a provider client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points a client at another API root (self-hosted gateways, tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			o.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func applyOptions(defaults clientOptions, opts []ClientOption) clientOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// generateStructured prefers JSON mode when the provider supports it.
func generateStructured(ctx context.Context, gen TextGenerator, systemPrompt, userPrompt string) (string, error) {
	if sg, ok := gen.(StructuredGenerator); ok {
		return sg.GenerateJSON(ctx, systemPrompt, userPrompt)
	}
	return gen.GenerateText(ctx, systemPrompt, userPrompt)
}
