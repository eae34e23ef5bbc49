package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/trishield/internal/model"
)

// NewProvider creates a provider from configuration. An empty provider name
// returns nil, nil (explanations disabled).
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// Explainer wraps a provider for verdict explanations
type Explainer struct {
	provider Provider
}

// NewExplainer builds an explainer from cfg. It returns nil, nil when no
// provider is configured.
func NewExplainer(cfg model.LLMConfig) (*Explainer, error) {
	provider, err := NewProvider(ConfigFromModel(cfg))
	if err != nil || provider == nil {
		return nil, err
	}
	return &Explainer{provider: provider}, nil
}

// NewExplainerWithProvider wraps an existing provider
func NewExplainerWithProvider(p Provider) *Explainer {
	return &Explainer{provider: p}
}

// IsEnabled reports whether a provider is configured
func (e *Explainer) IsEnabled() bool {
	return e != nil && e.provider != nil
}

// ProviderName returns the configured provider name
func (e *Explainer) ProviderName() string {
	if !e.IsEnabled() {
		return ""
	}
	return e.provider.Name()
}

// Explain returns a plain-language explanation of v
func (e *Explainer) Explain(ctx context.Context, v model.Verdict) (string, error) {
	if !e.IsEnabled() {
		return "", fmt.Errorf("explanations are disabled (set llm.provider)")
	}
	resp, err := e.provider.Explain(ctx, ExplainRequest{Verdict: v})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
