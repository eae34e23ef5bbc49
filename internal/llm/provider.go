// Package llm turns a verdict into a short plain-language explanation.
// Explanations are generated after scoring and never change a verdict.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/trishield/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Explain describes a verdict using only its own reasons
	Explain(ctx context.Context, req ExplainRequest) (*ExplainResponse, error)
}

// ExplainRequest contains the input for an explanation
type ExplainRequest struct {
	Verdict model.Verdict

	// Prompt overrides the default prompt
	Prompt string

	// Model overrides the configured model
	Model string

	MaxTokens int
}

// ExplainResponse contains the generated explanation
type ExplainResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests in seconds
	Timeout int

	MaxTokens int
}

// DefaultConfig returns an explainer config with the provider disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 300,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = c.Provider
	cfg.Model = c.Model
	cfg.APIKey = c.APIKey
	cfg.BaseURL = c.BaseURL
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	return cfg
}

// BuildPrompt constructs the default prompt. The model may only restate the
// listed signals and must not cite any URL other than the analyzed one.
func BuildPrompt(v model.Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are explaining an automated URL risk verdict to a non-technical user.

RULES:
1. Use ONLY the signals listed below. Do not speculate about the site.
2. Do not mention or link any URL other than: %s
3. Do not change the verdict. Describe why it was reached.
4. Answer in 2-3 short sentences.

Verdict:
- URL: %s
- Verdict: %s
- Tier: %s
- Score: %.2f
- Source: %s
`, v.URL, v.URL, v.Verdict, v.Tier, v.Score, v.Source)

	if v.Counts != nil {
		fmt.Fprintf(&b, "- Engines: %d malicious, %d suspicious, %d harmless, %d undetected\n",
			v.Counts.Malicious, v.Counts.Suspicious, v.Counts.Harmless, v.Counts.Undetected)
	}

	b.WriteString("\nSignals:\n")
	if len(v.Reasons) == 0 {
		b.WriteString("- (no risk signals matched)\n")
	}
	for i, r := range v.Reasons {
		if i >= 12 {
			fmt.Fprintf(&b, "- ... and %d more\n", len(v.Reasons)-12)
			break
		}
		fmt.Fprintf(&b, "- %s\n", r)
	}

	return b.String()
}
