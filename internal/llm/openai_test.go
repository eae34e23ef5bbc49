package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/trishield/internal/model"
)

func testVerdict() model.Verdict {
	return model.Verdict{
		URL:     "http://paypa1.com/login",
		Score:   0.65,
		Verdict: model.LabelRisk,
		Tier:    model.TierSuspicious,
		Reasons: []string{"Sensitive keyword in path/query", "Possible typosquat of paypal.com (edit distance 1)"},
		Source:  model.SourceHeuristics,
	}
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-123",
			Object: "chat.completion",
			Model:  "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: content,
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 42},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIProvider_Explain_Success(t *testing.T) {
	var gotAuth, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 2 {
			gotPrompt = req.Messages[1].Content
		}

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: " The domain imitates paypal.com at http://paypa1.com/login. "},
			}},
			Usage: openai.Usage{TotalTokens: 100},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Explain(context.Background(), ExplainRequest{Verdict: testVerdict()})
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	if resp.Text != "The domain imitates paypal.com at http://paypa1.com/login." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 100 || resp.Model != "gpt-4o-mini" {
		t.Errorf("Unexpected metadata: %+v", resp)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if !strings.Contains(gotPrompt, "Possible typosquat of paypal.com") {
		t.Errorf("Expected reasons in prompt, got %q", gotPrompt)
	}
}

func TestOpenAIProvider_Explain_ForeignURL(t *testing.T) {
	server := chatServer(t, "Log in safely at https://paypal.com instead.")

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Explain(context.Background(), ExplainRequest{Verdict: testVerdict()}); err == nil {
		t.Fatal("Expected error for a URL other than the analyzed one")
	}
}

func TestOpenAIProvider_Explain_Empty(t *testing.T) {
	server := chatServer(t, "   ")

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Explain(context.Background(), ExplainRequest{Verdict: testVerdict()}); err == nil {
		t.Fatal("Expected error for empty response")
	}
}

func TestOpenAIProvider_Explain_APIError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
		}))

		provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL})
		if _, err := provider.Explain(context.Background(), ExplainRequest{Verdict: testVerdict()}); err == nil {
			t.Errorf("Expected error for status %d", status)
		}
		server.Close()
	}
}

func TestOpenAIProvider_Explain_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Explain(context.Background(), ExplainRequest{Verdict: testVerdict()}); err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestOpenAIProvider_Explain_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider, _ := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := provider.Explain(ctx, ExplainRequest{Verdict: testVerdict()}); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestNewOllamaProvider(t *testing.T) {
	if _, err := NewOllamaProvider(Config{}); err == nil {
		t.Error("Expected error without a model")
	}

	p, err := NewOllamaProvider(Config{Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if p.Name() != "ollama" || p.config.BaseURL != DefaultOllamaBaseURL {
		t.Errorf("Unexpected provider %s at %s", p.Name(), p.config.BaseURL)
	}
}
