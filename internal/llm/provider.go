package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Gateway is the language-model capability: text in, text out.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Name returns the provider name
	Name() string

	// Complete returns the model's raw reply to req
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single completion request
type Request struct {
	// System is the system instruction
	System string

	// Prompt is the user message
	Prompt string

	// Shape, when set, is the JSON contract the reply must satisfy.
	// Providers switch on their JSON output mode and append the schema to the system text.
	Shape *Shape

	// MaxTokens limits the response length (0 = provider config)
	MaxTokens int

	// Temperature overrides the configured temperature when non-zero
	Temperature float32
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible proxies)
	BaseURL string

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// HTTPClient carries proxy settings; nil uses http.DefaultClient
	HTTPClient *http.Client
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(m model.LLMConfig, client *http.Client) Config {
	return Config{
		Provider:    strings.ToLower(m.Provider),
		Model:       m.Model,
		APIKey:      m.APIKey,
		BaseURL:     m.BaseURL,
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
		HTTPClient:  client,
	}
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) temperature(req Request) float32 {
	if req.Temperature != 0 {
		return req.Temperature
	}
	return c.Temperature
}

// systemText merges the request's system instruction with its shape contract
func systemText(req Request) string {
	if req.Shape == nil {
		return req.System
	}
	if req.System == "" {
		return req.Shape.Instruction()
	}
	return req.System + "\n\n" + req.Shape.Instruction()
}
