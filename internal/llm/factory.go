package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// NewProvider creates the gateway selected by config.Provider
func NewProvider(ctx context.Context, config Config) (Gateway, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini":
		return NewGeminiProvider(ctx, config)

	case "":
		return nil, goerr.New("no LLM provider configured (supported: openai, anthropic, ollama, gemini)")

	default:
		return nil, goerr.New("unknown LLM provider (supported: openai, anthropic, ollama, gemini)",
			goerr.V("provider", config.Provider))
	}
}
