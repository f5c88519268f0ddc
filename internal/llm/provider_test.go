package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok, "structured request must set response_format")
		assert.Equal(t, "json_object", rf["type"])

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		sys := msgs[0].(map[string]any)
		assert.Equal(t, "system", sys["role"])
		assert.Contains(t, sys["content"], "JSON Schema")

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: ` {"answer":"yes"} `}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), Request{System: "judge", Prompt: "q", Shape: testShape})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"yes"}`, out)
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "q"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusTooManyRequests, ge.StatusCode)
	assert.Equal(t, "openai", ge.Provider)
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	assert.Error(t, err)
}

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.System, "judge")
		assert.Contains(t, req.System, "JSON Schema")
		assert.Equal(t, 512, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			ID:   "msg_123",
			Type: "message",
			Content: []anthropicContent{
				{Type: "text", Text: `{"answer":`},
				{Type: "text", Text: `"no"}`},
			},
		})
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, MaxTokens: 512})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), Request{System: "judge", Prompt: "q", Shape: testShape})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"no"}`, out)
}

func TestAnthropicProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "q"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestAnthropicProvider_MalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "q"})
	var ge *GatewayError
	assert.True(t, errors.As(err, &ge))
}

func TestOllamaProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)

		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: req.Model, Response: `{"answer":"yes"}`, Done: true})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{Model: "llama3.1:8b", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), Request{Prompt: "q", Shape: testShape})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"yes"}`, out)
}

func TestOllamaProvider_PlainRequestHasNoFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Format)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "hello"})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{Model: "mistral", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestOllamaProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{Model: "x", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "q"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusNotFound, ge.StatusCode)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaProvider_NoModel(t *testing.T) {
	_, err := NewOllamaProvider(Config{})
	assert.Error(t, err)
}

func TestOllamaProvider_Unreachable(t *testing.T) {
	p, err := NewOllamaProvider(Config{
		Model:      "m",
		BaseURL:    "http://127.0.0.1:1",
		HTTPClient: &http.Client{Timeout: 200 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), Request{Prompt: "q"})
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 0, ge.StatusCode)
}

func TestGeminiProvider_Live(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	p, err := NewGeminiProvider(ctx, Config{APIKey: key})
	require.NoError(t, err)

	var out answer
	err = CompleteInto(ctx, p, Request{Prompt: "Is water wet? Answer yes or no.", Shape: testShape}, &out)
	require.NoError(t, err)
	assert.Contains(t, []string{"yes", "no"}, out.Answer)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	g, err := NewProvider(ctx, Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Name())

	g, err = NewProvider(ctx, Config{Provider: "Claude", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", g.Name())

	g, err = NewProvider(ctx, Config{Provider: "ollama", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", g.Name())

	_, err = NewProvider(ctx, Config{Provider: "gemini"})
	assert.Error(t, err, "gemini without key")

	_, err = NewProvider(ctx, Config{Provider: ""})
	assert.Error(t, err)

	_, err = NewProvider(ctx, Config{Provider: "watson"})
	assert.Error(t, err)
}
