package llm

import (
	"context"
	"sync"
)

var testShape = MustShape("answer", map[string]any{
	"type":     "object",
	"required": []string{"answer"},
	"properties": map[string]any{
		"answer": map[string]any{"type": "string", "enum": []string{"yes", "no"}},
		"score":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
	"additionalProperties": false,
})

type answer struct {
	Answer string   `json:"answer"`
	Score  *float64 `json:"score,omitempty"`
}

// scriptedGateway replies from a fixed script and records requests
type scriptedGateway struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []Request
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) Complete(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.requests)
	g.requests = append(g.requests, req)

	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", &GatewayError{Provider: "scripted", Err: context.DeadlineExceeded}
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}
