package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteInto_FirstTry(t *testing.T) {
	g := &scriptedGateway{replies: []string{`{"answer":"yes","score":0.9}`}}

	var out answer
	err := CompleteInto(context.Background(), g, Request{Prompt: "q", Shape: testShape}, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out.Answer)
	require.NotNil(t, out.Score)
	assert.InDelta(t, 0.9, *out.Score, 1e-9)
	assert.Equal(t, 1, g.calls())
}

func TestCompleteInto_MalformedThenValid(t *testing.T) {
	g := &scriptedGateway{replies: []string{"definitely yes", `{"answer":"no"}`}}

	var out answer
	err := CompleteInto(context.Background(), g, Request{Prompt: "q", Shape: testShape}, &out)
	require.NoError(t, err)
	assert.Equal(t, "no", out.Answer)

	require.Equal(t, 2, g.calls())
	assert.Equal(t, "q", g.requests[0].Prompt)
	assert.Contains(t, g.requests[1].Prompt, "previous reply was rejected")
	assert.Contains(t, g.requests[1].Prompt, "no JSON object")
}

func TestCompleteInto_MalformedTwice(t *testing.T) {
	g := &scriptedGateway{replies: []string{"nope", `{"answer":"maybe"}`, `{"answer":"yes"}`}}

	var out answer
	err := CompleteInto(context.Background(), g, Request{Prompt: "q", Shape: testShape}, &out)
	require.Error(t, err)

	var mre *MalformedResponseError
	assert.True(t, errors.As(err, &mre))
	assert.Equal(t, 2, g.calls(), "only one retry")
	assert.NotContains(t, Describe(err), "file://")
	assert.Contains(t, Describe(err), "malformed answer response")
}

func TestCompleteInto_GatewayErrorRetried(t *testing.T) {
	g := &scriptedGateway{
		errs:    []error{&GatewayError{Provider: "scripted", StatusCode: 503, Err: errors.New("unavailable")}},
		replies: []string{"", `{"answer":"yes"}`},
	}

	var out answer
	err := CompleteInto(context.Background(), g, Request{Prompt: "q", Shape: testShape}, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out.Answer)
	assert.Equal(t, "q", g.requests[1].Prompt, "gateway retry resends the original prompt")
}

func TestCompleteInto_GatewayDown(t *testing.T) {
	down := &GatewayError{Provider: "scripted", Err: errors.New("connection refused")}
	g := &scriptedGateway{errs: []error{down, down}}

	var out answer
	err := CompleteInto(context.Background(), g, Request{Prompt: "q", Shape: testShape}, &out)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 2, g.calls())
}

func TestCompleteInto_CancelledNoRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &scriptedGateway{errs: []error{&GatewayError{Provider: "scripted", Err: context.Canceled}}}

	var out answer
	err := CompleteInto(ctx, g, Request{Prompt: "q", Shape: testShape}, &out)
	require.Error(t, err)
	assert.Equal(t, 1, g.calls())
}

func TestCompleteInto_RequiresShape(t *testing.T) {
	var out answer
	err := CompleteInto(context.Background(), &scriptedGateway{}, Request{Prompt: "q"}, &out)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	_, schemaErr := testShape.Validate(`{"answer": "yes", "score": null}`)
	require.Error(t, schemaErr)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"schema field", schemaErr, "malformed answer response: /score: "},
		{"no json", &MalformedResponseError{Shape: "answer", Err: errors.New("no JSON object in reply")}, "malformed answer response"},
		{"timeout", &GatewayError{Provider: "openai", Err: context.DeadlineExceeded}, "llm openai: timed out"},
		{"status", &GatewayError{Provider: "openai", StatusCode: 429, Err: errors.New("Post https://api.openai.com: quota")}, "llm openai: status 429"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			assert.True(t, strings.HasPrefix(got, tt.want), got)
			assert.NotContains(t, got, "file://")
		})
	}
}
