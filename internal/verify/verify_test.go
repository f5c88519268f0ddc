package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/search"
	"github.com/ppiankov/claimcheck/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// fakeRetriever answers known queries from a map, or every query with fallback
type fakeRetriever struct {
	mu       sync.Mutex
	byQuery  map[string][]model.SearchResult
	fallback []model.SearchResult
	err      error
	queries  []string
}

func (r *fakeRetriever) Name() string { return "fake" }

func (r *fakeRetriever) Search(_ context.Context, query string) ([]model.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	if res, ok := r.byQuery[query]; ok {
		return res, nil
	}
	return r.fallback, nil
}

// scriptGateway returns replies in order and records prompts
type scriptGateway struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (g *scriptGateway) Name() string { return "script" }

func (g *scriptGateway) Complete(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.prompts)
	g.prompts = append(g.prompts, req.Prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", &llm.GatewayError{Provider: "script", Err: errors.New("no more replies")}
}

func verdictJSON(t *testing.T, verdict, explanation string, cited []int, correct, confidence any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"verdict":        verdict,
		"explanation":    explanation,
		"cited_evidence": cited,
		"correct_info":   correct,
		"confidence":     confidence,
	})
	require.NoError(t, err)
	return string(b)
}

func newVerifier(g llm.Gateway, r search.Retriever, opts ...Option) *ClaimVerifier {
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewClaimVerifier(g, r, model.DefaultConfig().Verify, opts...)
}

var gdpClaim = model.Claim{
	ID:            1,
	Text:          "Global GDP growth was 3.6% in 2019",
	Category:      model.CategoryStatistic,
	AssertedValue: "3.6%",
}

var imfResult = model.SearchResult{
	Title:   "World Economic Outlook",
	URL:     "https://www.imf.org/weo",
	Snippet: "Revised global GDP growth for 2019 was 2.9%, current 2024 growth is 3.2%.",
}

func TestBuildQueries(t *testing.T) {
	tests := []struct {
		name    string
		claim   model.Claim
		primary string
		broader string
	}{
		{
			name:    "financial",
			claim:   model.Claim{Text: "Revenue reached $4.1 billion in 2022.", Category: model.CategoryFinancial, AssertedValue: "$4.1 billion"},
			primary: "Revenue reached in 2022 $4.1 billion current data 2026",
			broader: "Revenue reached $4.1 billion in 2022.",
		},
		{
			name:    "statistic",
			claim:   gdpClaim,
			primary: "Global GDP growth was in 2019 3.6% latest statistics 2026",
			broader: "Global GDP growth was 3.6% in 2019",
		},
		{
			name:    "date",
			claim:   model.Claim{Text: "The bridge opened in 1932", Category: model.CategoryDate, AssertedValue: "1932"},
			primary: "The bridge opened in 1932 2026",
			broader: "The bridge opened in 1932",
		},
		{
			name:    "other",
			claim:   model.Claim{Text: "ACME is headquartered in Oslo", Category: model.CategoryOther, AssertedValue: "oslo"},
			primary: "ACME is headquartered in oslo latest",
			broader: "ACME is headquartered in Oslo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := BuildQueries(tt.claim, fixedNow)
			assert.Equal(t, tt.primary, q.Primary)
			assert.Equal(t, tt.broader, q.Broader)
		})
	}
}

func TestBuildQueries_CapsLength(t *testing.T) {
	long := strings.Repeat("word ", 80) + "is 42"
	q := BuildQueries(model.Claim{Text: long, AssertedValue: "42"}, fixedNow)

	assert.LessOrEqual(t, len(q.Broader), maxQueryChars)
	assert.True(t, strings.HasSuffix(q.Primary, " 42 latest"))
	assert.LessOrEqual(t, len(q.Primary), maxQueryChars+len(" 42 latest"))
}

func TestVerify_OutdatedStatisticIsInaccurate(t *testing.T) {
	g := &scriptGateway{replies: []string{
		verdictJSON(t, "Inaccurate", "The IMF revised 2019 growth to 2.9%.", []int{1}, "2.9% (revised); 3.2% in 2024", 0.9),
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictInaccurate, res.Verdict)
	assert.Equal(t, []string{"https://www.imf.org/weo"}, res.CitedSources)
	assert.Equal(t, "2.9% (revised); 3.2% in 2024", res.CorrectInfo)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.9, *res.Confidence, 1e-9)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, model.TierPrimary, res.Sources[0].Authority)
	assert.Nil(t, res.Sources[0].Reachable)

	require.Len(t, g.prompts, 1)
	assert.Contains(t, g.prompts[0], "Revised global GDP growth for 2019 was 2.9%")
	assert.Contains(t, g.prompts[0], "[1] World Economic Outlook (primary source)")
	assert.Contains(t, g.prompts[0], "within 2% of the evidence")
	assert.Contains(t, g.prompts[0], "TODAY'S DATE: 2026-03-14")
}

func TestVerify_ContradictedIsFalse(t *testing.T) {
	claim := model.Claim{ID: 4, Text: "Company X has 500 employees", Category: model.CategoryStatistic, AssertedValue: "500"}
	g := &scriptGateway{replies: []string{
		verdictJSON(t, "False", "Company X has 50 employees, not 500.", []int{1}, "50 employees", 0.95),
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{{
		Title: "About Company X", URL: "https://companyx.example/about", Snippet: "Company X has 50 employees.",
	}}}

	res := newVerifier(g, r).Verify(context.Background(), claim)

	assert.Equal(t, 4, res.ClaimID)
	assert.Equal(t, model.VerdictFalse, res.Verdict)
	assert.NotEmpty(t, res.CitedSources)
}

func TestVerify_NoEvidenceIsUnverifiable(t *testing.T) {
	claim := model.Claim{ID: 2, Text: "Zorblax Industries shipped 9 million units", Category: model.CategoryStatistic, AssertedValue: "9 million"}
	g := &scriptGateway{}
	r := &fakeRetriever{}

	res := newVerifier(g, r).Verify(context.Background(), claim)

	assert.Equal(t, model.VerdictUnverifiable, res.Verdict)
	assert.Equal(t, model.ExplanationNoEvidence, res.Explanation)
	assert.NotNil(t, res.CitedSources)
	assert.Empty(t, res.CitedSources)
	assert.Empty(t, g.prompts, "adjudication must not run without evidence")
	assert.Len(t, r.queries, 2, "primary and broader queries")
	assert.Equal(t, r.queries, res.Queries)
}

func TestVerify_RetrievalErrorCountsAsNoResults(t *testing.T) {
	r := &fakeRetriever{err: &search.RetrievalError{Backend: "fake", StatusCode: 503, Err: errors.New("down")}}

	res := newVerifier(&scriptGateway{}, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictUnverifiable, res.Verdict)
	assert.Equal(t, model.ExplanationNoEvidence, res.Explanation)
}

func TestVerify_BroaderQueryOnlyWhenPrimaryEmpty(t *testing.T) {
	q := BuildQueries(gdpClaim, fixedNow)
	r := &fakeRetriever{byQuery: map[string][]model.SearchResult{
		q.Primary: {},
		q.Broader: {imfResult},
	}}
	g := &scriptGateway{replies: []string{verdictJSON(t, "Inaccurate", "Revised.", []int{1}, nil, nil)}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictInaccurate, res.Verdict)
	assert.Equal(t, []string{q.Primary, q.Broader}, r.queries)

	r2 := &fakeRetriever{fallback: []model.SearchResult{imfResult}}
	g2 := &scriptGateway{replies: []string{verdictJSON(t, "Inaccurate", "Revised.", []int{1}, nil, nil)}}
	newVerifier(g2, r2).Verify(context.Background(), gdpClaim)
	assert.Equal(t, []string{q.Primary}, r2.queries)
}

func TestVerify_MalformedThenValid(t *testing.T) {
	g := &scriptGateway{replies: []string{
		`I think it's probably fine.`,
		verdictJSON(t, "Verified", "Matches.", []int{1}, nil, 0.7),
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictVerified, res.Verdict)
	require.Len(t, g.prompts, 2)
	assert.Contains(t, g.prompts[1], "previous reply was rejected")
}

func TestVerify_AdjudicationFailure(t *testing.T) {
	tests := []struct {
		name string
		g    *scriptGateway
	}{
		{"malformed twice", &scriptGateway{replies: []string{`{"verdict": "Maybe"}`, `{"verdict": "Perhaps"}`}}},
		{"gateway timeout", &scriptGateway{errs: []error{
			&llm.GatewayError{Provider: "script", Err: context.DeadlineExceeded},
			&llm.GatewayError{Provider: "script", Err: context.DeadlineExceeded},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

			res := newVerifier(tt.g, r).Verify(context.Background(), gdpClaim)

			assert.Equal(t, model.VerdictUnverifiable, res.Verdict)
			assert.True(t, strings.HasPrefix(res.Explanation, "adjudication failed:"), res.Explanation)
			assert.Empty(t, res.CitedSources)
			assert.Len(t, tt.g.prompts, 2)
		})
	}
}

func TestVerify_LenientVerdict(t *testing.T) {
	g := &scriptGateway{replies: []string{
		`{"status": "VERIFIED", "explanation": "Matches.", "cited_evidence": ["1"], "confidence": "85%"}`,
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictVerified, res.Verdict)
	assert.Equal(t, []string{imfResult.URL}, res.CitedSources)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.85, *res.Confidence, 1e-9)
	assert.Len(t, g.prompts, 1)
}

func TestVerify_Deterministic(t *testing.T) {
	run := func() model.VerificationResult {
		g := &scriptGateway{replies: []string{verdictJSON(t, "Inaccurate", "Revised.", []int{1}, "2.9%", 0.8)}}
		r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}
		return newVerifier(g, r).Verify(context.Background(), gdpClaim)
	}

	assert.Equal(t, run(), run())
}

func TestCitedURLs(t *testing.T) {
	evidence := []model.Evidence{
		{SourceURL: "https://a.example"},
		{SourceURL: "https://b.example"},
		{SourceURL: "https://c.example"},
		{SourceURL: "https://d.example"},
	}

	assert.Equal(t, []string{"https://b.example", "https://a.example"}, citedURLs([]int{2, 9, 2, 0, 1}, evidence))
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, citedURLs(nil, evidence))
	assert.Equal(t, []string{"https://a.example"}, citedURLs([]int{7}, evidence[:1]))
}

func TestPrepareEvidence(t *testing.T) {
	cfg := model.VerifyConfig{MaxEvidence: 3, MaxSnippetChars: 100, MaxEvidenceChars: 250}
	v := NewClaimVerifier(&scriptGateway{}, &fakeRetriever{}, cfg, WithClock(clock))

	long := strings.Repeat("x", 150)
	results := []model.SearchResult{
		{URL: "https://someblog.net/a", Snippet: "blog snippet"},
		{URL: "https://www.reuters.com/b", Snippet: "reuters snippet"},
		{URL: "https://someblog.net/a", Snippet: "duplicate url"},
		{URL: "https://www.ine.es/c", Snippet: long},
		{URL: "", Snippet: "no url"},
		{URL: "https://empty.example", Snippet: "   "},
		{URL: "https://www.bls.gov/d", Snippet: "bls snippet"},
	}

	evs := v.prepareEvidence(context.Background(), "q", results)

	require.Len(t, evs, 3)
	assert.Equal(t, "https://www.ine.es/c", evs[0].SourceURL)
	assert.Equal(t, "https://www.bls.gov/d", evs[1].SourceURL)
	assert.Equal(t, "https://www.reuters.com/b", evs[2].SourceURL)

	assert.Len(t, evs[0].Snippet, 100)
	assert.True(t, strings.HasSuffix(evs[0].Snippet, "..."))
	assert.Equal(t, fixedNow, evs[0].RetrievedAt)
	assert.Equal(t, model.TierPrimary, evs[0].Authority)
	assert.Equal(t, model.TierSecondary, evs[2].Authority)
}

func TestPrepareEvidence_TotalBudget(t *testing.T) {
	cfg := model.VerifyConfig{MaxEvidence: 5, MaxSnippetChars: 100, MaxEvidenceChars: 150}
	v := NewClaimVerifier(&scriptGateway{}, &fakeRetriever{}, cfg, WithClock(clock))

	results := []model.SearchResult{
		{URL: "https://a.example", Snippet: strings.Repeat("a", 80)},
		{URL: "https://b.example", Snippet: strings.Repeat("b", 80)},
	}

	evs := v.prepareEvidence(context.Background(), "q", results)
	require.Len(t, evs, 1)
	assert.Equal(t, "https://a.example", evs[0].SourceURL)
}

type fakeReranker struct {
	order []int
	err   error
}

func (f fakeReranker) Rerank(context.Context, string, []string) ([]int, error) {
	return f.order, f.err
}

func TestPrepareEvidence_Reranker(t *testing.T) {
	results := []model.SearchResult{
		{URL: "https://www.ine.es/a", Snippet: "primary"},
		{URL: "https://someblog.net/b", Snippet: "blog"},
	}

	v := newVerifier(&scriptGateway{}, &fakeRetriever{}, WithReranker(fakeReranker{order: []int{1, 0}}))
	evs := v.prepareEvidence(context.Background(), "q", results)
	require.Len(t, evs, 2)
	assert.Equal(t, "https://someblog.net/b", evs[0].SourceURL)

	for _, rr := range []fakeReranker{{err: errors.New("quota")}, {order: []int{0, 0}}, {order: []int{5, 1}}} {
		v = newVerifier(&scriptGateway{}, &fakeRetriever{}, WithReranker(rr))
		evs = v.prepareEvidence(context.Background(), "q", results)
		require.Len(t, evs, 2)
		assert.Equal(t, "https://www.ine.es/a", evs[0].SourceURL, "falls back to authority order")
	}
}

func TestVerify_CheckLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := &fakeRetriever{fallback: []model.SearchResult{
		{URL: server.URL + "/ok", Snippet: "live"},
		{URL: server.URL + "/gone", Snippet: "dead"},
	}}
	g := &scriptGateway{replies: []string{verdictJSON(t, "Verified", "Matches.", []int{1, 2}, nil, nil)}}
	links := validate.NewLinkChecker(5*time.Second, 2, "test-agent", "", "", "")

	res := newVerifier(g, r, WithLinkChecker(links)).Verify(context.Background(), gdpClaim)

	require.Len(t, res.Sources, 2)
	require.NotNil(t, res.Sources[0].Reachable)
	require.NotNil(t, res.Sources[1].Reachable)
	assert.True(t, *res.Sources[0].Reachable)
	assert.False(t, *res.Sources[1].Reachable)
}

func TestNormalizeVerdict(t *testing.T) {
	doc := map[string]any{
		"verdict":        "false",
		"explanation":    "x",
		"cited_evidence": []any{float64(2), "[3]", "junk"},
		"confidence":     float64(70),
	}

	out, changed := normalizeVerdict(doc)
	obj := out.(map[string]any)

	assert.Equal(t, "False", obj["verdict"])
	assert.Equal(t, []any{float64(2), float64(3)}, obj["cited_evidence"])
	assert.InDelta(t, 0.7, obj["confidence"].(float64), 1e-9)
	assert.NotEmpty(t, changed)
}

func TestVerify_NullConfidence(t *testing.T) {
	g := &scriptGateway{replies: []string{
		verdictJSON(t, "Inaccurate", "The IMF revised the figure.", []int{1}, "2.8%", nil),
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictInaccurate, res.Verdict)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, "2.8%", res.CorrectInfo)
	assert.Equal(t, []string{imfResult.URL}, res.CitedSources)
	assert.Len(t, g.prompts, 1)
}

func TestVerify_FailureExplanationHidesSchemaLocation(t *testing.T) {
	g := &scriptGateway{replies: []string{
		`{"verdict": "Verified", "explanation": "ok", "cited_evidence": [1], "confidence": "high"}`,
		`{"verdict": "Verified", "explanation": "ok", "cited_evidence": [1], "confidence": "high"}`,
	}}
	r := &fakeRetriever{fallback: []model.SearchResult{imfResult}}

	res := newVerifier(g, r).Verify(context.Background(), gdpClaim)

	assert.Equal(t, model.VerdictUnverifiable, res.Verdict)
	assert.True(t, strings.HasPrefix(res.Explanation, "adjudication failed: malformed verdict response: /confidence: "), res.Explanation)
	assert.NotContains(t, res.Explanation, "file://")
}

func TestPrepareEvidence_StalledRerankerTimesOut(t *testing.T) {
	results := []model.SearchResult{
		{URL: "https://someblog.net/b", Snippet: "blog"},
		{URL: "https://www.ine.es/a", Snippet: "primary"},
	}
	stalled := search.RerankerFunc(func(ctx context.Context, _ string, _ []string) ([]int, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	v := newVerifier(&scriptGateway{}, &fakeRetriever{}, WithReranker(search.RerankWithTimeout(stalled, 20*time.Millisecond)))

	done := make(chan []model.Evidence, 1)
	go func() { done <- v.prepareEvidence(context.Background(), "q", results) }()

	select {
	case evs := <-done:
		require.Len(t, evs, 2)
		assert.Equal(t, "https://www.ine.es/a", evs[0].SourceURL)
	case <-time.After(2 * time.Second):
		t.Fatal("stalled reranker blocked evidence preparation")
	}
}
