package verify

import (
	"context"
	"time"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/search"
	"github.com/ppiankov/claimcheck/internal/validate"
)

// fallbackCitations is how many top evidence URLs are cited when the
// adjudicator cites nothing usable
const fallbackCitations = 3

const maxSourceSnippet = 300

// ClaimVerifier checks one claim against retrieved evidence
type ClaimVerifier struct {
	gateway   llm.Gateway
	retriever search.Retriever
	reranker  search.Reranker
	authority *validate.AuthorityClassifier
	links     *validate.LinkChecker
	cfg       model.VerifyConfig
	maxTokens int
	now       func() time.Time
}

// Option configures a ClaimVerifier
type Option func(*ClaimVerifier)

// WithReranker orders evidence by relevance instead of authority
func WithReranker(r search.Reranker) Option {
	return func(v *ClaimVerifier) { v.reranker = r }
}

// WithAuthority replaces the default authority classifier
func WithAuthority(a *validate.AuthorityClassifier) Option {
	return func(v *ClaimVerifier) { v.authority = a }
}

// WithLinkChecker enables reachability checks on cited sources
func WithLinkChecker(l *validate.LinkChecker) Option {
	return func(v *ClaimVerifier) { v.links = l }
}

// WithClock fixes the time used for recency qualifiers and retrieval stamps
func WithClock(now func() time.Time) Option {
	return func(v *ClaimVerifier) { v.now = now }
}

// WithMaxTokens sets the completion budget for adjudication
func WithMaxTokens(n int) Option {
	return func(v *ClaimVerifier) { v.maxTokens = n }
}

// NewClaimVerifier creates a verifier
func NewClaimVerifier(gateway llm.Gateway, retriever search.Retriever, cfg model.VerifyConfig, opts ...Option) *ClaimVerifier {
	defaults := model.DefaultConfig().Verify
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = defaults.MaxEvidence
	}
	if cfg.MaxSnippetChars <= 0 {
		cfg.MaxSnippetChars = defaults.MaxSnippetChars
	}
	if cfg.MaxEvidenceChars <= 0 {
		cfg.MaxEvidenceChars = defaults.MaxEvidenceChars
	}

	v := &ClaimVerifier{
		gateway:   gateway,
		retriever: retriever,
		cfg:       cfg,
		maxTokens: 800,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.authority == nil {
		v.authority = validate.NewAuthorityClassifier(nil)
	}
	return v
}

// Verify produces the verdict for one claim. Failures never escape as
// errors: they become an Unverifiable result.
func (v *ClaimVerifier) Verify(ctx context.Context, claim model.Claim) model.VerificationResult {
	log := logging.From(ctx).With("claim_id", claim.ID)
	start := time.Now()

	queries := BuildQueries(claim, v.now())
	issued := []string{queries.Primary}

	results := v.search(ctx, queries.Primary)
	query := queries.Primary
	if len(results) == 0 && queries.Broader != "" {
		issued = append(issued, queries.Broader)
		results = v.search(ctx, queries.Broader)
		query = queries.Broader
	}

	evidence := v.prepareEvidence(ctx, query, results)
	if len(evidence) == 0 {
		log.Info("verify.done", "verdict", model.VerdictUnverifiable, "reason", "no_evidence",
			"elapsed_ms", time.Since(start).Milliseconds())
		res := model.Unverifiable(claim.ID, model.ExplanationNoEvidence)
		res.Queries = issued
		return res
	}

	reply, err := v.adjudicate(ctx, claim, evidence)
	if err != nil {
		log.Warn("verify.adjudicate.failed", "error", err, "evidence", len(evidence))
		res := model.Unverifiable(claim.ID, "adjudication failed: "+llm.Describe(err))
		res.Queries = issued
		return res
	}

	verdict, _ := model.ParseVerdict(reply.Verdict)
	cited := citedURLs(reply.CitedEvidence, evidence)

	res := model.VerificationResult{
		ClaimID:      claim.ID,
		Verdict:      verdict,
		Explanation:  reply.Explanation,
		CitedSources: cited,
		Sources:      v.sourceRefs(ctx, cited, evidence),
		Confidence:   reply.Confidence,
		Queries:      issued,
	}
	if reply.CorrectInfo != nil {
		res.CorrectInfo = *reply.CorrectInfo
	}

	log.Info("verify.done",
		"verdict", res.Verdict,
		"evidence", len(evidence),
		"cited", len(cited),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// search runs one query; a failed search counts as no results
func (v *ClaimVerifier) search(ctx context.Context, query string) []model.SearchResult {
	results, err := v.retriever.Search(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("verify.search.failed", "query", query, "error", err)
		return nil
	}
	return results
}

func (v *ClaimVerifier) adjudicate(ctx context.Context, claim model.Claim, evidence []model.Evidence) (*verdictReply, error) {
	prompt, err := renderAdjudication(adjudicationData{
		Claim:     claim,
		Evidence:  evidence,
		Tolerance: formatTolerance(v.cfg.TolerancePercent),
		Today:     v.now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	var reply verdictReply
	err = llm.CompleteInto(ctx, v.gateway, llm.Request{
		System:      adjudicationSystem,
		Prompt:      prompt,
		Shape:       verdictShape,
		MaxTokens:   v.maxTokens,
		Temperature: 0.1,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// citedURLs maps 1-based evidence numbers to URLs, dropping out-of-range
// and repeated numbers. With nothing valid, the top evidence is cited.
func citedURLs(nums []int, evidence []model.Evidence) []string {
	seen := make(map[string]bool, len(nums))
	urls := make([]string, 0, len(nums))
	for _, n := range nums {
		if n < 1 || n > len(evidence) {
			continue
		}
		u := evidence[n-1].SourceURL
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	if len(urls) == 0 {
		for i := 0; i < len(evidence) && i < fallbackCitations; i++ {
			urls = append(urls, evidence[i].SourceURL)
		}
	}
	return urls
}

func (v *ClaimVerifier) sourceRefs(ctx context.Context, cited []string, evidence []model.Evidence) []model.SourceRef {
	byURL := make(map[string]model.Evidence, len(evidence))
	for _, ev := range evidence {
		byURL[ev.SourceURL] = ev
	}

	refs := make([]model.SourceRef, 0, len(cited))
	for _, u := range cited {
		ev := byURL[u]
		refs = append(refs, model.SourceRef{
			URL:       u,
			Title:     ev.Title,
			Snippet:   truncateSnippet(ev.Snippet, maxSourceSnippet),
			Authority: ev.Authority,
		})
	}

	if v.links != nil {
		for i, st := range v.links.Check(ctx, cited) {
			reachable := st.Reachable
			refs[i].Reachable = &reachable
		}
	}

	return refs
}
