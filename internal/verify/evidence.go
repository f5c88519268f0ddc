package verify

import (
	"context"
	"sort"
	"strings"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// prepareEvidence dedupes results by URL, classifies authority, orders them
// and applies the count and size budgets
func (v *ClaimVerifier) prepareEvidence(ctx context.Context, query string, results []model.SearchResult) []model.Evidence {
	seen := make(map[string]bool, len(results))
	candidates := make([]model.Evidence, 0, len(results))
	retrievedAt := v.now()

	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		snippet := collapse(r.Snippet)
		if u == "" || snippet == "" || seen[u] {
			continue
		}
		seen[u] = true

		candidates = append(candidates, model.Evidence{
			Snippet:     snippet,
			SourceURL:   u,
			Title:       strings.TrimSpace(r.Title),
			PublishedAt: r.PublishedAt,
			RetrievedAt: retrievedAt,
			Authority:   v.authority.Classify(u),
		})
	}

	candidates = v.order(ctx, query, candidates)

	evidence := make([]model.Evidence, 0, v.cfg.MaxEvidence)
	total := 0
	for _, ev := range candidates {
		if len(evidence) >= v.cfg.MaxEvidence {
			break
		}
		ev.Snippet = truncateSnippet(ev.Snippet, v.cfg.MaxSnippetChars)
		if total+len(ev.Snippet) > v.cfg.MaxEvidenceChars {
			break
		}
		total += len(ev.Snippet)
		evidence = append(evidence, ev)
	}

	return evidence
}

// order ranks evidence with the reranker when one is configured, otherwise
// by authority tier keeping retriever order within a tier
func (v *ClaimVerifier) order(ctx context.Context, query string, evs []model.Evidence) []model.Evidence {
	if v.reranker != nil && len(evs) > 1 {
		docs := make([]string, len(evs))
		for i, ev := range evs {
			docs[i] = ev.Title + "\n" + ev.Snippet
		}

		idx, err := v.reranker.Rerank(ctx, query, docs)
		if err == nil && isPermutation(idx, len(evs)) {
			ranked := make([]model.Evidence, 0, len(evs))
			for _, i := range idx {
				ranked = append(ranked, evs[i])
			}
			return ranked
		}
		logging.From(ctx).Warn("verify.rerank.failed", "error", err, "indices", len(idx), "fallback", "authority")
	}

	sort.SliceStable(evs, func(i, j int) bool {
		return tierRank(evs[i].Authority) < tierRank(evs[j].Authority)
	})
	return evs
}

func isPermutation(idx []int, n int) bool {
	if len(idx) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range idx {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// tierRank sorts unknown tiers last
func tierRank(t model.AuthorityTier) int {
	if t == model.TierUnknown {
		return 99
	}
	return int(t)
}

func truncateSnippet(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	const ellipsis = "..."
	return truncate(s, n-len(ellipsis)) + ellipsis
}
