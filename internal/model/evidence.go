package model

import "time"

// SearchResult is a single ranked hit returned by an evidence retriever
type SearchResult struct {
	Title       string     `json:"title,omitempty"`
	Snippet     string     `json:"snippet"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Score       float64    `json:"score,omitempty"` // Retriever relevance, if provided
}

// Evidence is a snippet retrieved for one claim. It lives only as long as
// the verification call that fetched it.
type Evidence struct {
	Snippet     string        `json:"snippet"`
	SourceURL   string        `json:"source_url"`
	Title       string        `json:"title,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	RetrievedAt time.Time     `json:"retrieved_at"`
	Authority   AuthorityTier `json:"authority"`
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Statistics offices, laws, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, aggregators
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// SourceRef describes a cited source in a verification result
type SourceRef struct {
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	Snippet   string        `json:"snippet,omitempty"`
	Authority AuthorityTier `json:"authority"`
	Reachable *bool         `json:"reachable,omitempty"` // Set only when link checking is enabled
}

// LinkStatus contains the result of a cited-link reachability check
type LinkStatus struct {
	URL         string `json:"url"`
	Reachable   bool   `json:"reachable"`
	StatusCode  int    `json:"status_code,omitempty"`
	IsDead      bool   `json:"is_dead"`                // 404, 410, or network failure
	RedirectURL string `json:"redirect_url,omitempty"` // If redirected
	Error       string `json:"error,omitempty"`
}
