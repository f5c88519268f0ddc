package validate

import (
	"testing"

	"github.com/ppiankov/claimcheck/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"ine.es", "doi.org", "www.oecd.org"},
		SecondaryDomains: []string{"reuters.com", "wikipedia.org"},
		DomainMap:        map[string]string{"blog.ine.es": "tertiary", "Example.COM": "secondary"},
		PathPatterns: []model.PathPattern{
			{Pattern: `^/statistics/`, Tier: "primary"},
			{Pattern: `[`, Tier: "primary"}, // invalid, skipped
		},
	}
	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://ine.es/prensa/epa.pdf", model.TierPrimary, "primary exact"},
		{"https://www.ine.es/prensa", model.TierPrimary, "primary subdomain"},
		{"https://oecd.org/data", model.TierPrimary, "www prefix stripped from config"},
		{"https://doi.org:443/10.1234/x", model.TierPrimary, "port ignored"},
		{"https://blog.ine.es/post", model.TierTertiary, "domain map overrides primary list"},
		{"https://example.com/x", model.TierSecondary, "domain map is case-insensitive"},
		{"https://www.reuters.com/markets", model.TierSecondary, "secondary subdomain"},
		{"https://en.wikipedia.org/wiki/Spain", model.TierSecondary, "wikipedia"},
		{"https://randomsite.io/statistics/2024", model.TierPrimary, "path pattern"},
		{"https://www.bls.gov/cps", model.TierPrimary, ".gov heuristic"},
		{"https://www.ox.ac.uk/research", model.TierPrimary, ".ac.uk heuristic"},
		{"https://notreuters.com/a", model.TierTertiary, "suffix without dot is not a subdomain"},
		{"https://someblog.net/post", model.TierTertiary, "default tertiary"},
		{"not a url", model.TierTertiary, "no host"},
		{"://bad", model.TierTertiary, "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]model.AuthorityTier{
		"primary":   model.TierPrimary,
		"PRIMARY":   model.TierPrimary,
		"1":         model.TierPrimary,
		"secondary": model.TierSecondary,
		"2":         model.TierSecondary,
		"tertiary":  model.TierTertiary,
		"whatever":  model.TierTertiary,
	}

	for in, want := range tests {
		if got := ParseTier(in); got != want {
			t.Errorf("ParseTier(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewAuthorityClassifier_NilConfig(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if got := classifier.Classify("https://www.ine.es/dyngs/INEbase"); got != model.TierPrimary {
		t.Errorf("Expected default config to rank ine.es primary, got %v", got)
	}
	if got := classifier.Classify("https://www.reuters.com/world"); got != model.TierSecondary {
		t.Errorf("Expected default config to rank reuters.com secondary, got %v", got)
	}
}
