package search

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixture maps queries containing every Match term to canned results
type Fixture struct {
	Match   []string        `yaml:"match"`
	Results []FixtureResult `yaml:"results"`
}

// FixtureResult is one canned search hit
type FixtureResult struct {
	Title     string `yaml:"title"`
	URL       string `yaml:"url"`
	Snippet   string `yaml:"snippet"`
	Published string `yaml:"published,omitempty"`
}

// StaticRetriever answers from fixtures; used for offline runs and tests
type StaticRetriever struct {
	fixtures []Fixture
}

// NewStaticRetriever creates a retriever over in-memory fixtures
func NewStaticRetriever(fixtures []Fixture) *StaticRetriever {
	return &StaticRetriever{fixtures: fixtures}
}

// LoadFixtures reads a YAML fixture file
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "read fixtures", goerr.V("path", path))
	}

	var fixtures []Fixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, goerr.Wrap(err, "parse fixtures", goerr.V("path", path))
	}

	for i, f := range fixtures {
		if len(f.Match) == 0 {
			return nil, goerr.New("fixture has no match terms", goerr.V("path", path), goerr.V("index", i))
		}
	}
	return fixtures, nil
}

// Name returns the backend name
func (s *StaticRetriever) Name() string {
	return "static"
}

// Search returns the results of the first fixture whose terms all occur in query
func (s *StaticRetriever) Search(_ context.Context, query string) ([]model.SearchResult, error) {
	q := strings.ToLower(query)

	for _, f := range s.fixtures {
		if !matchesAll(q, f.Match) {
			continue
		}
		results := make([]model.SearchResult, 0, len(f.Results))
		for _, r := range f.Results {
			results = append(results, model.SearchResult{
				Title:       r.Title,
				URL:         r.URL,
				Snippet:     r.Snippet,
				PublishedAt: parseDate(r.Published),
			})
		}
		return results, nil
	}

	return []model.SearchResult{}, nil
}

func matchesAll(query string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(query, strings.ToLower(term)) {
			return false
		}
	}
	return true
}
