package search

import (
	"context"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/m-mizutani/goerr/v2"
)

// CohereReranker implements Reranker with the Cohere Rerank API (v2)
type CohereReranker struct {
	client *cohereclient.Client
	model  string
}

// NewCohereReranker creates a reranker. model defaults to rerank-v3.5.
func NewCohereReranker(apiKey, model string, httpClient *http.Client) (*CohereReranker, error) {
	if apiKey == "" {
		return nil, goerr.New("Cohere API key is required (set COHERE_API_KEY)")
	}
	if model == "" {
		model = "rerank-v3.5"
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)

	return &CohereReranker{client: client, model: model}, nil
}

// Rerank returns document indices by descending relevance. Indices the API
// omits keep their original relative order at the end.
func (c *CohereReranker) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) <= 1 {
		order := make([]int, len(docs))
		for i := range order {
			order[i] = i
		}
		return order, nil
	}

	topN := len(docs)
	resp, err := c.client.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: docs,
		TopN:      &topN,
	})
	if err != nil {
		return nil, retrievalErr("cohere", query, 0, err)
	}
	if resp == nil {
		return nil, retrievalErr("cohere", query, 0, goerr.New("empty rerank response"))
	}

	seen := make(map[int]bool, len(docs))
	order := make([]int, 0, len(docs))
	for _, r := range resp.Results {
		if r == nil || r.Index < 0 || r.Index >= len(docs) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		order = append(order, r.Index)
	}
	for i := range docs {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, nil
}
