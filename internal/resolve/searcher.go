package resolve

import (
	"context"
	"errors"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/resilience"
	"github.com/sells-group/company-extractor/pkg/jina"
	"github.com/sells-group/company-extractor/pkg/serpapi"
)

// SerpAPISearcher adapts a SerpAPI client to Searcher.
type SerpAPISearcher struct {
	client serpapi.Client
}

// NewSerpAPISearcher wraps a SerpAPI client.
func NewSerpAPISearcher(c serpapi.Client) *SerpAPISearcher {
	return &SerpAPISearcher{client: c}
}

// Name implements Searcher.
func (s *SerpAPISearcher) Name() string { return "serpapi" }

// Search implements Searcher. Retryable HTTP statuses are marked transient.
func (s *SerpAPISearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		var se *serpapi.StatusError
		if errors.As(err, &se) {
			return nil, resilience.MarkStatus(err, se.StatusCode)
		}
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		out = append(out, model.SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// JinaSearcher adapts a Jina search client to Searcher.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(c jina.Client) *JinaSearcher {
	return &JinaSearcher{client: c}
}

// Name implements Searcher.
func (s *JinaSearcher) Name() string { return "jina" }

// Search implements Searcher. Retryable HTTP statuses are marked transient.
func (s *JinaSearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		var se *jina.StatusError
		if errors.As(err, &se) {
			return nil, resilience.MarkStatus(err, se.StatusCode)
		}
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return out, nil
}
