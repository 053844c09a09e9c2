package engine

import (
	"context"
	"strings"

	"github.com/lazypower/mnemo/internal/store"
)

// SearchParams controls Search.
type SearchParams struct {
	Limit     int      // max results (default Opts.SearchLimit)
	Threshold *float64 // minimum similarity, exclusive (default Opts.SearchThreshold)
	Project   string
}

// Search embeds query and returns the memories of a project ranked by cosine
// similarity, highest first, keeping only those scoring above the threshold.
// Ties keep insertion order.
func (e *Engine) Search(ctx context.Context, query string, p SearchParams) ([]store.ScoredMemory, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidf("query is required")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = e.Opts.SearchLimit
	}
	threshold := e.Opts.SearchThreshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	if threshold < -1 || threshold > 1 {
		return nil, invalidf("threshold must be between -1 and 1")
	}

	v, err := e.vectorize(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.DB.SearchMemories(ctx, v.Embedding, store.SearchOptions{
		Limit:     limit,
		Threshold: threshold,
		Project:   p.Project,
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []store.ScoredMemory{}
	}
	e.Log.Debug("search", "query", query, "project", p.Project, "results", len(results))
	return results, nil
}
