package search

import (
	"context"

	"github.com/ca-srg/legalrag/internal/types"
)

// DocumentStore is the queryable legal corpus. Implementations live in
// internal/opensearch and internal/localstore.
type DocumentStore interface {
	Capabilities(ctx context.Context) (types.StoreCapabilities, error)
	TextSearch(ctx context.Context, query string, limit int) ([]types.ScoredDocument, error)
	SubstringSearch(ctx context.Context, query string, limit int) ([]types.ScoredDocument, error)
	VectorSearch(ctx context.Context, query types.VectorQuery) ([]types.ScoredDocument, error)
}

// QueryEmbedder turns query text into a vector. *embedding.Provider
// satisfies it.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher is one retrieval strategy.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) Outcome
}

// Outcome is the result of one strategy. A failed strategy yields no
// results and a Diagnostic; it never fails the caller.
type Outcome struct {
	Results    []types.SearchResult
	Strategy   string
	Diagnostic error
}

// Degraded reports whether the strategy hit a backend failure.
func (o Outcome) Degraded() bool {
	return o.Diagnostic != nil
}

func toResults(docs []types.ScoredDocument, origin types.Origin) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, types.NewSearchResult(doc, origin))
	}
	return results
}
