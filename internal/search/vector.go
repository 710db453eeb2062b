package search

import (
	"context"
	"fmt"
	"log"

	"github.com/ca-srg/legalrag/internal/types"
)

const maxCandidates = 400

// VectorSearcher ranks documents by embedding similarity to the query.
type VectorSearcher struct {
	store    DocumentStore
	embedder QueryEmbedder
	logger   *log.Logger
}

func NewVectorSearcher(store DocumentStore, embedder QueryEmbedder, logger *log.Logger) *VectorSearcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[search] ", log.LstdFlags)
	}
	return &VectorSearcher{store: store, embedder: embedder, logger: logger}
}

// CandidatePool is the number of neighbours the index ranks before the
// result is cut to limit.
func CandidatePool(limit int) int {
	return min(maxCandidates, limit*10)
}

// Search never fails: a query that cannot be embedded or a failing index
// produces an empty outcome with a diagnostic.
func (s *VectorSearcher) Search(ctx context.Context, query string, limit int) Outcome {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Printf("query embedding failed, skipping vector search: %v", err)
		recordDegraded(ctx, StrategyVector)
		return Outcome{Results: []types.SearchResult{}, Strategy: StrategyVector, Diagnostic: fmt.Errorf("embed query: %w", err)}
	}

	docs, err := s.store.VectorSearch(ctx, types.VectorQuery{
		Vector:        vector,
		NumCandidates: CandidatePool(limit),
		Limit:         limit,
	})
	if err != nil {
		s.logger.Printf("vector search failed: %v", err)
		recordDegraded(ctx, StrategyVector)
		return Outcome{Results: []types.SearchResult{}, Strategy: StrategyVector, Diagnostic: fmt.Errorf("vector search: %w", err)}
	}

	results := toResults(docs, types.OriginSemantic)
	sortByScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return Outcome{Results: results, Strategy: StrategyVector}
}
