package search

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/ca-srg/legalrag/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Weights control the contribution of each strategy to a fused score.
type Weights struct {
	Keyword  float64 `json:"keyword_weight"`
	Semantic float64 `json:"semantic_weight"`
}

func DefaultWeights() Weights {
	return Weights{Keyword: 0.3, Semantic: 0.7}
}

// HybridFuser merges lexical and vector results into one ranking.
type HybridFuser struct {
	lexical Searcher
	vector  Searcher
	logger  *log.Logger
}

func NewHybridFuser(lexical, vector Searcher, logger *log.Logger) *HybridFuser {
	if logger == nil {
		logger = log.New(log.Writer(), "[search] ", log.LstdFlags)
	}
	return &HybridFuser{lexical: lexical, vector: vector, logger: logger}
}

// Fuse over-fetches 2*limit from both strategies, merges them by DedupKey
// and returns at most limit entries ordered by fused score.
func (f *HybridFuser) Fuse(ctx context.Context, query string, limit int, weights Weights) []types.CombinedResult {
	ctx, span := searchTracer.Start(ctx, "search.fuse")
	defer span.End()

	fetch := limit * 2
	var lexical, semantic Outcome

	var group errgroup.Group
	group.Go(func() error {
		lexical = f.lexical.Search(ctx, query, fetch)
		return nil
	})
	group.Go(func() error {
		semantic = f.vector.Search(ctx, query, fetch)
		return nil
	})
	_ = group.Wait()

	if lexical.Degraded() {
		span.SetAttributes(attribute.String("search.lexical_diagnostic", lexical.Diagnostic.Error()))
	}
	if semantic.Degraded() {
		span.SetAttributes(attribute.String("search.semantic_diagnostic", semantic.Diagnostic.Error()))
	}

	fused := Merge(lexical.Results, semantic.Results, limit, weights)
	span.SetAttributes(
		attribute.String("search.lexical_strategy", lexical.Strategy),
		attribute.Int("search.lexical_hits", len(lexical.Results)),
		attribute.Int("search.semantic_hits", len(semantic.Results)),
		attribute.Int("search.fused_hits", len(fused)),
	)
	f.logger.Printf("hybrid fusion: %d lexical (%s), %d semantic, %d fused",
		len(lexical.Results), lexical.Strategy, len(semantic.Results), len(fused))
	return fused
}

// Merge folds lexical then semantic hits into one entry per DedupKey.
// Lexical scores are clamped to 1.0; semantic scores are used as reported.
// On a repeated key the higher score of that strategy wins. The result is
// sorted by descending fused score, ties keeping first-seen order, and cut
// to limit.
func Merge(lexical, semantic []types.SearchResult, limit int, weights Weights) []types.CombinedResult {
	entries := make(map[types.DedupKey]*types.CombinedResult, len(lexical)+len(semantic))
	order := make([]types.DedupKey, 0, len(lexical)+len(semantic))

	for _, hit := range lexical {
		key := hit.Key()
		score := math.Min(hit.Score, 1.0)
		if entry, ok := entries[key]; ok {
			entry.KeywordScore = math.Max(entry.KeywordScore, score)
			continue
		}
		entries[key] = &types.CombinedResult{SearchResult: hit, KeywordScore: score}
		order = append(order, key)
	}

	for _, hit := range semantic {
		key := hit.Key()
		if entry, ok := entries[key]; ok {
			entry.SemanticScore = math.Max(entry.SemanticScore, hit.Score)
			continue
		}
		entries[key] = &types.CombinedResult{SearchResult: hit, SemanticScore: hit.Score}
		order = append(order, key)
	}

	results := make([]types.CombinedResult, 0, len(order))
	for _, key := range order {
		entry := entries[key]
		entry.Score = weights.Keyword*entry.KeywordScore + weights.Semantic*entry.SemanticScore
		entry.Origin = types.OriginHybrid
		results = append(results, *entry)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
