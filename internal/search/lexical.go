package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	StrategyText      = "text"
	StrategySubstring = "substring"
	StrategyVector    = "vector"
)

// LexicalSearcher ranks documents by keyword match. TextSearcher and
// SubstringSearcher are interchangeable: same result shape, ordered by
// descending score.
type LexicalSearcher interface {
	Searcher
}

// NewLexicalSearcher probes the store and picks the text-relevance searcher
// when a text index exists, the substring searcher otherwise. A failed
// probe keeps the text searcher, which still degrades per call.
func NewLexicalSearcher(ctx context.Context, store DocumentStore, logger *log.Logger) LexicalSearcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[search] ", log.LstdFlags)
	}
	substring := &SubstringSearcher{store: store, logger: logger}

	caps, err := store.Capabilities(ctx)
	if err != nil {
		logger.Printf("capability probe failed, assuming text index: %v", err)
		return &TextSearcher{store: store, fallback: substring, logger: logger}
	}
	if !caps.TextIndex {
		logger.Printf("store has no text index, using substring matching")
		return substring
	}
	return &TextSearcher{store: store, fallback: substring, logger: logger}
}

// TextSearcher uses the store's full-text relevance ranking.
type TextSearcher struct {
	store    DocumentStore
	fallback *SubstringSearcher
	logger   *log.Logger
}

func (s *TextSearcher) Search(ctx context.Context, query string, limit int) Outcome {
	docs, err := s.store.TextSearch(ctx, query, limit)
	if err != nil {
		s.logger.Printf("text search failed, falling back to substring match: %v", err)
		recordDegraded(ctx, StrategyText)
		outcome := s.fallback.Search(ctx, query, limit)
		if outcome.Diagnostic != nil {
			outcome.Diagnostic = errors.Join(fmt.Errorf("text search: %w", err), outcome.Diagnostic)
		} else {
			outcome.Diagnostic = fmt.Errorf("text search: %w", err)
		}
		return outcome
	}

	results := toResults(docs, types.OriginLexical)
	sortByScore(results)
	return Outcome{Results: results, Strategy: StrategyText}
}

// SubstringSearcher matches the query case-insensitively inside title, body
// and section type. Every hit scores 0.0 and keeps store order.
type SubstringSearcher struct {
	store  DocumentStore
	logger *log.Logger
}

func (s *SubstringSearcher) Search(ctx context.Context, query string, limit int) Outcome {
	docs, err := s.store.SubstringSearch(ctx, query, limit)
	if err != nil {
		s.logger.Printf("substring search failed: %v", err)
		recordDegraded(ctx, StrategySubstring)
		return Outcome{Results: []types.SearchResult{}, Strategy: StrategySubstring, Diagnostic: fmt.Errorf("substring search: %w", err)}
	}

	results := toResults(docs, types.OriginLexical)
	for i := range results {
		results[i].Score = 0
	}
	return Outcome{Results: results, Strategy: StrategySubstring}
}

func sortByScore(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
