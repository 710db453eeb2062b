package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/llm"
	"github.com/ca-srg/legalrag/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
)

const maxLimit = 100

type Options struct {
	DefaultLimit      int
	DefaultMode       types.SearchMode
	Weights           Weights
	BodyCharLimit     int
	GenerationTimeout time.Duration
	Logger            *log.Logger
}

// OptionsFromConfig maps retrieval settings from the application config.
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		DefaultLimit:      cfg.SearchDefaultLimit,
		DefaultMode:       types.SearchMode(cfg.SearchDefaultMode),
		Weights:           Weights{Keyword: cfg.HybridKeywordWeight, Semantic: cfg.HybridSemanticWeight},
		BodyCharLimit:     cfg.ContextBodyCharLimit,
		GenerationTimeout: cfg.GenerationTimeout,
	}
}

// Service is the public retrieval API: search in one of three modes and
// grounded answers on top of it.
type Service struct {
	lexical LexicalSearcher
	vector  *VectorSearcher
	fuser   *HybridFuser
	answers *AnswerGenerator

	defaultLimit int
	defaultMode  types.SearchMode
	weights      Weights
	logger       *log.Logger
}

// NewService probes store capabilities once to pick the lexical strategy.
func NewService(ctx context.Context, store DocumentStore, embedder QueryEmbedder, generator llm.Generator, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}

	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = types.SearchModeSemantic
	}
	if err := opts.DefaultMode.Validate(); err != nil {
		return nil, err
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[search] ", log.LstdFlags)
	}

	s := &Service{
		lexical:      NewLexicalSearcher(ctx, store, logger),
		vector:       NewVectorSearcher(store, embedder, logger),
		defaultLimit: opts.DefaultLimit,
		defaultMode:  opts.DefaultMode,
		weights:      opts.Weights,
		logger:       logger,
	}
	s.fuser = NewHybridFuser(s.lexical, s.vector, logger)
	s.answers = NewAnswerGenerator(s, generator, NewContextAssembler(opts.BodyCharLimit), opts.GenerationTimeout, logger)
	return s, nil
}

func (s *Service) DefaultMode() types.SearchMode {
	return s.defaultMode
}

func (s *Service) DefaultLimit() int {
	return s.defaultLimit
}

func (s *Service) Weights() Weights {
	return s.weights
}

// ResolveMode maps "" to the default mode and validates the rest.
func (s *Service) ResolveMode(mode string) (types.SearchMode, error) {
	if strings.TrimSpace(mode) == "" {
		return s.defaultMode, nil
	}
	return types.ParseSearchMode(mode)
}

func (s *Service) resolveLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return min(limit, maxLimit)
}

// Search returns at most limit results for query. The only error is an
// invalid mode; backend failures yield fewer or no results.
func (s *Service) Search(ctx context.Context, query string, mode types.SearchMode, limit int) ([]types.SearchResult, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if mode == types.SearchModeHybrid {
		combined, err := s.SearchHybrid(ctx, query, limit, nil)
		if err != nil {
			return nil, err
		}
		results := make([]types.SearchResult, len(combined))
		for i, c := range combined {
			results[i] = c.SearchResult
		}
		return results, nil
	}

	ctx, span := searchTracer.Start(ctx, "search."+string(mode))
	defer span.End()

	start := time.Now()
	limit = s.resolveLimit(limit)
	query = norm.NFC.String(strings.TrimSpace(query))
	span.SetAttributes(
		attribute.String("search.query", truncateQueryAttribute(query)),
		attribute.Int("search.limit", limit),
	)
	if query == "" {
		recordRequest(ctx, "search", string(mode), time.Since(start), 0)
		return []types.SearchResult{}, nil
	}

	var outcome Outcome
	if mode == types.SearchModeKeyword {
		outcome = s.lexical.Search(ctx, query, limit)
	} else {
		outcome = s.vector.Search(ctx, query, limit)
	}
	if outcome.Degraded() {
		span.SetStatus(codes.Error, "strategy_degraded")
		span.RecordError(outcome.Diagnostic, trace.WithAttributes(attribute.String("search.strategy", outcome.Strategy)))
	}

	results := outcome.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	span.SetAttributes(
		attribute.String("search.strategy", outcome.Strategy),
		attribute.Int("search.results", len(results)),
	)
	recordRequest(ctx, "search", string(mode), time.Since(start), len(results))
	return results, nil
}

// SearchHybrid returns fused results with both per-strategy scores. A nil
// weights pointer uses the configured weights.
func (s *Service) SearchHybrid(ctx context.Context, query string, limit int, weights *Weights) ([]types.CombinedResult, error) {
	ctx, span := searchTracer.Start(ctx, "search.hybrid")
	defer span.End()

	w := s.weights
	if weights != nil {
		w = *weights
	}
	if w.Keyword < 0 || w.Semantic < 0 {
		err := fmt.Errorf("hybrid weights cannot be negative")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_weights")
		return nil, err
	}

	start := time.Now()
	limit = s.resolveLimit(limit)
	query = norm.NFC.String(strings.TrimSpace(query))
	span.SetAttributes(
		attribute.String("search.query", truncateQueryAttribute(query)),
		attribute.Int("search.limit", limit),
		attribute.Float64("search.keyword_weight", w.Keyword),
		attribute.Float64("search.semantic_weight", w.Semantic),
	)
	if query == "" {
		recordRequest(ctx, "search", string(types.SearchModeHybrid), time.Since(start), 0)
		return []types.CombinedResult{}, nil
	}

	results := s.fuser.Fuse(ctx, query, limit, w)
	recordRequest(ctx, "search", string(types.SearchModeHybrid), time.Since(start), len(results))
	return results, nil
}

// GenerateAnswer retrieves with mode and answers from the results.
func (s *Service) GenerateAnswer(ctx context.Context, query string, mode types.SearchMode, limit int) (*types.Answer, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	start := time.Now()
	answer, err := s.answers.Generate(ctx, strings.TrimSpace(query), mode, s.resolveLimit(limit), nil)
	if err != nil {
		return nil, err
	}
	recordRequest(ctx, "answer", string(mode), time.Since(start), len(answer.Sources))
	return answer, nil
}

// GenerateAnswerFrom answers from results already retrieved by the caller.
func (s *Service) GenerateAnswerFrom(ctx context.Context, query string, mode types.SearchMode, results []types.SearchResult) (*types.Answer, error) {
	if results == nil {
		results = []types.SearchResult{}
	}
	return s.answers.Generate(ctx, strings.TrimSpace(query), mode, len(results), results)
}

func truncateQueryAttribute(query string) string {
	const maxQueryLength = 256
	return truncateRunes(query, maxQueryLength)
}
