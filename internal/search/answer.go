package search

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/llm"
	"github.com/ca-srg/legalrag/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultGenerationTimeout = 60 * time.Second

// Retriever runs the search selected by mode.
type Retriever interface {
	Search(ctx context.Context, query string, mode types.SearchMode, limit int) ([]types.SearchResult, error)
}

// AnswerGenerator turns retrieved passages into a grounded answer.
type AnswerGenerator struct {
	retriever Retriever
	generator llm.Generator
	assembler *ContextAssembler
	timeout   time.Duration
	logger    *log.Logger
}

func NewAnswerGenerator(retriever Retriever, generator llm.Generator, assembler *ContextAssembler, timeout time.Duration, logger *log.Logger) *AnswerGenerator {
	if assembler == nil {
		assembler = NewContextAssembler(defaultBodyCharLimit)
	}
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[answer] ", log.LstdFlags)
	}
	return &AnswerGenerator{
		retriever: retriever,
		generator: generator,
		assembler: assembler,
		timeout:   timeout,
		logger:    logger,
	}
}

// Generate answers query from results, running the mode's search first when
// results is nil. A blank query always gets the no-information answer. Only an invalid mode or a failing retriever is returned as
// an error; no results and model failures become fixed answer texts.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, mode types.SearchMode, limit int, results []types.SearchResult) (*types.Answer, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	ctx, span := searchTracer.Start(ctx, "search.generate_answer")
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("answer.request_id", requestID),
		attribute.String("search.mode", string(mode)),
	)

	switch {
	case strings.TrimSpace(query) == "":
		// a blank question never reaches the model
		results = nil
	case results == nil:
		retrieved, err := g.retriever.Search(ctx, query, mode, limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retrieval_failed")
			return nil, err
		}
		results = retrieved
	}

	answer := &types.Answer{
		Query:   query,
		Mode:    mode,
		Sources: sourcesFrom(results, mode),
	}

	if len(answer.Sources) == 0 {
		g.logger.Printf("[%s] no documents found, skipping generation", requestID)
		span.SetAttributes(attribute.Bool("answer.no_information", true))
		answer.Text = NoInformationAnswer
		return answer, nil
	}

	messages := BuildPrompt(g.assembler.Build(answer.Sources), query)

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.generator.Generate(genCtx, messages)
	if err != nil {
		reason := "generation_error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "generation_timeout"
		}
		g.logger.Printf("[%s] answer generation failed after %v: %v", requestID, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		recordGenerationFailure(ctx, reason)
		answer.Text = GenerationFailedAnswer
		return answer, nil
	}

	g.logger.Printf("[%s] answer generated in %v from %d sources", requestID, time.Since(start), len(answer.Sources))
	answer.Text = text
	return answer, nil
}

func sourcesFrom(results []types.SearchResult, mode types.SearchMode) []types.SearchResult {
	sources := make([]types.SearchResult, len(results))
	copy(sources, results)
	for i := range sources {
		if sources[i].Origin == "" {
			sources[i].Origin = mode.Origin()
		}
	}
	return sources
}
