package search

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeStore struct {
	mu sync.Mutex

	caps    types.StoreCapabilities
	capsErr error

	text         []types.ScoredDocument
	textErr      error
	substring    []types.ScoredDocument
	substringErr error
	vector       []types.ScoredDocument
	vectorErr    error

	textLimits      []int
	substringLimits []int
	vectorQueries   []types.VectorQuery
}

func (f *fakeStore) Capabilities(context.Context) (types.StoreCapabilities, error) {
	return f.caps, f.capsErr
}

func (f *fakeStore) TextSearch(_ context.Context, _ string, limit int) ([]types.ScoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textLimits = append(f.textLimits, limit)
	if f.textErr != nil {
		return nil, f.textErr
	}
	return firstN(f.text, limit), nil
}

func (f *fakeStore) SubstringSearch(_ context.Context, _ string, limit int) ([]types.ScoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.substringLimits = append(f.substringLimits, limit)
	if f.substringErr != nil {
		return nil, f.substringErr
	}
	return firstN(f.substring, limit), nil
}

func (f *fakeStore) VectorSearch(_ context.Context, query types.VectorQuery) ([]types.ScoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorQueries = append(f.vectorQueries, query)
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return firstN(f.vector, query.Limit), nil
}

func firstN(docs []types.ScoredDocument, n int) []types.ScoredDocument {
	if n < len(docs) {
		return docs[:n]
	}
	return docs
}

type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, messages []types.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

type staticSearcher struct {
	outcome Outcome
	limits  []int
	mu      sync.Mutex
}

func (s *staticSearcher) Search(_ context.Context, _ string, limit int) Outcome {
	s.mu.Lock()
	s.limits = append(s.limits, limit)
	s.mu.Unlock()
	return s.outcome
}

func doc(source, title string, score float64) types.ScoredDocument {
	return types.ScoredDocument{
		Document: types.Document{SourceName: source, Title: title, Body: title + " body"},
		Score:    score,
	}
}

func result(source, title string, score float64, origin types.Origin) types.SearchResult {
	return types.SearchResult{SourceName: source, Title: title, Body: title + " body", Score: score, Origin: origin}
}
