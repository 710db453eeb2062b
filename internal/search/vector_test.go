package search

import (
	"context"
	"errors"
	"testing"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatePool(t *testing.T) {
	assert.Equal(t, 50, CandidatePool(5))
	assert.Equal(t, 400, CandidatePool(40))
	assert.Equal(t, 400, CandidatePool(100))
}

func TestVectorSearcherRequest(t *testing.T) {
	store := &fakeStore{vector: []types.ScoredDocument{
		doc("Luật BHXH 2014", "Điều 55", 0.71),
		doc("Luật BHXH 2014", "Điều 54", 0.93),
	}}
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2, 0.3}}
	searcher := NewVectorSearcher(store, embedder, discardLogger())

	outcome := searcher.Search(context.Background(), "lương hưu", 5)

	require.False(t, outcome.Degraded())
	require.Len(t, store.vectorQueries, 1)
	query := store.vectorQueries[0]
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, query.Vector)
	assert.Equal(t, 50, query.NumCandidates)
	assert.Equal(t, 5, query.Limit)

	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "Điều 54", outcome.Results[0].Title)
	assert.Equal(t, types.OriginSemantic, outcome.Results[0].Origin)
}

func TestVectorSearcherTruncatesToLimit(t *testing.T) {
	store := &fakeStore{vector: []types.ScoredDocument{
		doc("A", "1", 0.9), doc("A", "2", 0.8), doc("A", "3", 0.7),
	}}
	searcher := NewVectorSearcher(store, &fakeEmbedder{vector: []float64{1}}, discardLogger())

	outcome := searcher.Search(context.Background(), "q", 2)
	assert.Len(t, outcome.Results, 2)
}

func TestVectorSearcherEmbeddingFailure(t *testing.T) {
	store := &fakeStore{}
	searcher := NewVectorSearcher(store, &fakeEmbedder{err: errors.New("throttled")}, discardLogger())

	outcome := searcher.Search(context.Background(), "lương hưu", 5)

	assert.NotNil(t, outcome.Results)
	assert.Empty(t, outcome.Results)
	require.Error(t, outcome.Diagnostic)
	assert.Contains(t, outcome.Diagnostic.Error(), "throttled")
	assert.Empty(t, store.vectorQueries)
}

func TestVectorSearcherStoreFailure(t *testing.T) {
	store := &fakeStore{vectorErr: errors.New("knn plugin missing")}
	searcher := NewVectorSearcher(store, &fakeEmbedder{vector: []float64{1}}, discardLogger())

	outcome := searcher.Search(context.Background(), "lương hưu", 5)

	assert.Empty(t, outcome.Results)
	assert.True(t, outcome.Degraded())
	assert.Equal(t, StrategyVector, outcome.Strategy)
}
