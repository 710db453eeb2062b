package search

import (
	"context"
	"errors"
	"testing"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLexicalSearcherSelection(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		want  interface{}
	}{
		{
			name:  "text index available",
			store: &fakeStore{caps: types.StoreCapabilities{TextIndex: true, VectorIndex: true}},
			want:  &TextSearcher{},
		},
		{
			name:  "no text index",
			store: &fakeStore{caps: types.StoreCapabilities{VectorIndex: true}},
			want:  &SubstringSearcher{},
		},
		{
			name:  "probe fails",
			store: &fakeStore{capsErr: errors.New("connection refused")},
			want:  &TextSearcher{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := NewLexicalSearcher(context.Background(), tt.store, discardLogger())
			assert.IsType(t, tt.want, searcher)
		})
	}
}

func TestTextSearcherSortsByScore(t *testing.T) {
	store := &fakeStore{
		caps: types.StoreCapabilities{TextIndex: true},
		text: []types.ScoredDocument{
			doc("Luật BHXH 2014", "Điều 55", 2.1),
			doc("Luật BHXH 2014", "Điều 54", 7.4),
		},
	}
	searcher := NewLexicalSearcher(context.Background(), store, discardLogger())

	outcome := searcher.Search(context.Background(), "lương hưu", 5)

	require.False(t, outcome.Degraded())
	assert.Equal(t, StrategyText, outcome.Strategy)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "Điều 54", outcome.Results[0].Title)
	assert.Equal(t, 7.4, outcome.Results[0].Score)
	assert.Equal(t, types.OriginLexical, outcome.Results[0].Origin)
	assert.Equal(t, []int{5}, store.textLimits)
}

func TestTextSearcherFallsBackToSubstring(t *testing.T) {
	store := &fakeStore{
		caps:      types.StoreCapabilities{TextIndex: true},
		textErr:   errors.New("search_phase_execution_exception"),
		substring: []types.ScoredDocument{doc("Luật BHXH 2014", "Điều 54", 3.0)},
	}
	searcher := NewLexicalSearcher(context.Background(), store, discardLogger())

	outcome := searcher.Search(context.Background(), "hưu", 5)

	assert.Equal(t, StrategySubstring, outcome.Strategy)
	require.Len(t, outcome.Results, 1)
	assert.Zero(t, outcome.Results[0].Score)
	require.Error(t, outcome.Diagnostic)
	assert.Contains(t, outcome.Diagnostic.Error(), "search_phase_execution_exception")
	assert.Equal(t, []int{5}, store.substringLimits)
}

func TestTextSearcherBothStrategiesFail(t *testing.T) {
	store := &fakeStore{
		caps:         types.StoreCapabilities{TextIndex: true},
		textErr:      errors.New("text down"),
		substringErr: errors.New("substring down"),
	}
	searcher := NewLexicalSearcher(context.Background(), store, discardLogger())

	outcome := searcher.Search(context.Background(), "hưu", 5)

	assert.NotNil(t, outcome.Results)
	assert.Empty(t, outcome.Results)
	require.Error(t, outcome.Diagnostic)
	assert.Contains(t, outcome.Diagnostic.Error(), "text down")
	assert.Contains(t, outcome.Diagnostic.Error(), "substring down")
}

func TestSubstringSearcherScoresZeroInStoreOrder(t *testing.T) {
	store := &fakeStore{
		substring: []types.ScoredDocument{
			doc("Luật BHXH 2014", "Điều 1", 0.9),
			doc("Luật BHXH 2014", "Điều 54", 4.0),
		},
	}
	searcher := NewLexicalSearcher(context.Background(), store, discardLogger())
	require.IsType(t, &SubstringSearcher{}, searcher)

	outcome := searcher.Search(context.Background(), "Điều", 5)

	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "Điều 1", outcome.Results[0].Title)
	assert.Equal(t, "Điều 54", outcome.Results[1].Title)
	for _, r := range outcome.Results {
		assert.Zero(t, r.Score)
		assert.Equal(t, types.OriginLexical, r.Origin)
	}
}
