package search

import (
	"context"
	"testing"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDeduplicatesByKey(t *testing.T) {
	lexical := []types.SearchResult{result("Luật BHXH 2014", "Điều 54", 0.8, types.OriginLexical)}
	semantic := []types.SearchResult{result("Luật BHXH 2014", "Điều 54", 0.9, types.OriginSemantic)}

	fused := Merge(lexical, semantic, 5, DefaultWeights())

	require.Len(t, fused, 1)
	entry := fused[0]
	assert.InDelta(t, 0.8, entry.KeywordScore, 1e-9)
	assert.InDelta(t, 0.9, entry.SemanticScore, 1e-9)
	assert.InDelta(t, 0.3*0.8+0.7*0.9, entry.Score, 1e-9)
	assert.Equal(t, types.OriginHybrid, entry.Origin)
}

func TestMergeClampsLexicalScore(t *testing.T) {
	lexical := []types.SearchResult{result("Luật BHXH 2014", "Điều 54", 5.0, types.OriginLexical)}

	fused := Merge(lexical, nil, 5, DefaultWeights())

	require.Len(t, fused, 1)
	assert.Equal(t, 1.0, fused[0].KeywordScore)
	assert.Zero(t, fused[0].SemanticScore)
	assert.InDelta(t, 0.3, fused[0].Score, 1e-9)
}

func TestMergeDoesNotClampSemanticScore(t *testing.T) {
	semantic := []types.SearchResult{result("A", "1", 1.5, types.OriginSemantic)}

	fused := Merge(nil, semantic, 5, DefaultWeights())
	assert.Equal(t, 1.5, fused[0].SemanticScore)
}

func TestMergeKeepsBestScorePerStrategy(t *testing.T) {
	lexical := []types.SearchResult{
		result("A", "1", 0.4, types.OriginLexical),
		result("A", "1", 0.6, types.OriginLexical),
	}
	semantic := []types.SearchResult{
		result("A", "1", 0.7, types.OriginSemantic),
		result("A", "1", 0.5, types.OriginSemantic),
	}

	fused := Merge(lexical, semantic, 5, DefaultWeights())

	require.Len(t, fused, 1)
	assert.InDelta(t, 0.6, fused[0].KeywordScore, 1e-9)
	assert.InDelta(t, 0.7, fused[0].SemanticScore, 1e-9)
}

func TestMergeKeySeparatorsDoNotCollide(t *testing.T) {
	lexical := []types.SearchResult{
		result("Luật|A", "B", 0.5, types.OriginLexical),
		result("Luật", "A|B", 0.5, types.OriginLexical),
	}

	fused := Merge(lexical, nil, 5, DefaultWeights())
	assert.Len(t, fused, 2)
}

func TestMergeOrdersByScoreAndTruncates(t *testing.T) {
	lexical := []types.SearchResult{
		result("A", "1", 0.2, types.OriginLexical),
		result("B", "2", 0.9, types.OriginLexical),
		result("C", "3", 3.0, types.OriginLexical),
	}
	semantic := []types.SearchResult{
		result("D", "4", 0.95, types.OriginSemantic),
		result("A", "1", 0.1, types.OriginSemantic),
	}

	fused := Merge(lexical, semantic, 3, DefaultWeights())

	require.Len(t, fused, 3)
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
	assert.Equal(t, "D", fused[0].SourceName)
}

func TestMergeTiesKeepInsertionOrder(t *testing.T) {
	lexical := []types.SearchResult{result("A", "1", 0.4, types.OriginLexical)}
	semantic := []types.SearchResult{result("B", "2", 0.4, types.OriginSemantic)}

	fused := Merge(lexical, semantic, 5, Weights{Keyword: 0.5, Semantic: 0.5})

	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, "A", fused[0].SourceName)
}

func TestMergeHonoursCustomWeights(t *testing.T) {
	lexical := []types.SearchResult{result("A", "1", 1.0, types.OriginLexical)}
	semantic := []types.SearchResult{result("B", "2", 1.0, types.OriginSemantic)}

	fused := Merge(lexical, semantic, 5, Weights{Keyword: 0.9, Semantic: 0.1})
	assert.Equal(t, "A", fused[0].SourceName)
	assert.InDelta(t, 0.9, fused[0].Score, 1e-9)
}

func TestFuseOverFetchesFromBothStrategies(t *testing.T) {
	lexical := &staticSearcher{outcome: Outcome{Strategy: StrategyText, Results: []types.SearchResult{
		result("Luật BHXH 2014", "Điều 54", 4.2, types.OriginLexical),
	}}}
	vector := &staticSearcher{outcome: Outcome{Strategy: StrategyVector, Results: []types.SearchResult{
		result("Luật BHXH 2014", "Điều 54", 0.88, types.OriginSemantic),
		result("Luật BHXH 2014", "Điều 55", 0.80, types.OriginSemantic),
	}}}

	fuser := NewHybridFuser(lexical, vector, discardLogger())
	fused := fuser.Fuse(context.Background(), "lương hưu", 3, DefaultWeights())

	assert.Equal(t, []int{6}, lexical.limits)
	assert.Equal(t, []int{6}, vector.limits)
	require.Len(t, fused, 2)
	assert.Equal(t, "Điều 54", fused[0].Title)
	assert.Equal(t, 1.0, fused[0].KeywordScore)
}

func TestFuseSurvivesOneStrategyFailing(t *testing.T) {
	lexical := &staticSearcher{outcome: Outcome{Strategy: StrategyText, Results: []types.SearchResult{
		result("A", "1", 0.5, types.OriginLexical),
	}}}
	vector := &staticSearcher{outcome: Outcome{Strategy: StrategyVector, Results: []types.SearchResult{}, Diagnostic: assert.AnError}}

	fused := NewHybridFuser(lexical, vector, discardLogger()).Fuse(context.Background(), "q", 5, DefaultWeights())

	require.Len(t, fused, 1)
	assert.Zero(t, fused[0].SemanticScore)
}
