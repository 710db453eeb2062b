package cmd

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/legalrag/internal/search"
	"github.com/ca-srg/legalrag/internal/types"
)

func TestSearchKeywordTextOutput(t *testing.T) {
	useTestApplication(t, testDependencies{})
	resetFlags(t, searchCmd)
	searchQuery = "thuế thu nhập"
	searchModeFlag = "keyword"

	output := captureOutput(t, func() {
		require.NoError(t, runSearch(searchCmd, nil))
	})

	assert.Contains(t, output, "=== Search Results (keyword) ===")
	assert.Contains(t, output, "Query: thuế thu nhập")
	assert.Contains(t, output, "[1] Chương I")
	assert.Contains(t, output, "Văn bản: Luật Thuế TNCN")
}

func TestSearchDefaultsToSemantic(t *testing.T) {
	useTestApplication(t, testDependencies{})
	resetFlags(t, searchCmd)
	searchQuery = "lương hưu"
	searchOutput = outputJSON

	output := captureOutput(t, func() {
		require.NoError(t, runSearch(searchCmd, nil))
	})

	var report struct {
		Mode    string               `json:"mode"`
		Count   int                  `json:"count"`
		Results []types.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, "semantic", report.Mode)
	require.Equal(t, 2, report.Count, "only embedded documents are semantic candidates")
	assert.Equal(t, "Điều 54", report.Results[0].Title)
	assert.Equal(t, types.OriginSemantic, report.Results[0].Origin)
}

func TestSearchHybridJSONWithWeightOverride(t *testing.T) {
	useTestApplication(t, testDependencies{})
	resetFlags(t, searchCmd)
	searchQuery = "lương hưu"
	require.NoError(t, searchCmd.Flags().Set("mode", "hybrid"))
	require.NoError(t, searchCmd.Flags().Set("semantic-weight", "0"))
	require.NoError(t, searchCmd.Flags().Set("output", "json"))

	output := captureOutput(t, func() {
		require.NoError(t, runSearch(searchCmd, nil))
	})

	var report struct {
		Mode    string                 `json:"mode"`
		Results []types.CombinedResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, "hybrid", report.Mode)
	require.NotEmpty(t, report.Results)
	for _, r := range report.Results {
		assert.Equal(t, types.OriginHybrid, r.Origin)
		assert.InDelta(t, 0.3*r.KeywordScore, r.Score, 1e-9, "semantic weight zero leaves only the keyword part")
	}
}

func TestSearchRejectsInvalidModeAndFormat(t *testing.T) {
	useTestApplication(t, testDependencies{})
	resetFlags(t, searchCmd)
	searchQuery = "luật"

	searchModeFlag = "fuzzy"
	err := runSearch(searchCmd, nil)
	assert.ErrorIs(t, err, types.ErrInvalidMode)

	searchModeFlag = ""
	searchOutput = "xml"
	err = runSearch(searchCmd, nil)
	assert.ErrorContains(t, err, "invalid output format")
}

func TestSearchPropagatesConfigErrors(t *testing.T) {
	useTestApplication(t, testDependencies{configErr: errors.New("OPENSEARCH_ENDPOINT is required")})
	resetFlags(t, searchCmd)
	searchQuery = "luật"

	err := runSearch(searchCmd, nil)
	assert.ErrorContains(t, err, "failed to load configuration")
	assert.ErrorContains(t, err, "OPENSEARCH_ENDPOINT")
}

func TestHybridWeightOverride(t *testing.T) {
	resetFlags(t, searchCmd)
	configured := search.DefaultWeights()

	assert.Nil(t, hybridWeightOverride(searchCmd, configured))

	require.NoError(t, searchCmd.Flags().Set("keyword-weight", "0.6"))
	weights := hybridWeightOverride(searchCmd, configured)
	require.NotNil(t, weights)
	assert.InDelta(t, 0.6, weights.Keyword, 1e-9)
	assert.InDelta(t, 0.7, weights.Semantic, 1e-9)
}
