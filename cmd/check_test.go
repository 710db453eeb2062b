package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllPass(t *testing.T) {
	useTestApplication(t, testDependencies{generator: pensionGenerator(nil)})
	resetFlags(t, checkCmd)

	output := captureOutput(t, func() {
		require.NoError(t, runCheck(checkCmd, nil))
	})

	assert.Contains(t, output, "Store backend:      local")
	assert.Contains(t, output, "✓ Document store: 3 documents, 2 with embeddings (dimension 3)")
	assert.Contains(t, output, "keyword search uses full-text index, vector index true")
	assert.Contains(t, output, "✓ Embedding: dimension 3")
	assert.Contains(t, output, "✓ Generation:")
	assert.Contains(t, output, "All 4 checks passed")
}

func TestCheckReportsFailures(t *testing.T) {
	useTestApplication(t, testDependencies{embedder: staticEmbedder{err: errors.New("invalid credentials")}})
	resetFlags(t, checkCmd)
	checkSkipGeneration = true

	var err error
	output := captureOutput(t, func() {
		err = runCheck(checkCmd, nil)
	})

	require.Error(t, err)
	assert.Equal(t, "1 of 3 checks failed", err.Error())
	assert.Contains(t, output, "✗ Embedding: invalid credentials")
	assert.NotContains(t, output, "Generation")
}
