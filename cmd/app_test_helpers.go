package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/legalrag/internal/llm"
	"github.com/ca-srg/legalrag/internal/localstore"
	"github.com/ca-srg/legalrag/internal/search"
	"github.com/ca-srg/legalrag/internal/types"
)

var testCorpus = []types.Document{
	{
		SourceName:  "Luật BHXH 2014",
		SectionType: "Điều",
		Title:       "Điều 54",
		Body:        "Điều kiện hưởng lương hưu: người lao động đủ tuổi nghỉ hưu và có đủ 20 năm đóng bảo hiểm xã hội trở lên.",
		Embedding:   []float64{0.9, 0.1, 0.0},
	},
	{
		SourceName:  "Luật Lao động 2019",
		SectionType: "Điều",
		Title:       "Điều 169",
		Body:        "Tuổi nghỉ hưu của người lao động.",
		Embedding:   []float64{0.0, 0.3, 0.9},
	},
	{
		SourceName:  "Luật Thuế TNCN",
		SectionType: "Chương",
		Title:       "Chương I",
		Body:        "Quy định chung về thuế thu nhập cá nhân.",
	},
}

type staticEmbedder struct {
	vector []float64
	err    error
}

func (e staticEmbedder) Embed(context.Context, string) ([]float64, error) {
	return e.vector, e.err
}

func testAppConfig() *types.Config {
	return &types.Config{
		StoreBackend:          "local",
		LocalCorpusPath:       "corpus.jsonl",
		EmbeddingProvider:     "gemini",
		EmbeddingModel:        "text-embedding-004",
		LLMProvider:           "gemini",
		ChatModel:             "gemini-2.0-flash",
		GenerationTimeout:     time.Second,
		SearchDefaultLimit:    5,
		SearchDefaultMode:     "semantic",
		HybridKeywordWeight:   0.3,
		HybridSemanticWeight:  0.7,
		ContextBodyCharLimit:  500,
		MCPServerHost:         "localhost",
		MCPServerPort:         8080,
		MCPServerReadTimeout:  time.Second,
		MCPServerWriteTimeout: time.Second,
	}
}

type testDependencies struct {
	embedder  search.QueryEmbedder
	generator llm.Generator
	configErr error
	// usagePath enables usage statistics in a temporary database.
	usagePath string
}

// useTestApplication swaps the package factories for an in-memory corpus.
func useTestApplication(t *testing.T, deps testDependencies) {
	t.Helper()

	prevConfig, prevStore, prevEmbedder, prevGenerator := loadAppConfig, newStore, newEmbedder, newGenerator
	t.Cleanup(func() {
		loadAppConfig, newStore, newEmbedder, newGenerator = prevConfig, prevStore, prevEmbedder, prevGenerator
	})

	if deps.embedder == nil {
		deps.embedder = staticEmbedder{vector: []float64{0.9, 0.1, 0.0}}
	}
	if deps.generator == nil {
		deps.generator = llm.GeneratorFunc(func(context.Context, []types.ChatMessage) (string, error) {
			return "", errors.New("generator not configured")
		})
	}

	loadAppConfig = func(...string) (*types.Config, error) {
		if deps.configErr != nil {
			return nil, deps.configErr
		}
		cfg := testAppConfig()
		if deps.usagePath != "" {
			cfg.UsageStatsEnabled = true
			cfg.UsageStatsPath = deps.usagePath
		}
		return cfg, nil
	}
	newStore = func(context.Context, *types.Config) (search.DocumentStore, func() error, error) {
		store, err := localstore.New(testCorpus)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	newEmbedder = func(*types.Config) (search.QueryEmbedder, error) {
		return deps.embedder, nil
	}
	newGenerator = func(context.Context, *types.Config) (llm.Generator, error) {
		return deps.generator, nil
	}
}

// resetFlags restores a command's flags to their defaults now and after the test.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()
	reset := func() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if slice, ok := f.Value.(pflag.SliceValue); ok {
				require.NoError(t, slice.Replace(nil))
			} else {
				require.NoError(t, f.Value.Set(f.DefValue))
			}
			f.Changed = false
		})
	}
	reset()
	t.Cleanup(reset)
}
