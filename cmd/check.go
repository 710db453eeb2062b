package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/ca-srg/legalrag/internal/config"
	"github.com/ca-srg/legalrag/internal/types"
)

var (
	checkSkipGeneration bool
	checkTimeout        time.Duration
)

const checkEmbeddingText = "điều kiện hưởng lương hưu"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and backend connectivity",
	Long: `
Run connection diagnostics against the configured document store, embedding
provider and language model:

  1. document store reachability and corpus statistics
  2. store capabilities (text index, vector index)
  3. embedding smoke test and vector dimension
  4. generation smoke test (skip with --skip-generation)

Exits with an error when any check fails.
`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkSkipGeneration, "skip-generation", false, "Skip the language model smoke test")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 60*time.Second, "Overall timeout for all checks")
}

type statsReporter interface {
	Stats(ctx context.Context) (*types.StoreStats, error)
}

type checkRunner struct {
	total  int
	failed int
}

func (r *checkRunner) run(name string, fn func() (string, error)) {
	r.total++
	detail, err := fn()
	if err != nil {
		r.failed++
		fmt.Printf("✗ %s: %v\n", name, err)
		return
	}
	fmt.Printf("✓ %s: %s\n", name, detail)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.config
	fmt.Println("=== Configuration ===")
	fmt.Printf("Store backend:      %s\n", cfg.StoreBackend)
	if cfg.StoreBackend == appconfig.StoreBackendLocal {
		fmt.Printf("Corpus:             %s\n", cfg.LocalCorpusPath)
	} else {
		fmt.Printf("OpenSearch:         %s (index %s)\n", cfg.OpenSearchEndpoint, cfg.OpenSearchIndex)
	}
	fmt.Printf("Embedding provider: %s (%s)\n", cfg.EmbeddingProvider, cfg.EmbeddingModel)
	fmt.Printf("LLM provider:       %s (%s)\n", cfg.LLMProvider, cfg.ChatModel)
	fmt.Printf("Default search:     %s, limit %d\n", cfg.SearchDefaultMode, cfg.SearchDefaultLimit)
	fmt.Println()
	fmt.Println("=== Checks ===")

	runner := &checkRunner{}

	runner.run("Document store", func() (string, error) {
		reporter, ok := app.store.(statsReporter)
		if !ok {
			return "statistics not available for this store", nil
		}
		stats, err := reporter.Stats(ctx)
		if err != nil {
			return "", err
		}
		detail := fmt.Sprintf("%d documents, %d with embeddings", stats.TotalDocuments, stats.EmbeddedDocuments)
		if stats.EmbeddingDimension > 0 {
			detail += fmt.Sprintf(" (dimension %d)", stats.EmbeddingDimension)
		}
		if stats.Sample != nil {
			detail += fmt.Sprintf("; sample: %s - %s", stats.Sample.SourceName, stats.Sample.Title)
		}
		return detail, nil
	})

	runner.run("Store capabilities", func() (string, error) {
		caps, err := app.store.Capabilities(ctx)
		if err != nil {
			return "", err
		}
		lexical := "substring fallback"
		if caps.TextIndex {
			lexical = "full-text index"
		}
		return fmt.Sprintf("keyword search uses %s, vector index %t", lexical, caps.VectorIndex), nil
	})

	runner.run("Embedding", func() (string, error) {
		vector, err := app.embedder.Embed(ctx, checkEmbeddingText)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("dimension %d", len(vector)), nil
	})

	if !checkSkipGeneration {
		runner.run("Generation", func() (string, error) {
			text, err := app.generator.Generate(ctx, []types.ChatMessage{
				{Role: types.RoleUser, Content: "Trả lời đúng một từ: OK"},
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("received %d characters", len([]rune(text))), nil
		})
	}

	fmt.Println()
	if runner.failed > 0 {
		return fmt.Errorf("%d of %d checks failed", runner.failed, runner.total)
	}
	fmt.Printf("All %d checks passed\n", runner.total)
	return nil
}
