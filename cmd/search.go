package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/legalrag/internal/metrics"
	"github.com/ca-srg/legalrag/internal/search"
	"github.com/ca-srg/legalrag/internal/types"
)

var (
	searchQuery          string
	searchModeFlag       string
	searchLimit          int
	searchKeywordWeight  float64
	searchSemanticWeight float64
	searchOutput         string
	searchTimeout        time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search legal documents by keyword, meaning or both",
	Long: `
Search the legal corpus and print ranked passages.

Modes:
- keyword:  full-text relevance (substring match when the store has no text index)
- semantic: nearest neighbours of the query embedding (default)
- hybrid:   weighted fusion of both, scores = keyword*w1 + semantic*w2

Examples:
  legalrag search -q "điều kiện hưởng lương hưu"
  legalrag search -q "thuế thu nhập cá nhân" --mode keyword --limit 10
  legalrag search -q "bồi thường thiệt hại" --mode hybrid --keyword-weight 0.5 --semantic-weight 0.5
  legalrag search -q "lương hưu" --output json
`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Search query (required)")
	searchCmd.Flags().StringVarP(&searchModeFlag, "mode", "m", "", "Search mode: keyword|semantic|hybrid (default from SEARCH_DEFAULT_MODE)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Maximum number of results (default from SEARCH_DEFAULT_LIMIT)")
	searchCmd.Flags().Float64Var(&searchKeywordWeight, "keyword-weight", 0.3, "Hybrid mode keyword weight (default from HYBRID_KEYWORD_WEIGHT)")
	searchCmd.Flags().Float64Var(&searchSemanticWeight, "semantic-weight", 0.7, "Hybrid mode semantic weight (default from HYBRID_SEMANTIC_WEIGHT)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", outputText, "Output format: text|json|yaml")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 60*time.Second, "Overall request timeout")

	_ = searchCmd.MarkFlagRequired("query")
}

type searchReport struct {
	Query   string      `json:"query" yaml:"query"`
	Mode    string      `json:"mode" yaml:"mode"`
	Count   int         `json:"count" yaml:"count"`
	Results interface{} `json:"results" yaml:"results"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(searchOutput); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	mode, err := app.service.ResolveMode(searchModeFlag)
	if err != nil {
		return err
	}

	app.record(ctx, metrics.ModeSearch)
	report := searchReport{Query: searchQuery, Mode: string(mode)}
	start := time.Now()

	if mode == types.SearchModeHybrid {
		combined, err := app.service.SearchHybrid(ctx, searchQuery, searchLimit, hybridWeightOverride(cmd, app.service.Weights()))
		if err != nil {
			return err
		}
		report.Count, report.Results = len(combined), combined
	} else {
		results, err := app.service.Search(ctx, searchQuery, mode, searchLimit)
		if err != nil {
			return err
		}
		report.Count, report.Results = len(results), results
	}
	log.Printf("%s search finished in %v with %d results", mode, time.Since(start), report.Count)

	if searchOutput != outputText {
		return writeStructured(searchOutput, report)
	}
	printSearchReport(report)
	return nil
}

// hybridWeightOverride returns nil unless a weight flag was set explicitly.
func hybridWeightOverride(cmd *cobra.Command, configured search.Weights) *search.Weights {
	keywordSet := cmd.Flags().Changed("keyword-weight")
	semanticSet := cmd.Flags().Changed("semantic-weight")
	if !keywordSet && !semanticSet {
		return nil
	}
	weights := configured
	if keywordSet {
		weights.Keyword = searchKeywordWeight
	}
	if semanticSet {
		weights.Semantic = searchSemanticWeight
	}
	return &weights
}

func printSearchReport(report searchReport) {
	fmt.Printf("=== Search Results (%s) ===\n", report.Mode)
	fmt.Printf("Query: %s\n", report.Query)
	fmt.Printf("Results: %d\n", report.Count)

	if report.Count == 0 {
		fmt.Println("\nKhông tìm thấy văn bản phù hợp.")
		return
	}

	switch results := report.Results.(type) {
	case []types.CombinedResult:
		for i, r := range results {
			fmt.Println()
			printResult(i+1, r.SearchResult)
			fmt.Printf("    Keyword: %.4f  Semantic: %.4f\n", r.KeywordScore, r.SemanticScore)
		}
	case []types.SearchResult:
		for i, r := range results {
			fmt.Println()
			printResult(i+1, r)
		}
	}
}
