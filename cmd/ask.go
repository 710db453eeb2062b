package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ca-srg/legalrag/internal/metrics"
	"github.com/ca-srg/legalrag/internal/types"
)

var (
	askQuestion string
	askModeFlag string
	askLimit    int
	askOutput   string
	askTimeout  time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a legal question from retrieved passages",
	Long: `
Retrieve passages relevant to the question and ask the configured language
model to answer using only those passages. The answer cites the source
documents; when nothing relevant is found a fixed "no information" answer is
returned instead.

Examples:
  legalrag ask -q "Điều kiện hưởng lương hưu là gì?"
  legalrag ask -q "Mức phạt vi phạm nồng độ cồn" --mode hybrid --limit 8
  legalrag ask -q "Thời hiệu khởi kiện" --output yaml
`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "Legal question (required)")
	askCmd.Flags().StringVarP(&askModeFlag, "mode", "m", "", "Retrieval mode: keyword|semantic|hybrid (default from SEARCH_DEFAULT_MODE)")
	askCmd.Flags().IntVarP(&askLimit, "limit", "l", 0, "Number of passages used as context (default from SEARCH_DEFAULT_LIMIT)")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", outputText, "Output format: text|json|yaml")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 120*time.Second, "Overall request timeout")

	_ = askCmd.MarkFlagRequired("query")
}

type askReport struct {
	RequestID string `json:"request_id" yaml:"request_id"`
	types.Answer `yaml:",inline"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(askOutput); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	mode, err := app.service.ResolveMode(askModeFlag)
	if err != nil {
		return err
	}

	app.record(ctx, metrics.ModeAsk)
	answer, err := app.service.GenerateAnswer(ctx, askQuestion, mode, askLimit)
	if err != nil {
		return err
	}

	if askOutput != outputText {
		return writeStructured(askOutput, askReport{RequestID: uuid.NewString(), Answer: *answer})
	}

	fmt.Printf("Câu hỏi: %s\n\n", answer.Query)
	fmt.Println(answer.Text)
	printSources(answer.Sources)
	return nil
}
