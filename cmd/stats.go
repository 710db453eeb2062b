package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/legalrag/internal/metrics"
)

var (
	statsDays   int
	statsPath   string
	statsOutput string
)

// statsNow is swapped in tests to pin the reporting window.
var statsNow = time.Now

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often search, ask, chat and MCP tools were used",
	Long: `
Print invocation counts recorded in the local usage database
(USAGE_STATS_PATH, default ~/.legalrag/usage.db).

Examples:
  legalrag stats
  legalrag stats --days 30 --output json
`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days of daily counts to show (0 shows totals only)")
	statsCmd.Flags().StringVar(&statsPath, "path", "", "Usage database path (default from USAGE_STATS_PATH)")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", outputText, "Output format: text|json|yaml")
}

type statsReport struct {
	Path   string                 `json:"path" yaml:"path"`
	Totals map[metrics.Mode]int64 `json:"totals" yaml:"totals"`
	Daily  []metrics.DailyCount   `json:"daily" yaml:"daily"`
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(statsOutput); err != nil {
		return err
	}
	if statsDays < 0 {
		return fmt.Errorf("--days cannot be negative")
	}

	path, err := resolveStatsPath()
	if err != nil {
		return err
	}
	store, err := metrics.NewStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	report := statsReport{Path: path, Daily: []metrics.DailyCount{}}
	if report.Totals, err = store.Totals(ctx); err != nil {
		return err
	}
	if statsDays > 0 {
		from := statsNow().AddDate(0, 0, -(statsDays - 1))
		daily, err := store.Since(ctx, from)
		if err != nil {
			return err
		}
		if daily != nil {
			report.Daily = daily
		}
	}

	if statsOutput != outputText {
		return writeStructured(statsOutput, report)
	}
	printStatsReport(report)
	return nil
}

// resolveStatsPath prefers --path, then the configured path. A config that
// fails validation (e.g. missing provider keys) falls back to the default.
func resolveStatsPath() (string, error) {
	if statsPath != "" {
		return statsPath, nil
	}
	if cfg, err := loadAppConfig(envFile); err == nil {
		return usageStatsPath(cfg)
	}
	return metrics.DefaultPath()
}

func printStatsReport(report statsReport) {
	fmt.Println("=== Usage Statistics ===")
	fmt.Printf("Database: %s\n\n", report.Path)

	fmt.Println("Totals:")
	var sum int64
	for _, mode := range metrics.AllModes {
		fmt.Printf("  %-8s %d\n", mode, report.Totals[mode])
		sum += report.Totals[mode]
	}
	fmt.Printf("  %-8s %d\n", "all", sum)

	if statsDays == 0 {
		return
	}
	fmt.Printf("\nLast %d days:\n", statsDays)
	if len(report.Daily) == 0 {
		fmt.Println("  (no invocations)")
		return
	}
	for _, entry := range report.Daily {
		fmt.Printf("  %s  %-8s %d\n", entry.Date, entry.Mode, entry.Count)
	}
}
