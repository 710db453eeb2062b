package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "legalrag",
	Short: "legalrag - retrieval and grounded answers over Vietnamese legal documents",
	Long: `legalrag searches a corpus of Vietnamese legal documents (laws, decrees,
circulars) by keyword, by meaning, or by a weighted hybrid of both, and
answers legal questions using only the retrieved passages.

The corpus lives in OpenSearch or in a local JSONL file (STORE_BACKEND).`,
	SilenceUsage: true,
	Version:      Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(mcpServerCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statsCmd)
}
