package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/legalrag/internal/metrics"
	"github.com/ca-srg/legalrag/internal/types"
)

var (
	chatModeFlag    string
	chatLimit       int
	chatTurnTimeout time.Duration

	chatInput io.Reader = os.Stdin
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive legal Q&A session",
	Long: `
Start an interactive session. Every question is answered independently from
freshly retrieved passages, followed by the list of sources used.

Commands inside the session:
  help         show this help
  clear        clear the screen
  exit, quit   end the session

Examples:
  legalrag chat
  legalrag chat --mode hybrid --limit 8
`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModeFlag, "mode", "m", "", "Retrieval mode: keyword|semantic|hybrid (default from SEARCH_DEFAULT_MODE)")
	chatCmd.Flags().IntVarP(&chatLimit, "limit", "l", 0, "Number of passages per answer (default from SEARCH_DEFAULT_LIMIT)")
	chatCmd.Flags().DurationVar(&chatTurnTimeout, "turn-timeout", 120*time.Second, "Timeout for each question")
}

func runChat(cmd *cobra.Command, args []string) error {
	log.Println("Starting chat session...")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	mode, err := app.service.ResolveMode(chatModeFlag)
	if err != nil {
		return err
	}

	fmt.Println("=== legalrag chat ===")
	fmt.Printf("Mode: %s\n", mode)
	fmt.Println("Type 'exit' or 'quit' to end the session")
	fmt.Println("Type 'help' for available commands")
	fmt.Println("=====================")
	fmt.Println()

	return chatLoop(ctx, app, mode)
}

func chatLoop(ctx context.Context, app *application, mode types.SearchMode) error {
	scanner := bufio.NewScanner(chatInput)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("Bạn: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			fmt.Println("Tạm biệt!")
			return nil
		case "help":
			printChatHelp()
			continue
		case "clear":
			fmt.Print("\033[H\033[2J")
			continue
		}

		app.record(ctx, metrics.ModeChat)
		turnCtx, cancel := context.WithTimeout(ctx, chatTurnTimeout)
		answer, err := app.service.GenerateAnswer(turnCtx, input, mode, chatLimit)
		cancel()
		if err != nil {
			fmt.Printf("Lỗi: %v\n\n", err)
			continue
		}

		fmt.Println()
		fmt.Printf("Trợ lý: %s\n", answer.Text)
		printSources(answer.Sources)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func printChatHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  help         show this help")
	fmt.Println("  clear        clear the screen")
	fmt.Println("  exit, quit   end the session")
	fmt.Println("Anything else is answered as a legal question.")
	fmt.Println()
}
