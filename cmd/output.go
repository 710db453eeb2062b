package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"

	previewRunes = 200
)

func validateOutputFormat(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (valid formats: text, json, yaml)", format)
	}
}

// writeStructured prints v as JSON or YAML on stdout.
func writeStructured(format string, v interface{}) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case outputYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
	return nil
}

func printResult(index int, r types.SearchResult) {
	fmt.Printf("[%d] %s\n", index, r.Title)
	fmt.Printf("    Văn bản: %s\n", r.SourceName)
	if r.SectionType != "" {
		fmt.Printf("    Loại: %s\n", r.SectionType)
	}
	fmt.Printf("    Score: %.4f (%s)\n", r.Score, r.Origin)
	if body := preview(r.Body); body != "" {
		fmt.Printf("    %s\n", body)
	}
}

// printSources renders the numbered sources list under an answer.
func printSources(sources []types.SearchResult) {
	if len(sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Nguồn tham khảo:")
	for i, s := range sources {
		fmt.Printf("  %d. %s | %s | %s | score %.4f | %s\n", i+1, s.SourceName, s.SectionType, s.Title, s.Score, s.Origin)
	}
}

func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= previewRunes {
		return body
	}
	return string(runes[:previewRunes]) + "..."
}
