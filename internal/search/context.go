package search

import (
	"fmt"
	"strings"

	"github.com/ca-srg/legalrag/internal/types"
)

const defaultBodyCharLimit = 500

// ContextAssembler renders retrieved passages into the numbered context
// block embedded in the prompt.
type ContextAssembler struct {
	// BodyCharLimit is counted in characters, not bytes.
	BodyCharLimit int
}

func NewContextAssembler(bodyCharLimit int) *ContextAssembler {
	if bodyCharLimit <= 0 {
		bodyCharLimit = defaultBodyCharLimit
	}
	return &ContextAssembler{BodyCharLimit: bodyCharLimit}
}

// Build emits one block per result, in order:
//
//	[1] Điều 54
//	Văn bản: Luật BHXH 2014
//	Nội dung: <first BodyCharLimit characters>...
//
// Blocks are separated by a blank line. The trailing "..." is always added.
func (a *ContextAssembler) Build(results []types.SearchResult) string {
	limit := a.BodyCharLimit
	if limit <= 0 {
		limit = defaultBodyCharLimit
	}

	blocks := make([]string, 0, len(results))
	for i, result := range results {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nVăn bản: %s\nNội dung: %s...",
			i+1, result.Title, result.SourceName, truncateRunes(result.Body, limit)))
	}
	return strings.Join(blocks, "\n\n")
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
