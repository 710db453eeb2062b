package mcpserver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/metrics"
	"github.com/ca-srg/legalrag/internal/search"
	"github.com/ca-srg/legalrag/internal/types"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	SearchToolName = "search_legal_documents"
	AskToolName    = "ask_legal_question"

	maxToolLimit = 20
	snippetRunes = 300
)

// SearchService is the retrieval surface the tools call into.
type SearchService interface {
	ResolveMode(mode string) (types.SearchMode, error)
	Weights() search.Weights
	Search(ctx context.Context, query string, mode types.SearchMode, limit int) ([]types.SearchResult, error)
	SearchHybrid(ctx context.Context, query string, limit int, weights *search.Weights) ([]types.CombinedResult, error)
	GenerateAnswer(ctx context.Context, query string, mode types.SearchMode, limit int) (*types.Answer, error)
}

type SearchInput struct {
	Query          string   `json:"query" jsonschema:"Search query in Vietnamese, e.g. điều kiện hưởng lương hưu"`
	Mode           string   `json:"mode,omitempty" jsonschema:"Retrieval mode: keyword, semantic or hybrid"`
	Limit          int      `json:"limit,omitempty" jsonschema:"Maximum number of results"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty" jsonschema:"Hybrid mode only: weight of the keyword score"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty" jsonschema:"Hybrid mode only: weight of the semantic score"`
}

type AskInput struct {
	Question string `json:"question" jsonschema:"Legal question in Vietnamese"`
	Mode     string `json:"mode,omitempty" jsonschema:"Retrieval mode used to gather sources: keyword, semantic or hybrid"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of source passages"`
}

type ResultOutput struct {
	SourceName    string   `json:"source_name"`
	Title         string   `json:"title"`
	SectionType   string   `json:"section_type"`
	Body          string   `json:"body"`
	Score         float64  `json:"score"`
	Origin        string   `json:"origin"`
	KeywordScore  *float64 `json:"keyword_score,omitempty"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
}

type SearchOutput struct {
	RequestID string         `json:"request_id"`
	Query     string         `json:"query"`
	Mode      string         `json:"mode"`
	Count     int            `json:"count"`
	Results   []ResultOutput `json:"results"`
}

type AskOutput struct {
	RequestID string         `json:"request_id"`
	Question  string         `json:"question"`
	Mode      string         `json:"mode"`
	Answer    string         `json:"answer"`
	Sources   []ResultOutput `json:"sources"`
}

// InvocationRecorder counts successful tool calls.
type InvocationRecorder interface {
	Record(ctx context.Context, mode metrics.Mode)
}

// Tools binds the MCP tool handlers to a search service.
type Tools struct {
	service  SearchService
	recorder InvocationRecorder
	logger   *log.Logger
}

func NewTools(service SearchService, logger *log.Logger) *Tools {
	if logger == nil {
		logger = log.New(log.Writer(), "[MCPTools] ", log.LstdFlags)
	}
	return &Tools{service: service, logger: logger}
}

// Register adds both tools to server with explicit input schemas.
func (t *Tools) Register(server *mcp.Server) error {
	searchSchema, err := searchInputSchema()
	if err != nil {
		return fmt.Errorf("failed to build %s schema: %w", SearchToolName, err)
	}
	askSchema, err := askInputSchema()
	if err != nil {
		return fmt.Errorf("failed to build %s schema: %w", AskToolName, err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        SearchToolName,
		Description: "Search Vietnamese legal documents (laws, decrees, circulars) by keyword, meaning or both. Returns ranked passages with their source document and article title.",
		InputSchema: searchSchema,
	}, t.Search)

	mcp.AddTool(server, &mcp.Tool{
		Name:        AskToolName,
		Description: "Answer a legal question in Vietnamese using only retrieved legal passages, citing the source documents.",
		InputSchema: askSchema,
	}, t.Ask)
	return nil
}

func (t *Tools) Search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	out := SearchOutput{RequestID: uuid.NewString(), Query: strings.TrimSpace(in.Query), Results: []ResultOutput{}}

	if out.Query == "" {
		recordToolCall(ctx, SearchToolName, in.Mode, time.Since(start), "validation")
		return toolError("query is required"), out, nil
	}
	if err := validateLimit(in.Limit); err != nil {
		recordToolCall(ctx, SearchToolName, in.Mode, time.Since(start), "validation")
		return toolError(err.Error()), out, nil
	}
	mode, err := t.service.ResolveMode(in.Mode)
	if err != nil {
		recordToolCall(ctx, SearchToolName, in.Mode, time.Since(start), "validation")
		return toolError(err.Error()), out, nil
	}
	out.Mode = string(mode)

	if mode == types.SearchModeHybrid {
		weights := t.weightsFor(in)
		combined, err := t.service.SearchHybrid(ctx, out.Query, in.Limit, weights)
		if err != nil {
			recordToolCall(ctx, SearchToolName, out.Mode, time.Since(start), "search")
			return toolError(err.Error()), out, nil
		}
		for _, c := range combined {
			entry := toResultOutput(c.SearchResult)
			keyword, semantic := c.KeywordScore, c.SemanticScore
			entry.KeywordScore = &keyword
			entry.SemanticScore = &semantic
			out.Results = append(out.Results, entry)
		}
	} else {
		if in.KeywordWeight != nil || in.SemanticWeight != nil {
			t.logger.Printf("request %s: weights ignored for %s mode", out.RequestID, mode)
		}
		results, err := t.service.Search(ctx, out.Query, mode, in.Limit)
		if err != nil {
			recordToolCall(ctx, SearchToolName, out.Mode, time.Since(start), "search")
			return toolError(err.Error()), out, nil
		}
		for _, r := range results {
			out.Results = append(out.Results, toResultOutput(r))
		}
	}
	out.Count = len(out.Results)
	t.record(ctx)

	t.logger.Printf("request %s: %s search returned %d results in %v", out.RequestID, out.Mode, out.Count, time.Since(start))
	recordToolCall(ctx, SearchToolName, out.Mode, time.Since(start), "")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatSearchText(out)}},
	}, out, nil
}

func (t *Tools) Ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	start := time.Now()
	out := AskOutput{RequestID: uuid.NewString(), Question: strings.TrimSpace(in.Question), Sources: []ResultOutput{}}

	if out.Question == "" {
		recordToolCall(ctx, AskToolName, in.Mode, time.Since(start), "validation")
		return toolError("question is required"), out, nil
	}
	if err := validateLimit(in.Limit); err != nil {
		recordToolCall(ctx, AskToolName, in.Mode, time.Since(start), "validation")
		return toolError(err.Error()), out, nil
	}
	mode, err := t.service.ResolveMode(in.Mode)
	if err != nil {
		recordToolCall(ctx, AskToolName, in.Mode, time.Since(start), "validation")
		return toolError(err.Error()), out, nil
	}
	out.Mode = string(mode)

	answer, err := t.service.GenerateAnswer(ctx, out.Question, mode, in.Limit)
	if err != nil {
		recordToolCall(ctx, AskToolName, out.Mode, time.Since(start), "answer")
		return toolError(err.Error()), out, nil
	}
	out.Answer = answer.Text
	t.record(ctx)
	for _, source := range answer.Sources {
		out.Sources = append(out.Sources, toResultOutput(source))
	}

	t.logger.Printf("request %s: answered with %d sources in %v", out.RequestID, len(out.Sources), time.Since(start))
	recordToolCall(ctx, AskToolName, out.Mode, time.Since(start), "")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatAskText(out)}},
	}, out, nil
}

func (t *Tools) record(ctx context.Context) {
	if t.recorder != nil {
		t.recorder.Record(ctx, metrics.ModeMCP)
	}
}

// weightsFor returns nil unless the caller overrides at least one weight;
// a missing weight keeps the configured value.
func (t *Tools) weightsFor(in SearchInput) *search.Weights {
	if in.KeywordWeight == nil && in.SemanticWeight == nil {
		return nil
	}
	weights := t.service.Weights()
	if in.KeywordWeight != nil {
		weights.Keyword = *in.KeywordWeight
	}
	if in.SemanticWeight != nil {
		weights.Semantic = *in.SemanticWeight
	}
	return &weights
}

func validateLimit(limit int) error {
	if limit < 0 || limit > maxToolLimit {
		return fmt.Errorf("limit must be between 1 and %d", maxToolLimit)
	}
	return nil
}

func toolError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}

func toResultOutput(r types.SearchResult) ResultOutput {
	return ResultOutput{
		SourceName:  r.SourceName,
		Title:       r.Title,
		SectionType: r.SectionType,
		Body:        r.Body,
		Score:       r.Score,
		Origin:      string(r.Origin),
	}
}

func formatSearchText(out SearchOutput) string {
	if out.Count == 0 {
		return fmt.Sprintf("Không tìm thấy văn bản phù hợp cho %q.", out.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tìm thấy %d kết quả (%s) cho %q:\n", out.Count, out.Mode, out.Query)
	for i, r := range out.Results {
		fmt.Fprintf(&b, "\n[%d] %s - %s (score %.3f, %s)\n", i+1, r.Title, r.SourceName, r.Score, r.Origin)
		b.WriteString(snippet(r.Body))
		b.WriteString("\n")
	}
	return b.String()
}

func formatAskText(out AskOutput) string {
	if len(out.Sources) == 0 {
		return out.Answer
	}
	var b strings.Builder
	b.WriteString(out.Answer)
	b.WriteString("\n\nNguồn tham khảo:\n")
	for i, s := range out.Sources {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, s.SourceName, s.Title)
	}
	return b.String()
}

func snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= snippetRunes {
		return body
	}
	return string(runes[:snippetRunes]) + "..."
}

func searchInputSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, err
	}
	constrainCommon(schema)
	for _, name := range []string{"keyword_weight", "semantic_weight"} {
		if prop := schema.Properties[name]; prop != nil {
			prop.Minimum = float64Ptr(0)
		}
	}
	return schema, nil
}

func askInputSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return nil, err
	}
	constrainCommon(schema)
	return schema, nil
}

func constrainCommon(schema *jsonschema.Schema) {
	if prop := schema.Properties["mode"]; prop != nil {
		prop.Enum = []any{string(types.SearchModeKeyword), string(types.SearchModeSemantic), string(types.SearchModeHybrid)}
	}
	if prop := schema.Properties["limit"]; prop != nil {
		prop.Minimum = float64Ptr(1)
		prop.Maximum = float64Ptr(maxToolLimit)
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}
