package types

import (
	"errors"
	"fmt"
	"strings"
)

// Document is a legal text passage as stored in the document store.
// Missing fields decode to their zero value; Embedding is nil when the
// passage has not been vectorized.
type Document struct {
	ID          string    `json:"id,omitempty"`
	SourceName  string    `json:"source_name"`
	SectionType string    `json:"section_type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the document can take part in vector search.
func (d Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// ScoredDocument is a store hit together with the store-reported score.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// StoreCapabilities describes which indexes a document store exposes.
type StoreCapabilities struct {
	TextIndex   bool `json:"text_index"`
	VectorIndex bool `json:"vector_index"`
}

// StoreStats summarises the corpus for connection diagnostics.
type StoreStats struct {
	TotalDocuments     int       `json:"total_documents" yaml:"total_documents"`
	EmbeddedDocuments  int       `json:"embedded_documents" yaml:"embedded_documents"`
	EmbeddingDimension int       `json:"embedding_dimension" yaml:"embedding_dimension"`
	Sample             *Document `json:"sample,omitempty" yaml:"sample,omitempty"`
}

// VectorQuery is an approximate nearest-neighbor request.
type VectorQuery struct {
	Vector        []float64
	NumCandidates int
	Limit         int
}

// Origin identifies the strategy that produced a search result.
type Origin string

const (
	OriginLexical  Origin = "keyword"
	OriginSemantic Origin = "semantic"
	OriginHybrid   Origin = "hybrid"
)

// SearchResult is a single ranked passage returned to callers.
type SearchResult struct {
	SourceName  string  `json:"source_name" yaml:"source_name"`
	Title       string  `json:"title" yaml:"title"`
	SectionType string  `json:"section_type" yaml:"section_type"`
	Body        string  `json:"body" yaml:"body"`
	Score       float64 `json:"score" yaml:"score"`
	Origin      Origin  `json:"origin" yaml:"origin"`
}

// NewSearchResult converts a store hit into a result tagged with origin.
func NewSearchResult(doc ScoredDocument, origin Origin) SearchResult {
	return SearchResult{
		SourceName:  doc.SourceName,
		Title:       doc.Title,
		SectionType: doc.SectionType,
		Body:        doc.Body,
		Score:       doc.Score,
		Origin:      origin,
	}
}

// DedupKey identifies one logical document across result sets.
type DedupKey struct {
	SourceName string
	Title      string
}

// Key returns the identity used to merge hits during fusion.
func (r SearchResult) Key() DedupKey {
	return DedupKey{SourceName: r.SourceName, Title: r.Title}
}

// CombinedResult is a fused entry carrying both per-strategy scores.
type CombinedResult struct {
	SearchResult  `yaml:",inline"`
	KeywordScore  float64 `json:"keyword_score" yaml:"keyword_score"`
	SemanticScore float64 `json:"semantic_score" yaml:"semantic_score"`
}

// Answer is the grounded response to a user question.
type Answer struct {
	Text    string         `json:"answer" yaml:"answer"`
	Sources []SearchResult `json:"sources" yaml:"sources"`
	Query   string         `json:"query" yaml:"query"`
	Mode    SearchMode     `json:"search_mode" yaml:"search_mode"`
}

// SearchMode selects the retrieval strategy.
type SearchMode string

const (
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

// ErrInvalidMode is returned for any mode outside keyword, semantic and hybrid.
var ErrInvalidMode = errors.New("invalid search mode")

// ParseSearchMode validates a user supplied mode string.
func ParseSearchMode(value string) (SearchMode, error) {
	mode := SearchMode(strings.ToLower(strings.TrimSpace(value)))
	if err := mode.Validate(); err != nil {
		return "", err
	}
	return mode, nil
}

// Validate rejects modes outside the closed set.
func (m SearchMode) Validate() error {
	switch m {
	case SearchModeKeyword, SearchModeSemantic, SearchModeHybrid:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid modes: keyword, semantic, hybrid)", ErrInvalidMode, string(m))
	}
}

// Origin maps a single-strategy mode to the origin of its results.
func (m SearchMode) Origin() Origin {
	switch m {
	case SearchModeKeyword:
		return OriginLexical
	case SearchModeSemantic:
		return OriginSemantic
	default:
		return OriginHybrid
	}
}

// ChatMessage is a role-tagged message sent to a generative model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrorType classifies backend failures.
type ErrorType string

const (
	ErrorTypeNetworkTimeout ErrorType = "network_timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeEmbedding      ErrorType = "embedding_generation"
	ErrorTypeGeneration     ErrorType = "generation"
	ErrorTypeUnknown        ErrorType = "unknown"

	ErrorTypeOpenSearchConnection ErrorType = "opensearch_connection"
	ErrorTypeOpenSearchQuery      ErrorType = "opensearch_query"
	ErrorTypeOpenSearchResponse   ErrorType = "opensearch_response"
)

// BackendError is a failed call to an embedding or generation backend.
type BackendError struct {
	Provider string
	Type     ErrorType
	Code     string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s error (%s): %v", e.Provider, e.Type, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
