package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

const maxResultSize = 1000

// Store exposes a legal-document index through the document store
// operations the retrieval core depends on.
type Store struct {
	client *Client
	logger *log.Logger

	mu              sync.Mutex
	mappingLoaded   bool
	substringFields []substringField
	dimension       int

	// innerproduct scores are unbounded and get clamped to [0, 1]
	clampVectorScores bool
}

func NewStore(client *Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	return &Store{
		client:          client,
		logger:          client.logger,
		substringFields: defaultSubstringFields(),
	}, nil
}

func (s *Store) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
		s.client.SetLogger(logger)
	}
}

// Capabilities probes the index mapping: a text-typed body field means the
// store can rank by text relevance, a knn_vector field means it can run
// approximate nearest-neighbor queries.
func (s *Store) Capabilities(ctx context.Context) (types.StoreCapabilities, error) {
	properties, err := s.client.mapping(ctx)
	if err != nil {
		return types.StoreCapabilities{}, err
	}

	caps := types.StoreCapabilities{}
	if body, ok := properties["body"]; ok && body.Type == "text" {
		caps.TextIndex = true
	}
	vectorField := s.client.config.VectorField
	vector, ok := properties[vectorField]
	if ok && vector.Type == "knn_vector" {
		caps.VectorIndex = true
	}

	clamp := false
	if caps.VectorIndex {
		spaceType, engine := vector.spaceType(), vector.engine()
		switch spaceType {
		case "cosinesimil":
		case "innerproduct":
			clamp = true
			s.logger.Printf("vector field %s uses innerproduct (%s engine); semantic scores are clamped to [0, 1]", vectorField, engine)
		default:
			s.logger.Printf("vector field %s uses space type %q (%s engine); semantic scores are not cosine similarity", vectorField, spaceType, engine)
		}
	}

	s.mu.Lock()
	s.mappingLoaded = true
	s.substringFields = substringFieldsFor(properties)
	if caps.VectorIndex {
		s.dimension = vector.Dimension
	}
	s.clampVectorScores = clamp
	s.mu.Unlock()

	s.logger.Printf("index %s capabilities: text=%t vector=%t", s.client.config.Index, caps.TextIndex, caps.VectorIndex)
	return caps, nil
}

// wholeValueFields hold short values (headings, section types) whose
// keyword sub-field is expected to stay under ignore_above.
var wholeValueFields = map[string]bool{"title": true, "section_type": true}

// substringFieldsFor matches every field term by term and adds a whole-value
// pattern on a keyword field when that field keeps every value: short
// fields, or any field whose keyword mapping has no ignore_above.
func substringFieldsFor(properties map[string]fieldMapping) []substringField {
	fields := make([]substringField, 0, len(substringSearchFields))
	for _, name := range substringSearchFields {
		field := substringField{Name: name}
		if mapping, ok := properties[name]; ok {
			switch {
			case mapping.Type == "keyword":
				if wholeValueFields[name] || mapping.IgnoreAbove == 0 {
					field.WholeValue = name
				}
			default:
				sub, ok := mapping.Fields["keyword"]
				if ok && sub.Type == "keyword" && (wholeValueFields[name] || sub.IgnoreAbove == 0) {
					field.WholeValue = name + ".keyword"
				}
			}
		}
		fields = append(fields, field)
	}
	return fields
}

func (s *Store) TextSearch(ctx context.Context, query string, limit int) ([]types.ScoredDocument, error) {
	body := buildTextSearchBody(query, clampSize(limit), s.client.config.VectorField)
	resp, err := s.client.search(ctx, "text_search", body)
	if err != nil {
		return nil, err
	}
	return decodeHits(resp, true)
}

func (s *Store) SubstringSearch(ctx context.Context, query string, limit int) ([]types.ScoredDocument, error) {
	s.mu.Lock()
	fields := s.substringFields
	s.mu.Unlock()

	body := buildSubstringSearchBody(query, clampSize(limit), fields, s.client.config.VectorField)
	resp, err := s.client.search(ctx, "substring_search", body)
	if err != nil {
		return nil, err
	}
	return decodeHits(resp, false)
}

func (s *Store) VectorSearch(ctx context.Context, query types.VectorQuery) ([]types.ScoredDocument, error) {
	if len(query.Vector) == 0 {
		return nil, NewSearchError(types.ErrorTypeValidation, "query vector cannot be empty")
	}
	k := query.NumCandidates
	if k < query.Limit {
		k = query.Limit
	}

	body := buildVectorSearchBody(s.client.config.VectorField, query.Vector, k, clampSize(query.Limit))
	resp, err := s.client.search(ctx, "vector_search", body)
	if err != nil {
		return nil, err
	}
	docs, err := decodeHits(resp, true)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	clamp := s.clampVectorScores
	s.mu.Unlock()
	if clamp {
		for i := range docs {
			docs[i].Score = min(max(docs[i].Score, 0), 1)
		}
	}
	return docs, nil
}

// Stats counts documents with and without embeddings and returns one sample.
func (s *Store) Stats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}

	total, err := s.count(ctx, "")
	if err != nil {
		return nil, err
	}
	stats.TotalDocuments = total

	embedded, err := s.count(ctx, s.client.config.VectorField)
	if err != nil {
		return nil, err
	}
	stats.EmbeddedDocuments = embedded

	s.mu.Lock()
	loaded := s.mappingLoaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.Capabilities(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	stats.EmbeddingDimension = s.dimension
	s.mu.Unlock()

	resp, err := s.client.search(ctx, "sample", map[string]interface{}{
		"size":    1,
		"query":   map[string]interface{}{"match_all": map[string]interface{}{}},
		"_source": map[string]interface{}{"excludes": []string{s.client.config.VectorField}},
	})
	if err != nil {
		return nil, err
	}
	docs, err := decodeHits(resp, false)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		sample := docs[0].Document
		stats.Sample = &sample
	}

	return stats, nil
}

func (s *Store) count(ctx context.Context, field string) (int, error) {
	resp, err := s.client.search(ctx, "count", buildCountBody(field))
	if err != nil {
		return 0, err
	}
	return resp.Hits.Total.Value, nil
}

func decodeHits(resp *opensearchapi.SearchResp, keepScore bool) ([]types.ScoredDocument, error) {
	docs := make([]types.ScoredDocument, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var doc types.Document
		if len(hit.Source) > 0 {
			if err := json.Unmarshal(hit.Source, &doc); err != nil {
				return nil, NewSearchError(types.ErrorTypeOpenSearchResponse, fmt.Sprintf("failed to decode hit %s: %v", hit.ID, err))
			}
		}
		doc.ID = hit.ID
		doc.Embedding = nil

		scored := types.ScoredDocument{Document: doc}
		if keepScore {
			scored.Score = float64(hit.Score)
		}
		docs = append(docs, scored)
	}
	return docs, nil
}

func clampSize(size int) int {
	if size <= 0 {
		return 1
	}
	if size > maxResultSize {
		return maxResultSize
	}
	return size
}
