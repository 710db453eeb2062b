package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/coder/hnsw"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	titleBoost = 2.0

	graphM        = 16
	graphEfSearch = 100
)

// Store is an in-memory DocumentStore over a JSONL corpus: a bleve index for
// keyword relevance and an HNSW cosine graph for the embedded documents.
type Store struct {
	docs  []types.Document
	index bleve.Index

	mu        sync.RWMutex
	graph     *hnsw.Graph[int]
	dimension int
	embedded  int

	logger *log.Logger
}

// Open loads a JSONL corpus file, one document per line.
func Open(path string) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer func() { _ = file.Close() }()

	docs, err := ReadCorpus(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return New(docs)
}

// ReadCorpus decodes consecutive JSON documents. Missing fields decode to
// their zero value.
func ReadCorpus(r io.Reader) ([]types.Document, error) {
	decoder := json.NewDecoder(r)
	var docs []types.Document
	for {
		var doc types.Document
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, fmt.Errorf("document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, doc)
	}
}

// New indexes docs in memory. Every embedded document must share one
// dimension.
func New(docs []types.Document) (*Store, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create text index: %w", err)
	}

	s := &Store{
		docs:   docs,
		index:  index,
		graph:  hnsw.NewGraph[int](),
		logger: log.New(log.Writer(), "[localstore] ", log.LstdFlags),
	}
	s.graph.Distance = hnsw.CosineDistance
	s.graph.M = graphM
	s.graph.EfSearch = graphEfSearch

	batch := index.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{
			"title":        doc.Title,
			"body":         doc.Body,
			"section_type": doc.SectionType,
		}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index document %d: %w", i, err)
		}

		if !doc.HasEmbedding() {
			continue
		}
		if s.dimension == 0 {
			s.dimension = len(doc.Embedding)
		}
		if len(doc.Embedding) != s.dimension {
			_ = index.Close()
			return nil, fmt.Errorf("document %d: embedding dimension %d, expected %d", i, len(doc.Embedding), s.dimension)
		}
		s.graph.Add(hnsw.MakeNode(i, toFloat32(doc.Embedding)))
		s.embedded++
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build text index: %w", err)
	}

	return s, nil
}

func (s *Store) SetLogger(logger *log.Logger) {
	s.logger = logger
}

func (s *Store) Close() error {
	return s.index.Close()
}

func (s *Store) Capabilities(context.Context) (types.StoreCapabilities, error) {
	return types.StoreCapabilities{TextIndex: true, VectorIndex: s.embedded > 0}, nil
}

// TextSearch ranks by BM25 over title (boosted), body and section type.
func (s *Store) TextSearch(ctx context.Context, q string, limit int) ([]types.ScoredDocument, error) {
	if strings.TrimSpace(q) == "" || limit <= 0 {
		return []types.ScoredDocument{}, nil
	}

	title := bleve.NewMatchQuery(q)
	title.SetField("title")
	title.SetBoost(titleBoost)
	body := bleve.NewMatchQuery(q)
	body.SetField("body")
	section := bleve.NewMatchQuery(q)
	section.SetField("section_type")

	request := bleve.NewSearchRequestOptions(query.NewDisjunctionQuery([]query.Query{title, body, section}), limit, 0, false)
	result, err := s.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	hits := make([]types.ScoredDocument, 0, len(result.Hits))
	for _, hit := range result.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(s.docs) {
			s.logger.Printf("skipping unknown hit %q", hit.ID)
			continue
		}
		hits = append(hits, s.scored(i, hit.Score))
	}
	return hits, nil
}

// SubstringSearch returns documents whose title, body or section type
// contains q, ignoring case, in corpus order.
func (s *Store) SubstringSearch(ctx context.Context, q string, limit int) ([]types.ScoredDocument, error) {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" || limit <= 0 {
		return []types.ScoredDocument{}, nil
	}

	hits := make([]types.ScoredDocument, 0, limit)
	for i, doc := range s.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Body), needle) ||
			strings.Contains(strings.ToLower(doc.SectionType), needle) {
			hits = append(hits, s.scored(i, 0))
			if len(hits) == limit {
				break
			}
		}
	}
	return hits, nil
}

// VectorSearch scores by 1 - cosineDistance/2, which lies in [0, 1].
func (s *Store) VectorSearch(ctx context.Context, q types.VectorQuery) ([]types.ScoredDocument, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if s.embedded == 0 || q.Limit <= 0 {
		return []types.ScoredDocument{}, nil
	}
	if len(q.Vector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension %d, index dimension %d", len(q.Vector), s.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := max(q.NumCandidates, q.Limit)
	vector := toFloat32(q.Vector)

	s.mu.RLock()
	nodes := s.graph.Search(vector, k)
	s.mu.RUnlock()

	hits := make([]types.ScoredDocument, 0, len(nodes))
	for _, node := range nodes {
		distance := float64(hnsw.CosineDistance(vector, node.Value))
		if math.IsNaN(distance) {
			continue
		}
		hits = append(hits, s.scored(node.Key, 1-distance/2))
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (s *Store) Stats(context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{
		TotalDocuments:     len(s.docs),
		EmbeddedDocuments:  s.embedded,
		EmbeddingDimension: s.dimension,
	}
	if len(s.docs) > 0 {
		sample := s.docs[0]
		sample.Embedding = nil
		stats.Sample = &sample
	}
	return stats, nil
}

func (s *Store) scored(i int, score float64) types.ScoredDocument {
	doc := s.docs[i]
	if doc.ID == "" {
		doc.ID = strconv.Itoa(i)
	}
	doc.Embedding = nil
	return types.ScoredDocument{Document: doc, Score: score}
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}
