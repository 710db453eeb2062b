package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapping = `{
  "vn-laws": {
    "aliases": {},
    "mappings": {
      "properties": {
        "source_name": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "title": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "section_type": {"type": "keyword"},
        "body": {"type": "text"},
        "embedding": {"type": "knn_vector", "dimension": 768, "method": {"space_type": "cosinesimil", "engine": "lucene"}}
      }
    },
    "settings": {}
  }
}`

type fakeCluster struct {
	t       *testing.T
	mu      sync.Mutex
	bodies  []map[string]interface{}
	status  int
	hits    string
	total   int
	mapping string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":400}`)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/vn-laws":
		mapping := f.mapping
		if mapping == "" {
			mapping = testMapping
		}
		_, _ = io.WriteString(w, mapping)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var body map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"took":1,"timed_out":false,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0},"hits":{"total":{"value":`+
			itoa(f.total)+`,"relation":"eq"},"max_score":1.0,"hits":`+f.hits+`}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeCluster) lastBody() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[len(f.bodies)-1]
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestStore(t *testing.T, cluster *fakeCluster) *Store {
	t.Helper()
	cluster.t = t
	if cluster.hits == "" {
		cluster.hits = "[]"
	}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{Endpoint: server.URL, Index: "vn-laws"}, nil)
	require.NoError(t, err)

	store, err := NewStore(client)
	require.NoError(t, err)
	store.SetLogger(log.New(io.Discard, "", 0))
	return store
}

func TestStoreCapabilitiesReadsMapping(t *testing.T) {
	store := newTestStore(t, &fakeCluster{})

	caps, err := store.Capabilities(context.Background())
	require.NoError(t, err)
	assert.True(t, caps.TextIndex)
	assert.True(t, caps.VectorIndex)
	assert.Equal(t, []substringField{
		{Name: "title", WholeValue: "title.keyword"},
		{Name: "body"},
		{Name: "section_type", WholeValue: "section_type"},
	}, store.substringFields)
	assert.False(t, store.clampVectorScores)
	assert.Equal(t, 768, store.dimension)
}

func TestStoreTextSearchDecodesHits(t *testing.T) {
	cluster := &fakeCluster{
		total: 1,
		hits:  `[{"_index":"vn-laws","_id":"bhxh-54","_score":7.5,"_source":{"source_name":"Luật BHXH 2014","section_type":"Điều","title":"Điều 54","body":"điều kiện hưởng lương hưu"}}]`,
	}
	store := newTestStore(t, cluster)

	docs, err := store.TextSearch(context.Background(), "lương hưu", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bhxh-54", docs[0].ID)
	assert.Equal(t, "Luật BHXH 2014", docs[0].SourceName)
	assert.Equal(t, "Điều 54", docs[0].Title)
	assert.InDelta(t, 7.5, docs[0].Score, 1e-6)

	body := cluster.lastBody()
	assert.EqualValues(t, 3, body["size"])
	assert.Contains(t, body["query"], "multi_match")
}

func TestStoreSubstringSearchReportsZeroScore(t *testing.T) {
	cluster := &fakeCluster{
		total: 1,
		hits:  `[{"_index":"vn-laws","_id":"1","_score":1.0,"_source":{"title":"Điều 54"}}]`,
	}
	store := newTestStore(t, cluster)

	docs, err := store.SubstringSearch(context.Background(), "điều", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Zero(t, docs[0].Score)
	assert.Empty(t, docs[0].Body)
}

func TestStoreVectorSearchUsesCandidatePool(t *testing.T) {
	cluster := &fakeCluster{
		total: 1,
		hits:  `[{"_index":"vn-laws","_id":"1","_score":0.92,"_source":{"title":"Điều 54","embedding":[0.1,0.2]}}]`,
	}
	store := newTestStore(t, cluster)

	docs, err := store.VectorSearch(context.Background(), types.VectorQuery{
		Vector:        []float64{0.1, 0.2},
		NumCandidates: 50,
		Limit:         5,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Embedding)
	assert.InDelta(t, 0.92, docs[0].Score, 1e-6)

	knn := cluster.lastBody()["query"].(map[string]interface{})["knn"].(map[string]interface{})
	assert.EqualValues(t, 50, knn["embedding"].(map[string]interface{})["k"])
}

func TestStoreVectorSearchRejectsEmptyVector(t *testing.T) {
	store := newTestStore(t, &fakeCluster{})

	_, err := store.VectorSearch(context.Background(), types.VectorQuery{Limit: 5})
	require.Error(t, err)
	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, types.ErrorTypeValidation, searchErr.Type)
}

func TestStoreSearchClassifiesHTTPErrors(t *testing.T) {
	store := newTestStore(t, &fakeCluster{status: http.StatusBadRequest})

	_, err := store.TextSearch(context.Background(), "lương hưu", 5)
	require.Error(t, err)
	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, types.ErrorTypeOpenSearchQuery, searchErr.Type)
	assert.Equal(t, "text_search", searchErr.Operation)
}

func TestStoreStats(t *testing.T) {
	cluster := &fakeCluster{
		total: 12,
		hits:  `[{"_index":"vn-laws","_id":"1","_score":1.0,"_source":{"source_name":"Luật BHXH 2014","title":"Điều 1"}}]`,
	}
	store := newTestStore(t, cluster)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalDocuments)
	assert.Equal(t, 12, stats.EmbeddedDocuments)
	assert.Equal(t, 768, stats.EmbeddingDimension)
	require.NotNil(t, stats.Sample)
	assert.Equal(t, "Điều 1", stats.Sample.Title)
}

// substringShould returns the should clauses of a substring search body
// after a JSON round trip through the fake cluster.
func substringShould(t *testing.T, body map[string]interface{}) []interface{} {
	t.Helper()
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.EqualValues(t, 1, boolQuery["minimum_should_match"])
	return boolQuery["should"].([]interface{})
}

func wildcardValues(t *testing.T, clause interface{}) map[string]string {
	t.Helper()
	values := make(map[string]string)
	var walk func(node interface{})
	walk = func(node interface{}) {
		m := node.(map[string]interface{})
		if wildcard, ok := m["wildcard"].(map[string]interface{}); ok {
			for field, spec := range wildcard {
				values[field] = spec.(map[string]interface{})["value"].(string)
				assert.Equal(t, true, spec.(map[string]interface{})["case_insensitive"])
			}
			return
		}
		for _, child := range m["bool"].(map[string]interface{})["must"].([]interface{}) {
			walk(child)
		}
	}
	walk(clause)
	return values
}

func TestStoreSubstringSearchMatchesAnalyzedBodyTermByTerm(t *testing.T) {
	cluster := &fakeCluster{}
	store := newTestStore(t, cluster)
	_, err := store.Capabilities(context.Background())
	require.NoError(t, err)

	_, err = store.SubstringSearch(context.Background(), "điều kiện hưởng", 5)
	require.NoError(t, err)

	should := substringShould(t, cluster.lastBody())
	// title terms, title.keyword, body terms, section_type terms, section_type whole value
	require.Len(t, should, 5)

	body := should[2].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, body, 3)
	assert.Equal(t, map[string]string{"body": "*điều*"}, wildcardValues(t, body[0]))
	assert.Equal(t, map[string]string{"body": "*kiện*"}, wildcardValues(t, body[1]))
	assert.Equal(t, map[string]string{"body": "*hưởng*"}, wildcardValues(t, body[2]))

	assert.Equal(t, map[string]string{"title.keyword": "*điều kiện hưởng*"}, wildcardValues(t, should[1]))
	for _, clause := range should {
		for field := range wildcardValues(t, clause) {
			assert.NotEqual(t, "body.keyword", field)
		}
	}
}

func TestSubstringFieldsForRespectsIgnoreAbove(t *testing.T) {
	properties := map[string]fieldMapping{
		"title":        {Type: "text", Fields: map[string]fieldMapping{"keyword": {Type: "keyword", IgnoreAbove: 256}}},
		"body":         {Type: "text", Fields: map[string]fieldMapping{"keyword": {Type: "keyword", IgnoreAbove: 256}}},
		"section_type": {Type: "text", Fields: map[string]fieldMapping{"keyword": {Type: "keyword"}}},
	}

	fields := substringFieldsFor(properties)
	assert.Equal(t, []substringField{
		{Name: "title", WholeValue: "title.keyword"},
		{Name: "body"},
		{Name: "section_type", WholeValue: "section_type.keyword"},
	}, fields)

	properties["body"] = fieldMapping{Type: "text", Fields: map[string]fieldMapping{"keyword": {Type: "keyword"}}}
	assert.Equal(t, "body.keyword", substringFieldsFor(properties)[1].WholeValue)
}

func TestStoreVectorSearchClampsInnerProductScores(t *testing.T) {
	cluster := &fakeCluster{
		mapping: strings.Replace(testMapping, `"space_type": "cosinesimil", "engine": "lucene"`, `"space_type": "innerproduct", "engine": "faiss"`, 1),
		total:   2,
		hits: `[{"_index":"vn-laws","_id":"1","_score":3.2,"_source":{"title":"Điều 54"}},` +
			`{"_index":"vn-laws","_id":"2","_score":0.4,"_source":{"title":"Điều 55"}}]`,
	}
	store := newTestStore(t, cluster)
	_, err := store.Capabilities(context.Background())
	require.NoError(t, err)
	require.True(t, store.clampVectorScores)

	docs, err := store.VectorSearch(context.Background(), types.VectorQuery{Vector: []float64{0.1, 0.2}, NumCandidates: 10, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.InDelta(t, 1.0, docs[0].Score, 1e-9)
	assert.InDelta(t, 0.4, docs[1].Score, 1e-6)
}

func TestFieldMappingSpaceType(t *testing.T) {
	var field fieldMapping
	require.NoError(t, json.Unmarshal([]byte(`{"type":"knn_vector","dimension":3}`), &field))
	assert.Equal(t, "l2", field.spaceType())
	assert.Equal(t, "default", field.engine())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"knn_vector","space_type":"innerproduct"}`), &field))
	assert.Equal(t, "innerproduct", field.spaceType())
}

func TestStoreCapabilitiesRejectsMalformedMapping(t *testing.T) {
	cluster := &fakeCluster{mapping: `{"vn-laws":{"aliases":{},"mappings":{"properties":"body"},"settings":{}}}`}
	store := newTestStore(t, cluster)

	_, err := store.Capabilities(context.Background())
	require.Error(t, err)
	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, types.ErrorTypeOpenSearchResponse, searchErr.Type)
}
