package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path   string
	query  string
	header http.Header
	body   map[string]interface{}
}

func newFakeAPI(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		requests = append(requests, recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone(), body: body})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestGenerateAgainstOpenAI(t *testing.T) {
	server, requests := newFakeAPI(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Theo Điều 54 Luật BHXH 2014..."}}]}`)

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", ChatModel: "gpt-4o-mini", Temperature: 0.7})
	require.NoError(t, err)

	answer, err := client.Generate(context.Background(), []types.ChatMessage{
		{Role: types.RoleSystem, Content: "Bạn là trợ lý pháp lý."},
		{Role: types.RoleUser, Content: "Điều kiện hưởng lương hưu?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Theo Điều 54 Luật BHXH 2014...", answer)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/chat/completions", req.path)
	assert.Equal(t, "Bearer sk-test", req.header.Get("Authorization"))
	assert.Equal(t, "gpt-4o-mini", req.body["model"])
	messages := req.body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
}

func TestGenerateAgainstAzureUsesDeployment(t *testing.T) {
	server, requests := newFakeAPI(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)

	client, err := NewClient(Config{
		APIKey:              "azure-key",
		AzureEndpoint:       server.URL,
		AzureAPIVersion:     "2024-02-15-preview",
		AzureChatDeployment: "legal-gpt",
		ChatModel:           "gpt-4o-mini",
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "xin chào"}})
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, "/openai/deployments/legal-gpt/chat/completions", req.path)
	assert.Contains(t, req.query, "api-version=2024-02-15-preview")
	assert.Equal(t, "azure-key", req.header.Get("api-key"))
}

func TestGenerateEmbeddingConvertsVector(t *testing.T) {
	server, requests := newFakeAPI(t, http.StatusOK, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}],"model":"text-embedding-3-small"}`)

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", Dimension: 2})
	require.NoError(t, err)

	vector, err := client.GenerateEmbedding(context.Background(), "bảo hiểm xã hội")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5}, vector)

	req := (*requests)[0]
	assert.Equal(t, "/v1/embeddings", req.path)
	assert.Equal(t, "text-embedding-3-small", req.body["model"])
	assert.EqualValues(t, 2, req.body["dimensions"])
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	server, _ := newFakeAPI(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}})
	var backendErr *types.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, types.ErrorTypeRateLimit, backendErr.Type)
	assert.Equal(t, "openai", backendErr.Provider)
}
