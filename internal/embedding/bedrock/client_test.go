package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	requests []map[string]interface{}
	modelIDs []string
	body     string
	err      error
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(params.Body, &payload); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, payload)
	f.modelIDs = append(f.modelIDs, *params.ModelId)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestEmbedderSendsTitanRequest(t *testing.T) {
	runtime := &fakeRuntime{body: `{"embedding":[0.1,0.2,0.3],"inputTextTokenCount":4}`}
	embedder := newEmbedder(runtime, "", 512)
	embedder.logger = log.New(io.Discard, "", 0)

	vector, err := embedder.GenerateEmbedding(context.Background(), "bảo hiểm xã hội")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vector)

	require.Len(t, runtime.requests, 1)
	assert.Equal(t, DefaultEmbeddingModel, runtime.modelIDs[0])
	assert.Equal(t, "bảo hiểm xã hội", runtime.requests[0]["inputText"])
	assert.EqualValues(t, 512, runtime.requests[0]["dimensions"])
	assert.Equal(t, true, runtime.requests[0]["normalize"])
}

func TestEmbedderOmitsDimensionsForV1(t *testing.T) {
	runtime := &fakeRuntime{body: `{"embedding":[1]}`}
	embedder := newEmbedder(runtime, "amazon.titan-embed-text-v1", 0)
	embedder.logger = log.New(io.Discard, "", 0)

	_, err := embedder.GenerateEmbedding(context.Background(), "luật")
	require.NoError(t, err)
	assert.NotContains(t, runtime.requests[0], "dimensions")
}

func TestEmbedderRejectsEmptyResponse(t *testing.T) {
	embedder := newEmbedder(&fakeRuntime{body: `{"embedding":[]}`}, "", 0)
	embedder.logger = log.New(io.Discard, "", 0)

	_, err := embedder.GenerateEmbedding(context.Background(), "luật")
	require.Error(t, err)
}

func TestChatClientFoldsSystemMessages(t *testing.T) {
	runtime := &fakeRuntime{body: `{"content":[{"type":"text","text":"Theo Điều 54..."}]}`}
	client := newChatClient(runtime, "anthropic.claude-3-5-sonnet-20240620-v1:0", 1000, 0.7)

	answer, err := client.Generate(context.Background(), []types.ChatMessage{
		{Role: types.RoleSystem, Content: "Bạn là trợ lý pháp lý."},
		{Role: types.RoleUser, Content: "Điều kiện hưởng lương hưu?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Theo Điều 54...", answer)

	request := runtime.requests[0]
	assert.Equal(t, "Bạn là trợ lý pháp lý.", request["system"])
	assert.Equal(t, anthropicVersion, request["anthropic_version"])
	messages := request["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
}

func TestChatClientRequiresConversation(t *testing.T) {
	client := newChatClient(&fakeRuntime{}, "model", 0, 0)

	_, err := client.Generate(context.Background(), []types.ChatMessage{{Role: types.RoleSystem, Content: "x"}})
	require.Error(t, err)

	_, err = client.Generate(context.Background(), nil)
	require.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorType
	}{
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}, types.ErrorTypeRateLimit},
		{"access", &smithy.GenericAPIError{Code: "AccessDeniedException"}, types.ErrorTypeAuthentication},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException"}, types.ErrorTypeValidation},
		{"deadline", context.DeadlineExceeded, types.ErrorTypeNetworkTimeout},
		{"other", errors.New("boom"), types.ErrorTypeGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(types.ErrorTypeGeneration, tt.err)
			var backendErr *types.BackendError
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, tt.want, backendErr.Type)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestChatClientClassifiesInvokeFailure(t *testing.T) {
	runtime := &fakeRuntime{err: &smithy.GenericAPIError{Code: "ThrottlingException"}}
	client := newChatClient(runtime, "model", 0, 0)

	_, err := client.Generate(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}})
	var backendErr *types.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "ThrottlingException", backendErr.Code)
}
