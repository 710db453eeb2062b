package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/ca-srg/legalrag/internal/types"
)

const (
	DefaultEmbeddingModel = "amazon.titan-embed-text-v2:0"
	DefaultDimension      = 1024

	anthropicVersion = "bedrock-2023-05-31"
)

// runtimeAPI is the part of the Bedrock runtime client used here.
type runtimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// TitanEmbeddingRequest represents the request structure for Titan embedding models
type TitanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

// TitanEmbeddingResponse represents the response structure from Titan embedding models
type TitanEmbeddingResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// ChatRequest is the Anthropic messages payload accepted by Claude on Bedrock.
type ChatRequest struct {
	Messages         []types.ChatMessage `json:"messages"`
	MaxTokens        int                 `json:"max_tokens,omitempty"`
	Temperature      float64             `json:"temperature"`
	AnthropicVersion string              `json:"anthropic_version"`
	System           string              `json:"system,omitempty"`
}

// ChatResponse represents the response from chat models
type ChatResponse struct {
	Content []ChatContent `json:"content"`
	Usage   ChatUsage     `json:"usage,omitempty"`
}

type ChatContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ChatUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Embedder generates Titan text embeddings.
type Embedder struct {
	runtime   runtimeAPI
	modelID   string
	dimension int
	logger    *log.Logger
}

func NewEmbedder(awsConfig aws.Config, modelID string, dimension int) *Embedder {
	return newEmbedder(SharedRuntime(awsConfig), modelID, dimension)
}

func newEmbedder(runtime runtimeAPI, modelID string, dimension int) *Embedder {
	if modelID == "" {
		modelID = DefaultEmbeddingModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		runtime:   runtime,
		modelID:   modelID,
		dimension: dimension,
		logger:    log.New(log.Writer(), "[Bedrock] ", log.LstdFlags),
	}
}

// GenerateEmbedding creates a normalized embedding vector for text.
func (e *Embedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := TitanEmbeddingRequest{
		InputText: text,
		Normalize: true,
	}
	// v1 has a fixed output size and rejects the field
	if strings.Contains(e.modelID, "v2") {
		request.Dimensions = e.dimension
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := e.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		e.logger.Printf("embedding call to %s failed: %v", e.modelID, err)
		return nil, classifyError(types.ErrorTypeEmbedding, err)
	}

	var response TitanEmbeddingResponse
	if err := json.Unmarshal(result.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data in response (tokens: %d)", response.InputTextTokenCount)
	}

	return response.Embedding, nil
}

// ChatClient generates answers with an Anthropic model on Bedrock.
type ChatClient struct {
	runtime     runtimeAPI
	modelID     string
	maxTokens   int
	temperature float64
}

func NewChatClient(awsConfig aws.Config, modelID string, maxTokens int, temperature float64) *ChatClient {
	return newChatClient(SharedRuntime(awsConfig), modelID, maxTokens, temperature)
}

func newChatClient(runtime runtimeAPI, modelID string, maxTokens int, temperature float64) *ChatClient {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &ChatClient{
		runtime:     runtime,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate sends messages to the model. System messages are folded into the
// top-level system prompt as the Anthropic API requires.
func (c *ChatClient) Generate(ctx context.Context, messages []types.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	var systemPrompts []string
	conversation := make([]types.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case types.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		default:
			conversation = append(conversation, msg)
		}
	}
	if len(conversation) == 0 {
		return "", fmt.Errorf("chat messages must include at least one user or assistant message")
	}

	request := ChatRequest{
		Messages:         conversation,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		AnthropicVersion: anthropicVersion,
	}
	if len(systemPrompts) > 0 {
		request.System = strings.Join(systemPrompts, "\n\n")
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", classifyError(types.ErrorTypeGeneration, err)
	}

	var response ChatResponse
	if err := json.Unmarshal(result.Body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "" || content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return text.String(), nil
}

// classifyError maps Bedrock API error codes onto the shared error types.
func classifyError(fallback types.ErrorType, err error) error {
	backendErr := &types.BackendError{Provider: "bedrock", Type: fallback, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		backendErr.Code = apiErr.ErrorCode()
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException":
			backendErr.Type = types.ErrorTypeRateLimit
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			backendErr.Type = types.ErrorTypeAuthentication
		case "ValidationException":
			backendErr.Type = types.ErrorTypeValidation
		case "ResourceNotFoundException":
			backendErr.Type = types.ErrorTypeNotFound
		case "ModelTimeoutException":
			backendErr.Type = types.ErrorTypeNetworkTimeout
		}
		return backendErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		backendErr.Type = types.ErrorTypeNetworkTimeout
	}
	return backendErr
}
