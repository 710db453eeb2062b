package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ca-srg/legalrag/internal/types"
	"google.golang.org/genai"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChatModel      = "gemini-2.0-flash"
	DefaultDimension      = 768
)

// modelsAPI is the subset of genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Config struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Dimension      int
	Temperature    float64
	MaxTokens      int
}

// Client talks to the Gemini API for both embeddings and generation.
type Client struct {
	models modelsAPI
	config Config
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newClient(client.Models, cfg), nil
}

func newClient(models modelsAPI, cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	return &Client{models: models, config: cfg}
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	resp, err := c.models.EmbedContent(ctx, c.config.EmbeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_QUERY",
		OutputDimensionality: genai.Ptr(int32(c.config.Dimension)),
	})
	if err != nil {
		return nil, classifyError(types.ErrorTypeEmbedding, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding data")
	}

	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Generate maps system messages to the system instruction and the rest to
// user/model turns.
func (c *Client) Generate(ctx context.Context, messages []types.ChatMessage) (string, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case types.RoleSystem:
			system = append(system, msg.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("chat messages must include at least one user or assistant message")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.config.Temperature)),
	}
	if c.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.config.ChatModel, contents, config)
	if err != nil {
		return "", classifyError(types.ErrorTypeGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no content in response")
	}
	return text, nil
}

func classifyError(fallback types.ErrorType, err error) error {
	backendErr := &types.BackendError{Provider: "gemini", Type: fallback, Err: err}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		backendErr.Code = apiErr.Status
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			backendErr.Type = types.ErrorTypeAuthentication
		case http.StatusTooManyRequests:
			backendErr.Type = types.ErrorTypeRateLimit
		case http.StatusNotFound:
			backendErr.Type = types.ErrorTypeNotFound
		case http.StatusBadRequest:
			backendErr.Type = types.ErrorTypeValidation
		}
		return backendErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		backendErr.Type = types.ErrorTypeNetworkTimeout
	}
	return backendErr
}
