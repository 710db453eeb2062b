package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ca-srg/legalrag/internal/types"
	goopenai "github.com/sashabaranov/go-openai"
)

// Config selects between the public OpenAI API and an Azure OpenAI resource.
// Azure is used whenever AzureEndpoint is set.
type Config struct {
	APIKey  string
	BaseURL string

	AzureEndpoint            string
	AzureAPIVersion          string
	AzureChatDeployment      string
	AzureEmbeddingDeployment string

	ChatModel      string
	EmbeddingModel string
	Dimension      int
	Temperature    float64
	MaxTokens      int
}

type Client struct {
	client   *goopenai.Client
	config   Config
	provider string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	var clientConfig goopenai.ClientConfig
	provider := "openai"
	if cfg.AzureEndpoint != "" {
		provider = "azure"
		clientConfig = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			clientConfig.APIVersion = cfg.AzureAPIVersion
		}
		clientConfig.AzureModelMapperFunc = func(model string) string {
			if model == cfg.EmbeddingModel && cfg.AzureEmbeddingDeployment != "" {
				return cfg.AzureEmbeddingDeployment
			}
			if model == cfg.ChatModel && cfg.AzureChatDeployment != "" {
				return cfg.AzureChatDeployment
			}
			return model
		}
	} else {
		clientConfig = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}

	if cfg.ChatModel == "" {
		cfg.ChatModel = goopenai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(goopenai.SmallEmbedding3)
	}

	return &Client{
		client:   goopenai.NewClientWithConfig(clientConfig),
		config:   cfg,
		provider: provider,
	}, nil
}

// Generate runs a chat completion over the given messages.
func (c *Client) Generate(ctx context.Context, messages []types.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	req := goopenai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(c.config.Temperature),
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.classifyError(types.ErrorTypeGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateEmbedding embeds a single text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	req := goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.config.EmbeddingModel),
	}
	if c.config.Dimension > 0 && strings.HasPrefix(c.config.EmbeddingModel, "text-embedding-3") {
		req.Dimensions = c.config.Dimension
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, c.classifyError(types.ErrorTypeEmbedding, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data")
	}

	vector := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float64(v)
	}
	return vector, nil
}

func chatRole(role string) string {
	switch strings.ToLower(role) {
	case types.RoleSystem:
		return goopenai.ChatMessageRoleSystem
	case types.RoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

func (c *Client) classifyError(fallback types.ErrorType, err error) error {
	backendErr := &types.BackendError{Provider: c.provider, Type: fallback, Err: err}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok {
			backendErr.Code = code
		}
		switch apiErr.HTTPStatusCode {
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
