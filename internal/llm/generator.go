package llm

import (
	"context"
	"fmt"

	"github.com/ca-srg/legalrag/internal/config"
	"github.com/ca-srg/legalrag/internal/embedding"
	"github.com/ca-srg/legalrag/internal/embedding/bedrock"
	"github.com/ca-srg/legalrag/internal/embedding/gemini"
	"github.com/ca-srg/legalrag/internal/embedding/openai"
	"github.com/ca-srg/legalrag/internal/types"
)

// Generator produces text from role-tagged messages.
type Generator interface {
	Generate(ctx context.Context, messages []types.ChatMessage) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []types.ChatMessage) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return f(ctx, messages)
}

// NewGenerator builds the generator selected by LLM_PROVIDER. Credentials are
// validated by config.Load; this only wires clients.
func NewGenerator(ctx context.Context, cfg *types.Config) (Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.LLMProvider {
	case config.ProviderAzure, config.ProviderOpenAI:
		client, err := openai.NewClient(embedding.OpenAIConfig(cfg, cfg.LLMProvider))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s generator: %w", cfg.LLMProvider, err)
		}
		return client, nil
	case config.ProviderBedrock:
		awsCfg, err := config.LoadAWSConfig(ctx, cfg, "")
		if err != nil {
			return nil, err
		}
		return bedrock.NewChatClient(awsCfg, cfg.ChatModel, cfg.LLMMaxTokens, cfg.LLMTemperature), nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			ChatModel:   cfg.ChatModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini generator: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
