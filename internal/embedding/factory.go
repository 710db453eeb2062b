package embedding

import (
	"context"
	"fmt"

	"github.com/ca-srg/legalrag/internal/config"
	"github.com/ca-srg/legalrag/internal/embedding/bedrock"
	"github.com/ca-srg/legalrag/internal/embedding/gemini"
	"github.com/ca-srg/legalrag/internal/embedding/openai"
	"github.com/ca-srg/legalrag/internal/embedding/voyage"
	"github.com/ca-srg/legalrag/internal/types"
)

// NewProviderFromConfig returns a provider for the configured backend. The
// backend client itself is not created until the first Embed call.
func NewProviderFromConfig(cfg *types.Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	dimension := cfg.EmbeddingDimension
	var factory Factory

	switch cfg.EmbeddingProvider {
	case config.ProviderBedrock:
		if dimension <= 0 {
			dimension = bedrock.DefaultDimension
		}
		factory = func(ctx context.Context) (Embedder, error) {
			awsCfg, err := config.LoadAWSConfig(ctx, cfg, "")
			if err != nil {
				return nil, err
			}
			return bedrock.NewEmbedder(awsCfg, cfg.EmbeddingModel, dimension), nil
		}
	case config.ProviderGemini:
		if dimension <= 0 {
			dimension = gemini.DefaultDimension
		}
		factory = func(ctx context.Context) (Embedder, error) {
			return gemini.NewClient(ctx, gemini.Config{
				APIKey:         cfg.GeminiAPIKey,
				EmbeddingModel: cfg.EmbeddingModel,
				Dimension:      dimension,
			})
		}
	case config.ProviderOpenAI, config.ProviderAzure:
		openaiCfg := OpenAIConfig(cfg, cfg.EmbeddingProvider)
		openaiCfg.Dimension = dimension
		factory = func(context.Context) (Embedder, error) {
			return openai.NewClient(openaiCfg)
		}
	case config.ProviderVoyage:
		if dimension <= 0 {
			dimension = voyage.DefaultDimension
		}
		factory = func(context.Context) (Embedder, error) {
			return voyage.NewClient(voyage.Config{
				APIKey:    cfg.VoyageAPIKey,
				APIURL:    cfg.VoyageAPIURL,
				Model:     cfg.EmbeddingModel,
				Dimension: dimension,
			})
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}

	return NewProvider(factory, Options{
		Model:     cfg.EmbeddingProvider + "/" + cfg.EmbeddingModel,
		Dimension: dimension,
		CacheSize: cfg.EmbeddingCacheSize,
	})
}

// OpenAIConfig maps the application configuration onto the OpenAI client
// for the given provider (openai or azure).
func OpenAIConfig(cfg *types.Config, provider string) openai.Config {
	out := openai.Config{
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    cfg.LLMTemperature,
		MaxTokens:      cfg.LLMMaxTokens,
	}
	if provider == config.ProviderAzure {
		out.APIKey = cfg.AzureOpenAIAPIKey
		out.AzureEndpoint = cfg.AzureOpenAIEndpoint
		out.AzureAPIVersion = cfg.AzureOpenAIAPIVersion
		out.AzureChatDeployment = cfg.AzureOpenAIDeployment
		out.AzureEmbeddingDeployment = cfg.AzureOpenAIEmbeddingDeployment
		if out.AzureEmbeddingDeployment == "" {
			out.AzureEmbeddingDeployment = cfg.EmbeddingModel
		}
		return out
	}
	out.APIKey = cfg.OpenAIAPIKey
	out.BaseURL = cfg.OpenAIBaseURL
	return out
}
