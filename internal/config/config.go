package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/joho/godotenv"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

const (
	StoreBackendOpenSearch = "opensearch"
	StoreBackendLocal      = "local"

	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderAzure   = "azure"
	ProviderVoyage  = "voyage"
)

// Load reads an optional .env file, then the process environment, and
// validates the result. Missing credentials for the selected backends are
// reported here so setup fails before the first query.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// validateConfig normalises values and checks that every selected backend
// has the settings it needs.
func validateConfig(config *Config) error {
	config.StoreBackend = strings.ToLower(strings.TrimSpace(config.StoreBackend))
	config.EmbeddingProvider = strings.ToLower(strings.TrimSpace(config.EmbeddingProvider))
	config.LLMProvider = strings.ToLower(strings.TrimSpace(config.LLMProvider))

	var problems []string

	switch config.StoreBackend {
	case StoreBackendOpenSearch:
		if err := validateOpenSearchConfig(config); err != nil {
			problems = append(problems, err.Error())
		}
	case StoreBackendLocal:
		if strings.TrimSpace(config.LocalCorpusPath) == "" {
			problems = append(problems, "LOCAL_CORPUS_PATH is required when STORE_BACKEND=local")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported STORE_BACKEND %q (expected opensearch or local)", config.StoreBackend))
	}

	problems = append(problems, validateEmbeddingConfig(config)...)
	problems = append(problems, validateLLMConfig(config)...)
	problems = append(problems, validateSearchConfig(config)...)

	if config.MCPServerPort < 1 || config.MCPServerPort > 65535 {
		problems = append(problems, "MCP_SERVER_PORT must be between 1 and 65535")
	}
	config.MCPAllowedIPs = splitList(config.MCPAllowedIPsStr)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func validateOpenSearchConfig(config *Config) error {
	if config.OpenSearchEndpoint == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT is required when STORE_BACKEND=opensearch")
	}

	parsedURL, err := url.Parse(config.OpenSearchEndpoint)
	if err != nil {
		return fmt.Errorf("invalid OPENSEARCH_ENDPOINT URL format: %w", err)
	}
	if !strings.HasPrefix(parsedURL.Scheme, "http") {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include an http or https scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include a valid host")
	}
	if strings.TrimSpace(config.OpenSearchIndex) == "" {
		return fmt.Errorf("OPENSEARCH_INDEX cannot be empty")
	}

	if config.OpenSearchRateLimit <= 0 || config.OpenSearchRateLimit > 1000 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT must be in (0, 1000]")
	}
	if config.OpenSearchRateBurst <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_BURST must be greater than 0")
	}
	if config.OpenSearchRequestTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_REQUEST_TIMEOUT must be greater than 0")
	}
	if config.OpenSearchUsername != "" && config.OpenSearchPassword == "" {
		return fmt.Errorf("OPENSEARCH_PASSWORD is required when OPENSEARCH_USERNAME is set")
	}
	return nil
}

func validateEmbeddingConfig(config *Config) []string {
	var problems []string
	switch config.EmbeddingProvider {
	case ProviderBedrock:
		if config.EmbeddingModel == "" {
			config.EmbeddingModel = "amazon.titan-embed-text-v2:0"
		}
	case ProviderGemini:
		if config.EmbeddingModel == "" {
			config.EmbeddingModel = "text-embedding-004"
		}
		if config.GeminiAPIKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required when EMBEDDING_PROVIDER=gemini")
		}
	case ProviderOpenAI, ProviderAzure:
		if config.EmbeddingModel == "" {
			config.EmbeddingModel = "text-embedding-3-small"
		}
		problems = append(problems, missingOpenAICredentials(config, config.EmbeddingProvider, "EMBEDDING_PROVIDER")...)
	case ProviderVoyage:
		if config.EmbeddingModel == "" {
			config.EmbeddingModel = "voyage-3-large"
		}
		if config.VoyageAPIKey == "" {
			problems = append(problems, "VOYAGE_API_KEY is required when EMBEDDING_PROVIDER=voyage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported EMBEDDING_PROVIDER %q (expected bedrock, gemini, openai, azure or voyage)", config.EmbeddingProvider))
	}

	if config.EmbeddingDimension < 0 {
		problems = append(problems, "EMBEDDING_DIMENSION cannot be negative")
	}
	if config.EmbeddingCacheSize <= 0 {
		config.EmbeddingCacheSize = 1000
	}
	return problems
}

func validateLLMConfig(config *Config) []string {
	var problems []string
	switch config.LLMProvider {
	case ProviderAzure, ProviderOpenAI:
		problems = append(problems, missingOpenAICredentials(config, config.LLMProvider, "LLM_PROVIDER")...)
		if config.ChatModel == "" {
			config.ChatModel = "gpt-4o-mini"
		}
	case ProviderBedrock:
		if config.ChatModel == "" {
			config.ChatModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"
		}
	case ProviderGemini:
		if config.GeminiAPIKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		if config.ChatModel == "" {
			config.ChatModel = "gemini-2.0-flash"
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported LLM_PROVIDER %q (expected azure, openai, bedrock or gemini)", config.LLMProvider))
	}

	if config.LLMTemperature < 0 || config.LLMTemperature > 2 {
		problems = append(problems, "LLM_TEMPERATURE must be between 0 and 2")
	}
	if config.GenerationTimeout <= 0 {
		problems = append(problems, "GENERATION_TIMEOUT must be greater than 0")
	}
	return problems
}

func missingOpenAICredentials(config *Config, provider, variable string) []string {
	if provider == ProviderOpenAI {
		if config.OpenAIAPIKey == "" {
			return []string{fmt.Sprintf("OPENAI_API_KEY is required when %s=openai", variable)}
		}
		return nil
	}

	var missing []string
	if config.AzureOpenAIEndpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if config.AzureOpenAIAPIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if config.AzureOpenAIDeployment == "" {
		missing = append(missing, "AZURE_OPENAI_DEPLOYMENT_NAME")
	}
	if len(missing) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("missing Azure OpenAI configuration for %s=azure: %s", variable, strings.Join(missing, ", "))}
}

func validateSearchConfig(config *Config) []string {
	var problems []string

	if config.SearchDefaultLimit <= 0 {
		config.SearchDefaultLimit = 5
	}
	if config.SearchDefaultMode == "" {
		config.SearchDefaultMode = string(types.SearchModeSemantic)
	}
	mode, err := types.ParseSearchMode(config.SearchDefaultMode)
	if err != nil {
		problems = append(problems, fmt.Sprintf("SEARCH_DEFAULT_MODE: %v", err))
	} else {
		config.SearchDefaultMode = string(mode)
	}

	if config.HybridKeywordWeight < 0 || config.HybridSemanticWeight < 0 {
		problems = append(problems, "HYBRID_KEYWORD_WEIGHT and HYBRID_SEMANTIC_WEIGHT cannot be negative")
	} else if config.HybridKeywordWeight == 0 && config.HybridSemanticWeight == 0 {
		problems = append(problems, "HYBRID_KEYWORD_WEIGHT and HYBRID_SEMANTIC_WEIGHT cannot both be zero")
	}

	if config.ContextBodyCharLimit <= 0 {
		config.ContextBodyCharLimit = 500
	}
	return problems
}

// splitList parses a comma-separated environment value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
