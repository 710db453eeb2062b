package types

import "time"

// Config is the application configuration resolved from the environment.
type Config struct {
	// Document store
	StoreBackend string `json:"store_backend" env:"STORE_BACKEND,default=opensearch"`

	OpenSearchEndpoint        string        `json:"opensearch_endpoint" env:"OPENSEARCH_ENDPOINT"`
	OpenSearchIndex           string        `json:"opensearch_index" env:"OPENSEARCH_INDEX,default=vn-laws"`
	OpenSearchRegion          string        `json:"opensearch_region" env:"OPENSEARCH_REGION"`
	OpenSearchUsername        string        `json:"opensearch_username" env:"OPENSEARCH_USERNAME"`
	OpenSearchPassword        string        `json:"-" env:"OPENSEARCH_PASSWORD"`
	OpenSearchInsecureSkipTLS bool          `json:"opensearch_insecure_skip_tls" env:"OPENSEARCH_INSECURE_SKIP_TLS,default=false"`
	OpenSearchRateLimit       float64       `json:"opensearch_rate_limit" env:"OPENSEARCH_RATE_LIMIT,default=10.0"`
	OpenSearchRateBurst       int           `json:"opensearch_rate_burst" env:"OPENSEARCH_RATE_BURST,default=20"`
	OpenSearchRequestTimeout  time.Duration `json:"opensearch_request_timeout" env:"OPENSEARCH_REQUEST_TIMEOUT,default=30s"`
	OpenSearchVectorField     string        `json:"opensearch_vector_field" env:"OPENSEARCH_VECTOR_FIELD,default=embedding"`

	LocalCorpusPath string `json:"local_corpus_path" env:"LOCAL_CORPUS_PATH"`

	// AWS credentials shared by the OpenSearch signer and Bedrock
	AWSRegion          string `json:"aws_region" env:"AWS_REGION,default=us-east-1"`
	AWSAccessKeyID     string `json:"-" env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `json:"-" env:"AWS_SECRET_ACCESS_KEY"`
	AWSSessionToken    string `json:"-" env:"AWS_SESSION_TOKEN"`

	// Embeddings
	EmbeddingProvider  string `json:"embedding_provider" env:"EMBEDDING_PROVIDER,default=bedrock"`
	EmbeddingModel     string `json:"embedding_model" env:"EMBEDDING_MODEL"`
	EmbeddingDimension int    `json:"embedding_dimension" env:"EMBEDDING_DIMENSION"`
	EmbeddingCacheSize int    `json:"embedding_cache_size" env:"EMBEDDING_CACHE_SIZE,default=1000"`

	// Generative model
	LLMProvider           string        `json:"llm_provider" env:"LLM_PROVIDER,default=azure"`
	ChatModel             string        `json:"chat_model" env:"CHAT_MODEL"`
	LLMTemperature        float64       `json:"llm_temperature" env:"LLM_TEMPERATURE,default=0.7"`
	LLMMaxTokens          int           `json:"llm_max_tokens" env:"LLM_MAX_TOKENS,default=2048"`
	GenerationTimeout     time.Duration `json:"generation_timeout" env:"GENERATION_TIMEOUT,default=60s"`
	AzureOpenAIEndpoint   string        `json:"azure_openai_endpoint" env:"AZURE_OPENAI_ENDPOINT"`
	AzureOpenAIAPIKey     string        `json:"-" env:"AZURE_OPENAI_API_KEY"`
	AzureOpenAIDeployment string        `json:"azure_openai_deployment" env:"AZURE_OPENAI_DEPLOYMENT_NAME"`
	AzureOpenAIAPIVersion string        `json:"azure_openai_api_version" env:"AZURE_OPENAI_API_VERSION,default=2024-02-15-preview"`
	OpenAIAPIKey          string        `json:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `json:"openai_base_url" env:"OPENAI_BASE_URL"`
	GeminiAPIKey          string        `json:"-" env:"GEMINI_API_KEY"`
	VoyageAPIKey          string        `json:"-" env:"VOYAGE_API_KEY"`
	VoyageAPIURL          string        `json:"voyage_api_url" env:"VOYAGE_API_URL"`

	// Falls back to EMBEDDING_MODEL when unset.
	AzureOpenAIEmbeddingDeployment string `json:"azure_openai_embedding_deployment" env:"AZURE_OPENAI_EMBEDDING_DEPLOYMENT"`

	// Retrieval
	SearchDefaultLimit   int     `json:"search_default_limit" env:"SEARCH_DEFAULT_LIMIT,default=5"`
	SearchDefaultMode    string  `json:"search_default_mode" env:"SEARCH_DEFAULT_MODE,default=semantic"`
	HybridKeywordWeight  float64 `json:"hybrid_keyword_weight" env:"HYBRID_KEYWORD_WEIGHT,default=0.3"`
	HybridSemanticWeight float64 `json:"hybrid_semantic_weight" env:"HYBRID_SEMANTIC_WEIGHT,default=0.7"`
	ContextBodyCharLimit int     `json:"context_body_char_limit" env:"CONTEXT_BODY_CHAR_LIMIT,default=500"`

	// MCP server
	MCPServerHost            string        `json:"mcp_server_host" env:"MCP_SERVER_HOST,default=localhost"`
	MCPServerPort            int           `json:"mcp_server_port" env:"MCP_SERVER_PORT,default=8080"`
	MCPServerReadTimeout     time.Duration `json:"mcp_server_read_timeout" env:"MCP_SERVER_READ_TIMEOUT,default=30s"`
	MCPServerWriteTimeout    time.Duration `json:"mcp_server_write_timeout" env:"MCP_SERVER_WRITE_TIMEOUT,default=120s"`
	MCPServerShutdownTimeout time.Duration `json:"mcp_server_shutdown_timeout" env:"MCP_SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	MCPAllowedIPsStr         string        `json:"-" env:"MCP_ALLOWED_IPS"`
	MCPAllowedIPs            []string      `json:"mcp_allowed_ips"`

	// Local invocation counts; the path defaults to ~/.legalrag/usage.db
	UsageStatsEnabled bool   `json:"usage_stats_enabled" env:"USAGE_STATS_ENABLED,default=true"`
	UsageStatsPath    string `json:"usage_stats_path" env:"USAGE_STATS_PATH"`

	// OpenTelemetry
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=legalrag"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`

	OTelMetricExportInterval time.Duration `json:"otel_metric_export_interval" env:"OTEL_METRIC_EXPORT_INTERVAL,default=60s"`
}
