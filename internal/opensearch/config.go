package opensearch

import (
	"fmt"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	defaultVectorField    = "embedding"
	defaultRateLimit      = 10.0
	defaultRateBurst      = 20
	defaultRequestTimeout = 30 * time.Second
)

type Config struct {
	Endpoint        string
	Index           string
	Region          string
	Username        string
	Password        string
	VectorField     string
	InsecureSkipTLS bool
	RateLimit       float64
	RateBurst       int
	RequestTimeout  time.Duration
}

func NewConfigFromTypes(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Config{
		Endpoint:        cfg.OpenSearchEndpoint,
		Index:           cfg.OpenSearchIndex,
		Region:          cfg.OpenSearchRegion,
		Username:        cfg.OpenSearchUsername,
		Password:        cfg.OpenSearchPassword,
		VectorField:     cfg.OpenSearchVectorField,
		InsecureSkipTLS: cfg.OpenSearchInsecureSkipTLS,
		RateLimit:       cfg.OpenSearchRateLimit,
		RateBurst:       cfg.OpenSearchRateBurst,
		RequestTimeout:  cfg.OpenSearchRequestTimeout,
	}, nil
}

// Validate checks required fields and clamps tunables to safe ranges.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Index == "" {
		return fmt.Errorf("index is required")
	}

	if c.VectorField == "" {
		c.VectorField = defaultVectorField
	}

	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateLimit > 1000 {
		c.RateLimit = 1000.0
	}
	if c.RateBurst <= 0 {
		c.RateBurst = defaultRateBurst
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestTimeout > 600*time.Second {
		c.RequestTimeout = 600 * time.Second
	}

	return nil
}

// UsesSigV4 reports whether requests are signed for Amazon OpenSearch Service.
func (c *Config) UsesSigV4() bool {
	return c.Region != ""
}
