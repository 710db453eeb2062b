package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/ca-srg/legalrag/internal/types"
	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
	"golang.org/x/time/rate"
)

// Client is a rate-limited OpenSearch client bound to one index. Every
// request is a single attempt bounded by the configured request timeout.
type Client struct {
	client      *opensearchapi.Client
	rateLimiter *rate.Limiter
	config      *Config
	logger      *log.Logger
}

// NewClient builds a client. When cfg.Region is set requests are SigV4
// signed with awsCfg; otherwise optional basic auth is used.
func NewClient(cfg *Config, awsCfg *aws.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := opensearch.Config{
		Addresses: []string{cfg.Endpoint},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipTLS,
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.RequestTimeout,
		},
		// retries are the caller's decision, never the transport's
		DisableRetry: true,
	}

	if cfg.UsesSigV4() {
		if awsCfg == nil {
			return nil, fmt.Errorf("AWS config is required for SigV4 signing")
		}
		signingCfg := awsCfg.Copy()
		signingCfg.Region = cfg.Region
		signer, err := requestsigner.NewSignerWithService(signingCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS signer: %w", err)
		}
		clientCfg.Signer = signer
	} else if cfg.Username != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	osClient, err := opensearchapi.NewClient(opensearchapi.Config{Client: clientCfg})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &Client{
		client:      osClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		config:      cfg,
		logger:      log.New(log.Writer(), "[OpenSearch] ", log.LstdFlags),
	}, nil
}

func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

func (c *Client) Config() *Config {
	return c.config
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := c.client.Cluster.Health(ctx, &opensearchapi.ClusterHealthReq{}); err != nil {
		c.logger.Printf("health check failed: %v", err)
		return ClassifyConnectionError(err)
	}
	return nil
}

// begin waits for the rate limiter and applies the per-request timeout.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit wait: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	return ctx, cancel, nil
}

// search runs one query body against the configured index.
func (c *Client) search(ctx context.Context, operation string, body map[string]interface{}) (*opensearchapi.SearchResp, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, NewSearchError(types.ErrorTypeValidation, fmt.Sprintf("failed to marshal %s body: %v", operation, err))
	}

	start := time.Now()
	resp, err := c.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{c.config.Index},
		Body:    strings.NewReader(string(bodyJSON)),
	})
	if err != nil {
		classified := ClassifyConnectionError(err)
		classified.Operation = operation
		return nil, classified
	}
	if resp == nil {
		return nil, &SearchError{Type: types.ErrorTypeOpenSearchResponse, Message: "received nil response", Operation: operation, Timestamp: time.Now()}
	}

	c.logger.Printf("%s completed in %v, %d hits", operation, time.Since(start), len(resp.Hits.Hits))
	return resp, nil
}

// mapping returns the field mapping properties of the configured index.
func (c *Client) mapping(ctx context.Context) (map[string]fieldMapping, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := c.client.Indices.Get(ctx, opensearchapi.IndicesGetReq{
		Indices: []string{c.config.Index},
	})
	if err != nil {
		classified := ClassifyConnectionError(err)
		classified.Operation = "get_mapping"
		return nil, classified
	}

	properties := make(map[string]fieldMapping)
	for _, index := range resp.Indices {
		var mappings struct {
			Properties map[string]fieldMapping `json:"properties"`
		}
		if len(index.Mappings) == 0 {
			continue
		}
		if err := json.Unmarshal(index.Mappings, &mappings); err != nil {
			return nil, NewSearchError(types.ErrorTypeOpenSearchResponse, fmt.Sprintf("failed to decode mapping: %v", err))
		}
		for name, field := range mappings.Properties {
			properties[name] = field
		}
	}
	return properties, nil
}

type fieldMapping struct {
	Type        string                  `json:"type"`
	Dimension   int                     `json:"dimension,omitempty"`
	IgnoreAbove int                     `json:"ignore_above,omitempty"`
	Fields      map[string]fieldMapping `json:"fields,omitempty"`
	Method      *struct {
		SpaceType string `json:"space_type"`
		Engine    string `json:"engine"`
	} `json:"method,omitempty"`
	SpaceType string `json:"space_type,omitempty"`
}

// spaceType reads the knn space type from the method block, falling back to
// the top-level setting and then to the plugin default.
func (f fieldMapping) spaceType() string {
	if f.Method != nil && f.Method.SpaceType != "" {
		return f.Method.SpaceType
	}
	if f.SpaceType != "" {
		return f.SpaceType
	}
	return "l2"
}

func (f fieldMapping) engine() string {
	if f.Method != nil && f.Method.Engine != "" {
		return f.Method.Engine
	}
	return "default"
}
