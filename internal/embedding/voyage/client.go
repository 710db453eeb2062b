package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
)

const (
	DefaultAPIURL = "https://api.voyageai.com/v1/embeddings"
	DefaultModel  = "voyage-3-large"
	// voyage-multilingual-2 and the voyage-3 family default to 1024
	DefaultDimension = 1024
)

type Config struct {
	APIKey    string
	APIURL    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// Client embeds queries with the Voyage AI embeddings endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
}

type embedRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// GenerateEmbedding embeds text as a retrieval query. Only the default
// dimension is requested implicitly; others are sent as output_dimension.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := embedRequest{
		Input:     []string{text},
		Model:     c.config.Model,
		InputType: "query",
	}
	if c.config.Dimension > 0 && c.config.Dimension != DefaultDimension {
		request.OutputDimension = c.config.Dimension
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp.StatusCode, errors.New(errorMessage(payload)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data")
	}
	return parsed.Data[0].Embedding, nil
}

func errorMessage(payload []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(payload, &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return string(payload)
}

func classifyError(status int, err error) error {
	backendErr := &types.BackendError{Provider: "voyage", Type: types.ErrorTypeEmbedding, Err: err}
	if status != 0 {
		backendErr.Code = strconv.Itoa(status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		backendErr.Type = types.ErrorTypeAuthentication
	case http.StatusTooManyRequests:
		backendErr.Type = types.ErrorTypeRateLimit
	case http.StatusNotFound:
		backendErr.Type = types.ErrorTypeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		backendErr.Type = types.ErrorTypeValidation
	case 0:
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			backendErr.Type = types.ErrorTypeNetworkTimeout
		}
	}
	return backendErr
}
