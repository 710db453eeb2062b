package opensearch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/opensearch-project/opensearch-go/v4"
)

type SearchError struct {
	Type       types.ErrorType `json:"type"`
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	Operation  string          `json:"operation,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	cause      error
}

func (e *SearchError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Operation != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Type, e.Operation)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (HTTP %d)", prefix, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.cause
}

func NewSearchError(errType types.ErrorType, message string) *SearchError {
	return &SearchError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ClassifyHTTPError maps an OpenSearch status code to a typed error.
func ClassifyHTTPError(statusCode int, body string) *SearchError {
	err := &SearchError{StatusCode: statusCode, Timestamp: time.Now()}

	switch statusCode {
	case http.StatusUnauthorized:
		err.Type = types.ErrorTypeAuthentication
		err.Message = "authentication failed"
		err.Suggestion = "check the OpenSearch credentials or AWS credentials used for signing"
	case http.StatusForbidden:
		err.Type = types.ErrorTypeAuthentication
		err.Message = "access denied"
		err.Suggestion = "check that the IAM role or user may read the index"
	case http.StatusNotFound:
		err.Type = types.ErrorTypeNotFound
		err.Message = "index or endpoint not found"
		err.Suggestion = "check OPENSEARCH_ENDPOINT and OPENSEARCH_INDEX"
	case http.StatusBadRequest:
		err.Type = types.ErrorTypeOpenSearchQuery
		err.Message = fmt.Sprintf("query rejected: %s", truncateBody(body))
		err.Suggestion = "check that the index mapping has the expected text and knn_vector fields"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		err.Type = types.ErrorTypeNetworkTimeout
		err.Message = "request timed out"
	case http.StatusTooManyRequests:
		err.Type = types.ErrorTypeRateLimit
		err.Message = "rate limit reached"
		err.Suggestion = "lower OPENSEARCH_RATE_LIMIT"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		err.Type = types.ErrorTypeOpenSearchConnection
		err.Message = "OpenSearch server error"
		err.Suggestion = "check the cluster health"
	default:
		err.Type = types.ErrorTypeUnknown
		err.Message = fmt.Sprintf("unexpected HTTP error: %s", truncateBody(body))
	}

	return err
}

// ClassifyConnectionError turns a transport or client error into a typed error.
func ClassifyConnectionError(err error) *SearchError {
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return searchErr
	}

	var structErr *opensearch.StructError
	if errors.As(err, &structErr) {
		classified := ClassifyHTTPError(structErr.Status, structErr.Err.Reason)
		classified.cause = err
		return classified
	}

	var stringErr *opensearch.StringError
	if errors.As(err, &stringErr) {
		classified := ClassifyHTTPError(stringErr.Status, stringErr.Err)
		classified.cause = err
		return classified
	}

	errMsg := err.Error()
	classified := &SearchError{Timestamp: time.Now(), cause: err}

	switch {
	case strings.Contains(errMsg, "context deadline exceeded"), strings.Contains(errMsg, "timeout"):
		classified.Type = types.ErrorTypeNetworkTimeout
		classified.Message = "connection to OpenSearch timed out"
		classified.Suggestion = "check network access to the endpoint or raise OPENSEARCH_REQUEST_TIMEOUT"
	case strings.Contains(errMsg, "connection refused"):
		classified.Type = types.ErrorTypeOpenSearchConnection
		classified.Message = "connection to OpenSearch refused"
		classified.Suggestion = "check the endpoint URL and port"
	case strings.Contains(errMsg, "no such host"):
		classified.Type = types.ErrorTypeOpenSearchConnection
		classified.Message = "OpenSearch host not found"
		classified.Suggestion = "check the endpoint host name"
	default:
		classified.Type = types.ErrorTypeUnknown
		classified.Message = fmt.Sprintf("connection error: %v", err)
	}

	return classified
}

func truncateBody(body string) string {
	const maxLen = 300
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
