package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/quotaguard/pkg/throttle"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Service is the service type reported in errors.
	Service string

	// BaseURL is prepended to every request path.
	BaseURL string

	// Headers are sent with every request, e.g. an API key header.
	Headers map[string]string

	// Timeout bounds a single request.
	// Default: 30s
	Timeout time.Duration
}

// Client performs JSON requests against a remote service and reports
// failures as RemoteError, RateLimitError or ItemLimitError. It never
// retries; wrap calls in throttle.Invoke for that.
type Client struct {
	config     ClientConfig
	client     *http.Client
	classifier *Classifier
	logger     *slog.Logger
}

// NewClient creates a Client. A nil classifier uses the default codes.
func NewClient(cfg ClientConfig, classifier *Classifier) (*Client, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if classifier == nil {
		classifier = NewClassifier(ClassifierConfig{})
	}

	return &Client{
		config: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			Timeout: cfg.Timeout,
		},
		classifier: classifier,
		logger:     slog.Default().With("component", "remote", "service_type", cfg.Service),
	}, nil
}

// Do sends one request and returns the response body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request", "method", method, "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RemoteError{
			Service: c.config.Service,
			Message: "request failed",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{
			Service:    c.config.Service,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response",
			Cause:      err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	return nil, c.responseError(resp, respBody)
}

// DoJSON marshals reqBody, sends the request and decodes a 2xx response into
// respBody. Either body may be nil.
func (c *Client) DoJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	raw, err := c.Do(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if respBody != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return &RemoteError{
				Service: c.config.Service,
				Message: "failed to unmarshal response",
				Cause:   err,
			}
		}
	}
	return nil
}

// errorEnvelope is the common {"error": {"code": ..., "message": ...}} body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) responseError(resp *http.Response, body []byte) error {
	code, message := "", strings.TrimSpace(string(body))

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		code = envelope.Error.Code
		if envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
	}

	base := &RemoteError{
		Service:    c.config.Service,
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    message,
	}

	switch c.classifier.Classify(base) {
	case throttle.KindRateLimited:
		return &RateLimitError{
			Service:    c.config.Service,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Code:       code,
			Message:    message,
		}
	case throttle.KindStructuralInvalid:
		return &ItemLimitError{
			Service: c.config.Service,
			Code:    code,
			Message: message,
		}
	default:
		return base
	}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
