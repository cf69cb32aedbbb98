// Package genhttp implements ports.Generator over a streaming HTTP
// backend. The backend accepts a JSON request and answers with a
// newline-delimited JSON edit stream.
package genhttp

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

	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/ports"
)

// DefaultTimeout caps one generation round end to end, including the
// time spent reading the stream.
const DefaultTimeout = 5 * time.Minute

// Client talks to a generation backend over HTTP.
type Client struct {
	baseURL string
	path    string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPath overrides the generation endpoint path.
func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// WithAPIKey sets a bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    "/v1/generate",
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the JSON error envelope backends commonly return on
// non-2xx responses. Either field may carry the message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Generate posts the request and hands back the live response body as
// the edit stream. The caller owns closing the returned reader.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("posting generation request", "url", c.baseURL+c.path, "bytes", len(payload))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling generation backend: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}
	return resp.Body, nil
}

// statusError extracts a useful message from a non-2xx response body.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		if msg != "" {
			return fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, msg)
		}
	}
	if len(raw) > 0 {
		return fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return fmt.Errorf("generation backend returned %d", resp.StatusCode)
}
