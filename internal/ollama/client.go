// Package ollama is a client for the Ollama generation API.
//
// The client exposes synchronous and streaming completion calls and reports
// backend failures through a small error taxonomy so callers can surface
// unreachable/timeout/bad-status conditions distinctly instead of one
// generic error.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sentinel errors for generation calls.
var (
	// ErrUnreachable indicates the service could not be contacted at all
	// (connection refused, DNS failure).
	ErrUnreachable = errors.New("ollama unreachable")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("ollama request timed out")

	// ErrBadStatus indicates a non-success HTTP status from the service.
	ErrBadStatus = errors.New("ollama returned an error status")

	// ErrMalformedStream indicates a token envelope that could not be
	// decoded while streaming. Fatal for the call; never retried.
	ErrMalformedStream = errors.New("malformed ollama stream")
)

// Config holds configuration for the generation client.
type Config struct {
	// BaseURL is the Ollama server URL, e.g. http://localhost:11434.
	BaseURL string

	// Model is the generation model, e.g. llama3.1:8b.
	Model string

	// Timeout bounds a whole generation call.
	Timeout time.Duration

	// Temperature is the sampling temperature.
	Temperature float64

	// NumCtx is the model context window in tokens.
	NumCtx int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "llama3.1:8b"
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.NumCtx == 0 {
		c.NumCtx = 4096
	}
}

// Client calls the Ollama /api/generate endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a generation client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		logger:     logger,
	}
}

// Model returns the configured generation model name.
func (c *Client) Model() string {
	return c.config.Model
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx"`
}

// envelope is one token-bearing message from the service. The text payload
// may be empty; Done marks stream termination.
type envelope struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Ping probes /api/tags for reachability. A 200 means Ollama itself is
// answering, not merely something listening on the port.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	return nil
}

// Generate issues a non-streaming completion call and returns the full
// response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedStream, err)
	}
	return env.Response, nil
}

// GenerateStream issues a streaming completion call, invoking fn for each
// non-empty token payload. Iteration stops at the first done-flagged
// envelope even if the transport has more buffered data.
//
// Token-envelope decode failures return ErrMalformedStream; an error from fn
// aborts the stream and is returned as-is.
func (c *Client) GenerateStream(ctx context.Context, prompt string, fn func(token string) error) error {
	resp, err := c.post(ctx, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) {
				// Transport closed without a done flag; nothing left to emit.
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return classifyTransportError(ctxErr)
			}
			return fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}
		if env.Response != "" {
			if err := fn(env.Response); err != nil {
				return err
			}
		}
		if env.Done {
			return nil
		}
	}
}

// post sends a generate request and validates the response status.
func (c *Client) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := generateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: stream,
		Options: generateOptions{
			Temperature: c.config.Temperature,
			NumCtx:      c.config.NumCtx,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("generate call failed", zap.Error(err))
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %s", ErrBadStatus, resp.Status, strings.TrimSpace(string(detail)))
	}

	return resp, nil
}

// classifyTransportError maps low-level transport failures onto the client's
// error taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
