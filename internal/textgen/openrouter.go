// Package textgen turns natural-language requests into SQL through an
// OpenRouter-compatible chat-completions API.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dbunify/internal/domain"
	"dbunify/internal/sqltext"
)

var _ domain.SQLGenerator = (*Client)(nil)

// Defaults used when Options leaves a field empty.
const (
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel    = "mistralai/devstral-small:free"
)

const styleInstruction = "Use SQL keywords in UPPERCASE, table and column names in lowercase, " +
	"use aliases where helpful, and format the answer as a single-line SQL query with clear spacing."

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	Endpoint   string
	Timeout    time.Duration // per request; 0 means 60s
	RPS        float64       // client-side rate limit; 0 disables limiting
	Burst      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls a chat-completions endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// APIError is a non-2xx response from the completion service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("text generation failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("text generation: API key is required")
	}
	c := &Client{
		http:     opts.HTTPClient,
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		logger:   opts.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateSQL asks the model for a query answering prompt over schema. The
// returned text has already been through sqltext.CleanGenerated; it is still
// untrusted SQL.
func (c *Client) GenerateSQL(ctx context.Context, prompt string, schema []domain.TableDescriptor) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrValidation("prompt is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("text generation rate limit: %w", err)
		}
	}

	system, err := systemPrompt(schema)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: "Convert this to SQL (return only the SQL query, no explanations):\n\n" + prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: out.Error.Message}
	}
	if len(out.Choices) == 0 {
		return "", errors.New("text generation returned no choices")
	}

	sql := sqltext.CleanGenerated(out.Choices[0].Message.Content)
	if sql == "" {
		return "", errors.New("text generation returned no SQL")
	}
	c.logger.Debug("sql generated", "model", c.model, "elapsed", time.Since(start), "tables", len(schema))
	return sql, nil
}

func systemPrompt(schema []domain.TableDescriptor) (string, error) {
	if len(schema) == 0 {
		return "You are a SQL expert. Convert this natural language request into a clean, one-line SQL query. " +
			styleInstruction, nil
	}
	raw, err := json.Marshal(struct {
		Tables []domain.TableDescriptor `json:"tables"`
	}{Tables: schema})
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return "You are a SQL expert. Convert this natural language request into a clean, one-line SQL query " +
		"for the following schema: " + string(raw) + ". " + styleInstruction, nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body chatResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != nil && body.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error.Message}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
