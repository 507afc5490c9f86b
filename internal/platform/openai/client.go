package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

const (
	DefaultBaseURL    = "https://api.openai.com"
	DefaultEmbedModel = "text-embedding-3-small"
)

// Client is the embeddings surface of the OpenAI API (or any compatible endpoint).
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewClient builds a client that makes exactly one HTTP attempt per call.
// Callers own retry policy.
func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing embeddings api key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultEmbedModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: cfg.Dimensions,
		httpClient: httpClient,
	}, nil
}

func (c *client) Model() string { return c.model }

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// ErrorCode returns the "error.code" field of the response body, if any.
func (e *HTTPError) ErrorCode() string {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &env); err != nil {
		return ""
	}
	if env.Error.Code != "" {
		return env.Error.Code
	}
	return env.Error.Type
}

// IsContextLengthExceeded reports whether the provider refused the input for its size.
func (e *HTTPError) IsContextLengthExceeded() bool {
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	if e.ErrorCode() == "context_length_exceeded" {
		return true
	}
	low := strings.ToLower(e.Body)
	return strings.Contains(low, "maximum context length") || strings.Contains(low, "too many tokens")
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}
	return raw, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	start := time.Now()
	raw, err := c.doOnce(ctx, http.MethodPost, "/v1/embeddings", embeddingsRequest{
		Model:      c.model,
		Input:      clean,
		Dimensions: c.dimensions,
	})
	if m := observability.Current(); m != nil {
		m.ObserveEmbeddingRequest(c.model, statusLabel(err), time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	var resp embeddingsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai decode error: %w", err)
	}

	out := make([][]float32, len(clean))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("openai embeddings response missing index %d of %d", i, len(out))
		}
	}
	return out, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if he, ok := err.(*HTTPError); ok {
		return fmt.Sprintf("%d", he.StatusCode)
	}
	return "error"
}
