package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/itvault-backend/internal/platform/httpx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "text-embedding-3-small", Dimensions: 3})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEmbedRequestShapeAndOrdering(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: want=/v1/embeddings got=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("authorization: got=%q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["model"] != "text-embedding-3-small" {
			t.Fatalf("model: got=%v", body["model"])
		}
		if body["dimensions"] != float64(3) {
			t.Fatalf("dimensions: got=%v", body["dimensions"])
		}
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1,0]},{"index":0,"embedding":[1,0,0]}]}`))
	})

	out, err := c.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len: want=2 got=%d", len(out))
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Fatalf("ordering mismatch: %v", out)
	}
}

func TestEmbedHTTPErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
		tooLong   bool
	}{
		{name: "rate limited", status: 429, body: `{"error":{"code":"rate_limit_exceeded"}}`, retryable: true},
		{name: "server error", status: 503, body: `oops`, retryable: true},
		{name: "unauthorized", status: 401, body: `{"error":{"code":"invalid_api_key"}}`},
		{name: "too long", status: 400, body: `{"error":{"code":"context_length_exceeded","message":"maximum context length is 8192 tokens"}}`, tooLong: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Embed(context.Background(), []string{"x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			var he *HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("expected *HTTPError, got=%T", err)
			}
			if he.StatusCode != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, he.StatusCode)
			}
			if httpx.IsRetryableError(err) != tc.retryable {
				t.Fatalf("retryable: want=%v got=%v", tc.retryable, !tc.retryable)
			}
			if he.IsContextLengthExceeded() != tc.tooLong {
				t.Fatalf("too long: want=%v", tc.tooLong)
			}
		})
	}
}

func TestEmbedMissingIndexIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0,0]}]}`))
	})
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for short response")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
