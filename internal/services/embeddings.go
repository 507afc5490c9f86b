package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/httpx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/platform/openai"
)

// EmbeddingsConfigSource is the slice of SettingsService the factory reads.
type EmbeddingsConfigSource interface {
	GetEmbeddingsConfig(ctx context.Context) (EmbeddingsConfig, error)
}

// EmbeddingProviderFactory builds providers from the current configuration.
// The last provider is reused only while the configuration fingerprint is unchanged.
type EmbeddingProviderFactory struct {
	log      *logger.Logger
	settings EmbeddingsConfigSource
	timeout  time.Duration
	http     *http.Client
	build    func(cfg EmbeddingsConfig) (indexing.EmbeddingProvider, error)

	mu          sync.Mutex
	fingerprint string
	current     indexing.EmbeddingProvider
}

func NewEmbeddingProviderFactory(log *logger.Logger, settings EmbeddingsConfigSource, callTimeout time.Duration) *EmbeddingProviderFactory {
	f := &EmbeddingProviderFactory{
		log:      log.With("service", "EmbeddingProviderFactory"),
		settings: settings,
		timeout:  callTimeout,
	}
	f.build = f.buildOpenAI
	return f
}

// WithBuilder swaps the provider constructor. Tests use it to avoid the network.
func (f *EmbeddingProviderFactory) WithBuilder(build func(cfg EmbeddingsConfig) (indexing.EmbeddingProvider, error)) *EmbeddingProviderFactory {
	f.build = build
	return f
}

// WithHTTPClient sets the transport used by built providers.
func (f *EmbeddingProviderFactory) WithHTTPClient(c *http.Client) *EmbeddingProviderFactory {
	f.http = c
	return f
}

func (f *EmbeddingProviderFactory) Provider(ctx context.Context) (indexing.EmbeddingProvider, error) {
	cfg, err := f.settings.GetEmbeddingsConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("embeddings config: %w", err)
	}
	if !cfg.Configured() {
		return nil, indexing.ErrEmbeddingsNotConfigured
	}
	fp := cfg.Fingerprint()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil && f.fingerprint == fp {
		return f.current, nil
	}
	p, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	if f.current != nil {
		f.log.Info("embeddings configuration changed; rebuilding provider", "model", cfg.Model, "source", cfg.Source)
	}
	f.current, f.fingerprint = p, fp
	return p, nil
}

func (f *EmbeddingProviderFactory) buildOpenAI(cfg EmbeddingsConfig) (indexing.EmbeddingProvider, error) {
	c, err := openai.NewClient(f.log, openai.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimension,
		Timeout:    f.timeout,
		HTTPClient: f.http,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", indexing.ErrEmbeddingsNotConfigured, err)
	}
	return NewOpenAIProvider(c, cfg.Dimension, cfg.MaxInputChars), nil
}

// OpenAIProvider adapts the embeddings client to the indexing provider contract.
type OpenAIProvider struct {
	client        openai.Client
	dimension     int
	maxInputChars int
}

func NewOpenAIProvider(c openai.Client, dimension, maxInputChars int) *OpenAIProvider {
	return &OpenAIProvider{client: c, dimension: dimension, maxInputChars: maxInputChars}
}

func (p *OpenAIProvider) Model() string  { return p.client.Model() }
func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.maxInputChars > 0 && utf8.RuneCountInString(text) > p.maxInputChars {
		return nil, fmt.Errorf("%w: %d chars, limit %d", indexing.ErrTextTooLong, utf8.RuneCountInString(text), p.maxInputChars)
	}
	vecs, err := p.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, classifyProviderError(ctx, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for 1 input", indexing.ErrProviderTransient, len(vecs))
	}
	return vecs[0], nil
}

// classifyProviderError maps transport failures onto the indexing sentinels.
func classifyProviderError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return err
	}
	var he *openai.HTTPError
	if errors.As(err, &he) && he.IsContextLengthExceeded() {
		return fmt.Errorf("%w: %w", indexing.ErrTextTooLong, err)
	}
	status := httpx.StatusOf(err)
	switch {
	case httpx.IsAuthHTTPStatus(status):
		return fmt.Errorf("%w: %w", indexing.ErrProviderAuth, err)
	case httpx.IsRetryableError(err):
		return fmt.Errorf("%w: %w", indexing.ErrProviderTransient, err)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %w", indexing.ErrProviderInvalid, err)
	default:
		// Undecodable bodies and unexpected statuses.
		return fmt.Errorf("%w: %w", indexing.ErrProviderTransient, err)
	}
}
