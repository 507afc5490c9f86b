package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/apierr"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

var (
	ErrInvalidQuery          = apierr.New(http.StatusBadRequest, "invalid_query", errors.New("invalid search query"))
	ErrSearchFailed          = apierr.New(http.StatusBadGateway, "search_failed", errors.New("search embedding failed"))
	ErrSearchUnavailable     = apierr.New(http.StatusServiceUnavailable, "search_unavailable", errors.New("search is not configured"))
	ErrOrganizationForbidden = apierr.New(http.StatusForbidden, "organization_forbidden", errors.New("organization not visible to caller"))
)

// CallerScope is the set of organizations a caller may see.
type CallerScope struct {
	OrganizationIDs []uuid.UUID
	PlatformWide    bool
}

func (s CallerScope) allows(org uuid.UUID) bool {
	if s.PlatformWide {
		return true
	}
	for _, id := range s.OrganizationIDs {
		if id == org {
			return true
		}
	}
	return false
}

type SearchRequest struct {
	Query          string
	OrganizationID *uuid.UUID
	Limit          int
}

type SearchConfig struct {
	DefaultLimit  int
	MaxLimit      int
	MaxQueryChars int
	EmbedTimeout  time.Duration
	SnippetLength int
	// HideDisabled drops disabled entities instead of flagging them.
	HideDisabled bool
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultLimit:  10,
		MaxLimit:      50,
		MaxQueryChars: 500,
		EmbedTimeout:  10 * time.Second,
		SnippetLength: indexing.DefaultSnippetLength,
	}
}

type SearchService interface {
	Search(ctx context.Context, scope CallerScope, req SearchRequest) (*search.Response, error)
	Status(ctx context.Context) (*search.Status, error)
}

type searchService struct {
	log       *logger.Logger
	cfg       SearchConfig
	providers indexing.ProviderSource
	store     searchindex.IndexStore
	resolver  EntityResolver
	settings  SettingsService
	cache     *QueryEmbeddingCache
}

func NewSearchService(
	log *logger.Logger,
	cfg SearchConfig,
	providers indexing.ProviderSource,
	store searchindex.IndexStore,
	resolver EntityResolver,
	settings SettingsService,
	cache *QueryEmbeddingCache,
) SearchService {
	def := DefaultSearchConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.MaxQueryChars <= 0 {
		cfg.MaxQueryChars = def.MaxQueryChars
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = def.SnippetLength
	}
	return &searchService{
		log:       log.With("service", "SearchService"),
		cfg:       cfg,
		providers: providers,
		store:     store,
		resolver:  resolver,
		settings:  settings,
		cache:     cache,
	}
}

func (s *searchService) Search(ctx context.Context, scope CallerScope, req SearchRequest) (resp *search.Response, err error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "search.query")
	defer func() {
		n := 0
		if resp != nil {
			n = len(resp.Results)
		}
		status := "ok"
		if err != nil {
			status = apierr.As(err).Code
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("search.results", n))
		span.End()
		observability.Current().ObserveSearch(status, time.Since(start), n)
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(query) > s.cfg.MaxQueryChars {
		return nil, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidQuery, s.cfg.MaxQueryChars)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	nq := searchindex.NearestQuery{Limit: limit}
	switch {
	case req.OrganizationID != nil && *req.OrganizationID != uuid.Nil:
		if !scope.allows(*req.OrganizationID) {
			return nil, ErrOrganizationForbidden
		}
		nq.OrganizationIDs = []uuid.UUID{*req.OrganizationID}
	case scope.PlatformWide:
		nq.AllOrganizations = true
	default:
		nq.OrganizationIDs = scope.OrganizationIDs
	}
	resp = &search.Response{Query: query, Results: []search.Result{}}
	if !nq.AllOrganizations && len(nq.OrganizationIDs) == 0 {
		return resp, nil
	}

	vec, tag, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	// Vectors from another model are not comparable; those rows wait for reindex.
	nq.ModelTag = tag

	// Overfetch so hits that no longer resolve do not shrink the page.
	nq.Limit = min(limit*2, 2*s.cfg.MaxLimit)
	hits, err := s.store.SearchNearest(ctx, vec, nq)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}

	for _, h := range hits {
		if len(resp.Results) >= limit {
			break
		}
		e := h.Entry
		r, err := s.resolver.Resolve(ctx, e.OrganizationID, e.EntityType, e.EntityID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s %s: %w", e.EntityType, e.EntityID, err)
		}
		if r == nil {
			s.log.Debug("dropping hit without live entity", "entity_type", e.EntityType, "entity_id", e.EntityID)
			continue
		}
		if !r.Enabled && s.cfg.HideDisabled {
			continue
		}
		resp.Results = append(resp.Results, search.Result{
			EntityType:       e.EntityType,
			EntityID:         e.EntityID,
			OrganizationID:   e.OrganizationID,
			OrganizationName: r.OrganizationName,
			Name:             r.Name,
			Snippet:          indexing.Snippet(e.SearchableText, query, s.cfg.SnippetLength),
			Score:            h.Score,
			IsEnabled:        r.Enabled,
		})
	}
	return resp, nil
}

// embedQuery makes one provider attempt under EmbedTimeout and returns the
// model tag the vector belongs to.
func (s *searchService) embedQuery(ctx context.Context, query string) ([]float32, string, error) {
	p, err := s.providers.Provider(ctx)
	if errors.Is(err, indexing.ErrEmbeddingsNotConfigured) {
		return nil, "", fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()
	vec, err := s.cache.Embed(ectx, p, query)
	switch {
	case errors.Is(err, indexing.ErrTextTooLong):
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	case errors.Is(err, indexing.ErrProviderAuth):
		s.log.WithContext(ctx).Error("embedding provider rejected credentials", "error", err)
		return nil, "", fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	case err != nil:
		s.log.WithContext(ctx).Warn("query embedding failed", "error", err)
		return nil, "", fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	return vec, indexing.ModelTag(p.Model(), p.Dimension()), nil
}

func (s *searchService) Status(ctx context.Context) (*search.Status, error) {
	n, err := s.store.Count(ctx, searchindex.NearestQuery{AllOrganizations: true})
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	cfg, err := s.settings.GetEmbeddingsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &search.Status{
		IndexingEnabled: s.settings.IsIndexingEnabled(ctx),
		Entries:         n,
		Model:           cfg.Model,
		Dimension:       cfg.Dimension,
		Configured:      cfg.Configured(),
	}, nil
}
