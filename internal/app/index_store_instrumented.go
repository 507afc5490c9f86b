package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/data/db"
	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/observability"
)

type instrumentedIndexStore struct {
	backend string
	inner   searchindex.IndexStore
	metrics *observability.Metrics
}

func instrumentIndexStore(backend string, inner searchindex.IndexStore, m *observability.Metrics) searchindex.IndexStore {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedIndexStore{backend: backend, inner: inner, metrics: m}
}

func (s *instrumentedIndexStore) Upsert(ctx context.Context, entry *search.IndexEntry) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, entry)
	s.observe("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedIndexStore) GetByKey(ctx context.Context, t search.EntityType, id uuid.UUID) (*search.IndexEntry, error) {
	start := time.Now()
	out, err := s.inner.GetByKey(ctx, t, id)
	s.observe("get", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndexStore) Delete(ctx context.Context, t search.EntityType, id uuid.UUID) error {
	start := time.Now()
	err := s.inner.Delete(ctx, t, id)
	s.observe("delete", err, time.Since(start))
	return err
}

func (s *instrumentedIndexStore) SearchNearest(ctx context.Context, query []float32, q searchindex.NearestQuery) ([]search.Hit, error) {
	start := time.Now()
	out, err := s.inner.SearchNearest(ctx, query, q)
	s.observe("search_nearest", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndexStore) BulkDelete(ctx context.Context, t search.EntityType, ids []uuid.UUID) (int64, error) {
	start := time.Now()
	n, err := s.inner.BulkDelete(ctx, t, ids)
	s.observe("bulk_delete", err, time.Since(start))
	return n, err
}

func (s *instrumentedIndexStore) ListKeys(ctx context.Context, t search.EntityType) ([]uuid.UUID, error) {
	start := time.Now()
	out, err := s.inner.ListKeys(ctx, t)
	s.observe("list_keys", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndexStore) Count(ctx context.Context, q searchindex.NearestQuery) (int64, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx, q)
	s.observe("count", err, time.Since(start))
	return n, err
}

func (s *instrumentedIndexStore) ClearHashes(ctx context.Context, types []search.EntityType) (int64, error) {
	start := time.Now()
	n, err := s.inner.ClearHashes(ctx, types)
	s.observe("clear_hashes", err, time.Since(start))
	return n, err
}

func (s *instrumentedIndexStore) observe(operation string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = db.Classify(err)
	}
	s.metrics.ObserveIndexStore(s.backend, operation, status, dur)
}
