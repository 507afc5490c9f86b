package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// SearchIndexer is what CRUD services call after a mutation commits.
// Calls never fail the caller: enqueue errors are logged and dropped.
type SearchIndexer interface {
	EnqueueIndex(ctx context.Context, t search.EntityType, id, orgID uuid.UUID)
	EnqueueRemoval(ctx context.Context, t search.EntityType, id uuid.UUID)
}

type searchIndexer struct {
	log     *logger.Logger
	queue   queue.Queue
	flag    indexing.IndexingFlag
	timeout time.Duration
}

func NewSearchIndexer(log *logger.Logger, q queue.Queue, flag indexing.IndexingFlag, enqueueTimeout time.Duration) SearchIndexer {
	if enqueueTimeout <= 0 {
		enqueueTimeout = 2 * time.Second
	}
	return &searchIndexer{
		log:     log.With("service", "SearchIndexer"),
		queue:   q,
		flag:    flag,
		timeout: enqueueTimeout,
	}
}

func (s *searchIndexer) EnqueueIndex(ctx context.Context, t search.EntityType, id, orgID uuid.UUID) {
	if !s.flag.IsIndexingEnabled(ctx) {
		return
	}
	s.enqueue(ctx, search.NewIndexJob(t, id, orgID))
}

// EnqueueRemoval ignores the indexing flag; rows of deleted entities must go.
func (s *searchIndexer) EnqueueRemoval(ctx context.Context, t search.EntityType, id uuid.UUID) {
	s.enqueue(ctx, search.NewRemoveJob(t, id))
}

func (s *searchIndexer) enqueue(ctx context.Context, job search.IndexJob) {
	// Request cancellation must not cancel an enqueue for a committed mutation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Error("enqueue search job failed", "job", job.String(), "backend", s.queue.Backend(), "error", err)
	}
}
