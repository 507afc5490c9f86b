package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type ReindexOptions struct {
	// Types limits the run; empty means every entity type.
	Types []search.EntityType
	// Force clears stored hashes so every entry is re-embedded.
	Force bool
	// Inline indexes in this process instead of enqueueing.
	Inline      bool
	Concurrency int
}

type ReindexTypeReport struct {
	Live     int            `json:"live"`
	Enqueued int            `json:"enqueued"`
	Pruned   int64          `json:"pruned"`
	Outcomes map[string]int `json:"outcomes,omitempty"`
	Failed   int            `json:"failed"`
}

type ReindexReport struct {
	Types   map[search.EntityType]*ReindexTypeReport `json:"types"`
	Cleared int64                                    `json:"cleared"`
}

type ReindexService interface {
	Reindex(ctx context.Context, opts ReindexOptions) (*ReindexReport, error)
}

// InlineIndexer is the indexing surface used by inline reindex runs.
type InlineIndexer interface {
	Index(ctx context.Context, t search.EntityType, id uuid.UUID) (indexing.Outcome, error)
}

type reindexService struct {
	log      *logger.Logger
	entities EntitySource
	store    searchindex.IndexStore
	queue    queue.Queue
	indexer  InlineIndexer
}

func NewReindexService(log *logger.Logger, entities EntitySource, store searchindex.IndexStore, q queue.Queue, indexer InlineIndexer) ReindexService {
	return &reindexService{
		log:      log.With("service", "ReindexService"),
		entities: entities,
		store:    store,
		queue:    q,
		indexer:  indexer,
	}
}

func (s *reindexService) Reindex(ctx context.Context, opts ReindexOptions) (*ReindexReport, error) {
	types := opts.Types
	if len(types) == 0 {
		types = search.AllEntityTypes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Inline && s.indexer == nil {
		return nil, fmt.Errorf("inline reindex requires an indexer")
	}
	if !opts.Inline && s.queue == nil {
		return nil, fmt.Errorf("queued reindex requires a queue")
	}

	report := &ReindexReport{Types: map[search.EntityType]*ReindexTypeReport{}}
	if opts.Force {
		n, err := s.store.ClearHashes(ctx, opts.Types)
		if err != nil {
			return nil, fmt.Errorf("clear hashes: %w", err)
		}
		report.Cleared = n
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		g.Go(func() error {
			tr, err := s.reindexType(gctx, t, opts)
			if err != nil {
				return fmt.Errorf("reindex %s: %w", t, err)
			}
			mu.Lock()
			report.Types[t] = tr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	s.log.Info("reindex finished", "types", len(types), "force", opts.Force, "inline", opts.Inline, "cleared", report.Cleared)
	return report, nil
}

func (s *reindexService) reindexType(ctx context.Context, t search.EntityType, opts ReindexOptions) (*ReindexTypeReport, error) {
	live, err := s.entities.ListIDs(ctx, t, true)
	if err != nil {
		return nil, fmt.Errorf("list live ids: %w", err)
	}
	indexed, err := s.store.ListKeys(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list indexed ids: %w", err)
	}
	tr := &ReindexTypeReport{Live: len(live), Outcomes: map[string]int{}}

	liveSet := make(map[uuid.UUID]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}
	var stale []uuid.UUID
	for _, id := range indexed {
		if _, ok := liveSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		n, err := s.store.BulkDelete(ctx, t, stale)
		if err != nil {
			return nil, fmt.Errorf("prune stale rows: %w", err)
		}
		tr.Pruned = n
	}

	if !opts.Inline {
		for _, id := range live {
			if err := s.queue.Enqueue(ctx, search.NewIndexJob(t, id, uuid.Nil)); err != nil {
				s.log.Warn("reindex enqueue failed", "entity_type", t, "entity_id", id, "error", err)
				tr.Failed++
				continue
			}
			tr.Enqueued++
		}
		return tr, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, id := range live {
		g.Go(func() error {
			out, err := s.indexer.Index(gctx, t, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("inline index failed", "entity_type", t, "entity_id", id, "error", err)
				tr.Failed++
				return nil
			}
			tr.Outcomes[string(out)]++
			return nil
		})
	}
	_ = g.Wait()
	return tr, ctx.Err()
}
