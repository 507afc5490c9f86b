package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	assetsrepo "github.com/yungbote/itvault-backend/internal/data/repos/assets"
	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	settingsrepo "github.com/yungbote/itvault-backend/internal/data/repos/settings"
	repotest "github.com/yungbote/itvault-backend/internal/data/repos/testutil"
	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/jobs/pipeline/search_index"
	"github.com/yungbote/itvault-backend/internal/jobs/pipeline/search_remove"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/jobs/runtime"
	"github.com/yungbote/itvault-backend/internal/jobs/worker"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
	"github.com/yungbote/itvault-backend/internal/testutil"
)

// stack wires the whole indexing and query path over sqlite and the memory store.
type stack struct {
	ctx      context.Context
	db       *gorm.DB
	entities assetsrepo.EntityRepo
	settings services.SettingsService
	provider *testutil.FakeProvider
	store    *searchindex.MemoryStore
	queue    *queue.MemoryQueue
	worker   *worker.Worker
	indexer  services.SearchIndexer
	ix       *indexing.Indexer
	search   services.SearchService
	reindex  services.ReindexService
}

func newStack(t *testing.T, cfg services.SearchConfig) *stack {
	t.Helper()
	log := logger.Nop()
	db := repotest.SQLite(t)
	s := &stack{ctx: context.Background(), db: db}

	s.entities = assetsrepo.NewEntityRepo(db, log)
	s.settings = services.NewSettingsService(log, settingsrepo.NewSystemSettingRepo(db, log), nil, services.EmbeddingsDefaults{
		APIKey:    "sk-test",
		Model:     "fake-embed",
		Dimension: testutil.FakeDimension,
	})
	s.provider = testutil.NewFakeProvider()
	factory := services.NewEmbeddingProviderFactory(log, s.settings, time.Second).
		WithBuilder(func(services.EmbeddingsConfig) (indexing.EmbeddingProvider, error) { return s.provider, nil })
	s.store = searchindex.NewMemoryStore(log, searchindex.DefaultMemoryConfig(testutil.FakeDimension))
	entitySvc := services.NewEntityService(log, s.entities)

	ix, err := indexing.NewIndexer(indexing.IndexerDeps{
		Log:       log,
		Flag:      s.settings,
		Entities:  entitySvc,
		Providers: factory,
		Store:     s.store,
		Retry:     indexing.RetryPolicy{Attempts: 2, Base: time.Millisecond, Max: time.Millisecond, CallTimeout: time.Second},
	})
	require.NoError(t, err)
	s.ix = ix

	s.queue = queue.NewMemoryQueue(log, 64, queue.Options{MaxAttempts: 2, RetryDelay: 0, Wait: 5 * time.Millisecond})
	t.Cleanup(func() { _ = s.queue.Close() })
	reg := runtime.NewRegistry()
	require.NoError(t, reg.Register(search_index.New(log, ix)))
	require.NoError(t, reg.Register(search_remove.New(log, ix)))
	s.worker = worker.NewWorker(log, s.queue, reg, worker.Config{Concurrency: 1})

	s.indexer = services.NewSearchIndexer(log, s.queue, s.settings, time.Second)
	cache, err := services.NewQueryEmbeddingCache(16)
	require.NoError(t, err)
	s.search = services.NewSearchService(log, cfg, factory, s.store, entitySvc, s.settings, cache)
	s.reindex = services.NewReindexService(log, entitySvc, s.store, s.queue, ix)
	return s
}

// drain processes queued jobs synchronously until the queue is empty.
func (s *stack) drain(t *testing.T) int {
	t.Helper()
	n := 0
	for {
		d, err := s.queue.Dequeue(s.ctx)
		require.NoError(t, err)
		if d == nil {
			return n
		}
		s.worker.ProcessOne(s.ctx, d)
		n++
	}
}

func (s *stack) org(t *testing.T, name string) *assets.Organization {
	t.Helper()
	o := &assets.Organization{Name: name}
	require.NoError(t, s.entities.CreateOrganization(dbctx.Context{Ctx: s.ctx}, o))
	return o
}

// save persists e and enqueues its index job, as a CRUD service would.
func (s *stack) save(t *testing.T, e assets.Entity) {
	t.Helper()
	require.NoError(t, s.entities.Save(dbctx.Context{Ctx: s.ctx}, e))
	s.indexer.EnqueueIndex(s.ctx, e.SearchEntityType(), e.GetID(), e.GetOrganizationID())
}

func document(org uuid.UUID, name, content string) *assets.Document {
	return &assets.Document{Base: assets.Base{OrganizationID: org, Name: name, Enabled: true}, Content: content}
}
