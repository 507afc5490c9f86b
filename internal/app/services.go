package app

import (
	"fmt"

	"github.com/yungbote/itvault-backend/internal/jobs/pipeline/search_index"
	"github.com/yungbote/itvault-backend/internal/jobs/pipeline/search_remove"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	jobruntime "github.com/yungbote/itvault-backend/internal/jobs/runtime"
	"github.com/yungbote/itvault-backend/internal/jobs/worker"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

type Services struct {
	Settings  services.SettingsService
	Entities  *services.EntityService
	Providers *services.EmbeddingProviderFactory
	Indexer   *indexing.Indexer
	Enqueuer  services.SearchIndexer
	Search    services.SearchService
	Reindex   services.ReindexService
	Auth      services.AuthService

	Queue       queue.Queue
	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, q queue.Queue) (Services, error) {
	log.Info("Wiring services...")

	sealer, err := services.NewSealer(cfg.SettingsSecret)
	if err != nil {
		return Services{}, fmt.Errorf("init sealer: %w", err)
	}
	if sealer == nil {
		log.Warn("SETTINGS_SECRET_KEY unset; embeddings API key can only come from the environment")
	}
	settings := services.NewSettingsService(log, repos.SystemSetting, sealer, cfg.Embeddings)
	entities := services.NewEntityService(log, repos.Entity)
	providers := services.NewEmbeddingProviderFactory(log, settings, cfg.IndexRetry.CallTimeout)

	ix, err := indexing.NewIndexer(indexing.IndexerDeps{
		Log:       log,
		Flag:      settings,
		Entities:  entities,
		Providers: providers,
		Store:     repos.IndexStore,
		Retry:     cfg.IndexRetry,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init indexer: %w", err)
	}

	cache, err := services.NewQueryEmbeddingCache(cfg.QueryCacheSize)
	if err != nil {
		return Services{}, fmt.Errorf("init query cache: %w", err)
	}
	search := services.NewSearchService(log, cfg.Search, providers, repos.IndexStore, entities, settings, cache)
	reindex := services.NewReindexService(log, entities, repos.IndexStore, q, ix)
	enqueuer := services.NewSearchIndexer(log, q, settings, cfg.EnqueueTimeout)

	var auth services.AuthService
	if cfg.JWTSecretKey != "" {
		auth, err = services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer)
		if err != nil {
			return Services{}, fmt.Errorf("init auth: %w", err)
		}
	}

	registry := jobruntime.NewRegistry()
	if err := registry.Register(search_index.New(log, ix)); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", "search_index", err)
	}
	if err := registry.Register(search_remove.New(log, ix)); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", "search_remove", err)
	}
	jobWorker := worker.NewWorker(log, q, registry, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
	})

	return Services{
		Settings:    settings,
		Entities:    entities,
		Providers:   providers,
		Indexer:     ix,
		Enqueuer:    enqueuer,
		Search:      search,
		Reindex:     reindex,
		Auth:        auth,
		Queue:       q,
		JobRegistry: registry,
		JobWorker:   jobWorker,
	}, nil
}
