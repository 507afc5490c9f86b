package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/data/db"
	httpserver "github.com/yungbote/itvault-backend/internal/http"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// Options selects which surfaces a process needs.
type Options struct {
	// HTTP builds the router and requires JWT_SECRET_KEY.
	HTTP bool
	// Component names the process in logs and traces.
	Component string
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Router   *gin.Engine
	Metrics  *observability.Metrics

	dbService    *db.Service
	server       *httpserver.Server
	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, opts Options) (*App, error) {
	log, err := logger.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if opts.Component != "" {
		log = log.With("component", opts.Component)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.HTTP && cfg.JWTSecretKey == "" {
		log.Sync()
		return nil, errors.New("JWT_SECRET_KEY is required to serve the API")
	}

	a := &App{Log: log, Cfg: cfg}
	a.Metrics = observability.Init(log)
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	a.dbService, err = db.NewService(log, cfg.DB)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = a.dbService.DB()
	if err := db.AutoMigrateAll(a.DB, db.MigrateOptions{Dimension: cfg.EmbeddingDimension, IVFFlatLists: cfg.IVFFlatLists}); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	a.Clients, err = wireClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	store, _, err := buildIndexStore(log, a.DB, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Repos = wireRepos(a.DB, log, store)

	q, err := buildQueue(log, cfg, a.Clients, a.Repos)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}
	a.Services, err = wireServices(log, cfg, a.Repos, q)
	if err != nil {
		_ = q.Close()
		a.Close()
		return nil, err
	}

	if opts.HTTP {
		handlers := wireHandlers(log, a.DB, a.Clients, a.Services)
		middleware := wireMiddleware(log, a.Services)
		a.Router = wireRouter(log, cfg, a.Metrics, handlers, middleware)
		a.server = &httpserver.Server{Engine: a.Router}
	}
	return a, nil
}

// Start launches background collectors and, when runWorker is set, the job worker pool.
func (a *App) Start(runWorker bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	q := a.Services.Queue
	a.Metrics.StartQueueDepthCollector(ctx, a.Log, q.Backend(), q.Depth)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)

	if !runWorker || a.Services.JobWorker == nil {
		return
	}
	if rq, ok := q.(*queue.RedisQueue); ok {
		if n, err := rq.Recover(ctx); err != nil {
			a.Log.Warn("redis queue recovery failed", "error", err)
		} else if n > 0 {
			a.Log.Info("requeued deliveries abandoned by a previous worker", "count", n)
		}
	}
	a.Services.JobWorker.Start(ctx)
}

func (a *App) Run() error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized for http")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Serving API", "addr", addr)
	return a.server.Run(addr)
}

// Shutdown stops the HTTP server, cancels workers and waits for in-flight jobs.
func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.Log.Warn("http shutdown", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if w := a.Services.JobWorker; w != nil {
		if err := w.Drain(ctx); err != nil {
			a.Log.Warn("worker drain timed out", "error", err)
		}
	}
	a.Close()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Queue != nil {
		_ = a.Services.Queue.Close()
		a.Services.Queue = nil
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
		a.dbService = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
