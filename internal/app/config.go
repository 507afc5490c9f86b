package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/itvault-backend/internal/data/db"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/envutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

const configFileEnv = "ITVAULT_CONFIG_FILE"

type Config struct {
	Environment string
	ServiceName string
	Port        string

	DB db.Config

	VectorStore        string
	EmbeddingDimension int
	IVFFlatLists       int
	IVFFlatProbes      int
	HNSWM              int
	HNSWEfSearch       int

	QueueBackend     string
	QueueCapacity    int
	QueueOptions     queue.Options
	QueuePollEvery   time.Duration
	QueueStaleAfter  time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisQueuePrefix string

	RunWorker         bool
	WorkerConcurrency int
	JobTimeout        time.Duration
	IndexRetry        indexing.RetryPolicy

	Embeddings       services.EmbeddingsDefaults
	SettingsSecret   string
	Search           services.SearchConfig
	QueryCacheSize   int
	EnqueueTimeout   time.Duration
	JWTSecretKey     string
	JWTIssuer        string
	AllowedOrigins   []string
	ShutdownDeadline time.Duration
}

// LoadConfig reads the environment. Keys in the ITVAULT_CONFIG_FILE overlay are
// applied first for variables the environment leaves unset.
func LoadConfig(log *logger.Logger) (Config, error) {
	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		n, err := applyConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		log.Info("config file applied", "path", path, "keys", n)
	}

	dbCfg := db.ConfigFromEnv()
	search := services.DefaultSearchConfig()
	retry := indexing.DefaultRetryPolicy()
	defaultQueue := queue.BackendPostgres
	if strings.EqualFold(dbCfg.Driver, "sqlite") {
		defaultQueue = queue.BackendMemory
	}

	cfg := Config{
		Environment: envutil.String("APP_ENV", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "itvault-api"),
		Port:        envutil.String("PORT", "8080"),
		DB:          dbCfg,

		VectorStore:        strings.ToLower(envutil.String("VECTOR_STORE", "auto")),
		EmbeddingDimension: envutil.Int("EMBEDDING_DIMENSION", 1536),
		IVFFlatLists:       envutil.Int("PGVECTOR_IVFFLAT_LISTS", 0),
		IVFFlatProbes:      envutil.Int("PGVECTOR_IVFFLAT_PROBES", 0),
		HNSWM:              envutil.Int("MEMORY_INDEX_M", 16),
		HNSWEfSearch:       envutil.Int("MEMORY_INDEX_EF_SEARCH", 64),

		QueueBackend:  strings.ToLower(envutil.String("QUEUE_BACKEND", defaultQueue)),
		QueueCapacity: envutil.Int("QUEUE_CAPACITY", 10000),
		QueueOptions: queue.Options{
			MaxAttempts: envutil.Int("INDEX_JOB_MAX_ATTEMPTS", queue.DefaultOptions().MaxAttempts),
			RetryDelay:  envutil.Duration("INDEX_JOB_RETRY_DELAY", queue.DefaultOptions().RetryDelay),
			Wait:        envutil.Duration("QUEUE_WAIT", queue.DefaultOptions().Wait),
		},
		QueuePollEvery:   envutil.Duration("QUEUE_POLL_INTERVAL", time.Second),
		QueueStaleAfter:  envutil.Duration("QUEUE_STALE_RUNNING", 2*time.Minute),
		RedisAddr:        envutil.String("REDIS_ADDR", ""),
		RedisPassword:    envutil.String("REDIS_PASSWORD", ""),
		RedisDB:          envutil.Int("REDIS_DB", 0),
		RedisQueuePrefix: envutil.String("REDIS_QUEUE_PREFIX", "itv:index"),

		RunWorker:         envutil.Bool("RUN_WORKER", true),
		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),
		JobTimeout:        envutil.Duration("INDEX_JOB_TIMEOUT", 5*time.Minute),
		IndexRetry: indexing.RetryPolicy{
			Attempts:    envutil.Int("INDEX_RETRY_ATTEMPTS", retry.Attempts),
			Base:        envutil.Duration("INDEX_RETRY_BASE", retry.Base),
			Max:         envutil.Duration("INDEX_RETRY_MAX", retry.Max),
			CallTimeout: envutil.Duration("EMBED_CALL_TIMEOUT", retry.CallTimeout),
		},

		SettingsSecret: envutil.String("SETTINGS_SECRET_KEY", ""),
		Search: services.SearchConfig{
			DefaultLimit:  envutil.Int("SEARCH_DEFAULT_LIMIT", search.DefaultLimit),
			MaxLimit:      envutil.Int("SEARCH_MAX_LIMIT", search.MaxLimit),
			MaxQueryChars: envutil.Int("SEARCH_MAX_QUERY_CHARS", search.MaxQueryChars),
			EmbedTimeout:  envutil.Duration("SEARCH_EMBED_TIMEOUT", search.EmbedTimeout),
			SnippetLength: envutil.Int("SEARCH_SNIPPET_LENGTH", search.SnippetLength),
			HideDisabled:  envutil.Bool("SEARCH_HIDE_DISABLED", false),
		},
		QueryCacheSize:   envutil.Int("SEARCH_QUERY_CACHE_SIZE", 512),
		EnqueueTimeout:   envutil.Duration("INDEX_ENQUEUE_TIMEOUT", 2*time.Second),
		JWTSecretKey:     envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:        envutil.String("JWT_ISSUER", ""),
		AllowedOrigins:   splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		ShutdownDeadline: envutil.Duration("SHUTDOWN_TIMEOUT", 20*time.Second),
	}
	cfg.Embeddings = services.EmbeddingsDefaults{
		APIKey:        envutil.String("OPENAI_API_KEY", ""),
		Model:         envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		BaseURL:       envutil.String("OPENAI_BASE_URL", ""),
		Dimension:     cfg.EmbeddingDimension,
		MaxInputChars: envutil.Int("EMBED_MAX_INPUT_CHARS", 8000),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	if _, err := queue.ParseBackend(c.QueueBackend); err != nil {
		return err
	}
	if c.QueueBackend == queue.BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("QUEUE_BACKEND=redis requires REDIS_ADDR")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("SEARCH_MAX_LIMIT (%d) below SEARCH_DEFAULT_LIMIT (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	return nil
}

// applyConfigFile sets every key of a flat YAML map that the environment does not already define.
func applyConfigFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", configFileEnv, err)
	}
	var kv map[string]any
	if err := yaml.Unmarshal(raw, &kv); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	n := 0
	for k, v := range kv {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		var val string
		switch t := v.(type) {
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			val = strings.Join(parts, ",")
		default:
			val = fmt.Sprint(t)
		}
		if err := os.Setenv(key, val); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
