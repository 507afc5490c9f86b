package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/itvault-backend/internal/platform/envutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *GaugeVec
	embedReqs    *CounterVec
	embedLatency *HistogramVec
	embedCache   *CounterVec
	indexOutcome *CounterVec
	jobs         *CounterVec
	jobLatency   *HistogramVec
	searchReqs   *CounterVec
	searchLat    *HistogramVec
	searchHits   *HistogramVec
	storeOps     *CounterVec
	storeLatency *HistogramVec
	queueDepth   *GaugeVec
	redisUp      *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method on *Metrics is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests:  NewCounterVec("itv_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:   NewHistogramVec("itv_api_request_duration_seconds", "API request latency.", []string{"method", "route"}, latencyBuckets),
		apiInflight:  NewGaugeVec("itv_api_inflight_requests", "In-flight API requests.", nil),
		embedReqs:    NewCounterVec("itv_embedding_requests_total", "Embedding provider calls by model/status.", []string{"model", "status"}),
		embedLatency: NewHistogramVec("itv_embedding_request_duration_seconds", "Embedding provider latency.", []string{"model"}, latencyBuckets),
		embedCache:   NewCounterVec("itv_embedding_cache_total", "Query embedding cache lookups.", []string{"result"}),
		indexOutcome: NewCounterVec("itv_index_outcomes_total", "Indexing outcomes by entity type.", []string{"entity_type", "outcome"}),
		jobs:         NewCounterVec("itv_index_jobs_total", "Index jobs processed by kind/status.", []string{"kind", "status"}),
		jobLatency:   NewHistogramVec("itv_index_job_duration_seconds", "Index job latency.", []string{"kind"}, latencyBuckets),
		searchReqs:   NewCounterVec("itv_search_requests_total", "Search requests by status.", []string{"status"}),
		searchLat:    NewHistogramVec("itv_search_duration_seconds", "Search latency.", nil, latencyBuckets),
		searchHits:   NewHistogramVec("itv_search_results", "Results returned per search.", nil, []float64{0, 1, 5, 10, 25, 50}),
		storeOps:     NewCounterVec("itv_index_store_operations_total", "Index store operations by backend/operation/status.", []string{"backend", "operation", "status"}),
		storeLatency: NewHistogramVec("itv_index_store_operation_duration_seconds", "Index store operation latency.", []string{"backend", "operation"}, latencyBuckets),
		queueDepth:   NewGaugeVec("itv_index_queue_depth", "Index queue depth by backend/state.", []string{"backend", "state"}),
		redisUp:      NewGaugeVec("itv_redis_up", "Redis reachability (1 up, 0 down).", nil),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.embedReqs, m.embedLatency, m.embedCache,
		m.indexOutcome, m.jobs, m.jobLatency,
		m.searchReqs, m.searchLat, m.searchHits,
		m.storeOps, m.storeLatency,
		m.queueDepth, m.redisUp,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveEmbeddingRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.embedReqs.Inc(model, status)
	m.embedLatency.Observe(dur.Seconds(), model)
}

func (m *Metrics) IncEmbeddingCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.embedCache.Inc("hit")
		return
	}
	m.embedCache.Inc("miss")
}

func (m *Metrics) IncIndexOutcome(entityType, outcome string) {
	if m == nil {
		return
	}
	m.indexOutcome.Inc(entityType, outcome)
}

func (m *Metrics) IndexOutcomeCount(entityType, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.indexOutcome.Value(entityType, outcome)
}

func (m *Metrics) ObserveJob(kind, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobs.Inc(kind, status)
	m.jobLatency.Observe(dur.Seconds(), kind)
}

func (m *Metrics) JobCount(kind, status string) float64 {
	if m == nil {
		return 0
	}
	return m.jobs.Value(kind, status)
}

func (m *Metrics) ObserveSearch(status string, dur time.Duration, results int) {
	if m == nil {
		return
	}
	m.searchReqs.Inc(status)
	m.searchLat.Observe(dur.Seconds())
	if status == "ok" {
		m.searchHits.Observe(float64(results))
	}
}

func (m *Metrics) ObserveIndexStore(backend, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(backend, operation, status)
	m.storeLatency.Observe(dur.Seconds(), backend, operation)
}

func (m *Metrics) IndexStoreCount(backend, operation, status string) float64 {
	if m == nil {
		return 0
	}
	return m.storeOps.Value(backend, operation, status)
}

func (m *Metrics) SetQueueDepth(backend, state string, n int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n), backend, state)
}

// DepthFunc reports queue depth per state.
type DepthFunc func(ctx context.Context) (map[string]int64, error)

func scrapeInterval() time.Duration {
	n := envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

func (m *Metrics) StartQueueDepthCollector(ctx context.Context, log *logger.Logger, backend string, depth DepthFunc) {
	if m == nil || depth == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				byState, err := depth(ctx)
				if err != nil {
					if log != nil {
						log.Warn("metrics: queue depth query failed", "backend", backend, "error", err)
					}
					continue
				}
				for state, n := range byState {
					m.SetQueueDepth(backend, state, n)
				}
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := rdb.Ping(pingCtx).Err()
				cancel()
				if err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}

func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
