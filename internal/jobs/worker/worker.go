package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/jobs/runtime"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Config struct {
	Concurrency int
	// JobTimeout bounds one delivery end to end.
	JobTimeout     time.Duration
	HeartbeatEvery time.Duration
	// ErrorBackoff is the pause after a queue error.
	ErrorBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{Concurrency: 4, JobTimeout: 5 * time.Minute, HeartbeatEvery: 30 * time.Second, ErrorBackoff: time.Second}
}

type Worker struct {
	log      *logger.Logger
	queue    queue.Queue
	registry *runtime.Registry
	cfg      Config

	inflight sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, q queue.Queue, registry *runtime.Registry, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = def.HeartbeatEvery
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	return &Worker{
		log:      baseLog.With("component", "IndexWorker"),
		queue:    q,
		registry: registry,
		cfg:      cfg,
	}
}

// Run drains the queue with cfg.Concurrency loops until ctx is cancelled.
// A delivery in progress when ctx ends is finished with a detached context.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting index worker pool", "concurrency", w.cfg.Concurrency, "backend", w.queue.Backend())
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

// Start runs the pool in the background.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		if err := w.Run(ctx); err != nil {
			w.log.Error("worker pool stopped", "error", err)
		}
	}()
}

// Drain waits for in-flight deliveries, up to ctx.
func (w *Worker) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				w.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			}
			w.log.Warn("Dequeue failed", "worker_id", workerID, "error", err)
			sleepCtx(ctx, w.cfg.ErrorBackoff)
			continue
		}
		if d == nil {
			continue
		}
		w.inflight.Add(1)
		w.process(context.WithoutCancel(ctx), workerID, d)
		w.inflight.Done()
	}
}

// ProcessOne handles a single delivery synchronously. Used by inline reindex and tests.
func (w *Worker) ProcessOne(ctx context.Context, d *queue.Delivery) {
	w.process(ctx, 0, d)
}

func (w *Worker) process(ctx context.Context, workerID int, d *queue.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()
	ctx, span := observability.Tracer().Start(ctx, "index_job."+string(d.Job.Kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("job.kind", string(d.Job.Kind)),
		attribute.String("entity.type", string(d.Job.EntityType)),
		attribute.String("entity.id", d.Job.EntityID.String()),
		attribute.Int("job.attempt", d.Attempt),
	)

	jc := runtime.NewContext(ctx, w.log.With("worker_id", workerID), d.Job, d.Attempt)
	stopHeartbeat := w.heartbeat(ctx, d)
	runErr := w.run(jc)
	stopHeartbeat()

	status := search.JobStatusSucceeded
	switch {
	case runErr == nil:
		if err := w.queue.Complete(ctx, d); err != nil {
			jc.Log.Warn("ack failed", "error", err)
		}
		jc.Log.Debug("job done", "outcome", jc.Outcome, "duration_ms", jc.Elapsed().Milliseconds())
	case indexing.IsPermanent(runErr):
		status = search.JobStatusFailedPermanent
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		jc.Log.Error("job failed permanently", "error", runErr)
		if err := w.queue.Fail(ctx, d, runErr, true); err != nil {
			jc.Log.Warn("dead-letter failed", "error", err)
		}
	default:
		status = search.JobStatusFailed
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		jc.Log.Warn("job failed", "error", runErr)
		if err := w.queue.Fail(ctx, d, runErr, false); err != nil {
			jc.Log.Warn("requeue failed", "error", err)
		}
	}
	observability.Current().ObserveJob(string(d.Job.Kind), status, jc.Elapsed())
}

func (w *Worker) run(jc *runtime.Context) (err error) {
	h, ok := w.registry.Get(jc.Job.Kind)
	if !ok {
		return indexing.Permanent(&missingHandlerError{Kind: jc.Job.Kind})
	}
	defer func() {
		if r := recover(); r != nil {
			jc.Log.Error("Job handler panic", "panic", r)
			err = &panicError{Val: r}
		}
	}()
	return h.Run(jc)
}

func (w *Worker) heartbeat(ctx context.Context, d *queue.Delivery) func() {
	hb, ok := w.queue.(queue.Heartbeater)
	if !ok {
		return func() {}
	}
	hctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-t.C:
				if err := hb.Heartbeat(hctx, d); err != nil {
					w.log.Warn("heartbeat failed", "job", d.Job.String(), "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type missingHandlerError struct{ Kind search.JobKind }

func (e *missingHandlerError) Error() string {
	return "no handler registered for kind=" + string(e.Kind)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
