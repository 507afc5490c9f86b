package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/data/db"
	jobrepo "github.com/yungbote/itvault-backend/internal/data/repos/jobs"
	types "github.com/yungbote/itvault-backend/internal/domain/jobs"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// PostgresQueue stores jobs as search_index_job rows and claims them with
// FOR UPDATE SKIP LOCKED. A running row whose heartbeat goes stale is
// reclaimed by the next poll.
type PostgresQueue struct {
	log          *logger.Logger
	repo         jobrepo.IndexJobRunRepo
	opts         Options
	poll         time.Duration
	staleRunning time.Duration
}

type PostgresOptions struct {
	Options
	PollInterval time.Duration
	StaleRunning time.Duration
}

func NewPostgresQueue(log *logger.Logger, repo jobrepo.IndexJobRunRepo, opts PostgresOptions) (*PostgresQueue, error) {
	if log == nil || repo == nil {
		return nil, fmt.Errorf("postgres queue: missing deps")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StaleRunning <= 0 {
		opts.StaleRunning = 2 * time.Minute
	}
	return &PostgresQueue{
		log:          log.With("component", "PostgresQueue"),
		repo:         repo,
		opts:         opts.Options.normalized(),
		poll:         opts.PollInterval,
		staleRunning: opts.StaleRunning,
	}, nil
}

func (q *PostgresQueue) Backend() string { return BackendPostgres }

func (q *PostgresQueue) Enqueue(ctx context.Context, job search.IndexJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if _, err := q.repo.Create(dbctx.Context{Ctx: ctx}, []*types.IndexJobRun{types.FromIndexJob(job)}); err != nil {
		q.log.Warn("enqueue failed", "job", job.String(), "class", db.Classify(err))
		return fmt.Errorf("enqueue %s: %w", job, err)
	}
	return nil
}

// EnqueueBatch inserts all jobs in one statement.
func (q *PostgresQueue) EnqueueBatch(ctx context.Context, jobs []search.IndexJob) error {
	rows := make([]*types.IndexJobRun, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		rows = append(rows, types.FromIndexJob(j))
	}
	_, err := q.repo.Create(dbctx.Context{Ctx: ctx}, rows)
	return err
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	deadline := time.Now().Add(q.opts.Wait)
	for {
		row, err := q.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, q.opts.MaxAttempts, q.opts.RetryDelay, q.staleRunning)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return &Delivery{Job: row.IndexJob(), Attempt: row.Attempts, receipt: row.ID}, nil
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		if wait > q.poll {
			wait = q.poll
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (q *PostgresQueue) receipt(d *Delivery) (uuid.UUID, error) {
	if d == nil {
		return uuid.Nil, fmt.Errorf("nil delivery")
	}
	id, ok := d.receipt.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("delivery not from postgres queue")
	}
	return id, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, d *Delivery) error {
	id, err := q.receipt(d)
	if err != nil {
		return err
	}
	return q.repo.Complete(dbctx.Context{Ctx: ctx}, id)
}

func (q *PostgresQueue) Fail(ctx context.Context, d *Delivery, cause error, permanent bool) error {
	id, err := q.receipt(d)
	if err != nil {
		return err
	}
	return q.repo.MarkFailed(dbctx.Context{Ctx: ctx}, id, errString(cause), permanent || q.opts.exhausted(d.Attempt))
}

func (q *PostgresQueue) Heartbeat(ctx context.Context, d *Delivery) error {
	id, err := q.receipt(d)
	if err != nil {
		return err
	}
	return q.repo.Heartbeat(dbctx.Context{Ctx: ctx}, id)
}

func (q *PostgresQueue) Depth(ctx context.Context) (map[string]int64, error) {
	counts, err := q.repo.CountByStatus(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	out := map[string]int64{
		search.JobStatusQueued:          0,
		search.JobStatusRunning:         0,
		search.JobStatusFailed:          0,
		search.JobStatusFailedPermanent: 0,
	}
	for k, v := range counts {
		out[k] = v
	}
	return out, nil
}

// Purge drops failed_permanent rows older than the cutoff.
func (q *PostgresQueue) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	return q.repo.PurgePermanent(dbctx.Context{Ctx: ctx}, time.Now().Add(-olderThan))
}

func (q *PostgresQueue) Close() error { return nil }
