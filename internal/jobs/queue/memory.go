package queue

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type memItem struct {
	job     search.IndexJob
	attempt int
}

// MemoryQueue is a bounded in-process queue for single-process deployments
// and tests. Enqueue drops when the buffer is full.
type MemoryQueue struct {
	log  *logger.Logger
	opts Options
	ch   chan memItem

	mu       sync.Mutex
	closed   bool
	inflight int
	delayed  int
	dead     []DeadLetter
	timers   map[*time.Timer]struct{}
	closeCh  chan struct{}
}

// DeadLetter is a job that failed permanently or ran out of attempts.
type DeadLetter struct {
	Job      search.IndexJob
	Attempts int
	Error    string
	FailedAt time.Time
}

func NewMemoryQueue(log *logger.Logger, capacity int, opts Options) *MemoryQueue {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryQueue{
		log:     log.With("component", "MemoryQueue"),
		opts:    opts.normalized(),
		ch:      make(chan memItem, capacity),
		timers:  map[*time.Timer]struct{}{},
		closeCh: make(chan struct{}),
	}
}

func (q *MemoryQueue) Backend() string { return BackendMemory }

func (q *MemoryQueue) Enqueue(ctx context.Context, job search.IndexJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return q.push(memItem{job: job, attempt: 1})
}

func (q *MemoryQueue) push(it memItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- it:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	timer := time.NewTimer(q.opts.Wait)
	defer timer.Stop()
	select {
	case it := <-q.ch:
		q.mu.Lock()
		q.inflight++
		q.mu.Unlock()
		return &Delivery{Job: it.job, Attempt: it.attempt, receipt: it}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closeCh:
		return nil, ErrQueueClosed
	case <-timer.C:
		return nil, nil
	}
}

func (q *MemoryQueue) Complete(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight > 0 {
		q.inflight--
	}
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, d *Delivery, cause error, permanent bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight > 0 {
		q.inflight--
	}
	if permanent || q.opts.exhausted(d.Attempt) || q.closed {
		q.dead = append(q.dead, DeadLetter{Job: d.Job, Attempts: d.Attempt, Error: errString(cause), FailedAt: time.Now()})
		return nil
	}
	next := memItem{job: d.Job, attempt: d.Attempt + 1}
	q.delayed++
	var t *time.Timer
	t = time.AfterFunc(q.opts.RetryDelay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.delayed--
		q.mu.Unlock()
		if err := q.push(next); err != nil {
			q.log.Warn("dropping retry", "job", next.job.String(), "attempt", next.attempt, "error", err)
		}
	})
	q.timers[t] = struct{}{}
	return nil
}

func (q *MemoryQueue) Depth(ctx context.Context) (map[string]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[string]int64{
		search.JobStatusQueued:          int64(len(q.ch)),
		search.JobStatusRunning:         int64(q.inflight),
		search.JobStatusFailed:          int64(q.delayed),
		search.JobStatusFailedPermanent: int64(len(q.dead)),
	}, nil
}

// DeadLetters returns a copy of the dead-letter list.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.dead...)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for t := range q.timers {
		if t.Stop() {
			q.delayed--
		}
	}
	q.timers = map[*time.Timer]struct{}{}
	close(q.closeCh)
	return nil
}
