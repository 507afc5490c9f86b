// Package queue carries index and removal jobs from mutation paths to workers.
// Every backend gives at-least-once delivery; handlers re-read live state, so
// duplicates are harmless.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/itvault-backend/internal/domain/search"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Delivery is one claimed job. Attempt starts at 1.
type Delivery struct {
	Job     search.IndexJob
	Attempt int
	receipt any
}

type Queue interface {
	// Enqueue never blocks on worker progress.
	Enqueue(ctx context.Context, job search.IndexJob) error
	// Dequeue waits up to the backend's wait window and returns (nil, nil)
	// when nothing became available.
	Dequeue(ctx context.Context) (*Delivery, error)
	Complete(ctx context.Context, d *Delivery) error
	// Fail schedules redelivery unless permanent is set or attempts are used up.
	Fail(ctx context.Context, d *Delivery, cause error, permanent bool) error
	// Depth reports job counts by state for metrics and the status endpoint.
	Depth(ctx context.Context) (map[string]int64, error)
	Backend() string
	Close() error
}

// Heartbeater is implemented by backends that reclaim silent deliveries.
type Heartbeater interface {
	Heartbeat(ctx context.Context, d *Delivery) error
}

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// Wait bounds how long Dequeue blocks when the queue is empty.
	Wait time.Duration
}

func DefaultOptions() Options {
	return Options{MaxAttempts: 3, RetryDelay: 30 * time.Second, Wait: 2 * time.Second}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Wait <= 0 {
		o.Wait = d.Wait
	}
	return o
}

func (o Options) exhausted(attempt int) bool { return attempt >= o.MaxAttempts }

func ParseBackend(raw string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(raw)); b {
	case "", BackendMemory:
		return BackendMemory, nil
	case BackendRedis, BackendPostgres:
		return b, nil
	default:
		return "", fmt.Errorf("unknown queue backend %q", raw)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
