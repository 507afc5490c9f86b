package queue

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

func newRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	q, err := NewRedisQueue(logger.Nop(), rdb, "itv:test:"+uuid.NewString()[:8], testOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = rdb.Del(ctx, q.pending, q.processing, q.delayed, q.dead).Err()
		_ = q.Close()
	})
	return q
}

func TestRedisQueueLifecycle(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()
	job := search.NewIndexJob(search.EntityDocument, uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, job))

	d := mustDequeue(t, q)
	require.Equal(t, job, d.Job)
	require.Equal(t, 1, d.Attempt)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, depth[search.JobStatusRunning])

	require.NoError(t, q.Fail(ctx, d, errors.New("store down"), false))
	d = mustDequeue(t, q)
	require.Equal(t, 2, d.Attempt)

	require.NoError(t, q.Fail(ctx, d, errors.New("store down"), false))
	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "store down", dead[0].Error)

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, depth[search.JobStatusRunning])
	require.EqualValues(t, 0, depth[search.JobStatusQueued])
}

func TestRedisQueueRecover(t *testing.T) {
	q := newRedisQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, search.NewRemoveJob(search.EntityPassword, uuid.New())))
	d := mustDequeue(t, q)

	n, err := q.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	again := mustDequeue(t, q)
	require.Equal(t, d.Job, again.Job)
	require.NoError(t, q.Complete(ctx, again))
}
