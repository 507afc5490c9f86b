package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
	"github.com/yungbote/itvault-backend/internal/testutil"
)

func queued(t *testing.T, q queue.Queue) int64 {
	t.Helper()
	d, err := q.Depth(context.Background())
	require.NoError(t, err)
	return d[search.JobStatusQueued]
}

func TestSearchIndexerRespectsFlag(t *testing.T) {
	q := queue.NewMemoryQueue(logger.Nop(), 8, queue.DefaultOptions())
	t.Cleanup(func() { _ = q.Close() })
	flag := &testutil.Flag{}
	ix := services.NewSearchIndexer(logger.Nop(), q, flag, time.Second)
	ctx := context.Background()

	ix.EnqueueIndex(ctx, search.EntityDocument, uuid.New(), uuid.New())
	assert.EqualValues(t, 1, queued(t, q))

	flag.Set(false)
	ix.EnqueueIndex(ctx, search.EntityDocument, uuid.New(), uuid.New())
	assert.EqualValues(t, 1, queued(t, q), "index jobs are not enqueued while the flag is off")

	ix.EnqueueRemoval(ctx, search.EntityDocument, uuid.New())
	assert.EqualValues(t, 2, queued(t, q), "removals ignore the flag")
}

func TestSearchIndexerSurvivesFullQueueAndCancelledRequest(t *testing.T) {
	q := queue.NewMemoryQueue(logger.Nop(), 1, queue.DefaultOptions())
	t.Cleanup(func() { _ = q.Close() })
	ix := services.NewSearchIndexer(logger.Nop(), q, &testutil.Flag{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix.EnqueueIndex(ctx, search.EntityPassword, uuid.New(), uuid.New())
	assert.EqualValues(t, 1, queued(t, q), "a cancelled request still enqueues")

	assert.NotPanics(t, func() {
		ix.EnqueueIndex(context.Background(), search.EntityPassword, uuid.New(), uuid.New())
	})
	assert.EqualValues(t, 1, queued(t, q))
}
