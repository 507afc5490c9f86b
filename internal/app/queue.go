package app

import (
	"fmt"

	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// buildQueue constructs the QUEUE_BACKEND implementation.
func buildQueue(log *logger.Logger, cfg Config, clients Clients, r Repos) (queue.Queue, error) {
	backend, err := queue.ParseBackend(cfg.QueueBackend)
	if err != nil {
		return nil, err
	}
	switch backend {
	case queue.BackendRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("QUEUE_BACKEND=redis requires REDIS_ADDR")
		}
		return queue.NewRedisQueue(log, clients.Redis, cfg.RedisQueuePrefix, cfg.QueueOptions)
	case queue.BackendPostgres:
		return queue.NewPostgresQueue(log, r.IndexJobRun, queue.PostgresOptions{
			Options:      cfg.QueueOptions,
			PollInterval: cfg.QueuePollEvery,
			StaleRunning: cfg.QueueStaleAfter,
		})
	default:
		log.Warn("index queue is in memory; pending jobs are lost on restart", "capacity", cfg.QueueCapacity)
		return queue.NewMemoryQueue(log, cfg.QueueCapacity, cfg.QueueOptions), nil
	}
}
