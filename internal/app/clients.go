package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Clients struct {
	Redis *goredis.Client
}

// wireClients connects to external services the configuration asks for.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients
	if cfg.RedisAddr != "" {
		rdb, err := queue.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
