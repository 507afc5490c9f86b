package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// RedisQueue keeps pending jobs in a list, moves claimed jobs to a processing
// list with BLMOVE, parks retries in a sorted set keyed by due time and pushes
// exhausted jobs to a dead-letter list.
type RedisQueue struct {
	log  *logger.Logger
	rdb  *goredis.Client
	opts Options

	pending    string
	processing string
	delayed    string
	dead       string
}

type redisEnvelope struct {
	Job        search.IndexJob `json:"job"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt int64           `json:"enqueuedAt"`
	Error      string          `json:"error,omitempty"`
}

// promoteDue moves due retries back onto the pending list atomically.
var promoteDue = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, raw in ipairs(due) do
  redis.call('ZREM', KEYS[1], raw)
  redis.call('LPUSH', KEYS[2], raw)
end
return #due
`)

func NewRedisQueue(log *logger.Logger, rdb *goredis.Client, prefix string, opts Options) (*RedisQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if prefix == "" {
		prefix = "itv:index"
	}
	return &RedisQueue{
		log:        log.With("component", "RedisQueue"),
		rdb:        rdb,
		opts:       opts.normalized(),
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		delayed:    prefix + ":delayed",
		dead:       prefix + ":dead",
	}, nil
}

// NewRedisClient dials addr and verifies it with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (q *RedisQueue) Backend() string { return BackendRedis }

func (q *RedisQueue) Enqueue(ctx context.Context, job search.IndexJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(redisEnvelope{Job: job, Attempt: 1, EnqueuedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.pending, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	if err := promoteDue.Run(ctx, q.rdb, []string{q.delayed, q.pending}, time.Now().UnixMilli(), 100).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("promote retries: %w", err)
	}
	raw, err := q.rdb.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.opts.Wait).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		q.log.Error("undecodable queue payload; dead-lettering", "error", err)
		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.processing, 1, raw)
		pipe.LPush(ctx, q.dead, raw)
		_, _ = pipe.Exec(ctx)
		return nil, nil
	}
	if env.Attempt < 1 {
		env.Attempt = 1
	}
	return &Delivery{Job: env.Job, Attempt: env.Attempt, receipt: raw}, nil
}

func (q *RedisQueue) receipt(d *Delivery) (string, error) {
	if d == nil {
		return "", fmt.Errorf("nil delivery")
	}
	raw, ok := d.receipt.(string)
	if !ok {
		return "", fmt.Errorf("delivery not from redis queue")
	}
	return raw, nil
}

func (q *RedisQueue) Complete(ctx context.Context, d *Delivery) error {
	raw, err := q.receipt(d)
	if err != nil {
		return err
	}
	return q.rdb.LRem(ctx, q.processing, 1, raw).Err()
}

func (q *RedisQueue) Fail(ctx context.Context, d *Delivery, cause error, permanent bool) error {
	raw, err := q.receipt(d)
	if err != nil {
		return err
	}
	env := redisEnvelope{Job: d.Job, Attempt: d.Attempt, EnqueuedAt: time.Now().UnixMilli(), Error: errString(cause)}
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processing, 1, raw)
	if permanent || q.opts.exhausted(d.Attempt) {
		next, err := json.Marshal(env)
		if err != nil {
			return err
		}
		pipe.LPush(ctx, q.dead, next)
	} else {
		env.Attempt++
		next, err := json.Marshal(env)
		if err != nil {
			return err
		}
		due := time.Now().Add(q.opts.RetryDelay).UnixMilli()
		pipe.ZAdd(ctx, q.delayed, goredis.Z{Score: float64(due), Member: next})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Depth(ctx context.Context) (map[string]int64, error) {
	pipe := q.rdb.Pipeline()
	pending := pipe.LLen(ctx, q.pending)
	processing := pipe.LLen(ctx, q.processing)
	delayed := pipe.ZCard(ctx, q.delayed)
	dead := pipe.LLen(ctx, q.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return map[string]int64{
		search.JobStatusQueued:          pending.Val(),
		search.JobStatusRunning:         processing.Val(),
		search.JobStatusFailed:          delayed.Val(),
		search.JobStatusFailedPermanent: dead.Val(),
	}, nil
}

// Recover moves everything left on the processing list back to pending.
// Only safe while no worker is consuming, e.g. at startup of the sole worker.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.rdb.LMove(ctx, q.processing, q.pending, "RIGHT", "LEFT").Result()
		if errors.Is(err, goredis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// DeadLetters returns up to limit dead-lettered jobs, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := q.rdb.LRange(ctx, q.dead, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		out = append(out, DeadLetter{Job: env.Job, Attempts: env.Attempt, Error: env.Error, FailedAt: time.UnixMilli(env.EnqueuedAt)})
	}
	return out, nil
}

// Client exposes the underlying connection for the metrics collector.
func (q *RedisQueue) Client() *goredis.Client { return q.rdb }

func (q *RedisQueue) Close() error { return q.rdb.Close() }
