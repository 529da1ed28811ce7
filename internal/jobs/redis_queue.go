package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/arblens/internal/models"
)

const jobField = "job"

// RedisQueueConfig names the stream and consumer group backing a RedisQueue
type RedisQueueConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration

	// ClaimIdle takes over entries left unacked by any consumer for longer
	// than this. Zero disables reclaiming.
	ClaimIdle time.Duration
}

// RedisQueue is a durable queue on a Redis stream read through a consumer group
type RedisQueue struct {
	client *redis.Client
	config RedisQueueConfig
	closed atomic.Bool

	claimMu     sync.Mutex
	claimCursor string
}

// NewRedisQueue creates the consumer group if it does not exist yet
func NewRedisQueue(ctx context.Context, client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Stream == "" || cfg.Group == "" || cfg.Consumer == "" {
		return nil, fmt.Errorf("stream, group and consumer are required")
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisQueue{client: client, config: cfg, claimCursor: "0-0"}, nil
}

// Enqueue appends the job to the stream
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if q.closed.Load() {
		return models.ErrQueueClosed
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.config.Stream,
		Values: map[string]interface{}{jobField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", q.config.Stream, err)
	}
	return nil
}

// Dequeue returns an idle entry abandoned by another consumer if there is
// one, otherwise the next undelivered entry
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if q.closed.Load() {
			return Job{}, models.ErrQueueClosed
		}

		if message, ok, err := q.claimIdle(ctx); err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, err
		} else if ok {
			return q.parseMessage(ctx, message)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.config.Group,
			Consumer: q.config.Consumer,
			Streams:  []string{q.config.Stream, ">"},
			Count:    1,
			Block:    q.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("error reading from stream: %w", err)
		}

		if len(streams) == 0 || len(streams[0].Messages) == 0 {
			continue
		}
		return q.parseMessage(ctx, streams[0].Messages[0])
	}
}

// claimIdle walks the pending entries list with XAUTOCLAIM, resuming from the
// cursor left by the previous call
func (q *RedisQueue) claimIdle(ctx context.Context) (redis.XMessage, bool, error) {
	if q.config.ClaimIdle <= 0 {
		return redis.XMessage{}, false, nil
	}

	q.claimMu.Lock()
	defer q.claimMu.Unlock()

	messages, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.config.Stream,
		Group:    q.config.Group,
		Consumer: q.config.Consumer,
		MinIdle:  q.config.ClaimIdle,
		Start:    q.claimCursor,
		Count:    1,
	}).Result()
	if err != nil {
		return redis.XMessage{}, false, fmt.Errorf("failed to claim idle entries: %w", err)
	}
	q.claimCursor = next
	if len(messages) == 0 {
		return redis.XMessage{}, false, nil
	}
	return messages[0], true, nil
}

func (q *RedisQueue) parseMessage(ctx context.Context, message redis.XMessage) (Job, error) {
	raw, ok := message.Values[jobField].(string)
	if !ok {
		_ = q.ack(ctx, message.ID)
		return Job{}, fmt.Errorf("missing '%s' field in message %s", jobField, message.ID)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		_ = q.ack(ctx, message.ID)
		return Job{}, fmt.Errorf("failed to parse job %s: %w", message.ID, err)
	}
	job.receipt = message.ID
	return job, nil
}

// Ack acknowledges and removes the delivered entry
func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if job.receipt == "" {
		return nil
	}
	return q.ack(ctx, job.receipt)
}

func (q *RedisQueue) ack(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.config.Stream, q.config.Group, id)
	pipe.XDel(ctx, q.config.Stream, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", id, err)
	}
	return nil
}

// Len returns the stream length, which includes delivered but unacked entries.
// Entries abandoned by a dead consumer count until they are reclaimed.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.config.Stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read stream length: %w", err)
	}
	return n, nil
}

// Close stops further reads and writes. The client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
