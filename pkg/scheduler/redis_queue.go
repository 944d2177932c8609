package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	redis "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "iverton:resume_queue"

// RedisQueue keeps refs in a sorted set scored by due time in milliseconds.
// Several scheduler processes can share one queue: ZREM decides who claims a ref.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

func NewRedisQueue(client redis.UniversalClient, key string, logger *slog.Logger) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("module", "redis_resume_queue"),
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(options), nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, ref protocol.ResumeRef) error {
	ref.DueAt = ref.DueAt.UTC()

	member, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to encode resume ref: %w", err)
	}

	err = q.client.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(ref.DueAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue resume ref: %w", err)
	}

	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]protocol.ResumeRef, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due refs: %w", err)
	}

	claimed := make([]protocol.ResumeRef, 0, len(members))

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim resume ref: %w", err)
		}

		if removed == 0 {
			continue
		}

		var ref protocol.ResumeRef
		if err := json.Unmarshal([]byte(member), &ref); err != nil {
			q.logger.ErrorContext(ctx, "Dropping undecodable resume ref", "member", member, "error", err)
			continue
		}

		claimed = append(claimed, ref)
	}

	return claimed, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}
