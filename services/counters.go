package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	unseenKeyPrefix = "feed_unseen:"
	unseenTTL       = 30 * 24 * time.Hour
)

// CounterService keeps a per-user count of feed entries added since the
// user last viewed their feed. Incremented by feed-add notifications,
// reset by feed-view. Redis-backed and best-effort: with no Redis the
// counters silently do nothing.
type CounterService struct{}

func NewCounterService() *CounterService {
	return &CounterService{}
}

func unseenKey(userID int64) string {
	return fmt.Sprintf("%s%d", unseenKeyPrefix, userID)
}

func (cs *CounterService) IncrUnseen(ctx context.Context, userID int64) {
	if RedisClient == nil {
		return
	}
	pipe := RedisClient.Pipeline()
	pipe.Incr(ctx, unseenKey(userID))
	pipe.Expire(ctx, unseenKey(userID), unseenTTL)
	_, _ = pipe.Exec(ctx)
}

func (cs *CounterService) ResetUnseen(ctx context.Context, userID int64) {
	if RedisClient == nil {
		return
	}
	_ = RedisClient.Del(ctx, unseenKey(userID)).Err()
}

func (cs *CounterService) GetUnseen(ctx context.Context, userID int64) (int64, error) {
	if RedisClient == nil {
		return 0, nil
	}
	count, err := RedisClient.Get(ctx, unseenKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read unseen counter: %w", err)
	}
	return count, nil
}
