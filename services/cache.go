package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"

	"feedgraph/models"
)

const (
	feedCacheTTL       = 24 * time.Hour
	feedCacheMaxSize   = 1000
	feedCacheKeyPrefix = "feed_cache:"
	feedCacheOKPrefix  = "feed_cache_ok:"
	feedEntryKeyPrefix = "feed_entry:"
)

// rawFeedRow is one unexpanded timeline row, optionally carrying an
// embedded post payload. Expanders prefer the embedded payload over a
// redundant storage fetch.
type rawFeedRow struct {
	Entry models.TimelineEntry `json:"entry"`
	Post  *models.Post         `json:"post,omitempty"`
}

// FeedCache mirrors the newest feed_timeline entries of each owner in a
// redis sorted set (score: the entry's millisecond timestamp; ties resolve
// lexicographically on the time id, preserving storage order). It serves
// only the unfiltered first page; anything else goes to storage. All
// methods are no-ops without a Redis client.
type FeedCache struct{}

func NewFeedCache() *FeedCache {
	return &FeedCache{}
}

func (c *FeedCache) Enabled() bool {
	return RedisClient != nil
}

func feedCacheKey(ownerID int64) string {
	return fmt.Sprintf("%s%d", feedCacheKeyPrefix, ownerID)
}

func feedCacheOKKey(ownerID int64) string {
	return fmt.Sprintf("%s%d", feedCacheOKPrefix, ownerID)
}

func feedEntryKey(ownerID int64, timeID string) string {
	return fmt.Sprintf("%s%d:%s", feedEntryKeyPrefix, ownerID, timeID)
}

func entryScore(timeID string) float64 {
	parsed, err := ulid.Parse(timeID)
	if err != nil {
		return 0
	}
	return float64(parsed.Time())
}

// Prime replaces the owner's cached feed with the given first page and
// marks the cache servable.
func (c *FeedCache) Prime(ctx context.Context, ownerID int64, rows []rawFeedRow) {
	if !c.Enabled() {
		return
	}
	pipe := RedisClient.Pipeline()
	pipe.Del(ctx, feedCacheKey(ownerID))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return
		}
		pipe.ZAdd(ctx, feedCacheKey(ownerID), &redis.Z{
			Score:  entryScore(row.Entry.Time),
			Member: row.Entry.Time,
		})
		pipe.Set(ctx, feedEntryKey(ownerID, row.Entry.Time), data, feedCacheTTL)
	}
	pipe.Set(ctx, feedCacheOKKey(ownerID), "1", feedCacheTTL)
	pipe.Expire(ctx, feedCacheKey(ownerID), feedCacheTTL)
	_, _ = pipe.Exec(ctx)
}

// Add write-through inserts one entry into an already-primed cache. An
// unprimed cache is left alone; the next read primes it from storage.
func (c *FeedCache) Add(ctx context.Context, ownerID int64, row rawFeedRow) {
	if !c.Enabled() {
		return
	}
	primed, err := RedisClient.Exists(ctx, feedCacheOKKey(ownerID)).Result()
	if err != nil || primed == 0 {
		return
	}
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	pipe := RedisClient.Pipeline()
	pipe.ZAdd(ctx, feedCacheKey(ownerID), &redis.Z{
		Score:  entryScore(row.Entry.Time),
		Member: row.Entry.Time,
	})
	pipe.Set(ctx, feedEntryKey(ownerID, row.Entry.Time), data, feedCacheTTL)
	pipe.ZRemRangeByRank(ctx, feedCacheKey(ownerID), 0, -feedCacheMaxSize-1)
	pipe.Expire(ctx, feedCacheKey(ownerID), feedCacheTTL)
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops the owner's cached feed entirely.
func (c *FeedCache) Invalidate(ctx context.Context, ownerID int64) {
	if !c.Enabled() {
		return
	}
	pipe := RedisClient.Pipeline()
	pipe.Del(ctx, feedCacheOKKey(ownerID))
	pipe.Del(ctx, feedCacheKey(ownerID))
	_, _ = pipe.Exec(ctx)
}

// ReadFirstPage returns the newest pageSize rows if the cache is primed.
func (c *FeedCache) ReadFirstPage(ctx context.Context, ownerID int64, pageSize int) ([]rawFeedRow, bool) {
	if !c.Enabled() {
		return nil, false
	}
	primed, err := RedisClient.Exists(ctx, feedCacheOKKey(ownerID)).Result()
	if err != nil || primed == 0 {
		feedCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	timeIDs, err := RedisClient.ZRevRange(ctx, feedCacheKey(ownerID), 0, int64(pageSize-1)).Result()
	if err != nil {
		feedCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	rows := make([]rawFeedRow, 0, len(timeIDs))
	for _, timeID := range timeIDs {
		data, err := RedisClient.Get(ctx, feedEntryKey(ownerID, timeID)).Result()
		if err != nil {
			// An expired entry body makes the whole page unservable.
			feedCacheHits.WithLabelValues("miss").Inc()
			return nil, false
		}
		var row rawFeedRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			feedCacheHits.WithLabelValues("miss").Inc()
			return nil, false
		}
		rows = append(rows, row)
	}
	if len(rows) < pageSize {
		// The mirror may hold fewer rows than the request wants without
		// knowing whether storage has more; let storage answer.
		feedCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	feedCacheHits.WithLabelValues("hit").Inc()
	return rows, true
}
