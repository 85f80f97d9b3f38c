package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedgraph/models"
)

// cacheRows builds n rows newest-first, the order storage pages arrive in.
func cacheRows(ownerID int64, n int) []rawFeedRow {
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	rows := make([]rawFeedRow, n)
	for i := 0; i < n; i++ {
		rows[n-1-i] = rawFeedRow{Entry: models.TimelineEntry{
			Timeline:   models.FeedTimeline,
			UserID:     ownerID,
			Time:       GenerateTimeID(base.Add(time.Duration(i) * time.Minute)),
			ItemID:     int64(i + 1),
			ItemType:   models.TypePost,
			Visibility: models.VisibilityPublic,
		}}
	}
	return rows
}

func TestFeedCachePrimeServesTheStoragePage(t *testing.T) {
	setupRedisTest(t)
	cache := NewFeedCache()
	ctx := context.Background()
	rows := cacheRows(1, 3)

	cache.Prime(ctx, 1, rows)

	got, ok := cache.ReadFirstPage(ctx, 1, 3)
	require.True(t, ok)
	require.Equal(t, rows, got)
}

func TestFeedCacheUnprimedNeverServes(t *testing.T) {
	setupRedisTest(t)
	cache := NewFeedCache()
	ctx := context.Background()
	rows := cacheRows(2, 2)

	// Write-through against an unprimed cache must leave it unprimed.
	cache.Add(ctx, 2, rows[0])

	_, ok := cache.ReadFirstPage(ctx, 2, 1)
	require.False(t, ok)
}

func TestFeedCacheWriteThroughKeepsOrder(t *testing.T) {
	setupRedisTest(t)
	cache := NewFeedCache()
	ctx := context.Background()
	rows := cacheRows(3, 2)
	cache.Prime(ctx, 3, rows)

	newest := rawFeedRow{
		Entry: models.TimelineEntry{
			Timeline:   models.FeedTimeline,
			UserID:     3,
			Time:       GenerateTimeID(time.Now().Add(time.Minute)),
			ItemID:     99,
			ItemType:   models.TypePost,
			Visibility: models.VisibilityPublic,
		},
		Post: &models.Post{ID: 99, UserID: 3, Content: "embedded"},
	}
	cache.Add(ctx, 3, newest)

	got, ok := cache.ReadFirstPage(ctx, 3, 3)
	require.True(t, ok)
	require.Len(t, got, 3)
	require.Equal(t, int64(99), got[0].Entry.ItemID)
	require.NotNil(t, got[0].Post, "embedded payload survives the cache")
	require.Equal(t, rows[0].Entry.Time, got[1].Entry.Time)
	require.Equal(t, rows[1].Entry.Time, got[2].Entry.Time)
}

func TestFeedCachePartialPageNeverServes(t *testing.T) {
	setupRedisTest(t)
	cache := NewFeedCache()
	ctx := context.Background()
	cache.Prime(ctx, 4, cacheRows(4, 2))

	// The mirror cannot know whether storage holds more than it does.
	_, ok := cache.ReadFirstPage(ctx, 4, 5)
	require.False(t, ok)
}

func TestFeedCacheInvalidateForcesStorage(t *testing.T) {
	setupRedisTest(t)
	cache := NewFeedCache()
	ctx := context.Background()
	cache.Prime(ctx, 5, cacheRows(5, 2))

	_, ok := cache.ReadFirstPage(ctx, 5, 2)
	require.True(t, ok)

	cache.Invalidate(ctx, 5)

	_, ok = cache.ReadFirstPage(ctx, 5, 2)
	require.False(t, ok)
}

// The full read path with the cache on: the first read primes, a removal
// invalidates, and every page matches storage throughout.
func TestReadRawWithCacheMatchesStorage(t *testing.T) {
	engine := setupFeedTest(t)
	setupRedisTest(t)
	ctx := context.Background()
	author := makeUser(t)
	posts := publishPosts(t, engine, author, 3)

	first, _, err := engine.GetRawFeed(ctx, author.ID, FeedOptions{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)

	// Served again, now from the primed mirror.
	again, _, err := engine.GetRawFeed(ctx, author.ID, FeedOptions{PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, first, again)

	// A new entry write-throughs into the mirror.
	newest := makePost(t, author.ID, "late arrival", models.VisibilityPublic)
	_, err = engine.AddFeedItem(ctx, author.ID, newest.ID, models.TypePost, time.Now(), models.VisibilityPublic, nil)
	require.NoError(t, err)

	page, _, err := engine.GetRawFeed(ctx, author.ID, FeedOptions{PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, newest.ID, page[0].ItemID)

	// Removal invalidates; the next read rebuilds from storage without the
	// removed item.
	require.NoError(t, engine.Writer().RemoveFeedsForItem(ctx, newest.ID, models.TypePost))
	page, _, err = engine.GetRawFeed(ctx, author.ID, FeedOptions{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, posts[2].ID, page[0].ItemID)
}

func TestUnseenCounters(t *testing.T) {
	setupRedisTest(t)
	counters := NewCounterService()
	ctx := context.Background()

	count, err := counters.GetUnseen(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, count, "unknown user starts at zero")

	counters.IncrUnseen(ctx, 7)
	counters.IncrUnseen(ctx, 7)
	count, err = counters.GetUnseen(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	counters.ResetUnseen(ctx, 7)
	count, err = counters.GetUnseen(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestUnseenCountersWithoutRedis(t *testing.T) {
	RedisClient = nil
	counters := NewCounterService()
	ctx := context.Background()

	counters.IncrUnseen(ctx, 8)
	count, err := counters.GetUnseen(ctx, 8)
	require.NoError(t, err)
	require.Zero(t, count)
}
