package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedgraph/models"
)

func TestUpsertTimelineIsIdempotent(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	owner := makeUser(t)
	timeID := GenerateTimeID(time.Now())

	for i := 0; i < 3; i++ {
		err := engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 42, models.TypePost, timeID, models.VisibilityPublic, nil)
		require.NoError(t, err)
	}

	entries := timelineEntries(t, models.FeedTimeline, owner.ID)
	require.Len(t, entries, 1)
	require.Equal(t, int64(42), entries[0].ItemID)
	require.Equal(t, timeID, entries[0].Time)
}

func TestUpsertTimelineDefaultsToPublic(t *testing.T) {
	engine := setupFeedTest(t)
	owner := makeUser(t)

	err := engine.Writer().UpsertTimeline(context.Background(), models.UserTimeline, owner.ID, 7, models.TypePost, GenerateTimeID(time.Now()), "", nil)
	require.NoError(t, err)

	entries := timelineEntries(t, models.UserTimeline, owner.ID)
	require.Len(t, entries, 1)
	require.Equal(t, models.VisibilityPublic, entries[0].Visibility)
}

func TestRemoveFeedsForItemClearsBothTimelines(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	author := makeUser(t)
	follower := makeUser(t)

	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.UserTimeline, author.ID, 9, models.TypePost, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, author.ID, 9, models.TypePost, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, follower.ID, 9, models.TypePost, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))
	// A like sharing the same numeric id must survive the post's removal.
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, follower.ID, 9, models.TypeLike, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))

	require.NoError(t, engine.Writer().RemoveFeedsForItem(ctx, 9, models.TypePost))

	require.Empty(t, timelineEntries(t, models.UserTimeline, author.ID))
	require.Empty(t, timelineEntries(t, models.FeedTimeline, author.ID))
	remaining := timelineEntries(t, models.FeedTimeline, follower.ID)
	require.Len(t, remaining, 1)
	require.Equal(t, models.TypeLike, remaining[0].ItemType)
}

func TestRemoveFeedsOlderThanRespectsCutoff(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	owner := makeUser(t)
	base := time.Now()

	oldID := GenerateTimeID(base.Add(-2 * time.Hour))
	cutoff := GenerateTimeID(base.Add(-1 * time.Hour))
	newID := GenerateTimeID(base)

	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 1, models.TypePost, oldID, models.VisibilityPublic, nil))
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 2, models.TypePost, newID, models.VisibilityPublic, nil))

	require.NoError(t, engine.Writer().RemoveFeedsOlderThan(ctx, owner.ID, cutoff, nil))

	entries := timelineEntries(t, models.FeedTimeline, owner.ID)
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].ItemID)
}

func TestRemoveFeedsOlderThanWithFollowFilterSparesOwnEntries(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	owner := makeUser(t)
	base := time.Now().Add(-time.Hour)
	followID := int64(77)

	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 1, models.TypePost, GenerateTimeID(base), models.VisibilityPublic, &followID))
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 2, models.TypePost, GenerateTimeID(base.Add(time.Minute)), models.VisibilityPublic, nil))
	otherFollow := int64(78)
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 3, models.TypePost, GenerateTimeID(base.Add(2*time.Minute)), models.VisibilityPublic, &otherFollow))

	require.NoError(t, engine.Writer().RemoveFeedsOlderThan(ctx, owner.ID, GenerateTimeID(time.Now()), &followID))

	entries := timelineEntries(t, models.FeedTimeline, owner.ID)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.NotEqual(t, int64(1), entry.ItemID)
	}
}
