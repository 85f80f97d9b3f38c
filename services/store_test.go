package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedgraph/models"
)

func TestPageStateRoundTrip(t *testing.T) {
	id := GenerateTimeID(time.Now())
	state := encodePageState(id)
	require.NotEqual(t, id, state, "cursor is opaque")

	decoded, err := decodePageState(state)
	require.NoError(t, err)
	require.Equal(t, id, decoded)

	_, err = decodePageState("%%%not-base64%%%")
	require.Error(t, err)
}

func TestStreamFollowersDeliversEveryEdge(t *testing.T) {
	engine := setupFeedTest(t)
	followed := makeUser(t)
	const n = 1203 // spans multiple stream batches
	for i := 0; i < n; i++ {
		follower := makeUser(t)
		makeFollow(t, follower.ID, followed.ID, "")
	}

	rows, errc := engine.store.StreamFollowers(context.Background(), followed.ID)
	seen := make(map[int64]bool)
	for row := range rows {
		require.False(t, seen[row.ID], "no edge may be delivered twice")
		seen[row.ID] = true
	}
	require.NoError(t, <-errc)
	require.Len(t, seen, n)
}

func TestStreamFollowersStopsOnCancel(t *testing.T) {
	engine := setupFeedTest(t)
	followed := makeUser(t)
	for i := 0; i < 10; i++ {
		follower := makeUser(t)
		makeFollow(t, follower.ID, followed.ID, "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, errc := engine.store.StreamFollowers(ctx, followed.ID)
	count := 0
	for range rows {
		count++
	}
	<-errc
	require.Less(t, count, 10)
}

func TestSelectTimelineTypeWinsOverOlderThan(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	owner := makeUser(t)

	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 1, models.TypePost, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))
	require.NoError(t, engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, owner.ID, 2, models.TypeLike, GenerateTimeID(time.Now()), models.VisibilityPublic, nil))

	// olderThan in the far past would exclude everything; the type filter
	// takes precedence and it is ignored.
	rows, _, err := engine.readRaw(ctx, models.FeedTimeline, owner.ID, FeedOptions{
		Type:      models.TypeLike,
		OlderThan: GenerateTimeID(time.Now().AddDate(-1, 0, 0)),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].Entry.ItemID)
}
