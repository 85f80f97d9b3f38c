package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedgraph/models"
)

func TestFanOutToFollowersPublic(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	author := makeUser(t)
	followers := []*models.User{makeUser(t), makeUser(t), makeUser(t)}
	var edges []*models.Follow
	for _, f := range followers {
		edges = append(edges, makeFollow(t, f.ID, author.ID, ""))
	}
	post := makePost(t, author.ID, "hello", models.VisibilityPublic)
	timeID := GenerateTimeID(post.CreatedAt)

	result, err := engine.FanOutToFollowers(ctx, FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       timeID,
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Read)
	require.Equal(t, 3, result.Written)
	require.Empty(t, result.Degraded)

	for i, f := range followers {
		entries := timelineEntries(t, models.FeedTimeline, f.ID)
		require.Len(t, entries, 1)
		require.Equal(t, post.ID, entries[0].ItemID)
		require.Equal(t, timeID, entries[0].Time, "fan-out copies share the publish time id")
		require.NotNil(t, entries[0].FromFollow)
		require.Equal(t, edges[i].ID, *entries[0].FromFollow)
	}
}

func TestFanOutToFollowersPersonalNeverLeaves(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	follower := makeUser(t)
	makeFollow(t, follower.ID, author.ID, "")
	post := makePost(t, author.ID, "note to self", models.VisibilityPersonal)

	result, err := engine.FanOutToFollowers(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       GenerateTimeID(post.CreatedAt),
		Visibility: models.VisibilityPersonal,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Read)
	require.Empty(t, timelineEntries(t, models.FeedTimeline, follower.ID))
}

func TestFanOutToFollowersPrivateOnlyReachesFriends(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	friend := makeUser(t)
	stranger := makeUser(t)
	makeFollow(t, friend.ID, author.ID, "")
	makeFollow(t, stranger.ID, author.ID, "")
	makeFriends(t, author.ID, friend.ID)
	post := makePost(t, author.ID, "friends only", models.VisibilityPrivate)

	result, err := engine.FanOutToFollowers(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       GenerateTimeID(post.CreatedAt),
		Visibility: models.VisibilityPrivate,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Read)
	require.Equal(t, 1, result.Written)
	require.Equal(t, 1, result.Skipped)

	require.Len(t, timelineEntries(t, models.FeedTimeline, friend.ID), 1)
	require.Empty(t, timelineEntries(t, models.FeedTimeline, stranger.ID))
}

func TestFanOutSkipsTheFollowActionObject(t *testing.T) {
	engine := setupFeedTest(t)
	ctx := context.Background()
	followed := makeUser(t)
	newFollower := makeUser(t)
	oldFollower := makeUser(t)
	newEdge := makeFollow(t, newFollower.ID, followed.ID, "")
	makeFollow(t, oldFollower.ID, followed.ID, "")

	result, err := engine.FanOutToFollowers(ctx, FeedAction{
		UserID:           followed.ID,
		ItemID:           newEdge.ID,
		ItemType:         models.TypeFollow,
		Time:             GenerateTimeID(time.Now()),
		Visibility:       models.VisibilityPublic,
		FollowID:         newEdge.ID,
		FollowFollowerID: newFollower.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Read)
	require.Equal(t, 1, result.Written)
	require.Equal(t, 1, result.Skipped)

	// The new follower's copy comes from the follow-creation path, not from
	// fan-out; fan-out must not have written one.
	require.Empty(t, timelineEntries(t, models.FeedTimeline, newFollower.ID))
	require.Len(t, timelineEntries(t, models.FeedTimeline, oldFollower.ID), 1)
}

func TestFanOutToMentionsWritesFreshTimeID(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	mentioned := makeUser(t)
	post := makePost(t, author.ID, "hey @"+mentioned.Nickname, models.VisibilityPublic)
	publishID := GenerateTimeID(post.CreatedAt.Add(-time.Hour))

	result, err := engine.FanOutToMentions(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       publishID,
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Written)

	entries := timelineEntries(t, models.FeedTimeline, mentioned.ID)
	require.Len(t, entries, 1)
	require.Greater(t, entries[0].Time, publishID, "mention entries sort at mention-processing time")
	require.Nil(t, entries[0].FromFollow)
}

func TestFanOutToMentionsSkipsFollowersAndSelf(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	followerMention := makeUser(t)
	makeFollow(t, followerMention.ID, author.ID, "")
	post := makePost(t, author.ID, "@"+followerMention.Nickname+" and @"+author.Nickname, models.VisibilityPublic)

	result, err := engine.FanOutToMentions(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       GenerateTimeID(post.CreatedAt),
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Written)
	require.Equal(t, 2, result.Skipped)
	require.Empty(t, timelineEntries(t, models.FeedTimeline, followerMention.ID))
}

func TestFanOutToMentionsPrivateRequiresFriendship(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	friend := makeUser(t)
	stranger := makeUser(t)
	makeFriends(t, friend.ID, author.ID)
	post := makePost(t, author.ID, "@"+friend.Nickname+" @"+stranger.Nickname, models.VisibilityPrivate)

	result, err := engine.FanOutToMentions(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       GenerateTimeID(post.CreatedAt),
		Visibility: models.VisibilityPrivate,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Written)
	require.Len(t, timelineEntries(t, models.FeedTimeline, friend.ID), 1)
	require.Empty(t, timelineEntries(t, models.FeedTimeline, stranger.ID))
}

func TestFanOutToMentionsIgnoresNonHypertext(t *testing.T) {
	engine := setupFeedTest(t)
	author := makeUser(t)
	mentioned := makeUser(t)
	post := makePost(t, author.ID, "@"+mentioned.Nickname, models.VisibilityPublic)
	require.NoError(t, setContentType(post.ID, "application/json"))

	result, err := engine.FanOutToMentions(context.Background(), FeedAction{
		UserID:     author.ID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Time:       GenerateTimeID(post.CreatedAt),
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Read)
	require.Empty(t, timelineEntries(t, models.FeedTimeline, mentioned.ID))
}
