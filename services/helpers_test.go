package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"feedgraph/db"
	"feedgraph/models"
)

// setupFeedTest connects an in-memory database, wipes every table and
// returns an engine without a transport, so dispatch runs synchronously.
func setupFeedTest(t *testing.T) *FeedEngine {
	t.Helper()
	require.NoError(t, db.ConnectTest())
	for _, table := range []string{"timeline_entries", "posts", "likes", "follows", "friends", "users", "user_tokens"} {
		require.NoError(t, db.ORM.Exec("DELETE FROM "+table).Error)
	}
	return NewFeedEngine(nil)
}

// setupRedisTest points the package redis client at an in-process server
// for the duration of the test.
func setupRedisTest(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = RedisClient.Close()
		RedisClient = nil
	})
}

func makeUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		Nickname:  gofakeit.Username() + gofakeit.DigitN(6),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		City:      gofakeit.City(),
	}
	require.NoError(t, db.ORM.Create(user).Error)
	return user
}

func makeFollow(t *testing.T, followerID, followedID int64, visibility string) *models.Follow {
	t.Helper()
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	follow := &models.Follow{
		UserID:     followedID,
		FollowerID: followerID,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, db.ORM.Create(follow).Error)
	return follow
}

func makeFriends(t *testing.T, userID, friendID int64) {
	t.Helper()
	require.NoError(t, db.ORM.Create(&models.Friend{
		UserID:     userID,
		FriendID:   friendID,
		Status:     "approved",
		CreatedAt:  time.Now(),
		ApprovedAt: time.Now(),
	}).Error)
}

func makePost(t *testing.T, userID int64, content, visibility string) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID:      userID,
		Content:     content,
		ContentType: "text/html",
		Visibility:  visibility,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, db.ORM.Create(post).Error)
	return post
}

func setContentType(postID int64, contentType string) error {
	return db.ORM.Model(&models.Post{}).Where("id = ?", postID).Update("content_type", contentType).Error
}

func timelineEntries(t *testing.T, timeline string, ownerID int64) []models.TimelineEntry {
	t.Helper()
	var entries []models.TimelineEntry
	require.NoError(t, db.ORM.
		Where("timeline = ? AND user_id = ?", timeline, ownerID).
		Order("time DESC").
		Find(&entries).Error)
	return entries
}

func publishPost(t *testing.T, e *FeedEngine, post *models.Post) string {
	t.Helper()
	timeID, err := e.AddFeedItem(context.Background(), post.UserID, post.ID, models.TypePost, post.CreatedAt, post.Visibility, nil)
	require.NoError(t, err)
	return timeID
}
