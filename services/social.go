package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"feedgraph/config"
	"feedgraph/db"
	"feedgraph/models"
)

const defaultBackfillWindow = 50

// SocialService is the action lifecycle glue: it persists posts, likes,
// follows and friendships and publishes each accepted action into the feed
// engine.
type SocialService struct {
	engine *FeedEngine
}

func NewSocialService(engine *FeedEngine) *SocialService {
	return &SocialService{engine: engine}
}

func backfillWindow() int {
	if config.AppConfig != nil && config.AppConfig.Feed.BackfillWindow > 0 {
		return config.AppConfig.Feed.BackfillWindow
	}
	return defaultBackfillWindow
}

// CreatePost persists a post and publishes it.
func (ss *SocialService) CreatePost(ctx context.Context, userID int64, content, contentType, visibility string) (*models.Post, error) {
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if contentType == "" {
		contentType = "text/html"
	}
	post := &models.Post{
		UserID:      userID,
		Content:     content,
		ContentType: contentType,
		Visibility:  visibility,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	if _, err := ss.engine.AddFeedItem(ctx, userID, post.ID, models.TypePost, post.CreatedAt, visibility, nil); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post and sweeps its entries from every timeline.
// Only the author may delete; ErrNotFound and ErrForbidden let the HTTP
// layer map the refusal.
func (ss *SocialService) DeletePost(ctx context.Context, userID, postID int64) error {
	var post models.Post
	err := db.GetWriteDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find post: %w", err)
	}
	if post.UserID != userID {
		return ErrForbidden
	}
	if err := db.GetWriteDB(ctx).Delete(&post).Error; err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return ss.engine.Writer().RemoveFeedsForItem(ctx, postID, models.TypePost)
}

// LikePost records a like and publishes it.
func (ss *SocialService) LikePost(ctx context.Context, userID, postID int64) (*models.Like, error) {
	if _, err := ss.engine.entities.GetPost(ctx, userID, postID); err != nil {
		return nil, err
	}
	like := &models.Like{UserID: userID, PostID: postID, CreatedAt: time.Now()}
	if err := db.GetWriteDB(ctx).Create(like).Error; err != nil {
		return nil, fmt.Errorf("failed to create like: %w", err)
	}
	if _, err := ss.engine.AddFeedItem(ctx, userID, like.ID, models.TypeLike, like.CreatedAt, models.VisibilityPublic, nil); err != nil {
		return nil, err
	}
	return like, nil
}

// FollowUser creates a follow edge. The new follower's feed entry is
// written directly here (follower fan-out skips them for exactly that
// reason), the action is published on the followed user's graph, and the
// follower's feed is seeded with backfilled history.
func (ss *SocialService) FollowUser(ctx context.Context, followerID, followedID int64, visibility string) (*models.Follow, error) {
	if followerID == followedID {
		return nil, fmt.Errorf("cannot follow yourself")
	}
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	var existing models.Follow
	err := db.GetReadOnlyDB(ctx).
		Where("user_id = ? AND follower_id = ?", followedID, followerID).
		First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("already following")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check follow: %w", err)
	}

	follow := &models.Follow{
		UserID:     followedID,
		FollowerID: followerID,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(follow).Error; err != nil {
		return nil, fmt.Errorf("failed to create follow: %w", err)
	}

	err = ss.engine.Writer().UpsertTimeline(ctx, models.FeedTimeline, followerID,
		follow.ID, models.TypeFollow, GenerateTimeID(follow.CreatedAt), visibility, nil)
	if err != nil {
		return nil, err
	}

	if _, err := ss.engine.AddFeedItem(ctx, followedID, follow.ID, models.TypeFollow, follow.CreatedAt, visibility, follow); err != nil {
		return nil, err
	}

	if err := ss.engine.SeedFeed(ctx, followerID, followedID, backfillWindow(), follow); err != nil {
		return nil, err
	}
	return follow, nil
}

// UnfollowUser removes the edge, sweeps its follow entries from all
// timelines and rolls back the backfilled history the edge brought in.
func (ss *SocialService) UnfollowUser(ctx context.Context, followerID, followedID int64) error {
	var follow models.Follow
	err := db.GetWriteDB(ctx).
		Where("user_id = ? AND follower_id = ?", followedID, followerID).
		First(&follow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("not following")
	}
	if err != nil {
		return fmt.Errorf("failed to find follow: %w", err)
	}

	if err := db.GetWriteDB(ctx).Delete(&follow).Error; err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	if err := ss.engine.Writer().RemoveFeedsForItem(ctx, follow.ID, models.TypeFollow); err != nil {
		return err
	}

	fromFollow := follow.ID
	return ss.engine.Writer().RemoveFeedsOlderThan(ctx, followerID, GenerateTimeID(time.Now()), &fromFollow)
}

// AddFriend files a friend request.
func (ss *SocialService) AddFriend(ctx context.Context, userID, friendID int64) (*models.Friend, error) {
	if userID == friendID {
		return nil, fmt.Errorf("cannot add yourself as friend")
	}

	var existing models.Friend
	err := db.GetReadOnlyDB(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		First(&existing).Error
	if err == nil {
		if existing.Status == "approved" {
			return nil, fmt.Errorf("friendship already exists")
		}
		return nil, fmt.Errorf("friend request already pending")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}

	friendship := &models.Friend{
		UserID:    userID,
		FriendID:  friendID,
		Status:    "pending",
		CreatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(friendship).Error; err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}
	return friendship, nil
}

// ApproveFriend accepts a pending request and publishes the friendship on
// both participants' graphs, private visibility.
func (ss *SocialService) ApproveFriend(ctx context.Context, userID, requesterID int64) (*models.Friend, error) {
	var friendship models.Friend
	err := db.GetWriteDB(ctx).
		Where("user_id = ? AND friend_id = ? AND status = ?", requesterID, userID, "pending").
		First(&friendship).Error
	if err != nil {
		return nil, fmt.Errorf("friend request not found")
	}

	friendship.Status = "approved"
	friendship.ApprovedAt = time.Now()
	if err := db.GetWriteDB(ctx).Save(&friendship).Error; err != nil {
		return nil, fmt.Errorf("failed to approve friendship: %w", err)
	}

	for _, actorID := range []int64{friendship.UserID, friendship.FriendID} {
		if _, err := ss.engine.AddFeedItem(ctx, actorID, friendship.ID, models.TypeFriend, friendship.ApprovedAt, models.VisibilityPrivate, nil); err != nil {
			return nil, err
		}
	}
	return &friendship, nil
}

// DeleteFriend removes the friendship outright.
func (ss *SocialService) DeleteFriend(ctx context.Context, userID, friendID int64) error {
	err := db.GetWriteDB(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&models.Friend{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	return nil
}

// GetFriends returns the user's approved friends.
func (ss *SocialService) GetFriends(ctx context.Context, userID int64) ([]models.User, error) {
	var friends []models.User
	err := db.GetReadOnlyDB(ctx).
		Table("users u").
		Joins("JOIN friends f ON (f.user_id = u.id AND f.friend_id = ?) OR (f.friend_id = u.id AND f.user_id = ?)", userID, userID).
		Where("f.status = ? AND u.id != ?", "approved", userID).
		Select("u.id, u.nickname, u.first_name, u.last_name, u.city, u.created_at").
		Find(&friends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get friends: %w", err)
	}
	return friends, nil
}
