package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"feedgraph/db"
	"feedgraph/models"
)

// Sentinel errors for the access-filtered entity accessors. The timeline
// reader drops an entry silently when expansion fails with either of these;
// anything else aborts the whole read.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// EntityService resolves the entities timeline entries reference, applying
// the viewer's access rights.
type EntityService struct {
	oracle *RelationshipOracle
}

func NewEntityService() *EntityService {
	return &EntityService{oracle: NewRelationshipOracle()}
}

func (es *EntityService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

func (es *EntityService) GetUserByName(ctx context.Context, nickname string) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("nickname = ?", nickname).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", nickname, err)
	}
	return &user, nil
}

// GetPost resolves a post for a viewer. Private posts require friendship
// with the author, personal posts the author themself.
func (es *EntityService) GetPost(ctx context.Context, viewerID, postID int64) (*models.Post, error) {
	var post models.Post
	err := db.GetReadOnlyDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", postID, err)
	}
	if post.UserID == viewerID {
		return &post, nil
	}
	switch post.Visibility {
	case models.VisibilityPersonal:
		return nil, ErrForbidden
	case models.VisibilityPrivate:
		isFriend, err := es.oracle.IsFriend(ctx, post.UserID, viewerID)
		if err != nil {
			return nil, err
		}
		if !isFriend {
			return nil, ErrForbidden
		}
	}
	return &post, nil
}

func (es *EntityService) GetLike(ctx context.Context, likeID int64) (*models.Like, error) {
	var like models.Like
	err := db.GetReadOnlyDB(ctx).First(&like, likeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get like %d: %w", likeID, err)
	}
	return &like, nil
}

// GetFriend resolves a friendship row; only the two participants may see it.
func (es *EntityService) GetFriend(ctx context.Context, viewerID, friendID int64) (*models.Friend, error) {
	var friend models.Friend
	err := db.GetReadOnlyDB(ctx).First(&friend, friendID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friend %d: %w", friendID, err)
	}
	if viewerID != friend.UserID && viewerID != friend.FriendID {
		return nil, ErrForbidden
	}
	return &friend, nil
}

// MapUserIDToUser resolves a batch of user ids in one query, populating the
// caller-supplied cache so repeated ids across a page cost a single lookup.
func (es *EntityService) MapUserIDToUser(ctx context.Context, userIDs []int64, cache map[int64]*models.User) error {
	missing := make([]int64, 0, len(userIDs))
	seen := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var users []models.User
	if err := db.GetReadOnlyDB(ctx).Where("id IN ?", missing).Find(&users).Error; err != nil {
		return fmt.Errorf("failed to resolve users: %w", err)
	}
	for i := range users {
		cache[users[i].ID] = &users[i]
	}
	return nil
}
