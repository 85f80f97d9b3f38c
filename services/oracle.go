package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"feedgraph/db"
	"feedgraph/models"
)

// RelationshipOracle answers the two social-graph questions the feed engine
// depends on: "are these two users friends right now" (gates private
// visibility at fan-out time) and "is this follow edge still active"
// (gates follow-backed entries at read time).
type RelationshipOracle struct{}

func NewRelationshipOracle() *RelationshipOracle {
	return &RelationshipOracle{}
}

// IsFriend reports whether an approved friendship exists between the two
// users, in either direction.
func (ro *RelationshipOracle) IsFriend(ctx context.Context, userID, otherID int64) (bool, error) {
	if userID == otherID {
		return true, nil
	}
	var count int64
	err := db.GetReadOnlyDB(ctx).
		Model(&models.Friend{}).
		Where(
			"((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)) AND status = ?",
			userID, otherID, otherID, userID, "approved",
		).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

// GetFollow resolves a follow edge on behalf of a viewer. A missing edge
// returns ErrNotFound, which is how read-time revalidation observes that a
// follow an entry depended on has since been revoked.
func (ro *RelationshipOracle) GetFollow(ctx context.Context, viewerID, followID int64) (*models.Follow, error) {
	var follow models.Follow
	err := db.GetReadOnlyDB(ctx).First(&follow, followID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get follow %d: %w", followID, err)
	}
	if follow.Visibility == models.VisibilityPersonal &&
		viewerID != follow.UserID && viewerID != follow.FollowerID {
		return nil, ErrForbidden
	}
	return &follow, nil
}
