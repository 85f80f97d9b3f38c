package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"feedgraph/models"
)

// FeedEngine is the fan-out and timeline engine: it distributes published
// actions into per-recipient timelines and serves them back as paginated,
// access-filtered, expanded streams.
type FeedEngine struct {
	store     *TimelineStore
	writer    *TimelineWriter
	oracle    *RelationshipOracle
	entities  *EntityService
	cache     *FeedCache
	counters  *CounterService
	transport *Transport
	// emit delivers a prepared notification; nil disables the hook.
	emit func(ctx context.Context, n Notification)
}

// NewFeedEngine wires the engine over the given transport. A nil transport
// means every fan-out runs synchronously in-process.
func NewFeedEngine(transport *Transport) *FeedEngine {
	e := &FeedEngine{
		store:     NewTimelineStore(),
		oracle:    NewRelationshipOracle(),
		entities:  NewEntityService(),
		cache:     NewFeedCache(),
		counters:  NewCounterService(),
		transport: transport,
	}
	if transport.FeedNotifications() {
		e.emit = e.submitNotification
	}
	e.writer = NewTimelineWriter(e.store, e.cache, e.notify)
	return e
}

// Writer exposes the timeline writer for the entity lifecycle paths
// (post deletion, unfollow rollback).
func (e *FeedEngine) Writer() *TimelineWriter {
	return e.writer
}

// Entities exposes the access-checked entity lookups.
func (e *FeedEngine) Entities() *EntityService {
	return e.entities
}

// AddFeedItem publishes an action: the actor's own timelines are written
// synchronously, then follower fan-out and (for posts) mention fan-out run
// inline or are submitted to the async transport. A failed synchronous
// fan-out is logged, not raised; a failed transport submission is raised.
// Returns the action's time id.
func (e *FeedEngine) AddFeedItem(ctx context.Context, actorID, itemID int64, itemType string, createdAt time.Time, visibility string, follow *models.Follow) (string, error) {
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	action := FeedAction{
		UserID:     actorID,
		ItemID:     itemID,
		ItemType:   itemType,
		Time:       GenerateTimeID(createdAt),
		Visibility: visibility,
	}
	if follow != nil {
		action.FollowID = follow.ID
		action.FollowFollowerID = follow.FollowerID
	}

	// Own timelines are always written synchronously, regardless of mode.
	for _, timeline := range models.Timelines {
		err := e.writer.UpsertTimeline(ctx, timeline, actorID,
			action.ItemID, action.ItemType, action.Time, action.Visibility, nil)
		if err != nil {
			return "", err
		}
	}

	if e.transport.Enabled() {
		if err := e.transport.Submit(ctx, QueueFanoutFollowers, action); err != nil {
			return "", fmt.Errorf("failed to submit follower fan-out: %w", err)
		}
	} else {
		if result, err := e.FanOutToFollowers(ctx, action); err != nil {
			zap.L().Error("follower fan-out failed",
				zap.Int64("user", actorID),
				zap.Int64("item", itemID),
				zap.Error(err))
		} else if len(result.Degraded) > 0 {
			zap.L().Warn("follower fan-out degraded",
				zap.Int64("user", actorID),
				zap.Int("degraded", len(result.Degraded)))
		}
	}

	// Mention processing applies only to non-personal posts, regardless of
	// dispatch mode.
	if itemType == models.TypePost && visibility != models.VisibilityPersonal {
		if e.transport.Enabled() {
			if err := e.transport.Submit(ctx, QueueFanoutMentions, action); err != nil {
				return "", fmt.Errorf("failed to submit mention fan-out: %w", err)
			}
		} else {
			if _, err := e.FanOutToMentions(ctx, action); err != nil {
				zap.L().Error("mention fan-out failed",
					zap.Int64("user", actorID),
					zap.Int64("item", itemID),
					zap.Error(err))
			}
		}
	}

	return action.Time, nil
}

// SeedFeed backfills a new follower's feed with the followed user's prior
// public posts, bounded to backfill items read in reversed order, each
// tagged with the new follow edge so an unfollow can roll them back.
// Non-public items in the window are skipped, not substituted.
func (e *FeedEngine) SeedFeed(ctx context.Context, followerID, followedID int64, backfill int, follow *models.Follow) error {
	if backfill <= 0 || follow == nil {
		return nil
	}
	entries, _, err := e.GetReversedUserFeed(ctx, followedID, FeedOptions{
		Type:     models.TypePost,
		PageSize: backfill,
	})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Visibility != models.VisibilityPublic {
			continue
		}
		fromFollow := follow.ID
		// The original item's own time id keeps backfilled history in its
		// original order.
		err := e.writer.UpsertTimeline(ctx, models.FeedTimeline, followerID,
			entry.ItemID, entry.ItemType, entry.Time, entry.Visibility, &fromFollow)
		if err != nil {
			return err
		}
	}
	return nil
}
