package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"feedgraph/db"
	"feedgraph/models"
)

const removalPageSize = 1000

// NotifyItem identifies a timeline entry in a notification payload.
type NotifyItem struct {
	ItemID   int64  `json:"item_id"`
	ItemType string `json:"item_type"`
}

// notifyFunc emits a best-effort feed event ("feed-add", "feed-remove",
// "feed-view"). It must never fail the caller.
type notifyFunc func(ctx context.Context, action string, ownerID int64, item NotifyItem)

// TimelineWriter owns the append/remove primitives shared by fan-out,
// backfill and cleanup. Writes are idempotent by (timeline, owner, time).
type TimelineWriter struct {
	store  *TimelineStore
	cache  *FeedCache
	notify notifyFunc
}

func NewTimelineWriter(store *TimelineStore, cache *FeedCache, notify notifyFunc) *TimelineWriter {
	return &TimelineWriter{store: store, cache: cache, notify: notify}
}

// UpsertTimeline writes one entry onto the (timeline, owner) log.
func (w *TimelineWriter) UpsertTimeline(ctx context.Context, timeline string, ownerID, itemID int64, itemType, timeID, visibility string, fromFollow *int64) error {
	return w.upsert(ctx, timeline, models.TimelineEntry{
		Timeline:   timeline,
		UserID:     ownerID,
		Time:       timeID,
		ItemID:     itemID,
		ItemType:   itemType,
		Visibility: visibility,
		FromFollow: fromFollow,
	}, nil)
}

// UpsertTimelineWithPost is UpsertTimeline for post entries where the caller
// already holds the post; the payload rides along into the hot-feed cache so
// later reads can expand without refetching.
func (w *TimelineWriter) UpsertTimelineWithPost(ctx context.Context, timeline string, ownerID int64, post *models.Post, timeID, visibility string, fromFollow *int64) error {
	return w.upsert(ctx, timeline, models.TimelineEntry{
		Timeline:   timeline,
		UserID:     ownerID,
		Time:       timeID,
		ItemID:     post.ID,
		ItemType:   models.TypePost,
		Visibility: visibility,
		FromFollow: fromFollow,
	}, post)
}

func (w *TimelineWriter) upsert(ctx context.Context, timeline string, entry models.TimelineEntry, post *models.Post) error {
	if entry.Visibility == "" {
		entry.Visibility = models.VisibilityPublic
	}
	if timeline == models.FeedTimeline && w.notify != nil {
		w.notify(ctx, "feed-add", entry.UserID, NotifyItem{ItemID: entry.ItemID, ItemType: entry.ItemType})
	}
	err := db.GetWriteDB(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s entry for user %d: %w", timeline, entry.UserID, err)
	}
	if timeline == models.FeedTimeline {
		w.cache.Add(ctx, entry.UserID, rawFeedRow{Entry: entry, Post: post})
	}
	timelineWrites.WithLabelValues(timeline, entry.ItemType).Inc()
	return nil
}

// RemoveFeedsForItem removes every entry referencing the item from both
// timeline kinds, across all owners. Used when the underlying entity is
// deleted.
func (w *TimelineWriter) RemoveFeedsForItem(ctx context.Context, itemID int64, itemType string) error {
	for _, timeline := range models.Timelines {
		entries, err := w.store.SelectEntriesForItem(ctx, timeline, itemID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.ItemType != itemType {
				continue
			}
			if err := w.removeEntry(ctx, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveFeedsOlderThan removes the owner's entries older than the given
// time id, scanning in bounded pages. A non-nil fromFollow restricts the
// sweep to entries written through that follow edge, which is how an
// unfollow rolls back backfilled history without touching the owner's own
// entries.
func (w *TimelineWriter) RemoveFeedsOlderThan(ctx context.Context, ownerID int64, timeID string, fromFollow *int64) error {
	for _, timeline := range models.Timelines {
		var targets []models.TimelineEntry
		pageState := ""
		for {
			entries, next, err := w.store.SelectTimeline(ctx, timelineQuery{
				Timeline:  timeline,
				OwnerID:   ownerID,
				OlderThan: timeID,
				PageState: pageState,
				PageSize:  removalPageSize,
			})
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if fromFollow != nil && (entry.FromFollow == nil || *entry.FromFollow != *fromFollow) {
					continue
				}
				targets = append(targets, entry)
			}
			if next == "" {
				break
			}
			pageState = next
		}
		for _, entry := range targets {
			if err := w.removeEntry(ctx, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *TimelineWriter) removeEntry(ctx context.Context, entry models.TimelineEntry) error {
	if entry.Timeline == models.FeedTimeline && w.notify != nil {
		w.notify(ctx, "feed-remove", entry.UserID, NotifyItem{ItemID: entry.ItemID, ItemType: entry.ItemType})
	}
	err := db.GetWriteDB(ctx).
		Where("timeline = ? AND user_id = ? AND time = ?", entry.Timeline, entry.UserID, entry.Time).
		Delete(&models.TimelineEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove %s entry for user %d: %w", entry.Timeline, entry.UserID, err)
	}
	if entry.Timeline == models.FeedTimeline {
		w.cache.Invalidate(ctx, entry.UserID)
	}
	timelineRemovals.WithLabelValues(entry.Timeline).Inc()
	zap.L().Debug("removed timeline entry",
		zap.String("timeline", entry.Timeline),
		zap.Int64("user", entry.UserID),
		zap.String("time", entry.Time))
	return nil
}
