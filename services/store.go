package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"feedgraph/db"
	"feedgraph/models"
)

const followerStreamBatch = 500

// TimelineStore is the query layer over the per-(timeline, owner) append
// logs. Entries are keyed and ordered by their time id, descending for
// normal reads, ascending for the reversed mode backfill uses.
type TimelineStore struct{}

func NewTimelineStore() *TimelineStore {
	return &TimelineStore{}
}

type timelineQuery struct {
	Timeline string
	OwnerID  int64
	// Type and OlderThan are mutually exclusive; Type wins (see FeedOptions).
	Type      string
	OlderThan string
	PageState string
	PageSize  int
	Reversed  bool
}

func encodePageState(timeID string) string {
	return base64.URLEncoding.EncodeToString([]byte(timeID))
}

func decodePageState(state string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		return "", fmt.Errorf("invalid page state: %w", err)
	}
	return string(raw), nil
}

// SelectTimeline returns one page of entries plus an opaque cursor for the
// next page ("" when this page was not full).
func (s *TimelineStore) SelectTimeline(ctx context.Context, q timelineQuery) ([]models.TimelineEntry, string, error) {
	tx := db.GetReadOnlyDB(ctx).
		Model(&models.TimelineEntry{}).
		Where("timeline = ? AND user_id = ?", q.Timeline, q.OwnerID)

	if q.Type != "" {
		tx = tx.Where("item_type = ?", q.Type)
	} else if q.OlderThan != "" {
		tx = tx.Where("time < ?", q.OlderThan)
	}

	if q.PageState != "" {
		cursor, err := decodePageState(q.PageState)
		if err != nil {
			return nil, "", err
		}
		if q.Reversed {
			tx = tx.Where("time > ?", cursor)
		} else {
			tx = tx.Where("time < ?", cursor)
		}
	}

	order := "time DESC"
	if q.Reversed {
		order = "time ASC"
	}

	var entries []models.TimelineEntry
	if err := tx.Order(order).Limit(q.PageSize).Find(&entries).Error; err != nil {
		return nil, "", fmt.Errorf("failed to select %s for user %d: %w", q.Timeline, q.OwnerID, err)
	}

	nextPageState := ""
	if len(entries) == q.PageSize {
		nextPageState = encodePageState(entries[len(entries)-1].Time)
	}
	return entries, nextPageState, nil
}

// SelectEntriesForItem returns every entry on the given timeline kind that
// references the item, regardless of owner. Used for item-targeted cleanup.
func (s *TimelineStore) SelectEntriesForItem(ctx context.Context, timeline string, itemID int64) ([]models.TimelineEntry, error) {
	var entries []models.TimelineEntry
	err := db.GetReadOnlyDB(ctx).
		Where("timeline = ? AND item_id = ?", timeline, itemID).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select entries for item %d: %w", itemID, err)
	}
	return entries, nil
}

// SelectFollowers returns all follow edges pointing at the user.
func (s *TimelineStore) SelectFollowers(ctx context.Context, userID int64) ([]models.Follow, error) {
	var follows []models.Follow
	err := db.GetReadOnlyDB(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&follows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select followers of %d: %w", userID, err)
	}
	return follows, nil
}

// StreamFollowers delivers the user's follow edges row by row on the
// returned channel, reading the underlying table in bounded batches. The
// rows channel is closed at end of stream; a query failure is reported on
// the error channel and terminates the stream.
func (s *TimelineStore) StreamFollowers(ctx context.Context, userID int64) (<-chan models.Follow, <-chan error) {
	rows := make(chan models.Follow, followerStreamBatch)
	errc := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errc)
		lastID := int64(0)
		for {
			var batch []models.Follow
			err := db.GetReadOnlyDB(ctx).
				Where("user_id = ? AND id > ?", userID, lastID).
				Order("id").
				Limit(followerStreamBatch).
				Find(&batch).Error
			if err != nil {
				errc <- fmt.Errorf("failed to stream followers of %d: %w", userID, err)
				return
			}
			for _, row := range batch {
				select {
				case rows <- row:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if len(batch) < followerStreamBatch {
				return
			}
			lastID = batch[len(batch)-1].ID
		}
	}()

	return rows, errc
}
