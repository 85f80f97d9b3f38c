package services

import (
	"context"

	"go.uber.org/zap"

	"feedgraph/models"
)

// Notification is the payload emitted on the notify queue for downstream
// consumers (websocket push, unseen counters).
type Notification struct {
	Action string       `json:"action"`
	User   *models.User `json:"user"`
	Item   *NotifyItem  `json:"item,omitempty"`
	Data   *FeedItem    `json:"data,omitempty"`
}

// notify emits a best-effort feed event through the engine's emit hook;
// a nil hook means notifications are off. Any resolution failure aborts
// the notification silently. Never surfaces errors to the caller.
func (e *FeedEngine) notify(ctx context.Context, action string, ownerID int64, item NotifyItem) {
	if e.emit == nil {
		return
	}

	switch action {
	case "feed-add":
		expander, ok := feedExpanders[item.ItemType]
		if !ok {
			return
		}
		owner, err := e.entities.GetUser(ctx, ownerID)
		if err != nil {
			return
		}
		expanded, err := expander(e, ctx, ownerID, rawFeedRow{Entry: models.TimelineEntry{
			ItemID:   item.ItemID,
			ItemType: item.ItemType,
		}})
		if err != nil {
			zap.L().Debug("unable to expand item for notification",
				zap.Int64("user", ownerID),
				zap.Int64("item", item.ItemID),
				zap.Error(err))
			return
		}
		// Do not notify users about their own actions; for follow items the
		// identity check keys on the follower, otherwise on the actor.
		actorID := expanded.actorID
		if item.ItemType == models.TypeFollow {
			actorID = expanded.followerID
		}
		if actorID == owner.ID {
			return
		}
		userCache := make(map[int64]*models.User)
		if err := e.entities.MapUserIDToUser(ctx, []int64{expanded.actorID, expanded.followerID, expanded.friendID}, userCache); err != nil {
			return
		}
		actor := userCache[expanded.actorID]
		if actor == nil {
			return
		}
		data := e.decorate(expanded, actor, userCache, ownerID, ownerID)
		e.emit(ctx, Notification{Action: action, User: owner, Item: &item, Data: data})

	case "feed-remove":
		owner, err := e.entities.GetUser(ctx, ownerID)
		if err != nil {
			return
		}
		e.emit(ctx, Notification{Action: action, User: owner, Item: &item})

	case "feed-view":
		owner, err := e.entities.GetUser(ctx, ownerID)
		if err != nil {
			return
		}
		e.emit(ctx, Notification{Action: action, User: owner})
	}
}

func (e *FeedEngine) submitNotification(ctx context.Context, n Notification) {
	if err := e.transport.Submit(ctx, QueueNotify, n); err != nil {
		zap.L().Debug("failed to submit notification", zap.Error(err))
	}
}
