package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// StartWorkers attaches the fan-out job consumers and the notification
// consumer to the transport queues. No-op when the transport is disabled.
func (e *FeedEngine) StartWorkers(ctx context.Context) error {
	if !e.transport.Enabled() {
		return nil
	}

	err := e.transport.Consume(ctx, QueueFanoutFollowers, func(ctx context.Context, body []byte) {
		var action FeedAction
		if err := json.Unmarshal(body, &action); err != nil {
			zap.L().Error("failed to unmarshal follower fan-out job", zap.Error(err))
			return
		}
		if result, err := e.FanOutToFollowers(ctx, action); err != nil {
			zap.L().Error("follower fan-out job failed",
				zap.Int64("user", action.UserID),
				zap.Error(err))
		} else if len(result.Degraded) > 0 {
			zap.L().Warn("follower fan-out job degraded",
				zap.Int64("user", action.UserID),
				zap.Int("degraded", len(result.Degraded)))
		}
	})
	if err != nil {
		return err
	}

	err = e.transport.Consume(ctx, QueueFanoutMentions, func(ctx context.Context, body []byte) {
		var action FeedAction
		if err := json.Unmarshal(body, &action); err != nil {
			zap.L().Error("failed to unmarshal mention fan-out job", zap.Error(err))
			return
		}
		if _, err := e.FanOutToMentions(ctx, action); err != nil {
			zap.L().Error("mention fan-out job failed",
				zap.Int64("user", action.UserID),
				zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	// Notifications fan to websockets and feed the unseen counters.
	return e.transport.Consume(ctx, QueueNotify, e.handleNotification)
}

// handleNotification consumes one notification payload: feed-add bumps the
// owner's unseen counter, feed-view clears it, and every event is pushed to
// the owner's live websocket connections.
func (e *FeedEngine) handleNotification(ctx context.Context, body []byte) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		zap.L().Error("failed to unmarshal notification", zap.Error(err))
		return
	}
	if n.User == nil {
		return
	}
	switch n.Action {
	case "feed-add":
		e.counters.IncrUnseen(ctx, n.User.ID)
	case "feed-view":
		e.counters.ResetUnseen(ctx, n.User.ID)
	}
	GlobalWSConnManager.Send(n.User.ID, body)
}
