package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"feedgraph/models"
)

var mentionRE = regexp.MustCompile(`@[a-zA-Z0-9]+`)

// FeedAction is one published action to be distributed into timelines. The
// time id is generated once at publish; every fan-out copy shares it except
// mention entries, which get a fresh id at mention-processing time.
type FeedAction struct {
	UserID     int64  `json:"user_id"`
	ItemID     int64  `json:"item_id"`
	ItemType   string `json:"item_type"`
	Time       string `json:"time"`
	Visibility string `json:"visibility"`
	// Follow-type actions carry the edge so fan-out can skip the follower
	// whose feed entry the follow-creation path wrote directly.
	FollowID         int64 `json:"follow_id,omitempty"`
	FollowFollowerID int64 `json:"follow_follower_id,omitempty"`
}

// DegradedRow records a follower that fan-out skipped because of a failed
// lookup or write, so callers can observe degradation instead of losing it.
type DegradedRow struct {
	FollowerID int64  `json:"follower_id"`
	Reason     string `json:"reason"`
}

// FanoutResult accounts for every row the fan-out read.
type FanoutResult struct {
	Read     int           `json:"read"`
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Degraded []DegradedRow `json:"degraded,omitempty"`
}

// FanOutToFollowers streams the actor's followers and writes a feed entry
// per included follower. Per-row friendship-check or write failures degrade
// to a skip; a stream-level failure aborts the whole operation. Completion
// is an explicit barrier: the stream must have ended and every streamed
// row's processing must have finished.
func (e *FeedEngine) FanOutToFollowers(ctx context.Context, action FeedAction) (*FanoutResult, error) {
	result := &FanoutResult{}

	// Personal actions never leave the actor's own timelines.
	if action.Visibility == models.VisibilityPersonal {
		fanoutSkips.WithLabelValues("personal").Inc()
		return result, nil
	}

	rows, errc := e.store.StreamFollowers(ctx, action.UserID)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	isPrivate := action.Visibility == models.VisibilityPrivate

	for row := range rows {
		result.Read++
		wg.Add(1)
		go func(row models.Follow) {
			defer wg.Done()

			// The new follower of a follow action got their entry directly
			// from the follow-creation path; fanning out to them too would
			// double-insert.
			if action.ItemType == models.TypeFollow && row.FollowerID == action.FollowFollowerID {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				fanoutSkips.WithLabelValues("follow_object").Inc()
				return
			}

			if isPrivate {
				isFriend, err := e.oracle.IsFriend(ctx, action.UserID, row.FollowerID)
				if err != nil {
					zap.L().Warn("friendship check failed during fan-out, skipping follower",
						zap.Int64("user", action.UserID),
						zap.Int64("follower", row.FollowerID),
						zap.Error(err))
					mu.Lock()
					result.Degraded = append(result.Degraded, DegradedRow{FollowerID: row.FollowerID, Reason: err.Error()})
					mu.Unlock()
					fanoutSkips.WithLabelValues("degraded").Inc()
					return
				}
				if !isFriend {
					mu.Lock()
					result.Skipped++
					mu.Unlock()
					fanoutSkips.WithLabelValues("not_friend").Inc()
					return
				}
			}

			fromFollow := row.ID
			err := e.writer.UpsertTimeline(ctx, models.FeedTimeline, row.FollowerID,
				action.ItemID, action.ItemType, action.Time, action.Visibility, &fromFollow)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("fan-out write failed, skipping follower",
					zap.Int64("follower", row.FollowerID),
					zap.Error(err))
				result.Degraded = append(result.Degraded, DegradedRow{FollowerID: row.FollowerID, Reason: err.Error()})
				return
			}
			result.Written++
		}(row)
	}

	// The stream can end while per-row work is still in flight; join before
	// reporting completion.
	wg.Wait()

	if err := <-errc; err != nil {
		return nil, err
	}
	return result, nil
}

// FanOutToMentions distributes a post to users mentioned in its body who
// would not already receive it through follower fan-out. Missing posts,
// non-hypertext content and unresolved mention names are no-ops; failures
// in the friendship or follower-set stages abort the pipeline.
func (e *FeedEngine) FanOutToMentions(ctx context.Context, action FeedAction) (*FanoutResult, error) {
	result := &FanoutResult{}

	post, err := e.entities.GetPost(ctx, action.UserID, action.ItemID)
	if err != nil || post == nil || post.ContentType != "text/html" {
		return result, nil
	}

	tokens := mentionRE.FindAllString(post.Content, -1)
	if len(tokens) == 0 {
		return result, nil
	}

	// Resolve every token and precompute friendship for all resolved users
	// before filtering; private gating below consumes it.
	type mentionedUser struct {
		user     *models.User
		isFriend bool
	}
	var mentioned []mentionedUser
	for _, token := range tokens {
		name := strings.TrimPrefix(token, "@")
		user, err := e.entities.GetUserByName(ctx, name)
		if err != nil {
			// Unresolved names are dropped silently.
			continue
		}
		isFriend, err := e.oracle.IsFriend(ctx, user.ID, action.UserID)
		if err != nil {
			return nil, err
		}
		mentioned = append(mentioned, mentionedUser{user: user, isFriend: isFriend})
	}

	followers, err := e.store.SelectFollowers(ctx, action.UserID)
	if err != nil {
		return nil, err
	}
	followerSet := make(map[int64]bool, len(followers))
	for _, f := range followers {
		followerSet[f.FollowerID] = true
	}

	isPrivate := action.Visibility == models.VisibilityPrivate
	for _, m := range mentioned {
		result.Read++
		if followerSet[m.user.ID] || m.user.ID == action.UserID {
			result.Skipped++
			fanoutSkips.WithLabelValues("already_follower").Inc()
			continue
		}
		if isPrivate && !m.isFriend {
			result.Skipped++
			fanoutSkips.WithLabelValues("not_friend").Inc()
			continue
		}
		// A fresh time id sorts the mention at mention-processing time, not
		// at the original post time.
		timeID := GenerateTimeID(time.Now())
		err := e.writer.UpsertTimelineWithPost(ctx, models.FeedTimeline, m.user.ID,
			post, timeID, action.Visibility, nil)
		if err != nil {
			return nil, err
		}
		result.Written++
	}
	return result, nil
}
