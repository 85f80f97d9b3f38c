package services

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"feedgraph/models"
)

const defaultPageSize = 50

// FeedOptions configures a timeline read. The zero value reads the newest
// defaultPageSize entries, fully expanded.
//
// Type and OlderThan are mutually exclusive, a constraint inherited from
// the storage layer's parameter handling: when both are set, Type wins and
// OlderThan is ignored.
type FeedOptions struct {
	Type      string // filter to one item type
	OlderThan string // only entries older than this time id
	PageState string // opaque cursor from a previous page
	PageSize  int    // defaults to 50
	Reversed  bool   // ascending order (backfill mode)
}

// FeedItem is one expanded, decorated timeline entry.
type FeedItem struct {
	ItemID     int64     `json:"item_id"`
	Type       string    `json:"type"`
	Time       string    `json:"time"`
	Date       time.Time `json:"date"`
	FromNow    string    `json:"from_now"`
	Visibility string    `json:"visibility"`

	IsPrivate  bool `json:"is_private"`
	IsPersonal bool `json:"is_personal"`
	IsPublic   bool `json:"is_public"`

	IsPost   bool `json:"is_post"`
	IsLike   bool `json:"is_like"`
	IsFollow bool `json:"is_follow"`
	IsFriend bool `json:"is_friend"`

	FromSomeoneYouFollow bool `json:"from_someone_you_follow"`
	IsUsersItem          bool `json:"is_users_item"`
	IsFollower           bool `json:"is_follower"`

	User     *models.User `json:"user"`
	Follower *models.User `json:"follower,omitempty"`
	Friend   *models.User `json:"friend,omitempty"`

	Post       *models.Post   `json:"post,omitempty"`
	Like       *models.Like   `json:"like,omitempty"`
	Follow     *models.Follow `json:"follow,omitempty"`
	FriendEdge *models.Friend `json:"friend_edge,omitempty"`
}

// expandedItem is the pre-decoration output of a type expander: the
// resolved entity plus the user references to batch-resolve afterwards.
type expandedItem struct {
	row        rawFeedRow
	actorID    int64
	followerID int64
	friendID   int64

	post   *models.Post
	like   *models.Like
	follow *models.Follow
	friend *models.Friend
}

type expanderFunc func(e *FeedEngine, ctx context.Context, viewerID int64, row rawFeedRow) (*expandedItem, error)

// feedExpanders is the static type-tag to expander mapping, resolved once
// at startup and never mutated.
var feedExpanders = map[string]expanderFunc{
	models.TypePost:   expandPost,
	models.TypeLike:   expandLike,
	models.TypeFollow: expandFollow,
	models.TypeFriend: expandFriend,
}

func expandPost(e *FeedEngine, ctx context.Context, viewerID int64, row rawFeedRow) (*expandedItem, error) {
	post := row.Post
	if post == nil {
		var err error
		post, err = e.entities.GetPost(ctx, viewerID, row.Entry.ItemID)
		if err != nil {
			return nil, err
		}
	}
	return &expandedItem{row: row, actorID: post.UserID, post: post}, nil
}

func expandLike(e *FeedEngine, ctx context.Context, viewerID int64, row rawFeedRow) (*expandedItem, error) {
	like, err := e.entities.GetLike(ctx, row.Entry.ItemID)
	if err != nil {
		return nil, err
	}
	return &expandedItem{row: row, actorID: like.UserID, like: like}, nil
}

func expandFollow(e *FeedEngine, ctx context.Context, viewerID int64, row rawFeedRow) (*expandedItem, error) {
	follow, err := e.oracle.GetFollow(ctx, viewerID, row.Entry.ItemID)
	if err != nil {
		return nil, err
	}
	return &expandedItem{row: row, actorID: follow.UserID, followerID: follow.FollowerID, follow: follow}, nil
}

func expandFriend(e *FeedEngine, ctx context.Context, viewerID int64, row rawFeedRow) (*expandedItem, error) {
	friend, err := e.entities.GetFriend(ctx, viewerID, row.Entry.ItemID)
	if err != nil {
		return nil, err
	}
	return &expandedItem{row: row, actorID: friend.UserID, friendID: friend.FriendID, friend: friend}, nil
}

// GetFeed reads the owner's aggregated feed on behalf of a viewer. An
// owner viewing their own feed emits a best-effort feed-view event.
func (e *FeedEngine) GetFeed(ctx context.Context, viewerID, ownerID int64, opts FeedOptions) ([]*FeedItem, string, error) {
	if viewerID == ownerID {
		e.notify(ctx, "feed-view", ownerID, NotifyItem{})
	}
	return e.readTimeline(ctx, viewerID, models.FeedTimeline, ownerID, opts)
}

// GetUserFeed reads the owner's own-actions timeline.
func (e *FeedEngine) GetUserFeed(ctx context.Context, viewerID, ownerID int64, opts FeedOptions) ([]*FeedItem, string, error) {
	return e.readTimeline(ctx, viewerID, models.UserTimeline, ownerID, opts)
}

// GetRawFeed reads the owner's feed without expansion or revalidation.
func (e *FeedEngine) GetRawFeed(ctx context.Context, ownerID int64, opts FeedOptions) ([]models.TimelineEntry, string, error) {
	rows, next, err := e.readRaw(ctx, models.FeedTimeline, ownerID, opts)
	if err != nil {
		return nil, "", err
	}
	entries := make([]models.TimelineEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.Entry
	}
	return entries, next, nil
}

// GetReversedUserFeed reads the owner's own-actions timeline unexpanded in
// ascending order; backfill seeds from it.
func (e *FeedEngine) GetReversedUserFeed(ctx context.Context, ownerID int64, opts FeedOptions) ([]models.TimelineEntry, string, error) {
	opts.Reversed = true
	rows, next, err := e.readRaw(ctx, models.UserTimeline, ownerID, opts)
	if err != nil {
		return nil, "", err
	}
	entries := make([]models.TimelineEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.Entry
	}
	return entries, next, nil
}

// readRaw fetches one unexpanded page, serving the unfiltered first page of
// a feed_timeline from the hot cache when possible and priming the cache on
// a storage read.
func (e *FeedEngine) readRaw(ctx context.Context, timeline string, ownerID int64, opts FeedOptions) ([]rawFeedRow, string, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Type != "" {
		// Single optional filter: the type filter wins over olderThan.
		opts.OlderThan = ""
	}

	timelineReads.WithLabelValues(timeline).Inc()

	cacheable := timeline == models.FeedTimeline &&
		opts.Type == "" && opts.OlderThan == "" && opts.PageState == "" && !opts.Reversed
	if cacheable {
		if rows, ok := e.cache.ReadFirstPage(ctx, ownerID, opts.PageSize); ok {
			next := ""
			if len(rows) == opts.PageSize {
				next = encodePageState(rows[len(rows)-1].Entry.Time)
			}
			return rows, next, nil
		}
	}

	entries, next, err := e.store.SelectTimeline(ctx, timelineQuery{
		Timeline:  timeline,
		OwnerID:   ownerID,
		Type:      opts.Type,
		OlderThan: opts.OlderThan,
		PageState: opts.PageState,
		PageSize:  opts.PageSize,
		Reversed:  opts.Reversed,
	})
	if err != nil {
		return nil, "", err
	}
	rows := make([]rawFeedRow, len(entries))
	for i, entry := range entries {
		rows[i] = rawFeedRow{Entry: entry}
	}
	if cacheable {
		e.cache.Prime(ctx, ownerID, rows)
	}
	return rows, next, nil
}

// readTimeline is the full read path: page query, follow revalidation with
// a page-scoped cache, type expansion, batched user resolution, decoration.
// Expansion is sequential on purpose: later entries reuse the follow-cache
// outcomes earlier entries populated.
func (e *FeedEngine) readTimeline(ctx context.Context, viewerID int64, timeline string, ownerID int64, opts FeedOptions) ([]*FeedItem, string, error) {
	rows, nextPageState, err := e.readRaw(ctx, timeline, ownerID, opts)
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return []*FeedItem{}, "", nil
	}

	// Lives for this page only; never shared across calls.
	followCache := make(map[int64]bool)

	var expanded []*expandedItem
	for _, row := range rows {
		if row.Entry.FromFollow != nil {
			followID := *row.Entry.FromFollow
			active, cached := followCache[followID]
			if !cached {
				_, err := e.oracle.GetFollow(ctx, viewerID, followID)
				active = err == nil
				followCache[followID] = active
			}
			if !active {
				continue
			}
		}

		expander, ok := feedExpanders[row.Entry.ItemType]
		if !ok {
			zap.L().Warn("unknown feed item type", zap.String("type", row.Entry.ItemType))
			continue
		}
		item, err := expander(e, ctx, viewerID, row)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
				// Inaccessible or vanished items drop out of the page.
				continue
			}
			return nil, "", err
		}
		expanded = append(expanded, item)
	}

	// One batched lookup for every user referenced across the page.
	userCache := make(map[int64]*models.User)
	userIDs := make([]int64, 0, len(expanded)*2)
	for _, item := range expanded {
		userIDs = append(userIDs, item.actorID, item.followerID, item.friendID)
	}
	if err := e.entities.MapUserIDToUser(ctx, userIDs, userCache); err != nil {
		return nil, "", err
	}

	feed := make([]*FeedItem, 0, len(expanded))
	for _, item := range expanded {
		actor := userCache[item.actorID]
		if actor == nil {
			continue
		}
		feed = append(feed, e.decorate(item, actor, userCache, viewerID, ownerID))
	}
	return feed, nextPageState, nil
}

func (e *FeedEngine) decorate(item *expandedItem, actor *models.User, userCache map[int64]*models.User, viewerID, ownerID int64) *FeedItem {
	entry := item.row.Entry
	visibility := entry.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	date, err := TimeFromID(entry.Time)
	if err != nil {
		date = time.Time{}
	}

	result := &FeedItem{
		ItemID:     entry.ItemID,
		Type:       entry.ItemType,
		Time:       entry.Time,
		Date:       date,
		FromNow:    humanize.Time(date),
		Visibility: visibility,

		IsPrivate:  visibility == models.VisibilityPrivate,
		IsPersonal: visibility == models.VisibilityPersonal,
		IsPublic:   visibility == models.VisibilityPublic,

		IsPost:   entry.ItemType == models.TypePost,
		IsLike:   entry.ItemType == models.TypeLike,
		IsFollow: entry.ItemType == models.TypeFollow,
		IsFriend: entry.ItemType == models.TypeFriend,

		User:       actor,
		Post:       item.post,
		Like:       item.like,
		Follow:     item.follow,
		FriendEdge: item.friend,
	}

	if item.followerID != 0 {
		result.Follower = userCache[item.followerID]
	}
	if item.friendID != 0 {
		result.Friend = userCache[item.friendID]
	}

	result.FromSomeoneYouFollow = item.actorID != ownerID
	viewerIsActor := viewerID != 0 && item.actorID == viewerID
	viewerIsFollower := viewerID != 0 && item.followerID != 0 && item.followerID == viewerID
	result.IsUsersItem = viewerIsActor || viewerIsFollower
	result.IsFollower = viewerIsFollower

	return result
}
