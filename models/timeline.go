package models

// Visibility tiers of a published action. Copied onto every timeline entry
// at write time; fan-out decisions never re-read the source item.
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityPersonal = "personal"
)

// Item types a timeline entry may reference.
const (
	TypePost   = "post"
	TypeLike   = "like"
	TypeFollow = "follow"
	TypeFriend = "friend"
)

// The two timeline kinds kept per user. feed_timeline aggregates the owner
// plus everyone they follow and mentions targeting them; user_timeline holds
// only the owner's own actions.
const (
	FeedTimeline = "feed_timeline"
	UserTimeline = "user_timeline"
)

var Timelines = []string{FeedTimeline, UserTimeline}

// TimelineEntry is one denormalized row on a (timeline, owner) log.
// The composite primary key makes writes idempotent: re-upserting the same
// (timeline, user, time) overwrites rather than duplicates.
type TimelineEntry struct {
	Timeline   string `gorm:"primaryKey;size:16" json:"timeline"`
	UserID     int64  `gorm:"primaryKey;column:user_id" json:"user_id"`
	Time       string `gorm:"primaryKey;size:26" json:"time"`
	ItemID     int64  `gorm:"index" json:"item_id"`
	ItemType   string `gorm:"size:16" json:"item_type"`
	Visibility string `gorm:"size:16" json:"visibility"`
	// FromFollow references the follow edge that caused this entry to be
	// written. Entries carrying it are re-validated against the live follow
	// at read time; a revoked follow hides them without deleting the row.
	FromFollow *int64 `json:"from_follow,omitempty"`
}

func (TimelineEntry) TableName() string {
	return "timeline_entries"
}
