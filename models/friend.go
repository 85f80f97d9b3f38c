package models

import "time"

// Friend holds a friendship between two users.
// Status: "pending" (requested), "approved" (accepted).
type Friend struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index" json:"user_id"`
	FriendID   int64     `gorm:"index" json:"friend_id"`
	Status     string    `gorm:"size:16" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ApprovedAt time.Time `json:"approved_at,omitempty"`
}

func (Friend) TableName() string {
	return "friends"
}

// Follow is a directed edge: FollowerID follows UserID.
type Follow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index" json:"user_id"`
	FollowerID int64     `gorm:"index" json:"follower_id"`
	Visibility string    `gorm:"size:16" json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}
