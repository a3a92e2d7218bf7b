package domain

import "time"

// SystemPrefix marks automated direct messages
const SystemPrefix = "[SYSTEM] "

// Message is a direct message between two profiles
type Message struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID    string     `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	RecipientID string     `gorm:"type:varchar(36);index;not null" json:"recipient_id"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	IsSystem    bool       `gorm:"not null;default:false" json:"is_system"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

// Follow links a follower to a followed profile
type Follow struct {
	FollowerID string    `gorm:"type:varchar(36);primaryKey" json:"follower_id"`
	FolloweeID string    `gorm:"type:varchar(36);primaryKey" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post kinds
const (
	PostWall   = "wall"
	PostGlobal = "global"
)

// Post is a wall post or a global feed post
type Post struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Kind        string    `gorm:"type:varchar(8);index;not null" json:"kind"`
	AuthorID    string    `gorm:"type:varchar(36);index;not null" json:"author_id"`
	WallOwnerID *string   `gorm:"type:varchar(36);index" json:"wall_owner_id,omitempty"` // Set on wall posts
	Body        string    `gorm:"type:text" json:"body"`
	MediaURL    string    `json:"media_url,omitempty"`
	MediaType   string    `json:"media_type,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// GiftStatus is the lifecycle of a gift
type GiftStatus string

// Gift statuses
const (
	GiftPending   GiftStatus = "pending"
	GiftAccepted  GiftStatus = "accepted"
	GiftDeclined  GiftStatus = "declined"
	GiftCancelled GiftStatus = "cancelled"
)

// Gift is a card sent from one collector to another
type Gift struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID    string     `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	RecipientID string     `gorm:"type:varchar(36);index;not null" json:"recipient_id"`
	CardID      string     `gorm:"type:varchar(36);index;not null" json:"card_id"`
	Note        string     `gorm:"type:text" json:"note"`
	Status      GiftStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
