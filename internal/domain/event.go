package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TournamentEvent is a scheduled in-person or online tournament
type TournamentEvent struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizerID string          `gorm:"type:varchar(36);index;not null" json:"organizer_id"`
	Title       string          `gorm:"not null" json:"title"`
	Game        string          `gorm:"type:varchar(16);index" json:"game"`
	Location    string          `json:"location"`
	Description string          `gorm:"type:text" json:"description"`
	StartsAt    time.Time       `gorm:"index" json:"starts_at"`
	Capacity    int             `json:"capacity"` // 0 means unlimited
	EntryFee    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"entry_fee"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EventRegistration records one attendee
type EventRegistration struct {
	EventID   string    `gorm:"type:varchar(36);primaryKey" json:"event_id"`
	UserID    string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
