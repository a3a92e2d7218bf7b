package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus is the lifecycle of a marketplace listing
type ListingStatus string

// Listing statuses
const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

// Listing Model
type Listing struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	SellerID    string           `gorm:"type:varchar(36);index;not null" json:"seller_id"` // Foreign key to Profile
	CardID      string           `gorm:"type:varchar(36);index;not null" json:"card_id"`   // Foreign key to UserCard
	Title       string           `gorm:"not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Game        string           `gorm:"type:varchar(16);index" json:"game"`
	Condition   string           `json:"condition"`
	AskingPrice decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"asking_price"`
	Status      ListingStatus    `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	SoldPrice   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"sold_price,omitempty"`
	SoldAt      *time.Time       `json:"sold_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName keeps the historical table name
func (Listing) TableName() string {
	return "marketplace_listings"
}
