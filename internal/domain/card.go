package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supported card games
const (
	GamePokemon  = "pokemon"
	GameMagic    = "magic"
	GameYugioh   = "yugioh"
	GameOnePiece = "onepiece"
	GameLorcana  = "lorcana"
)

// Games lists every supported card game
var Games = []string{GamePokemon, GameMagic, GameYugioh, GameOnePiece, GameLorcana}

// IsKnownGame reports whether game is one of the supported games
func IsKnownGame(game string) bool {
	for _, g := range Games {
		if g == game {
			return true
		}
	}
	return false
}

// UserCard is one entry of a collector's collection
type UserCard struct {
	ID             string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID        string           `gorm:"type:varchar(36);index;not null" json:"owner_id"` // Foreign key to Profile
	Name           string           `gorm:"not null" json:"name"`
	Game           string           `gorm:"type:varchar(16);index" json:"game"`
	SetName        string           `json:"set_name"`
	Number         string           `json:"number"`
	Rarity         string           `json:"rarity"`
	Condition      string           `json:"condition"`
	Quantity       int              `gorm:"not null;default:1" json:"quantity"`
	ImageURL       string           `json:"image_url"`
	ExternalID     string           `json:"external_id"`
	EstimatedPrice *decimal.Decimal `gorm:"type:decimal(12,2)" json:"estimated_price,omitempty"`
	PriceUpdatedAt *time.Time       `json:"price_updated_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CardCache stores a third-party lookup result
type CardCache struct {
	CacheKey  string    `gorm:"type:varchar(255);primaryKey" json:"cache_key"`
	Game      string    `gorm:"type:varchar(16)" json:"game"`
	Query     string    `json:"query"`
	Payload   string    `gorm:"type:text" json:"payload"` // JSON card list
	FetchedAt time.Time `json:"fetched_at"`
}

// TableName keeps the historical table name
func (CardCache) TableName() string {
	return "card_cache"
}

// Fresh reports whether the entry is younger than ttl at now
func (c CardCache) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.FetchedAt) < ttl
}
