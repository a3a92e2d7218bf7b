package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus is the negotiation state of an offer
type OfferStatus string

// Offer statuses
const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferCountered OfferStatus = "countered"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
)

// offerTransitions lists every legal move out of a state
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferPending: {OfferAccepted, OfferDeclined, OfferCountered, OfferExpired, OfferCancelled},
}

// Valid reports whether s is a known offer status
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferAccepted, OfferDeclined, OfferCountered, OfferExpired, OfferCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s OfferStatus) Terminal() bool {
	return s.Valid() && len(offerTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is legal
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Offer Model
type Offer struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID     string          `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	BuyerID       string          `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	SellerID      string          `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	ProposedBy    string          `gorm:"type:varchar(36);not null" json:"proposed_by"` // Participant who set the amount
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Message       string          `gorm:"type:text" json:"message"`
	Status        OfferStatus     `gorm:"type:varchar(16);index;not null" json:"status"`
	IsCounter     bool            `gorm:"not null;default:false" json:"is_counter"`
	ParentOfferID *string         `gorm:"type:varchar(36);index" json:"parent_offer_id,omitempty"`
	ExpiresAt     time.Time       `gorm:"index" json:"expires_at"`
	RespondedAt   *time.Time      `json:"responded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName keeps the historical table name
func (Offer) TableName() string {
	return "listing_offers"
}

// Counterpart returns the participant on the other side of userID
func (o Offer) Counterpart(userID string) string {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// IsParticipant reports whether userID is the buyer or the seller
func (o Offer) IsParticipant(userID string) bool {
	return userID == o.BuyerID || userID == o.SellerID
}

// Listing message kinds
const (
	ListingMessageOfferSent      = "offer_sent"
	ListingMessageCounterSent    = "counter_sent"
	ListingMessageOfferAccepted  = "offer_accepted"
	ListingMessageOfferDeclined  = "offer_declined"
	ListingMessageOfferCancelled = "offer_cancelled"
	ListingMessageOfferExpired   = "offer_expired"
	ListingMessageBuyNow         = "buy_now"
	ListingMessageText           = "text"
)

// ListingMessage is the per-listing negotiation thread entry
type ListingMessage struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID   string           `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	SenderID    string           `gorm:"type:varchar(36);not null" json:"sender_id"`
	RecipientID string           `gorm:"type:varchar(36);not null" json:"recipient_id"`
	OfferID     *string          `gorm:"type:varchar(36)" json:"offer_id,omitempty"`
	Kind        string           `gorm:"type:varchar(32);not null" json:"kind"`
	Body        string           `gorm:"type:text" json:"body"`
	Amount      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TableName keeps the historical table name
func (ListingMessage) TableName() string {
	return "listing_messages"
}
