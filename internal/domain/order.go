package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order
type OrderStatus string

// Order statuses
const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderShipped        OrderStatus = "shipped"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderRefunded       OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPaid, OrderCancelled},
	OrderPaid:           {OrderShipped, OrderCancelled, OrderRefunded},
	OrderShipped:        {OrderDelivered, OrderRefunded},
	OrderDelivered:      {OrderRefunded},
}

// CanTransitionTo reports whether s -> next is legal
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment methods
const (
	PaymentExternal = "external"
	PaymentWallet   = "wallet"
)

// Order Model
type Order struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID      string          `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	OfferID        string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"offer_id"` // One order per accepted offer
	BuyerID        string          `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	SellerID       string          `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status         OrderStatus     `gorm:"type:varchar(24);index;not null" json:"status"`
	PaymentMethod  string          `gorm:"type:varchar(16)" json:"payment_method,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsParticipant reports whether userID is the buyer or the seller
func (o Order) IsParticipant(userID string) bool {
	return userID == o.BuyerID || userID == o.SellerID
}
