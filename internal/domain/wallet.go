package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet Model
type Wallet struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string          `gorm:"type:varchar(36);uniqueIndex" json:"user_id"` // One wallet per profile
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction types
const (
	TxDeposit      = "deposit"
	TxTransfer     = "transfer"
	TxOrderPayment = "order_payment"
	TxRefund       = "refund"
)

// Transaction Model
type Transaction struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	FromWalletID *string         `gorm:"type:varchar(36);index" json:"from_wallet_id,omitempty"`
	ToWalletID   *string         `gorm:"type:varchar(36);index" json:"to_wallet_id,omitempty"`
	OrderID      *string         `gorm:"type:varchar(36)" json:"order_id,omitempty"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Type         string          `gorm:"type:varchar(16);index" json:"type"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}
