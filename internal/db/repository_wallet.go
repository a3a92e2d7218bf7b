package db

import (
	"context"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	return mapErr(r.with(ctx).Create(w).Error)
}

func (r *Repository) GetWalletByUser(ctx context.Context, userID string) (domain.Wallet, error) {
	return first[domain.Wallet](r.with(ctx).Where("user_id = ?", userID))
}

func (r *Repository) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error {
	q := r.with(ctx).Model(&domain.Wallet{}).Where("id = ?", walletID)
	if delta.IsNegative() {
		q = q.Where("balance >= ?", delta.Neg()) // Never go below zero
	}
	res := q.Updates(map[string]any{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return mapErr(r.with(ctx).Create(t).Error)
}

func (r *Repository) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]domain.Transaction, int64, error) {
	q := r.with(ctx).Model(&domain.Transaction{})
	if f.WalletID != "" {
		q = q.Where("(from_wallet_id = ? OR to_wallet_id = ?)", f.WalletID, f.WalletID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Transaction
	err := paginate(q.Order("created_at desc"), f.Page).Find(&rows).Error
	return rows, total, err
}
