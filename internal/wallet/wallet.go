// Package wallet keeps collector balances and the ledger of deposits,
// transfers, order payments and refunds.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"
	"collector_hub/internal/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CacheTTL is how long wallet reads stay in redis.
const CacheTTL = 60 * time.Second

var (
	ErrWalletExists      = errors.New("wallet already exists")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrTargetNotFound    = errors.New("target user not found")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
)

// History is one page of a wallet's ledger.
type History struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int64                `json:"total"`
	TotalPages   int                  `json:"total_pages"`
}

type Service struct {
	store store.Store
	rdb   redis.Cmdable
	now   func() time.Time
}

// NewService builds the wallet service. rdb may be nil.
func NewService(st store.Store, rdb redis.Cmdable) *Service {
	return &Service{store: st, rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a zero balance wallet for userID.
func (s *Service) Create(ctx context.Context, userID string) (domain.Wallet, error) {
	if _, err := s.store.GetWalletByUser(ctx, userID); err == nil {
		return domain.Wallet{}, ErrWalletExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Wallet{}, err
	}
	w := domain.Wallet{ID: uuid.NewString(), UserID: userID, Balance: decimal.Zero}
	if err := s.store.CreateWallet(ctx, &w); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Wallet{}, ErrWalletExists
		}
		return domain.Wallet{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"wallet_id": w.ID,
	}).Info("Wallet created")
	s.Invalidate(ctx, userID)
	return w, nil
}

// Get returns the wallet of userID and whether it came from the cache.
func (s *Service) Get(ctx context.Context, userID string) (domain.Wallet, bool, error) {
	var w domain.Wallet
	if found, err := utils.GetCache(ctx, s.rdb, utils.WalletKey(userID), &w); err == nil && found {
		return w, true, nil
	}
	w, err := s.store.GetWalletByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Wallet{}, false, ErrWalletNotFound
	} else if err != nil {
		return domain.Wallet{}, false, err
	}
	_ = utils.SetCache(ctx, s.rdb, utils.WalletKey(userID), w, CacheTTL)
	return w, false, nil
}

// Deposit credits amount to the wallet of userID.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (domain.Wallet, error) {
	if !amount.IsPositive() {
		return domain.Wallet{}, ErrInvalidAmount
	}
	var w domain.Wallet
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		w, err = tx.GetWalletByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrWalletNotFound
		} else if err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, w.ID, amount); err != nil {
			return err
		}
		w.Balance = w.Balance.Add(amount)
		return tx.CreateTransaction(ctx, &domain.Transaction{
			ID:         uuid.NewString(),
			ToWalletID: &w.ID,
			Amount:     amount,
			Type:       domain.TxDeposit,
			CreatedAt:  s.now(),
		})
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"amount":  amount.StringFixed(2),
			"error":   err.Error(),
		}).Error("Deposit failed")
		return domain.Wallet{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.StringFixed(2),
		"type":    domain.TxDeposit,
	}).Info("Deposit transaction")
	s.Invalidate(ctx, userID)
	return w, nil
}

// Transfer moves amount from fromUserID to the user named toUsername.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUsername string, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}
	target, err := s.store.GetProfileByUsername(ctx, strings.ToLower(strings.TrimSpace(toUsername)))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, ErrTargetNotFound
	} else if err != nil {
		return domain.Transaction{}, err
	}
	if target.ID == fromUserID {
		return domain.Transaction{}, ErrSelfTransfer
	}
	var t domain.Transaction
	err = s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		t, err = Move(ctx, tx, fromUserID, target.ID, amount, domain.TxTransfer, nil, s.now())
		return err
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"from_user_id": fromUserID,
			"to_user_id":   target.ID,
			"amount":       amount.StringFixed(2),
			"error":        err.Error(),
		}).Error("Transfer failed")
		return domain.Transaction{}, err
	}
	logrus.WithFields(logrus.Fields{
		"from_user_id": fromUserID,
		"to_user_id":   target.ID,
		"amount":       amount.StringFixed(2),
		"type":         domain.TxTransfer,
	}).Info("Transfer transaction")
	s.Invalidate(ctx, fromUserID, target.ID)
	return t, nil
}

// History returns a page of the ledger of userID, newest first. Unfiltered
// pages are cached.
func (s *Service) History(ctx context.Context, userID string, f store.TransactionFilter) (History, bool, error) {
	cacheable := f.Type == "" && f.From == nil && f.To == nil
	key := fmt.Sprintf("%s:page:%d:size:%d", utils.TxHistoryPrefix(userID), f.Page.Page, f.Page.PageSize)
	var h History
	if cacheable {
		if found, err := utils.GetCache(ctx, s.rdb, key, &h); err == nil && found {
			return h, true, nil
		}
	}
	w, err := s.store.GetWalletByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return History{}, false, ErrWalletNotFound
	} else if err != nil {
		return History{}, false, err
	}
	f.WalletID = w.ID
	rows, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return History{}, false, err
	}
	h = History{
		Transactions: rows,
		Page:         f.Page.Page,
		PageSize:     f.Page.PageSize,
		Total:        total,
		TotalPages:   TotalPages(total, f.Page.PageSize),
	}
	if cacheable {
		_ = utils.SetCache(ctx, s.rdb, key, h, CacheTTL)
	}
	return h, false, nil
}

// Invalidate drops the cached wallet and ledger pages of each user.
func (s *Service) Invalidate(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		if err := utils.DeleteCache(ctx, s.rdb, utils.WalletKey(id)); err != nil {
			logrus.WithField("error", err.Error()).Warn("Wallet cache invalidation failed")
		}
		if err := utils.DeletePrefix(ctx, s.rdb, utils.TxHistoryPrefix(id)); err != nil {
			logrus.WithField("error", err.Error()).Warn("History cache invalidation failed")
		}
	}
}

// Move debits fromUserID and credits toUserID inside tx, writing one ledger
// row. It is exported so order payments and refunds share the same rules.
func Move(ctx context.Context, tx store.Store, fromUserID, toUserID string, amount decimal.Decimal, txType string, orderID *string, at time.Time) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}
	from, err := tx.GetWalletByUser(ctx, fromUserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, fmt.Errorf("%w: sender", ErrWalletNotFound)
	} else if err != nil {
		return domain.Transaction{}, err
	}
	to, err := tx.GetWalletByUser(ctx, toUserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, fmt.Errorf("%w: recipient", ErrWalletNotFound)
	} else if err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.AdjustBalance(ctx, from.ID, amount.Neg()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Transaction{}, ErrInsufficientFunds
		}
		return domain.Transaction{}, err
	}
	if err := tx.AdjustBalance(ctx, to.ID, amount); err != nil {
		return domain.Transaction{}, err
	}
	t := domain.Transaction{
		ID:           uuid.NewString(),
		FromWalletID: &from.ID,
		ToWalletID:   &to.ID,
		OrderID:      orderID,
		Amount:       amount,
		Type:         txType,
		CreatedAt:    at,
	}
	if err := tx.CreateTransaction(ctx, &t); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// TotalPages rounds total/pageSize up.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (int(total) + pageSize - 1) / pageSize
}
