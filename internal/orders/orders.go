// Package orders drives fulfillment of accepted offers through payment,
// shipping and delivery.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/messaging"
	"collector_hub/internal/metrics"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"
	"collector_hub/internal/utils"
	"collector_hub/internal/wallet"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("not allowed to act on this order")
	ErrInvalidTransition = errors.New("order cannot move to the requested status")
	ErrCardRelisted      = errors.New("card was listed again, the sale cannot be reopened")
)

// Topic is the realtime channel of one order.
func Topic(orderID string) string {
	return "order:" + orderID
}

type Service struct {
	store store.Store
	pub   realtime.Publisher
	rdb   redis.Cmdable
	now   func() time.Time
}

// NewService builds the order service; pub and rdb may be nil.
func NewService(st store.Store, pub realtime.Publisher, rdb redis.Cmdable) *Service {
	return &Service{store: st, pub: pub, rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns an order visible to actorID.
func (s *Service) Get(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, ErrOrderNotFound
	} else if err != nil {
		return domain.Order{}, err
	}
	if !o.IsParticipant(actorID) {
		return domain.Order{}, ErrForbidden
	}
	return o, nil
}

// List returns the orders of actorID as buyer, seller or both.
func (s *Service) List(ctx context.Context, actorID string, f store.OrderFilter) ([]domain.Order, int64, error) {
	f.UserID = actorID
	return s.store.ListOrders(ctx, f)
}

// MarkPaid records a payment made outside the wallet. Seller only.
func (s *Service) MarkPaid(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	return s.transition(ctx, actorID, orderID, domain.OrderPaid, sellerOnly,
		func(_ store.Store, o *domain.Order, now time.Time) error {
			o.PaymentMethod = domain.PaymentExternal
			o.PaidAt = &now
			return nil
		}, "Payment for order %s was confirmed")
}

// PayWithWallet pays the order from the buyer's wallet to the seller's.
func (s *Service) PayWithWallet(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	o, err := s.transition(ctx, actorID, orderID, domain.OrderPaid, buyerOnly,
		func(tx store.Store, o *domain.Order, now time.Time) error {
			id := o.ID
			if _, err := wallet.Move(ctx, tx, o.BuyerID, o.SellerID, o.Amount, domain.TxOrderPayment, &id, now); err != nil {
				return err
			}
			o.PaymentMethod = domain.PaymentWallet
			o.PaidAt = &now
			return nil
		}, "Order %s was paid from the buyer's wallet")
	if err == nil {
		s.invalidateWallets(ctx, o)
	}
	return o, err
}

// Ship marks the order shipped with an optional tracking number. Seller only.
func (s *Service) Ship(ctx context.Context, actorID, orderID, tracking string) (domain.Order, error) {
	return s.transition(ctx, actorID, orderID, domain.OrderShipped, sellerOnly,
		func(_ store.Store, o *domain.Order, now time.Time) error {
			o.TrackingNumber = strings.TrimSpace(tracking)
			o.ShippedAt = &now
			return nil
		}, "Order %s has shipped")
}

// Deliver confirms receipt. Buyer only.
func (s *Service) Deliver(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	return s.transition(ctx, actorID, orderID, domain.OrderDelivered, buyerOnly,
		func(_ store.Store, o *domain.Order, now time.Time) error {
			o.DeliveredAt = &now
			return nil
		}, "Order %s was delivered")
}

// Cancel calls the sale off. The listing goes back on the market and a
// wallet payment is returned to the buyer.
func (s *Service) Cancel(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	o, err := s.transition(ctx, actorID, orderID, domain.OrderCancelled, anyParticipant,
		func(tx store.Store, o *domain.Order, now time.Time) error {
			if err := s.refundWallet(ctx, tx, o, now); err != nil {
				return err
			}
			listing, err := tx.GetListing(ctx, o.ListingID)
			if err != nil {
				return err
			}
			relisted, err := tx.HasActiveListing(ctx, listing.CardID)
			if err != nil {
				return err
			}
			if relisted {
				return ErrCardRelisted
			}
			if err := tx.TransitionListing(ctx, o.ListingID, domain.ListingSold, domain.ListingActive, nil, nil); err != nil && !errors.Is(err, store.ErrConflict) {
				return err
			}
			o.CancelledAt = &now
			return nil
		}, "Order %s was cancelled")
	if err == nil {
		s.invalidateWallets(ctx, o)
		_ = utils.DeleteCache(ctx, s.rdb, utils.ListingKey(o.ListingID))
		realtime.Publish(s.pub, "listing:"+o.ListingID, realtime.Update, "marketplace_listings", map[string]any{
			"id":     o.ListingID,
			"status": domain.ListingActive,
		})
	}
	return o, err
}

// Refund returns the money after payment. Seller only.
func (s *Service) Refund(ctx context.Context, actorID, orderID string) (domain.Order, error) {
	o, err := s.transition(ctx, actorID, orderID, domain.OrderRefunded, sellerOnly,
		func(tx store.Store, o *domain.Order, now time.Time) error {
			if err := s.refundWallet(ctx, tx, o, now); err != nil {
				return err
			}
			o.RefundedAt = &now
			return nil
		}, "Order %s was refunded")
	if err == nil {
		s.invalidateWallets(ctx, o)
	}
	return o, err
}

func (s *Service) refundWallet(ctx context.Context, tx store.Store, o *domain.Order, now time.Time) error {
	if o.PaymentMethod != domain.PaymentWallet || o.PaidAt == nil {
		return nil
	}
	id := o.ID
	_, err := wallet.Move(ctx, tx, o.SellerID, o.BuyerID, o.Amount, domain.TxRefund, &id, now)
	return err
}

func (s *Service) invalidateWallets(ctx context.Context, o domain.Order) {
	for _, id := range []string{o.BuyerID, o.SellerID} {
		_ = utils.DeleteCache(ctx, s.rdb, utils.WalletKey(id))
		_ = utils.DeletePrefix(ctx, s.rdb, utils.TxHistoryPrefix(id))
	}
}

type actorRule func(o domain.Order, actorID string) bool

func sellerOnly(o domain.Order, actorID string) bool     { return o.SellerID == actorID }
func buyerOnly(o domain.Order, actorID string) bool      { return o.BuyerID == actorID }
func anyParticipant(o domain.Order, actorID string) bool { return o.IsParticipant(actorID) }

// transition loads the order, checks actor and state, applies mutate and
// saves conditionally on the previous status, all in one transaction.
func (s *Service) transition(ctx context.Context, actorID, orderID string, to domain.OrderStatus, allowed actorRule,
	mutate func(tx store.Store, o *domain.Order, now time.Time) error, notice string) (domain.Order, error) {
	var order domain.Order
	var note domain.Message
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		} else if err != nil {
			return err
		}
		if !o.IsParticipant(actorID) || !allowed(o, actorID) {
			return ErrForbidden
		}
		from := o.Status
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		now := s.now()
		if err := mutate(tx, &o, now); err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = now
		if err := tx.SaveOrder(ctx, &o, from); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
			}
			return err
		}
		counterpart := o.BuyerID
		if actorID == o.BuyerID {
			counterpart = o.SellerID
		}
		note, err = messaging.Notify(ctx, tx, actorID, counterpart, fmt.Sprintf(notice, shortID(o.ID)), now)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"actor_id": actorID,
			"to":       to,
			"error":    err.Error(),
		}).Warn("Order transition rejected")
		return domain.Order{}, err
	}
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"actor_id": actorID,
		"status":   to,
	}).Info("Order updated")
	realtime.Publish(s.pub, Topic(order.ID), realtime.Update, "orders", order)
	realtime.Publish(s.pub, messaging.Topic(note.RecipientID), realtime.Insert, "messages", note)
	return order, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}
