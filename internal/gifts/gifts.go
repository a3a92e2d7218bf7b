// Package gifts lets a collector hand a card to another collector. The card
// changes owner only when the recipient accepts.
package gifts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/messaging"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrGiftNotFound      = errors.New("gift not found")
	ErrGiftToSelf        = errors.New("cannot gift a card to yourself")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrNotCardOwner      = errors.New("card does not belong to you")
	ErrCardListed        = errors.New("card is listed or in an open sale")
	ErrAlreadyGifted     = errors.New("card already has a pending gift")
	ErrForbidden         = errors.New("not allowed to act on this gift")
	ErrNotPending        = errors.New("gift is no longer pending")
)

// Topic is the realtime channel for a user's gifts.
func Topic(userID string) string {
	return "gifts:" + userID
}

type Service struct {
	store store.Store
	pub   realtime.Publisher
	now   func() time.Time
}

func NewService(st store.Store, pub realtime.Publisher) *Service {
	return &Service{store: st, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// Send offers cardID to recipientID.
func (s *Service) Send(ctx context.Context, senderID, recipientID, cardID, note string) (domain.Gift, error) {
	if senderID == recipientID {
		return domain.Gift{}, ErrGiftToSelf
	}
	var gift domain.Gift
	var notice domain.Message
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.GetProfile(ctx, recipientID); errors.Is(err, store.ErrNotFound) {
			return ErrRecipientNotFound
		} else if err != nil {
			return err
		}
		card, err := giftable(ctx, tx, senderID, cardID)
		if err != nil {
			return err
		}
		open, err := tx.ListGifts(ctx, store.GiftFilter{SenderID: senderID, Status: domain.GiftPending})
		if err != nil {
			return err
		}
		for _, g := range open {
			if g.CardID == card.ID {
				return ErrAlreadyGifted
			}
		}
		now := s.now()
		gift = domain.Gift{
			ID:          uuid.NewString(),
			SenderID:    senderID,
			RecipientID: recipientID,
			CardID:      card.ID,
			Note:        strings.TrimSpace(note),
			Status:      domain.GiftPending,
			CreatedAt:   now,
		}
		if err := tx.CreateGift(ctx, &gift); err != nil {
			return err
		}
		notice, err = messaging.Notify(ctx, tx, senderID, recipientID, fmt.Sprintf("You received a gift: %s", card.Name), now)
		return err
	})
	if err != nil {
		return domain.Gift{}, err
	}
	logrus.WithFields(logrus.Fields{"gift_id": gift.ID, "sender_id": senderID, "recipient_id": recipientID}).Info("Gift sent")
	s.publish(gift, notice)
	return gift, nil
}

// Accept takes the gift; the card moves to the recipient in the same
// transaction.
func (s *Service) Accept(ctx context.Context, actorID, giftID string) (domain.Gift, error) {
	return s.respond(ctx, actorID, giftID, domain.GiftAccepted, func(tx store.Store, g domain.Gift) (string, error) {
		card, err := giftable(ctx, tx, g.SenderID, g.CardID)
		if err != nil {
			return "", err
		}
		card.OwnerID = g.RecipientID
		if err := tx.SaveCard(ctx, &card); err != nil {
			return "", err
		}
		return fmt.Sprintf("Your gift of %s was accepted", card.Name), nil
	})
}

// Decline refuses the gift. Recipient only.
func (s *Service) Decline(ctx context.Context, actorID, giftID string) (domain.Gift, error) {
	return s.respond(ctx, actorID, giftID, domain.GiftDeclined, func(store.Store, domain.Gift) (string, error) {
		return "Your gift was declined", nil
	})
}

// Cancel withdraws the gift. Sender only.
func (s *Service) Cancel(ctx context.Context, actorID, giftID string) (domain.Gift, error) {
	return s.respond(ctx, actorID, giftID, domain.GiftCancelled, func(store.Store, domain.Gift) (string, error) {
		return "A gift sent to you was withdrawn", nil
	})
}

// List returns gifts sent or received by userID.
func (s *Service) List(ctx context.Context, userID string, sent bool, status domain.GiftStatus) ([]domain.Gift, error) {
	f := store.GiftFilter{RecipientID: userID, Status: status}
	if sent {
		f = store.GiftFilter{SenderID: userID, Status: status}
	}
	return s.store.ListGifts(ctx, f)
}

func (s *Service) respond(ctx context.Context, actorID, giftID string, to domain.GiftStatus, effect func(tx store.Store, g domain.Gift) (string, error)) (domain.Gift, error) {
	var gift domain.Gift
	var notice domain.Message
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		g, err := tx.GetGift(ctx, giftID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrGiftNotFound
		} else if err != nil {
			return err
		}
		actor := g.RecipientID
		if to == domain.GiftCancelled {
			actor = g.SenderID
		}
		if actorID != actor {
			return ErrForbidden
		}
		if g.Status != domain.GiftPending {
			return ErrNotPending
		}
		text, err := effect(tx, g)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.TransitionGift(ctx, g.ID, domain.GiftPending, to, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrNotPending
			}
			return err
		}
		g.Status = to
		g.RespondedAt = &now
		gift = g
		counterpart := g.SenderID
		if actorID == g.SenderID {
			counterpart = g.RecipientID
		}
		notice, err = messaging.Notify(ctx, tx, actorID, counterpart, text, now)
		return err
	})
	if err != nil {
		return domain.Gift{}, err
	}
	logrus.WithFields(logrus.Fields{"gift_id": giftID, "actor_id": actorID, "status": to}).Info("Gift updated")
	s.publish(gift, notice)
	return gift, nil
}

func (s *Service) publish(g domain.Gift, notice domain.Message) {
	realtime.Publish(s.pub, Topic(g.SenderID), realtime.Update, "gifts", g)
	realtime.Publish(s.pub, Topic(g.RecipientID), realtime.Update, "gifts", g)
	realtime.Publish(s.pub, messaging.Topic(notice.RecipientID), realtime.Insert, "messages", notice)
}

func giftable(ctx context.Context, tx store.Store, ownerID, cardID string) (domain.UserCard, error) {
	card, err := tx.GetCard(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserCard{}, ErrCardNotFound
	} else if err != nil {
		return domain.UserCard{}, err
	}
	if card.OwnerID != ownerID {
		return domain.UserCard{}, ErrNotCardOwner
	}
	listed, err := tx.HasOpenSale(ctx, card.ID)
	if err != nil {
		return domain.UserCard{}, err
	}
	if listed {
		return domain.UserCard{}, ErrCardListed
	}
	return card, nil
}
