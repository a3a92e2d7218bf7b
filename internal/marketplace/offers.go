package marketplace

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
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// errLapsed marks an offer found past its expiry inside a transaction. The
// caller rolls back and records the expiry in its own transaction.
var errLapsed = errors.New("offer lapsed")

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// MakeOffer opens a negotiation on an active listing.
func (s *Service) MakeOffer(ctx context.Context, buyerID, listingID string, amount decimal.Decimal, message string) (domain.Offer, error) {
	if !amount.IsPositive() {
		return domain.Offer{}, ErrInvalidAmount
	}
	var p pending
	var offer domain.Offer
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		listing, err := s.activeListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID == buyerID {
			return ErrOwnListing
		}
		now := s.now()
		older, err := tx.ListOffers(ctx, store.OfferFilter{ListingID: listing.ID, BuyerID: buyerID, Status: domain.OfferPending})
		if err != nil {
			return err
		}
		for _, o := range older {
			if o.IsCounter || o.ProposedBy != buyerID {
				continue
			}
			if err := s.moveOffer(ctx, tx, &p, &o, domain.OfferCancelled, now); err != nil {
				return err
			}
		}
		offer = domain.Offer{
			ID:         uuid.NewString(),
			ListingID:  listing.ID,
			BuyerID:    buyerID,
			SellerID:   listing.SellerID,
			ProposedBy: buyerID,
			Amount:     amount.Round(2),
			Message:    strings.TrimSpace(message),
			Status:     domain.OfferPending,
			ExpiresAt:  now.Add(OfferTTL),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateOffer(ctx, &offer); err != nil {
			return err
		}
		p.offers = append(p.offers, domain.OfferPending)
		p.add(ListingTopic(listing.ID), realtime.Insert, "listing_offers", offer)
		return s.record(ctx, tx, &p, listing, offer, buyerID, listing.SellerID, domain.ListingMessageOfferSent,
			fmt.Sprintf("New offer of %s on %q", money(offer.Amount), listing.Title), now)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{
		"offer_id":   offer.ID,
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"amount":     offer.Amount.StringFixed(2),
	}).Info("Offer made")
	return offer, nil
}

// ActiveOffer returns the newest pending offer between buyerID and the
// listing's seller, or ErrOfferNotFound.
func (s *Service) ActiveOffer(ctx context.Context, buyerID, listingID string) (domain.Offer, error) {
	offers, err := s.store.ListOffers(ctx, store.OfferFilter{ListingID: listingID, BuyerID: buyerID, Status: domain.OfferPending})
	if err != nil {
		return domain.Offer{}, err
	}
	if len(offers) == 0 {
		return domain.Offer{}, ErrOfferNotFound
	}
	return offers[0], nil
}

// AcceptOffer closes the negotiation: the offer becomes accepted, the
// listing sold and an order is opened, all in one transaction.
func (s *Service) AcceptOffer(ctx context.Context, actorID, offerID string) (domain.Order, error) {
	var p pending
	var order domain.Order
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		offer, err := s.respondable(ctx, tx, actorID, offerID)
		if err != nil {
			return err
		}
		listing, err := s.activeListing(ctx, tx, offer.ListingID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.moveOffer(ctx, tx, &p, &offer, domain.OfferAccepted, now); err != nil {
			return err
		}
		order, err = s.settle(ctx, tx, &p, listing, offer, actorID, domain.ListingMessageOfferAccepted,
			fmt.Sprintf("Your offer of %s on %q was accepted", money(offer.Amount), listing.Title), now)
		return err
	})
	if errors.Is(err, errLapsed) {
		return domain.Order{}, s.lapse(ctx, offerID)
	}
	if err != nil {
		return domain.Order{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{
		"offer_id": offerID,
		"order_id": order.ID,
		"actor_id": actorID,
		"amount":   order.Amount.StringFixed(2),
	}).Info("Offer accepted")
	return order, nil
}

// DeclineOffer rejects a pending offer.
func (s *Service) DeclineOffer(ctx context.Context, actorID, offerID string) (domain.Offer, error) {
	var p pending
	var offer domain.Offer
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		offer, err = s.respondable(ctx, tx, actorID, offerID)
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, offer.ListingID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.moveOffer(ctx, tx, &p, &offer, domain.OfferDeclined, now); err != nil {
			return err
		}
		return s.record(ctx, tx, &p, listing, offer, actorID, offer.Counterpart(actorID), domain.ListingMessageOfferDeclined,
			fmt.Sprintf("Your offer of %s on %q was declined", money(offer.Amount), listing.Title), now)
	})
	if errors.Is(err, errLapsed) {
		return domain.Offer{}, s.lapse(ctx, offerID)
	}
	if err != nil {
		return domain.Offer{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{"offer_id": offerID, "actor_id": actorID}).Info("Offer declined")
	return offer, nil
}

// CounterOffer supersedes a pending offer with a new price from the other
// side. The original becomes countered and the new offer points at it.
func (s *Service) CounterOffer(ctx context.Context, actorID, offerID string, amount decimal.Decimal, message string) (domain.Offer, error) {
	if !amount.IsPositive() {
		return domain.Offer{}, ErrInvalidAmount
	}
	var p pending
	var counter domain.Offer
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		parent, err := s.pendingOffer(ctx, tx, actorID, offerID)
		if err != nil {
			return err
		}
		if parent.ProposedBy == actorID {
			return ErrForbidden
		}
		listing, err := s.activeListing(ctx, tx, parent.ListingID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.moveOffer(ctx, tx, &p, &parent, domain.OfferCountered, now); err != nil {
			return err
		}
		parentID := parent.ID
		counter = domain.Offer{
			ID:            uuid.NewString(),
			ListingID:     parent.ListingID,
			BuyerID:       parent.BuyerID,
			SellerID:      parent.SellerID,
			ProposedBy:    actorID,
			Amount:        amount.Round(2),
			Message:       strings.TrimSpace(message),
			Status:        domain.OfferPending,
			IsCounter:     true,
			ParentOfferID: &parentID,
			ExpiresAt:     now.Add(OfferTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateOffer(ctx, &counter); err != nil {
			return err
		}
		p.offers = append(p.offers, domain.OfferPending)
		p.add(ListingTopic(listing.ID), realtime.Insert, "listing_offers", counter)
		return s.record(ctx, tx, &p, listing, counter, actorID, parent.Counterpart(actorID), domain.ListingMessageCounterSent,
			fmt.Sprintf("Counter offer of %s on %q", money(counter.Amount), listing.Title), now)
	})
	if errors.Is(err, errLapsed) {
		return domain.Offer{}, s.lapse(ctx, offerID)
	}
	if err != nil {
		return domain.Offer{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{
		"offer_id":  counter.ID,
		"parent_id": offerID,
		"actor_id":  actorID,
		"amount":    counter.Amount.StringFixed(2),
	}).Info("Offer countered")
	return counter, nil
}

// CancelOffer withdraws an offer; only its proposer may do so.
func (s *Service) CancelOffer(ctx context.Context, actorID, offerID string) (domain.Offer, error) {
	var p pending
	var offer domain.Offer
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		offer, err = s.pendingOffer(ctx, tx, actorID, offerID)
		if err != nil && !errors.Is(err, errLapsed) {
			return err
		}
		if offer.ProposedBy != actorID {
			return ErrForbidden
		}
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, offer.ListingID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.moveOffer(ctx, tx, &p, &offer, domain.OfferCancelled, now); err != nil {
			return err
		}
		return s.record(ctx, tx, &p, listing, offer, actorID, offer.Counterpart(actorID), domain.ListingMessageOfferCancelled,
			fmt.Sprintf("Offer of %s on %q was withdrawn", money(offer.Amount), listing.Title), now)
	})
	if errors.Is(err, errLapsed) {
		return domain.Offer{}, s.lapse(ctx, offerID)
	}
	if err != nil {
		return domain.Offer{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{"offer_id": offerID, "actor_id": actorID}).Info("Offer cancelled")
	return offer, nil
}

// BuyNow buys the listing at its asking price. The offer row is created
// already accepted.
func (s *Service) BuyNow(ctx context.Context, buyerID, listingID string) (domain.Order, error) {
	var p pending
	var order domain.Order
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		listing, err := s.activeListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID == buyerID {
			return ErrOwnListing
		}
		now := s.now()
		offer := domain.Offer{
			ID:          uuid.NewString(),
			ListingID:   listing.ID,
			BuyerID:     buyerID,
			SellerID:    listing.SellerID,
			ProposedBy:  buyerID,
			Amount:      listing.AskingPrice,
			Status:      domain.OfferAccepted,
			ExpiresAt:   now,
			RespondedAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateOffer(ctx, &offer); err != nil {
			return err
		}
		p.offers = append(p.offers, domain.OfferAccepted)
		p.add(ListingTopic(listing.ID), realtime.Insert, "listing_offers", offer)
		order, err = s.settle(ctx, tx, &p, listing, offer, buyerID, domain.ListingMessageBuyNow,
			fmt.Sprintf("%q was bought for %s", listing.Title, money(offer.Amount)), now)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"order_id":   order.ID,
		"buyer_id":   buyerID,
		"amount":     order.Amount.StringFixed(2),
	}).Info("Listing bought")
	return order, nil
}

// settle applies the shared accept side effects for an accepted offer.
func (s *Service) settle(ctx context.Context, tx store.Store, p *pending, listing domain.Listing, offer domain.Offer, actorID, kind, text string, now time.Time) (domain.Order, error) {
	price := offer.Amount
	if err := tx.TransitionListing(ctx, listing.ID, domain.ListingActive, domain.ListingSold, &price, &now); err != nil {
		return domain.Order{}, mapListingConflict(err)
	}
	listing.Status = domain.ListingSold
	listing.SoldPrice = &price
	listing.SoldAt = &now
	order := domain.Order{
		ID:        uuid.NewString(),
		ListingID: listing.ID,
		OfferID:   offer.ID,
		BuyerID:   offer.BuyerID,
		SellerID:  offer.SellerID,
		Amount:    price,
		Status:    domain.OrderPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.CreateOrder(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	p.orders = append(p.orders, domain.OrderPendingPayment)
	if err := s.declineOpenOffers(ctx, tx, p, listing, offer.ID); err != nil {
		return domain.Order{}, err
	}
	p.add(ListingTopic(listing.ID), realtime.Update, "marketplace_listings", listing)
	p.add(OrderTopic(order.ID), realtime.Insert, "orders", order)
	p.listingKeys = append(p.listingKeys, listing.ID)
	if err := s.record(ctx, tx, p, listing, offer, actorID, offer.Counterpart(actorID), kind, text, now); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// declineOpenOffers declines every pending offer on the listing except keep.
func (s *Service) declineOpenOffers(ctx context.Context, tx store.Store, p *pending, listing domain.Listing, keep string) error {
	open, err := tx.ListOffers(ctx, store.OfferFilter{ListingID: listing.ID, Status: domain.OfferPending})
	if err != nil {
		return err
	}
	now := s.now()
	for _, o := range open {
		if o.ID == keep {
			continue
		}
		if err := s.moveOffer(ctx, tx, p, &o, domain.OfferDeclined, now); err != nil {
			return err
		}
		text := fmt.Sprintf("%q is no longer available", listing.Title)
		if err := s.record(ctx, tx, p, listing, o, listing.SellerID, o.BuyerID, domain.ListingMessageOfferDeclined, text, now); err != nil {
			return err
		}
	}
	return nil
}

// moveOffer applies a conditional pending -> to transition.
func (s *Service) moveOffer(ctx context.Context, tx store.Store, p *pending, o *domain.Offer, to domain.OfferStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if err := tx.TransitionOffer(ctx, o.ID, o.Status, to, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: offer changed concurrently", ErrInvalidTransition)
		}
		return err
	}
	o.Status = to
	o.RespondedAt = &now
	o.UpdatedAt = now
	p.offers = append(p.offers, to)
	p.add(ListingTopic(o.ListingID), realtime.Update, "listing_offers", *o)
	return nil
}

// record writes the listing thread entry and the [SYSTEM] inbox copy.
func (s *Service) record(ctx context.Context, tx store.Store, p *pending, listing domain.Listing, offer domain.Offer, senderID, recipientID, kind, text string, now time.Time) error {
	offerID := offer.ID
	amount := offer.Amount
	lm := domain.ListingMessage{
		ID:          uuid.NewString(),
		ListingID:   listing.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		OfferID:     &offerID,
		Kind:        kind,
		Body:        text,
		Amount:      &amount,
		CreatedAt:   now,
	}
	if err := tx.CreateListingMessage(ctx, &lm); err != nil {
		return fmt.Errorf("listing message: %w", err)
	}
	p.add(ListingTopic(listing.ID), realtime.Insert, "listing_messages", lm)
	m, err := messaging.Notify(ctx, tx, senderID, recipientID, text, now)
	if err != nil {
		return err
	}
	p.notify(m)
	return nil
}

func (s *Service) loadOffer(ctx context.Context, tx store.Store, actorID, offerID string) (domain.Offer, error) {
	offer, err := tx.GetOffer(ctx, offerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Offer{}, ErrOfferNotFound
	} else if err != nil {
		return domain.Offer{}, err
	}
	if !offer.IsParticipant(actorID) {
		return domain.Offer{}, ErrForbidden
	}
	return offer, nil
}

// pendingOffer loads an offer the actor takes part in and checks it is
// still open. A lapsed offer is returned together with errLapsed.
func (s *Service) pendingOffer(ctx context.Context, tx store.Store, actorID, offerID string) (domain.Offer, error) {
	offer, err := s.loadOffer(ctx, tx, actorID, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	if offer.Status != domain.OfferPending {
		return domain.Offer{}, fmt.Errorf("%w: offer is %s", ErrInvalidTransition, offer.Status)
	}
	if !s.now().Before(offer.ExpiresAt) {
		return offer, errLapsed
	}
	return offer, nil
}

// respondable checks the accept/decline rule: the seller may answer any
// pending offer on the listing, the buyer only a seller's counter.
func (s *Service) respondable(ctx context.Context, tx store.Store, actorID, offerID string) (domain.Offer, error) {
	offer, err := s.pendingOffer(ctx, tx, actorID, offerID)
	if err != nil && !errors.Is(err, errLapsed) {
		return domain.Offer{}, err
	}
	if actorID != offer.SellerID && offer.ProposedBy == actorID {
		return domain.Offer{}, ErrForbidden
	}
	return offer, err
}

// lapse marks a single offer expired and reports ErrOfferExpired.
func (s *Service) lapse(ctx context.Context, offerID string) error {
	if _, err := s.expire(ctx, []string{offerID}); err != nil {
		return err
	}
	return ErrOfferExpired
}
