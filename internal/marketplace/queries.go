package marketplace

import (
	"context"
	"errors"
	"strings"

	"collector_hub/internal/domain"
	"collector_hub/internal/messaging"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"

	"github.com/google/uuid"
)

// ListOffers returns the offers on a listing, newest first. The seller
// sees all of them, anyone else only their own.
func (s *Service) ListOffers(ctx context.Context, actorID, listingID string) ([]domain.Offer, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrListingNotFound
	} else if err != nil {
		return nil, err
	}
	f := store.OfferFilter{ListingID: listing.ID}
	if listing.SellerID != actorID {
		f.BuyerID = actorID
	}
	return s.store.ListOffers(ctx, f)
}

// Lineage returns the chain of offers the given offer belongs to, from the
// root offer down to the newest counter.
func (s *Service) Lineage(ctx context.Context, actorID, offerID string) ([]domain.Offer, error) {
	offer, err := s.loadOffer(ctx, s.store, actorID, offerID)
	if err != nil {
		return nil, err
	}
	root := offer
	for root.ParentOfferID != nil {
		parent, err := s.store.GetOffer(ctx, *root.ParentOfferID)
		if err != nil {
			return nil, err
		}
		root = parent
	}
	chain := []domain.Offer{root}
	for cur := root; ; {
		children, err := s.store.ListOffers(ctx, store.OfferFilter{ParentOfferID: cur.ID})
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return chain, nil
		}
		// a countered offer has exactly one counter
		cur = children[len(children)-1]
		chain = append(chain, cur)
	}
}

// Thread returns the listing-scoped negotiation messages visible to actor,
// oldest first.
func (s *Service) Thread(ctx context.Context, actorID, listingID string) ([]domain.ListingMessage, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrListingNotFound
	} else if err != nil {
		return nil, err
	}
	all, err := s.store.ListListingMessages(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == actorID {
		return all, nil
	}
	mine := make([]domain.ListingMessage, 0, len(all))
	for _, m := range all {
		if m.SenderID == actorID || m.RecipientID == actorID {
			mine = append(mine, m)
		}
	}
	return mine, nil
}

// PostThreadMessage adds a free text entry to a listing thread. Buyers
// always write to the seller; the seller must name a recipient.
func (s *Service) PostThreadMessage(ctx context.Context, senderID, listingID, recipientID, body string) (domain.ListingMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.ListingMessage{}, messaging.ErrEmptyBody
	}
	if len(body) > messaging.MaxBodyLength {
		return domain.ListingMessage{}, messaging.ErrBodyTooLong
	}
	listing, err := s.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ListingMessage{}, ErrListingNotFound
	} else if err != nil {
		return domain.ListingMessage{}, err
	}
	if senderID != listing.SellerID {
		recipientID = listing.SellerID
	} else if recipientID == "" || recipientID == senderID {
		return domain.ListingMessage{}, messaging.ErrRecipientNotFound
	}
	lm := domain.ListingMessage{
		ID:          uuid.NewString(),
		ListingID:   listing.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        domain.ListingMessageText,
		Body:        body,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateListingMessage(ctx, &lm); err != nil {
		return domain.ListingMessage{}, err
	}
	realtime.Publish(s.pub, ListingTopic(listing.ID), realtime.Insert, "listing_messages", lm)
	return lm, nil
}
