package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"
	"collector_hub/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateListingInput carries the seller supplied listing fields.
type CreateListingInput struct {
	CardID      string
	Title       string
	Description string
	AskingPrice decimal.Decimal
}

// CreateListing puts one of the seller's cards up for sale.
func (s *Service) CreateListing(ctx context.Context, sellerID string, in CreateListingInput) (domain.Listing, error) {
	if !in.AskingPrice.IsPositive() {
		return domain.Listing{}, ErrInvalidAmount
	}
	var listing domain.Listing
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		card, err := tx.GetCard(ctx, in.CardID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCardNotFound
		} else if err != nil {
			return err
		}
		if card.OwnerID != sellerID {
			return ErrNotCardOwner
		}
		listed, err := tx.HasOpenSale(ctx, card.ID)
		if err != nil {
			return err
		}
		if listed {
			return ErrCardAlreadyListed
		}
		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = card.Name
		}
		now := s.now()
		listing = domain.Listing{
			ID:          uuid.NewString(),
			SellerID:    sellerID,
			CardID:      card.ID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Game:        card.Game,
			Condition:   card.Condition,
			AskingPrice: in.AskingPrice.Round(2),
			Status:      domain.ListingActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.CreateListing(ctx, &listing)
	})
	if err != nil {
		return domain.Listing{}, err
	}
	logrus.WithFields(logrus.Fields{
		"listing_id":   listing.ID,
		"seller_id":    sellerID,
		"asking_price": listing.AskingPrice.StringFixed(2),
	}).Info("Listing created")
	realtime.Publish(s.pub, "marketplace_listings", realtime.Insert, "marketplace_listings", listing)
	return listing, nil
}

// GetListing returns a listing, read through the redis cache.
func (s *Service) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	var cached domain.Listing
	if found, err := utils.GetCache(ctx, s.rdb, utils.ListingKey(id), &cached); err == nil && found {
		return cached, nil
	}
	listing, err := s.store.GetListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Listing{}, ErrListingNotFound
	} else if err != nil {
		return domain.Listing{}, err
	}
	_ = utils.SetCache(ctx, s.rdb, utils.ListingKey(id), listing, 60*time.Second)
	return listing, nil
}

// ListListings searches listings; an empty status defaults to active.
func (s *Service) ListListings(ctx context.Context, f store.ListingFilter) ([]domain.Listing, int64, error) {
	if f.Status == "" {
		f.Status = domain.ListingActive
	}
	return s.store.ListListings(ctx, f)
}

// CancelListing withdraws an active listing and declines its open offers.
func (s *Service) CancelListing(ctx context.Context, sellerID, listingID string) (domain.Listing, error) {
	var p pending
	var listing domain.Listing
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		listing, err = s.activeListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return ErrNotSeller
		}
		if err := tx.TransitionListing(ctx, listing.ID, domain.ListingActive, domain.ListingCancelled, nil, nil); err != nil {
			return mapListingConflict(err)
		}
		listing.Status = domain.ListingCancelled
		if err := s.declineOpenOffers(ctx, tx, &p, listing, ""); err != nil {
			return err
		}
		p.add(ListingTopic(listing.ID), realtime.Update, "marketplace_listings", listing)
		p.listingKeys = append(p.listingKeys, listing.ID)
		return nil
	})
	if err != nil {
		return domain.Listing{}, err
	}
	s.flush(ctx, &p)
	logrus.WithFields(logrus.Fields{"listing_id": listingID, "seller_id": sellerID}).Info("Listing cancelled")
	return listing, nil
}

func (s *Service) activeListing(ctx context.Context, tx store.Store, listingID string) (domain.Listing, error) {
	listing, err := tx.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Listing{}, ErrListingNotFound
	} else if err != nil {
		return domain.Listing{}, err
	}
	if listing.Status != domain.ListingActive {
		return domain.Listing{}, fmt.Errorf("%w: listing is %s", ErrListingNotActive, listing.Status)
	}
	return listing, nil
}

func mapListingConflict(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrListingNotActive
	}
	return err
}
