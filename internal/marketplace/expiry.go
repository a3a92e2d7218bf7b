package marketplace

import (
	"context"
	"errors"
	"fmt"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/sirupsen/logrus"
)

// ExpireOffers moves every pending offer past its expiry to expired and
// returns how many changed.
func (s *Service) ExpireOffers(ctx context.Context) (int, error) {
	due, err := s.store.ListExpiredOffers(ctx, s.now())
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(due))
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	n, err := s.expire(ctx, ids)
	if n > 0 {
		logrus.WithField("count", n).Info("Offers expired")
	}
	return n, err
}

// expire runs one transaction per offer so a concurrent transition on one
// row does not hold back the rest.
func (s *Service) expire(ctx context.Context, ids []string) (int, error) {
	var expired int
	var errs []error
	for _, id := range ids {
		var p pending
		err := s.store.Atomic(ctx, func(tx store.Store) error {
			offer, err := tx.GetOffer(ctx, id)
			if err != nil {
				return err
			}
			if offer.Status != domain.OfferPending {
				return store.ErrConflict
			}
			listing, err := tx.GetListing(ctx, offer.ListingID)
			if err != nil {
				return err
			}
			now := s.now()
			if err := s.moveOffer(ctx, tx, &p, &offer, domain.OfferExpired, now); err != nil {
				return err
			}
			text := fmt.Sprintf("Your offer of %s on %q has expired", money(offer.Amount), listing.Title)
			return s.record(ctx, tx, &p, listing, offer, offer.Counterpart(offer.ProposedBy), offer.ProposedBy,
				domain.ListingMessageOfferExpired, text, now)
		})
		switch {
		case err == nil:
			expired++
			s.flush(ctx, &p)
		case errors.Is(err, store.ErrConflict), errors.Is(err, ErrInvalidTransition):
			// already answered
		default:
			errs = append(errs, fmt.Errorf("expire offer %s: %w", id, err))
		}
	}
	return expired, errors.Join(errs...)
}
