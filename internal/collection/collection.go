// Package collection manages the cards each collector owns, including the
// photo of each card and its estimated market price.
package collection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"collector_hub/internal/cardlookup"
	"collector_hub/internal/domain"
	"collector_hub/internal/imagecrop"
	"collector_hub/internal/storage"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrCardNotFound  = errors.New("card not found")
	ErrNotOwner      = errors.New("card does not belong to you")
	ErrNameRequired  = errors.New("card name is required")
	ErrUnknownGame   = errors.New("unknown game")
	ErrCardListed    = errors.New("card is listed or in an open sale")
	ErrNotAnImage    = errors.New("card images must be image files")
	ErrBadQuantity   = errors.New("quantity must be at least 1")
	ErrNoPriceSource = errors.New("no price found for this card")
)

// PriceSource is the part of cardlookup the collection needs.
type PriceSource interface {
	Search(ctx context.Context, game, query string) (cardlookup.Result, error)
}

// CardInput holds the user editable card fields. Nil pointers are left
// unchanged on update.
type CardInput struct {
	Name       *string `json:"name"`
	Game       *string `json:"game"`
	SetName    *string `json:"set_name"`
	Number     *string `json:"number"`
	Rarity     *string `json:"rarity"`
	Condition  *string `json:"condition"`
	Quantity   *int    `json:"quantity"`
	ExternalID *string `json:"external_id"`
	ImageURL   *string `json:"image_url"`
}

type Service struct {
	store  store.Store
	blobs  storage.Blobs
	prices PriceSource
	now    func() time.Time
}

// NewService wires the collection service. prices may be nil, in which
// case RefreshPrice reports ErrNoPriceSource.
func NewService(st store.Store, blobs storage.Blobs, prices PriceSource) *Service {
	return &Service{store: st, blobs: blobs, prices: prices, now: func() time.Time { return time.Now().UTC() }}
}

func (in CardInput) apply(c *domain.UserCard) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.Name, in.Name)
	set(&c.SetName, in.SetName)
	set(&c.Number, in.Number)
	set(&c.Rarity, in.Rarity)
	set(&c.Condition, in.Condition)
	set(&c.ExternalID, in.ExternalID)
	set(&c.ImageURL, in.ImageURL)
	if in.Game != nil {
		c.Game = strings.ToLower(strings.TrimSpace(*in.Game))
	}
	if in.Quantity != nil {
		c.Quantity = *in.Quantity
	}
	switch {
	case c.Name == "":
		return ErrNameRequired
	case !domain.IsKnownGame(c.Game):
		return fmt.Errorf("%w: %q", ErrUnknownGame, c.Game)
	case c.Quantity < 1:
		return ErrBadQuantity
	}
	return nil
}

// Add puts a new card into ownerID's collection.
func (s *Service) Add(ctx context.Context, ownerID string, in CardInput) (domain.UserCard, error) {
	c := domain.UserCard{ID: uuid.NewString(), OwnerID: ownerID, Quantity: 1}
	if err := in.apply(&c); err != nil {
		return domain.UserCard{}, err
	}
	if err := s.store.CreateCard(ctx, &c); err != nil {
		return domain.UserCard{}, err
	}
	logrus.WithFields(logrus.Fields{"card_id": c.ID, "owner_id": ownerID, "game": c.Game}).Info("Card added")
	return c, nil
}

// Get returns any card; collections are public.
func (s *Service) Get(ctx context.Context, id string) (domain.UserCard, error) {
	c, err := s.store.GetCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserCard{}, ErrCardNotFound
	}
	return c, err
}

// List returns a page of cards, optionally for one owner and game.
func (s *Service) List(ctx context.Context, f store.CardFilter) ([]domain.UserCard, int64, error) {
	return s.store.ListCards(ctx, f)
}

func (s *Service) owned(ctx context.Context, ownerID, id string) (domain.UserCard, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return domain.UserCard{}, err
	}
	if c.OwnerID != ownerID {
		return domain.UserCard{}, ErrNotOwner
	}
	return c, nil
}

// Update changes the fields set in in.
func (s *Service) Update(ctx context.Context, ownerID, id string, in CardInput) (domain.UserCard, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return domain.UserCard{}, err
	}
	if err := in.apply(&c); err != nil {
		return domain.UserCard{}, err
	}
	if err := s.store.SaveCard(ctx, &c); err != nil {
		return domain.UserCard{}, err
	}
	return c, nil
}

// Delete removes a card that is not currently listed, along with its
// stored image.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	var removed domain.UserCard
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		c, err := tx.GetCard(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCardNotFound
		} else if err != nil {
			return err
		}
		if c.OwnerID != ownerID {
			return ErrNotOwner
		}
		listed, err := tx.HasOpenSale(ctx, c.ID)
		if err != nil {
			return err
		}
		if listed {
			return ErrCardListed
		}
		removed = c
		return tx.DeleteCard(ctx, c.ID)
	})
	if err != nil {
		return err
	}
	s.dropImage(ctx, removed.ImageURL)
	logrus.WithFields(logrus.Fields{"card_id": id, "owner_id": ownerID}).Info("Card deleted")
	return nil
}

// UploadImage stores a photo for the card, cropped to crop when given, and
// points the card at it. The blob is removed again if the card update fails.
func (s *Service) UploadImage(ctx context.Context, ownerID, cardID, contentType string, r io.Reader, crop *imagecrop.Rect) (domain.UserCard, error) {
	if storage.IsVideo(contentType) || !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return domain.UserCard{}, ErrNotAnImage
	}
	c, err := s.owned(ctx, ownerID, cardID)
	if err != nil {
		return domain.UserCard{}, err
	}
	if crop != nil {
		raw, err := io.ReadAll(io.LimitReader(r, storage.MaxImageBytes+1))
		if err != nil {
			return domain.UserCard{}, err
		}
		if int64(len(raw)) > storage.MaxImageBytes {
			return domain.UserCard{}, storage.ErrTooLarge
		}
		data, ct, err := imagecrop.Crop(bytes.NewReader(raw), *crop)
		if err != nil {
			return domain.UserCard{}, err
		}
		r, contentType = bytes.NewReader(data), ct
	}
	obj, err := s.blobs.Put(ctx, storage.BucketCardImages, storage.ObjectName(ownerID, contentType), contentType, r)
	if err != nil {
		return domain.UserCard{}, err
	}
	previous := c.ImageURL
	c.ImageURL = obj.URL
	if err := s.store.SaveCard(ctx, &c); err != nil {
		if derr := s.blobs.Delete(ctx, obj.Bucket, obj.Name); derr != nil {
			logrus.WithField("error", derr.Error()).Warn("Orphaned card image")
		}
		return domain.UserCard{}, err
	}
	s.dropImage(ctx, previous)
	return c, nil
}

func (s *Service) dropImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if name, ok := s.blobs.NameFromURL(storage.BucketCardImages, url); ok {
		if err := s.blobs.Delete(ctx, storage.BucketCardImages, name); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			logrus.WithField("error", err.Error()).Warn("Card image delete failed")
		}
	}
}

// RefreshPrice looks the card up and stores the market price of the best
// match. Metadata the owner left empty is filled in from the match.
func (s *Service) RefreshPrice(ctx context.Context, ownerID, cardID string) (domain.UserCard, error) {
	c, err := s.owned(ctx, ownerID, cardID)
	if err != nil {
		return domain.UserCard{}, err
	}
	if s.prices == nil {
		return domain.UserCard{}, ErrNoPriceSource
	}
	res, err := s.prices.Search(ctx, c.Game, c.Name)
	if err != nil {
		return domain.UserCard{}, err
	}
	match, ok := cardlookup.BestMatch(res.Cards, c.ExternalID, c.Number)
	if !ok || match.Price == nil {
		return domain.UserCard{}, ErrNoPriceSource
	}
	now := s.now()
	price := *match.Price
	c.EstimatedPrice = &price
	c.PriceUpdatedAt = &now
	if c.ExternalID == "" {
		c.ExternalID = match.ExternalID
	}
	if c.SetName == "" {
		c.SetName = match.SetName
	}
	if c.Rarity == "" {
		c.Rarity = match.Rarity
	}
	if c.ImageURL == "" {
		c.ImageURL = match.ImageURL
	}
	if err := s.store.SaveCard(ctx, &c); err != nil {
		return domain.UserCard{}, err
	}
	logrus.WithFields(logrus.Fields{
		"card_id": c.ID,
		"price":   price.StringFixed(2),
		"source":  res.Source,
	}).Info("Card price refreshed")
	return c, nil
}
