// Package store declares the persistence contract shared by the gorm
// repository and the in-memory adapter.
package store

import (
	"context"
	"errors"
	"time"

	"collector_hub/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on unique key violations.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update matched no row,
	// usually because another writer changed the status first.
	ErrConflict = errors.New("conditional update matched no row")
)

// Page is a 1-based pagination window.
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// NormalizePage applies the API defaults: page 1, size 20, max 100.
func NormalizePage(page, pageSize int) Page {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return Page{Page: page, PageSize: pageSize}
}

type CardFilter struct {
	OwnerID string
	Game    string
	Page    Page
}

type ListingFilter struct {
	SellerID string
	Game     string
	Status   domain.ListingStatus
	Search   string // case-insensitive title match
	Page     Page
}

type OfferFilter struct {
	ListingID     string
	BuyerID       string
	ParentOfferID string
	Status        domain.OfferStatus
}

type OrderFilter struct {
	UserID string // buyer or seller
	Role   string // "buyer", "seller" or empty for both
	Status domain.OrderStatus
	Page   Page
}

type GiftFilter struct {
	SenderID    string
	RecipientID string
	Status      domain.GiftStatus
}

type TransactionFilter struct {
	WalletID string
	Type     string
	From     *time.Time
	To       *time.Time
	Page     Page
}

type EventFilter struct {
	Game  string
	After time.Time
	Page  Page
}

type PostFilter struct {
	Kind        string
	WallOwnerID string
	AuthorID    string
	Page        Page
}

// Store is the full persistence surface. Atomic runs fn inside one
// transaction; the Store passed to fn must be used for every call that
// belongs to the transaction.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Store) error) error

	CreateProfile(ctx context.Context, p *domain.Profile) error
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error)
	ListProfiles(ctx context.Context, page Page) ([]domain.Profile, int64, error)

	CreateCard(ctx context.Context, c *domain.UserCard) error
	GetCard(ctx context.Context, id string) (domain.UserCard, error)
	ListCards(ctx context.Context, f CardFilter) ([]domain.UserCard, int64, error)
	SaveCard(ctx context.Context, c *domain.UserCard) error
	DeleteCard(ctx context.Context, id string) error

	CreateListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]domain.Listing, int64, error)
	HasActiveListing(ctx context.Context, cardID string) (bool, error)
	// HasOpenSale reports whether the card is in an active listing or in a
	// sold listing whose order has not been cancelled or refunded.
	HasOpenSale(ctx context.Context, cardID string) (bool, error)
	// TransitionListing moves a listing from -> to, setting or clearing the
	// sale fields. Returns ErrConflict when the listing is not in from.
	TransitionListing(ctx context.Context, id string, from, to domain.ListingStatus, soldPrice *decimal.Decimal, soldAt *time.Time) error

	CreateOffer(ctx context.Context, o *domain.Offer) error
	GetOffer(ctx context.Context, id string) (domain.Offer, error)
	ListOffers(ctx context.Context, f OfferFilter) ([]domain.Offer, error)
	// TransitionOffer is conditional on the current status.
	TransitionOffer(ctx context.Context, id string, from, to domain.OfferStatus, at time.Time) error
	ListExpiredOffers(ctx context.Context, now time.Time) ([]domain.Offer, error)

	CreateListingMessage(ctx context.Context, m *domain.ListingMessage) error
	ListListingMessages(ctx context.Context, listingID string) ([]domain.ListingMessage, error)

	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, int64, error)
	// SaveOrder persists o only if the stored status still equals from.
	SaveOrder(ctx context.Context, o *domain.Order, from domain.OrderStatus) error

	CreateMessage(ctx context.Context, m *domain.Message) error
	ListConversation(ctx context.Context, a, b string, page Page) ([]domain.Message, error)
	ListRecentMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, recipientID, senderID string, at time.Time) (int64, error)

	CreateGift(ctx context.Context, g *domain.Gift) error
	GetGift(ctx context.Context, id string) (domain.Gift, error)
	ListGifts(ctx context.Context, f GiftFilter) ([]domain.Gift, error)
	TransitionGift(ctx context.Context, id string, from, to domain.GiftStatus, at time.Time) error

	CreateWallet(ctx context.Context, w *domain.Wallet) error
	GetWalletByUser(ctx context.Context, userID string) (domain.Wallet, error)
	// AdjustBalance adds delta to the balance. A debit that would leave the
	// balance negative returns ErrConflict and changes nothing.
	AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int64, error)

	GetCardCache(ctx context.Context, key string) (domain.CardCache, error)
	PutCardCache(ctx context.Context, c *domain.CardCache) error

	CreateEvent(ctx context.Context, e *domain.TournamentEvent) error
	GetEvent(ctx context.Context, id string) (domain.TournamentEvent, error)
	ListEvents(ctx context.Context, f EventFilter) ([]domain.TournamentEvent, int64, error)
	CreateRegistration(ctx context.Context, r *domain.EventRegistration) error
	DeleteRegistration(ctx context.Context, eventID, userID string) error
	ListRegistrations(ctx context.Context, eventID string) ([]domain.EventRegistration, error)

	CreateFollow(ctx context.Context, f *domain.Follow) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) error
	ListFollowers(ctx context.Context, userID string, page Page) ([]domain.Follow, int64, error)
	ListFollowing(ctx context.Context, userID string, page Page) ([]domain.Follow, int64, error)

	CreatePost(ctx context.Context, p *domain.Post) error
	ListPosts(ctx context.Context, f PostFilter) ([]domain.Post, int64, error)
}
