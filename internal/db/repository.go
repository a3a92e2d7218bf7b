package db

import (
	"context"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements store.Store on top of gorm
type Repository struct {
	db *gorm.DB
}

var _ store.Store = (*Repository)(nil)

// NewRepository wraps a gorm handle
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// Atomic runs fn inside a database transaction
func (r *Repository) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) with(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func paginate(q *gorm.DB, page store.Page) *gorm.DB {
	if page.PageSize <= 0 {
		return q
	}
	return q.Offset(page.Offset()).Limit(page.PageSize)
}

func first[T any](q *gorm.DB) (T, error) {
	var row T
	err := q.First(&row).Error
	return row, mapErr(err)
}

// --- profiles ---

func (r *Repository) CreateProfile(ctx context.Context, p *domain.Profile) error {
	return mapErr(r.with(ctx).Create(p).Error)
}

func (r *Repository) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return first[domain.Profile](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return first[domain.Profile](r.with(ctx).Where("email = ?", strings.ToLower(email)))
}

func (r *Repository) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return first[domain.Profile](r.with(ctx).Where("username = ?", strings.ToLower(username)))
}

func (r *Repository) ListProfiles(ctx context.Context, page store.Page) ([]domain.Profile, int64, error) {
	var total int64
	if err := r.with(ctx).Model(&domain.Profile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Profile
	err := paginate(r.with(ctx).Order("created_at desc"), page).Find(&rows).Error
	return rows, total, err
}

// --- cards ---

func (r *Repository) CreateCard(ctx context.Context, c *domain.UserCard) error {
	return mapErr(r.with(ctx).Create(c).Error)
}

func (r *Repository) GetCard(ctx context.Context, id string) (domain.UserCard, error) {
	return first[domain.UserCard](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListCards(ctx context.Context, f store.CardFilter) ([]domain.UserCard, int64, error) {
	q := r.with(ctx).Model(&domain.UserCard{})
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Game != "" {
		q = q.Where("game = ?", f.Game)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.UserCard
	err := paginate(q.Order("created_at desc"), f.Page).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) SaveCard(ctx context.Context, c *domain.UserCard) error {
	return mapErr(r.with(ctx).Save(c).Error)
}

func (r *Repository) DeleteCard(ctx context.Context, id string) error {
	res := r.with(ctx).Where("id = ?", id).Delete(&domain.UserCard{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- listings ---

func (r *Repository) CreateListing(ctx context.Context, l *domain.Listing) error {
	return mapErr(r.with(ctx).Create(l).Error)
}

func (r *Repository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	return first[domain.Listing](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListListings(ctx context.Context, f store.ListingFilter) ([]domain.Listing, int64, error) {
	q := r.with(ctx).Model(&domain.Listing{})
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Game != "" {
		q = q.Where("game = ?", f.Game)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Listing
	err := paginate(q.Order("created_at desc"), f.Page).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) HasActiveListing(ctx context.Context, cardID string) (bool, error) {
	var n int64
	err := r.with(ctx).Model(&domain.Listing{}).
		Where("card_id = ? AND status = ?", cardID, domain.ListingActive).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) HasOpenSale(ctx context.Context, cardID string) (bool, error) {
	var n int64
	err := r.with(ctx).Model(&domain.Listing{}).
		Where("card_id = ?", cardID).
		Where("status = ? OR (status = ? AND EXISTS (SELECT 1 FROM orders WHERE orders.listing_id = marketplace_listings.id AND orders.status NOT IN ?))",
			domain.ListingActive, domain.ListingSold, []domain.OrderStatus{domain.OrderCancelled, domain.OrderRefunded}).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) TransitionListing(ctx context.Context, id string, from, to domain.ListingStatus, soldPrice *decimal.Decimal, soldAt *time.Time) error {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	if soldPrice != nil {
		updates["sold_price"] = *soldPrice
	} else {
		updates["sold_price"] = gorm.Expr("NULL")
	}
	if soldAt != nil {
		updates["sold_at"] = *soldAt
	} else {
		updates["sold_at"] = gorm.Expr("NULL")
	}
	res := r.with(ctx).Model(&domain.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

// --- offers ---

func (r *Repository) CreateOffer(ctx context.Context, o *domain.Offer) error {
	return mapErr(r.with(ctx).Create(o).Error)
}

func (r *Repository) GetOffer(ctx context.Context, id string) (domain.Offer, error) {
	return first[domain.Offer](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListOffers(ctx context.Context, f store.OfferFilter) ([]domain.Offer, error) {
	q := r.with(ctx).Model(&domain.Offer{})
	if f.ListingID != "" {
		q = q.Where("listing_id = ?", f.ListingID)
	}
	if f.BuyerID != "" {
		q = q.Where("buyer_id = ?", f.BuyerID)
	}
	if f.ParentOfferID != "" {
		q = q.Where("parent_offer_id = ?", f.ParentOfferID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var rows []domain.Offer
	err := q.Order("created_at desc").Find(&rows).Error
	return rows, err
}

func (r *Repository) TransitionOffer(ctx context.Context, id string, from, to domain.OfferStatus, at time.Time) error {
	res := r.with(ctx).Model(&domain.Offer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "responded_at": at, "updated_at": at})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *Repository) ListExpiredOffers(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	var rows []domain.Offer
	err := r.with(ctx).
		Where("status = ? AND expires_at <= ?", domain.OfferPending, now).
		Order("expires_at asc").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateListingMessage(ctx context.Context, m *domain.ListingMessage) error {
	return mapErr(r.with(ctx).Create(m).Error)
}

func (r *Repository) ListListingMessages(ctx context.Context, listingID string) ([]domain.ListingMessage, error) {
	var rows []domain.ListingMessage
	err := r.with(ctx).Where("listing_id = ?", listingID).Order("created_at asc").Find(&rows).Error
	return rows, err
}

// --- orders ---

func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	return mapErr(r.with(ctx).Create(o).Error)
}

func (r *Repository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return first[domain.Order](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, int64, error) {
	q := r.with(ctx).Model(&domain.Order{})
	if f.UserID != "" {
		switch f.Role {
		case "buyer":
			q = q.Where("buyer_id = ?", f.UserID)
		case "seller":
			q = q.Where("seller_id = ?", f.UserID)
		default:
			q = q.Where("(buyer_id = ? OR seller_id = ?)", f.UserID, f.UserID)
		}
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Order
	err := paginate(q.Order("created_at desc"), f.Page).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) SaveOrder(ctx context.Context, o *domain.Order, from domain.OrderStatus) error {
	o.UpdatedAt = time.Now().UTC()
	res := r.with(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", o.ID, from).
		Select("*").Omit("id", "created_at").
		Updates(o)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

// --- cache ---

func (r *Repository) GetCardCache(ctx context.Context, key string) (domain.CardCache, error) {
	return first[domain.CardCache](r.with(ctx).Where("cache_key = ?", key))
}

func (r *Repository) PutCardCache(ctx context.Context, c *domain.CardCache) error {
	return r.with(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			UpdateAll: true,
		}).
		Create(c).Error
}
