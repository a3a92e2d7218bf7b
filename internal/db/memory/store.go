// Package memory is an in-process store.Store used by tests and local runs
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/shopspring/decimal"
)

type data struct {
	profiles      map[string]domain.Profile
	cards         map[string]domain.UserCard
	listings      map[string]domain.Listing
	offers        map[string]domain.Offer
	listingMsgs   []domain.ListingMessage
	orders        map[string]domain.Order
	messages      []domain.Message
	gifts         map[string]domain.Gift
	wallets       map[string]domain.Wallet
	transactions  []domain.Transaction
	cardCache     map[string]domain.CardCache
	events        map[string]domain.TournamentEvent
	registrations []domain.EventRegistration
	follows       []domain.Follow
	posts         []domain.Post

	seq   int64
	order map[string]int64 // insertion sequence per id, breaks CreatedAt ties
}

func newData() *data {
	return &data{
		profiles:  map[string]domain.Profile{},
		cards:     map[string]domain.UserCard{},
		listings:  map[string]domain.Listing{},
		offers:    map[string]domain.Offer{},
		orders:    map[string]domain.Order{},
		gifts:     map[string]domain.Gift{},
		wallets:   map[string]domain.Wallet{},
		cardCache: map[string]domain.CardCache{},
		events:    map[string]domain.TournamentEvent{},
		order:     map[string]int64{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	return &data{
		profiles:      cloneMap(d.profiles),
		cards:         cloneMap(d.cards),
		listings:      cloneMap(d.listings),
		offers:        cloneMap(d.offers),
		listingMsgs:   append([]domain.ListingMessage(nil), d.listingMsgs...),
		orders:        cloneMap(d.orders),
		messages:      append([]domain.Message(nil), d.messages...),
		gifts:         cloneMap(d.gifts),
		wallets:       cloneMap(d.wallets),
		transactions:  append([]domain.Transaction(nil), d.transactions...),
		cardCache:     cloneMap(d.cardCache),
		events:        cloneMap(d.events),
		registrations: append([]domain.EventRegistration(nil), d.registrations...),
		follows:       append([]domain.Follow(nil), d.follows...),
		posts:         append([]domain.Post(nil), d.posts...),
		seq:           d.seq,
		order:         cloneMap(d.order),
	}
}

func (d *data) stamp(id string) {
	d.seq++
	d.order[id] = d.seq
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu   *sync.Mutex
	inTx bool
	d    *data
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Atomic holds the lock for the whole of fn and restores a snapshot when fn
// fails.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.d.clone()
	if err := fn(&Store{mu: s.mu, inTx: true, d: s.d}); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }

func touch(created, updated *time.Time) {
	t := now()
	if created != nil && created.IsZero() {
		*created = t
	}
	if updated != nil {
		*updated = t
	}
}

// newestFirst sorts by CreatedAt desc, insertion order desc on ties.
func newestFirst[T any](d *data, rows []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := created(rows[i]), created(rows[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return d.order[id(rows[i])] > d.order[id(rows[j])]
	})
}

func pageOf[T any](rows []T, p store.Page) []T {
	if p.PageSize <= 0 {
		return rows
	}
	start := p.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// --- profiles ---

func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile) error {
	defer s.lock()()
	for _, existing := range s.d.profiles {
		if existing.ID == p.ID || strings.EqualFold(existing.Email, p.Email) || strings.EqualFold(existing.Username, p.Username) {
			return fmt.Errorf("%w: profile", store.ErrDuplicate)
		}
	}
	touch(&p.CreatedAt, &p.UpdatedAt)
	s.d.profiles[p.ID] = *p
	s.d.stamp(p.ID)
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	defer s.lock()()
	p, ok := s.d.profiles[id]
	if !ok {
		return domain.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	defer s.lock()()
	for _, p := range s.d.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return domain.Profile{}, store.ErrNotFound
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	defer s.lock()()
	for _, p := range s.d.profiles {
		if p.Username == strings.ToLower(username) {
			return p, nil
		}
	}
	return domain.Profile{}, store.ErrNotFound
}

func (s *Store) ListProfiles(ctx context.Context, page store.Page) ([]domain.Profile, int64, error) {
	defer s.lock()()
	rows := make([]domain.Profile, 0, len(s.d.profiles))
	for _, p := range s.d.profiles {
		rows = append(rows, p)
	}
	newestFirst(s.d, rows, func(p domain.Profile) time.Time { return p.CreatedAt }, func(p domain.Profile) string { return p.ID })
	return pageOf(rows, page), int64(len(rows)), nil
}

// --- cards ---

func (s *Store) CreateCard(ctx context.Context, c *domain.UserCard) error {
	defer s.lock()()
	if _, ok := s.d.cards[c.ID]; ok {
		return store.ErrDuplicate
	}
	touch(&c.CreatedAt, &c.UpdatedAt)
	s.d.cards[c.ID] = *c
	s.d.stamp(c.ID)
	return nil
}

func (s *Store) GetCard(ctx context.Context, id string) (domain.UserCard, error) {
	defer s.lock()()
	c, ok := s.d.cards[id]
	if !ok {
		return domain.UserCard{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCards(ctx context.Context, f store.CardFilter) ([]domain.UserCard, int64, error) {
	defer s.lock()()
	var rows []domain.UserCard
	for _, c := range s.d.cards {
		if f.OwnerID != "" && c.OwnerID != f.OwnerID {
			continue
		}
		if f.Game != "" && c.Game != f.Game {
			continue
		}
		rows = append(rows, c)
	}
	newestFirst(s.d, rows, func(c domain.UserCard) time.Time { return c.CreatedAt }, func(c domain.UserCard) string { return c.ID })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}

func (s *Store) SaveCard(ctx context.Context, c *domain.UserCard) error {
	defer s.lock()()
	if _, ok := s.d.cards[c.ID]; !ok {
		s.d.stamp(c.ID)
	}
	touch(&c.CreatedAt, &c.UpdatedAt)
	s.d.cards[c.ID] = *c
	return nil
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.d.cards[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.d.cards, id)
	return nil
}

// --- listings ---

func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) error {
	defer s.lock()()
	if _, ok := s.d.listings[l.ID]; ok {
		return store.ErrDuplicate
	}
	touch(&l.CreatedAt, &l.UpdatedAt)
	s.d.listings[l.ID] = *l
	s.d.stamp(l.ID)
	return nil
}

func (s *Store) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	defer s.lock()()
	l, ok := s.d.listings[id]
	if !ok {
		return domain.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListListings(ctx context.Context, f store.ListingFilter) ([]domain.Listing, int64, error) {
	defer s.lock()()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var rows []domain.Listing
	for _, l := range s.d.listings {
		if f.SellerID != "" && l.SellerID != f.SellerID {
			continue
		}
		if f.Game != "" && l.Game != f.Game {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Title), search) {
			continue
		}
		rows = append(rows, l)
	}
	newestFirst(s.d, rows, func(l domain.Listing) time.Time { return l.CreatedAt }, func(l domain.Listing) string { return l.ID })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}

func (s *Store) HasActiveListing(ctx context.Context, cardID string) (bool, error) {
	defer s.lock()()
	for _, l := range s.d.listings {
		if l.CardID == cardID && l.Status == domain.ListingActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasOpenSale(ctx context.Context, cardID string) (bool, error) {
	defer s.lock()()
	for _, l := range s.d.listings {
		if l.CardID != cardID {
			continue
		}
		if l.Status == domain.ListingActive {
			return true, nil
		}
		if l.Status != domain.ListingSold {
			continue
		}
		for _, o := range s.d.orders {
			if o.ListingID == l.ID && o.Status != domain.OrderCancelled && o.Status != domain.OrderRefunded {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) TransitionListing(ctx context.Context, id string, from, to domain.ListingStatus, soldPrice *decimal.Decimal, soldAt *time.Time) error {
	defer s.lock()()
	l, ok := s.d.listings[id]
	if !ok || l.Status != from {
		return store.ErrConflict
	}
	l.Status = to
	l.SoldPrice = soldPrice
	l.SoldAt = soldAt
	l.UpdatedAt = now()
	s.d.listings[id] = l
	return nil
}

// --- offers ---

func (s *Store) CreateOffer(ctx context.Context, o *domain.Offer) error {
	defer s.lock()()
	if _, ok := s.d.offers[o.ID]; ok {
		return store.ErrDuplicate
	}
	touch(&o.CreatedAt, &o.UpdatedAt)
	s.d.offers[o.ID] = *o
	s.d.stamp(o.ID)
	return nil
}

func (s *Store) GetOffer(ctx context.Context, id string) (domain.Offer, error) {
	defer s.lock()()
	o, ok := s.d.offers[id]
	if !ok {
		return domain.Offer{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOffers(ctx context.Context, f store.OfferFilter) ([]domain.Offer, error) {
	defer s.lock()()
	var rows []domain.Offer
	for _, o := range s.d.offers {
		if f.ListingID != "" && o.ListingID != f.ListingID {
			continue
		}
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.ParentOfferID != "" && (o.ParentOfferID == nil || *o.ParentOfferID != f.ParentOfferID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		rows = append(rows, o)
	}
	newestFirst(s.d, rows, func(o domain.Offer) time.Time { return o.CreatedAt }, func(o domain.Offer) string { return o.ID })
	return rows, nil
}

func (s *Store) TransitionOffer(ctx context.Context, id string, from, to domain.OfferStatus, at time.Time) error {
	defer s.lock()()
	o, ok := s.d.offers[id]
	if !ok || o.Status != from {
		return store.ErrConflict
	}
	o.Status = to
	o.RespondedAt = &at
	o.UpdatedAt = at
	s.d.offers[id] = o
	return nil
}

func (s *Store) ListExpiredOffers(ctx context.Context, at time.Time) ([]domain.Offer, error) {
	defer s.lock()()
	var rows []domain.Offer
	for _, o := range s.d.offers {
		if o.Status == domain.OfferPending && !o.ExpiresAt.After(at) {
			rows = append(rows, o)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExpiresAt.Before(rows[j].ExpiresAt) })
	return rows, nil
}

func (s *Store) CreateListingMessage(ctx context.Context, m *domain.ListingMessage) error {
	defer s.lock()()
	touch(&m.CreatedAt, nil)
	s.d.listingMsgs = append(s.d.listingMsgs, *m)
	return nil
}

func (s *Store) ListListingMessages(ctx context.Context, listingID string) ([]domain.ListingMessage, error) {
	defer s.lock()()
	var rows []domain.ListingMessage
	for _, m := range s.d.listingMsgs {
		if m.ListingID == listingID {
			rows = append(rows, m)
		}
	}
	return rows, nil
}

// --- orders ---

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	defer s.lock()()
	for _, existing := range s.d.orders {
		if existing.ID == o.ID || existing.OfferID == o.OfferID {
			return fmt.Errorf("%w: order", store.ErrDuplicate)
		}
	}
	touch(&o.CreatedAt, &o.UpdatedAt)
	s.d.orders[o.ID] = *o
	s.d.stamp(o.ID)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	defer s.lock()()
	o, ok := s.d.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, int64, error) {
	defer s.lock()()
	var rows []domain.Order
	for _, o := range s.d.orders {
		if f.UserID != "" {
			switch f.Role {
			case "buyer":
				if o.BuyerID != f.UserID {
					continue
				}
			case "seller":
				if o.SellerID != f.UserID {
					continue
				}
			default:
				if !o.IsParticipant(f.UserID) {
					continue
				}
			}
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		rows = append(rows, o)
	}
	newestFirst(s.d, rows, func(o domain.Order) time.Time { return o.CreatedAt }, func(o domain.Order) string { return o.ID })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}

func (s *Store) SaveOrder(ctx context.Context, o *domain.Order, from domain.OrderStatus) error {
	defer s.lock()()
	existing, ok := s.d.orders[o.ID]
	if !ok || existing.Status != from {
		return store.ErrConflict
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = now()
	s.d.orders[o.ID] = *o
	return nil
}

// --- direct messages ---

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	defer s.lock()()
	touch(&m.CreatedAt, nil)
	s.d.messages = append(s.d.messages, *m)
	s.d.stamp(m.ID)
	return nil
}

func (s *Store) ListConversation(ctx context.Context, a, b string, page store.Page) ([]domain.Message, error) {
	defer s.lock()()
	var rows []domain.Message
	for _, m := range s.d.messages {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			rows = append(rows, m)
		}
	}
	newestFirst(s.d, rows, func(m domain.Message) time.Time { return m.CreatedAt }, func(m domain.Message) string { return m.ID })
	return pageOf(rows, page), nil
}

func (s *Store) ListRecentMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	defer s.lock()()
	var rows []domain.Message
	for _, m := range s.d.messages {
		if m.SenderID == userID || m.RecipientID == userID {
			rows = append(rows, m)
		}
	}
	newestFirst(s.d, rows, func(m domain.Message) time.Time { return m.CreatedAt }, func(m domain.Message) string { return m.ID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, recipientID, senderID string, at time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for i, m := range s.d.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && m.ReadAt == nil {
			readAt := at
			s.d.messages[i].ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

// --- gifts ---

func (s *Store) CreateGift(ctx context.Context, g *domain.Gift) error {
	defer s.lock()()
	touch(&g.CreatedAt, nil)
	s.d.gifts[g.ID] = *g
	s.d.stamp(g.ID)
	return nil
}

func (s *Store) GetGift(ctx context.Context, id string) (domain.Gift, error) {
	defer s.lock()()
	g, ok := s.d.gifts[id]
	if !ok {
		return domain.Gift{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGifts(ctx context.Context, f store.GiftFilter) ([]domain.Gift, error) {
	defer s.lock()()
	var rows []domain.Gift
	for _, g := range s.d.gifts {
		if f.SenderID != "" && g.SenderID != f.SenderID {
			continue
		}
		if f.RecipientID != "" && g.RecipientID != f.RecipientID {
			continue
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		rows = append(rows, g)
	}
	newestFirst(s.d, rows, func(g domain.Gift) time.Time { return g.CreatedAt }, func(g domain.Gift) string { return g.ID })
	return rows, nil
}

func (s *Store) TransitionGift(ctx context.Context, id string, from, to domain.GiftStatus, at time.Time) error {
	defer s.lock()()
	g, ok := s.d.gifts[id]
	if !ok || g.Status != from {
		return store.ErrConflict
	}
	g.Status = to
	g.RespondedAt = &at
	s.d.gifts[id] = g
	return nil
}

// --- wallet ---

func (s *Store) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	defer s.lock()()
	for _, existing := range s.d.wallets {
		if existing.UserID == w.UserID {
			return fmt.Errorf("%w: wallet", store.ErrDuplicate)
		}
	}
	touch(&w.CreatedAt, &w.UpdatedAt)
	s.d.wallets[w.ID] = *w
	return nil
}

func (s *Store) GetWalletByUser(ctx context.Context, userID string) (domain.Wallet, error) {
	defer s.lock()()
	for _, w := range s.d.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return domain.Wallet{}, store.ErrNotFound
}

func (s *Store) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) error {
	defer s.lock()()
	w, ok := s.d.wallets[walletID]
	if !ok {
		return store.ErrConflict
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return store.ErrConflict
	}
	w.Balance = next
	w.UpdatedAt = now()
	s.d.wallets[walletID] = w
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	defer s.lock()()
	touch(&t.CreatedAt, nil)
	s.d.transactions = append(s.d.transactions, *t)
	s.d.stamp(t.ID)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]domain.Transaction, int64, error) {
	defer s.lock()()
	var rows []domain.Transaction
	for _, t := range s.d.transactions {
		if f.WalletID != "" && !strPtrIs(t.FromWalletID, f.WalletID) && !strPtrIs(t.ToWalletID, f.WalletID) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && t.CreatedAt.After(*f.To) {
			continue
		}
		rows = append(rows, t)
	}
	newestFirst(s.d, rows, func(t domain.Transaction) time.Time { return t.CreatedAt }, func(t domain.Transaction) string { return t.ID })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}

func strPtrIs(p *string, v string) bool {
	return p != nil && *p == v
}

// --- card cache ---

func (s *Store) GetCardCache(ctx context.Context, key string) (domain.CardCache, error) {
	defer s.lock()()
	c, ok := s.d.cardCache[key]
	if !ok {
		return domain.CardCache{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) PutCardCache(ctx context.Context, c *domain.CardCache) error {
	defer s.lock()()
	s.d.cardCache[c.CacheKey] = *c
	return nil
}

// --- events ---

func (s *Store) CreateEvent(ctx context.Context, e *domain.TournamentEvent) error {
	defer s.lock()()
	touch(&e.CreatedAt, nil)
	s.d.events[e.ID] = *e
	s.d.stamp(e.ID)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.TournamentEvent, error) {
	defer s.lock()()
	e, ok := s.d.events[id]
	if !ok {
		return domain.TournamentEvent{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]domain.TournamentEvent, int64, error) {
	defer s.lock()()
	var rows []domain.TournamentEvent
	for _, e := range s.d.events {
		if e.StartsAt.Before(f.After) {
			continue
		}
		if f.Game != "" && e.Game != f.Game {
			continue
		}
		rows = append(rows, e)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StartsAt.Before(rows[j].StartsAt) })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}

func (s *Store) CreateRegistration(ctx context.Context, r *domain.EventRegistration) error {
	defer s.lock()()
	for _, existing := range s.d.registrations {
		if existing.EventID == r.EventID && existing.UserID == r.UserID {
			return fmt.Errorf("%w: registration", store.ErrDuplicate)
		}
	}
	touch(&r.CreatedAt, nil)
	s.d.registrations = append(s.d.registrations, *r)
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, eventID, userID string) error {
	defer s.lock()()
	for i, r := range s.d.registrations {
		if r.EventID == eventID && r.UserID == userID {
			s.d.registrations = append(s.d.registrations[:i:i], s.d.registrations[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListRegistrations(ctx context.Context, eventID string) ([]domain.EventRegistration, error) {
	defer s.lock()()
	var rows []domain.EventRegistration
	for _, r := range s.d.registrations {
		if r.EventID == eventID {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// --- follows ---

func (s *Store) CreateFollow(ctx context.Context, f *domain.Follow) error {
	defer s.lock()()
	for _, existing := range s.d.follows {
		if existing.FollowerID == f.FollowerID && existing.FolloweeID == f.FolloweeID {
			return fmt.Errorf("%w: follow", store.ErrDuplicate)
		}
	}
	touch(&f.CreatedAt, nil)
	s.d.follows = append(s.d.follows, *f)
	return nil
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	defer s.lock()()
	for i, f := range s.d.follows {
		if f.FollowerID == followerID && f.FolloweeID == followeeID {
			s.d.follows = append(s.d.follows[:i:i], s.d.follows[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListFollowers(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return s.listFollows(func(f domain.Follow) bool { return f.FolloweeID == userID }, page)
}

func (s *Store) ListFollowing(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return s.listFollows(func(f domain.Follow) bool { return f.FollowerID == userID }, page)
}

func (s *Store) listFollows(match func(domain.Follow) bool, page store.Page) ([]domain.Follow, int64, error) {
	defer s.lock()()
	var rows []domain.Follow
	for i := len(s.d.follows) - 1; i >= 0; i-- {
		if match(s.d.follows[i]) {
			rows = append(rows, s.d.follows[i])
		}
	}
	return pageOf(rows, page), int64(len(rows)), nil
}

// --- posts ---

func (s *Store) CreatePost(ctx context.Context, p *domain.Post) error {
	defer s.lock()()
	touch(&p.CreatedAt, nil)
	s.d.posts = append(s.d.posts, *p)
	s.d.stamp(p.ID)
	return nil
}

func (s *Store) ListPosts(ctx context.Context, f store.PostFilter) ([]domain.Post, int64, error) {
	defer s.lock()()
	var rows []domain.Post
	for _, p := range s.d.posts {
		if f.Kind != "" && p.Kind != f.Kind {
			continue
		}
		if f.WallOwnerID != "" && !strPtrIs(p.WallOwnerID, f.WallOwnerID) {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		rows = append(rows, p)
	}
	newestFirst(s.d, rows, func(p domain.Post) time.Time { return p.CreatedAt }, func(p domain.Post) string { return p.ID })
	return pageOf(rows, f.Page), int64(len(rows)), nil
}
