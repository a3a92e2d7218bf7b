package marketplace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(topic string, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

type fixture struct {
	st      *memory.Store
	svc     *Service
	pub     *recorder
	clock   time.Time
	seller  domain.Profile
	buyer   domain.Profile
	other   domain.Profile
	listing domain.Listing
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		st:    memory.New(),
		pub:   &recorder{},
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.st, WithPublisher(f.pub), WithClock(func() time.Time { return f.clock }))

	for i, p := range []*domain.Profile{&f.seller, &f.buyer, &f.other} {
		name := []string{"seller", "buyer", "other"}[i]
		*p = domain.Profile{ID: name + "-id", Email: name + "@example.com", Username: name, Role: domain.RoleUser}
		require.NoError(t, f.st.CreateProfile(ctx, p))
	}
	card := domain.UserCard{ID: "card-1", OwnerID: f.seller.ID, Name: "Charizard", Game: domain.GamePokemon, Quantity: 1}
	require.NoError(t, f.st.CreateCard(ctx, &card))

	listing, err := f.svc.CreateListing(ctx, f.seller.ID, CreateListingInput{CardID: card.ID, AskingPrice: dec("100")})
	require.NoError(t, err)
	f.listing = listing
	return f
}

func TestCreateListingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "Charizard", f.listing.Title)
	assert.Equal(t, domain.ListingActive, f.listing.Status)

	_, err := f.svc.CreateListing(ctx, f.seller.ID, CreateListingInput{CardID: "card-1", AskingPrice: dec("90")})
	assert.ErrorIs(t, err, ErrCardAlreadyListed)

	_, err = f.svc.CreateListing(ctx, f.buyer.ID, CreateListingInput{CardID: "card-1", AskingPrice: dec("90")})
	assert.ErrorIs(t, err, ErrNotCardOwner)

	_, err = f.svc.CreateListing(ctx, f.seller.ID, CreateListingInput{CardID: "missing", AskingPrice: dec("90")})
	assert.ErrorIs(t, err, ErrCardNotFound)

	_, err = f.svc.CreateListing(ctx, f.seller.ID, CreateListingInput{CardID: "card-1", AskingPrice: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCounterThenSellerAccepts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("50"), "would you take 50?")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferPending, original.Status)
	assert.Equal(t, f.clock.Add(OfferTTL), original.ExpiresAt)

	counter, err := f.svc.CounterOffer(ctx, f.seller.ID, original.ID, dec("75"), "")
	require.NoError(t, err)
	assert.True(t, counter.IsCounter)
	require.NotNil(t, counter.ParentOfferID)
	assert.Equal(t, original.ID, *counter.ParentOfferID)
	assert.Equal(t, f.buyer.ID, counter.BuyerID)
	assert.Equal(t, f.seller.ID, counter.SellerID)

	stored, err := f.st.GetOffer(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferCountered, stored.Status)

	order, err := f.svc.AcceptOffer(ctx, f.seller.ID, counter.ID)
	require.NoError(t, err)
	assert.Equal(t, "75.00", order.Amount.StringFixed(2))
	assert.Equal(t, domain.OrderPendingPayment, order.Status)
	assert.Equal(t, counter.ID, order.OfferID)

	accepted, err := f.st.GetOffer(ctx, counter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferAccepted, accepted.Status)

	listing, err := f.st.GetListing(ctx, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, listing.Status)
	require.NotNil(t, listing.SoldPrice)
	assert.Equal(t, "75.00", listing.SoldPrice.StringFixed(2))

	assert.Contains(t, f.pub.topics(), OrderTopic(order.ID))
}

func TestBuyerAcceptsSellerCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("60"), "")
	require.NoError(t, err)

	_, err = f.svc.AcceptOffer(ctx, f.buyer.ID, original.ID)
	assert.ErrorIs(t, err, ErrForbidden, "buyer cannot accept their own offer")

	_, err = f.svc.CounterOffer(ctx, f.buyer.ID, original.ID, dec("65"), "")
	assert.ErrorIs(t, err, ErrForbidden, "proposer cannot counter their own offer")

	counter, err := f.svc.CounterOffer(ctx, f.seller.ID, original.ID, dec("80"), "")
	require.NoError(t, err)

	order, err := f.svc.AcceptOffer(ctx, f.buyer.ID, counter.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.00", order.Amount.StringFixed(2))
}

func TestSecondAcceptRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("90"), "")
	require.NoError(t, err)

	_, err = f.svc.AcceptOffer(ctx, f.seller.ID, offer.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptOffer(ctx, f.seller.ID, offer.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	orders, total, err := f.st.ListOrders(ctx, store.OrderFilter{UserID: f.seller.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, orders, 1)
}

func TestAcceptDeclinesCompetingOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	low, err := f.svc.MakeOffer(ctx, f.other.ID, f.listing.ID, dec("40"), "")
	require.NoError(t, err)
	high, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("95"), "")
	require.NoError(t, err)

	_, err = f.svc.AcceptOffer(ctx, f.seller.ID, high.ID)
	require.NoError(t, err)

	lost, err := f.st.GetOffer(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferDeclined, lost.Status)

	_, err = f.svc.MakeOffer(ctx, f.other.ID, f.listing.ID, dec("99"), "")
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestBuyNowCreatesAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.BuyNow(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", order.Amount.StringFixed(2))

	offer, err := f.st.GetOffer(ctx, order.OfferID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferAccepted, offer.Status)
	assert.False(t, offer.IsCounter)

	thread, err := f.svc.Thread(ctx, f.seller.ID, f.listing.ID)
	require.NoError(t, err)
	require.NotEmpty(t, thread)
	assert.Equal(t, domain.ListingMessageBuyNow, thread[len(thread)-1].Kind)

	_, err = f.svc.BuyNow(ctx, f.other.ID, f.listing.ID)
	assert.ErrorIs(t, err, ErrListingNotActive)

	_, err = f.svc.BuyNow(ctx, f.seller.ID, f.listing.ID)
	assert.Error(t, err)
}

func TestOwnListingRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.MakeOffer(context.Background(), f.seller.ID, f.listing.ID, dec("10"), "")
	assert.ErrorIs(t, err, ErrOwnListing)
}

func TestNewOfferSupersedesOlder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("30"), "")
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Minute)
	second, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("35"), "")
	require.NoError(t, err)

	old, err := f.st.GetOffer(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferCancelled, old.Status)

	active, err := f.svc.ActiveOffer(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestCancelOnlyByProposer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("30"), "")
	require.NoError(t, err)

	_, err = f.svc.CancelOffer(ctx, f.seller.ID, offer.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CancelOffer(ctx, f.other.ID, offer.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.svc.CancelOffer(ctx, f.buyer.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferCancelled, cancelled.Status)

	_, err = f.svc.DeclineOffer(ctx, f.seller.ID, offer.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcceptPastExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("30"), "")
	require.NoError(t, err)

	f.clock = f.clock.Add(OfferTTL + time.Second)
	_, err = f.svc.AcceptOffer(ctx, f.seller.ID, offer.ID)
	assert.ErrorIs(t, err, ErrOfferExpired)

	stored, err := f.st.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferExpired, stored.Status)

	listing, err := f.st.GetListing(ctx, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, listing.Status)
}

func TestExpireOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("30"), "")
	require.NoError(t, err)
	f.clock = f.clock.Add(24 * time.Hour)
	fresh, err := f.svc.MakeOffer(ctx, f.other.ID, f.listing.ID, dec("31"), "")
	require.NoError(t, err)

	f.clock = f.clock.Add(25 * time.Hour)
	n, err := f.svc.ExpireOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.st.GetOffer(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferExpired, got.Status)
	got, err = f.st.GetOffer(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferPending, got.Status)

	n, err = f.svc.ExpireOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLineageEndsInOneTerminalLeaf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o1, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("50"), "")
	require.NoError(t, err)
	o2, err := f.svc.CounterOffer(ctx, f.seller.ID, o1.ID, dec("80"), "")
	require.NoError(t, err)
	o3, err := f.svc.CounterOffer(ctx, f.buyer.ID, o2.ID, dec("65"), "")
	require.NoError(t, err)
	_, err = f.svc.DeclineOffer(ctx, f.seller.ID, o3.ID)
	require.NoError(t, err)

	chain, err := f.svc.Lineage(ctx, f.buyer.ID, o2.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{o1.ID, o2.ID, o3.ID}, []string{chain[0].ID, chain[1].ID, chain[2].ID})

	for i, o := range chain {
		assert.True(t, o.Status.Valid())
		if i < len(chain)-1 {
			assert.Equal(t, domain.OfferCountered, o.Status)
			assert.True(t, chain[i+1].IsCounter)
		} else {
			assert.True(t, o.Status.Terminal(), "leaf %s must be terminal", o.Status)
		}
	}

	_, err = f.svc.Lineage(ctx, f.other.ID, o2.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNotificationsAreSystemMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("50"), "")
	require.NoError(t, err)

	msgs, err := f.st.ListConversation(ctx, f.buyer.ID, f.seller.ID, store.NormalizePage(1, 20))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystem)
	assert.True(t, strings.HasPrefix(msgs[0].Body, domain.SystemPrefix))
	assert.Equal(t, f.seller.ID, msgs[0].RecipientID)

	thread, err := f.svc.Thread(ctx, f.other.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestCancelListingDeclinesOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("50"), "")
	require.NoError(t, err)

	_, err = f.svc.CancelListing(ctx, f.buyer.ID, f.listing.ID)
	assert.ErrorIs(t, err, ErrNotSeller)

	listing, err := f.svc.CancelListing(ctx, f.seller.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingCancelled, listing.Status)

	got, err := f.st.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferDeclined, got.Status)
}

func TestListOffersVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("50"), "")
	require.NoError(t, err)
	_, err = f.svc.MakeOffer(ctx, f.other.ID, f.listing.ID, dec("55"), "")
	require.NoError(t, err)

	all, err := f.svc.ListOffers(ctx, f.seller.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListOffers(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.buyer.ID, mine[0].BuyerID)
}

var errOrderInsert = errors.New("order insert failed")

// failingOrders refuses every order insert, inside transactions too.
type failingOrders struct {
	store.Store
}

func (s failingOrders) CreateOrder(ctx context.Context, o *domain.Order) error {
	return errOrderInsert
}

func (s failingOrders) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Atomic(ctx, func(tx store.Store) error { return fn(failingOrders{tx}) })
}

func TestFailedOrderInsertRollsBackAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.MakeOffer(ctx, f.buyer.ID, f.listing.ID, dec("80"), "")
	require.NoError(t, err)
	rival, err := f.svc.MakeOffer(ctx, f.other.ID, f.listing.ID, dec("70"), "")
	require.NoError(t, err)

	thread, err := f.st.ListListingMessages(ctx, f.listing.ID)
	require.NoError(t, err)
	sellerInbox, err := f.st.ListRecentMessages(ctx, f.seller.ID, 100)
	require.NoError(t, err)
	buyerInbox, err := f.st.ListRecentMessages(ctx, f.buyer.ID, 100)
	require.NoError(t, err)

	pub := &recorder{}
	broken := NewService(failingOrders{f.st}, WithPublisher(pub), WithClock(func() time.Time { return f.clock }))

	_, err = broken.AcceptOffer(ctx, f.seller.ID, offer.ID)
	require.ErrorIs(t, err, errOrderInsert)
	_, err = broken.BuyNow(ctx, f.other.ID, f.listing.ID)
	require.ErrorIs(t, err, errOrderInsert)

	for _, id := range []string{offer.ID, rival.ID} {
		o, err := f.st.GetOffer(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OfferPending, o.Status)
		assert.Nil(t, o.RespondedAt)
	}
	offers, err := f.st.ListOffers(ctx, store.OfferFilter{ListingID: f.listing.ID})
	require.NoError(t, err)
	assert.Len(t, offers, 2, "no buy-now offer survives")

	listing, err := f.st.GetListing(ctx, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, listing.Status)
	assert.Nil(t, listing.SoldPrice)
	assert.Nil(t, listing.SoldAt)

	after, err := f.st.ListListingMessages(ctx, f.listing.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(thread))
	msgs, err := f.st.ListRecentMessages(ctx, f.seller.ID, 100)
	require.NoError(t, err)
	assert.Len(t, msgs, len(sellerInbox))
	msgs, err = f.st.ListRecentMessages(ctx, f.buyer.ID, 100)
	require.NoError(t, err)
	assert.Len(t, msgs, len(buyerInbox))

	orders, total, err := f.st.ListOrders(ctx, store.OrderFilter{UserID: f.buyer.ID, Page: store.NormalizePage(1, 20)})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
	assert.Empty(t, pub.events)
}
