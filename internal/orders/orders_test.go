package orders

import (
	"context"
	"testing"

	"collector_hub/internal/collection"
	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"
	"collector_hub/internal/gifts"
	"collector_hub/internal/marketplace"
	"collector_hub/internal/store"
	"collector_hub/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seller = "seller-id"
	buyer  = "buyer-id"
)

// newOrder sells a 25.00 card from seller to buyer and returns the order.
func newOrder(t *testing.T) (*Service, *memory.Store, domain.Order) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	for _, id := range []string{seller, buyer} {
		p := domain.Profile{ID: id, Email: id + "@example.com", Username: id}
		require.NoError(t, st.CreateProfile(ctx, &p))
	}
	card := domain.UserCard{ID: "card-1", OwnerID: seller, Name: "Black Lotus", Game: domain.GameMagic, Quantity: 1}
	require.NoError(t, st.CreateCard(ctx, &card))

	market := marketplace.NewService(st)
	listing, err := market.CreateListing(ctx, seller, marketplace.CreateListingInput{CardID: card.ID, AskingPrice: decimal.NewFromInt(25)})
	require.NoError(t, err)
	order, err := market.BuyNow(ctx, buyer, listing.ID)
	require.NoError(t, err)
	return NewService(st, nil, nil), st, order
}

func TestFulfillmentHappyPath(t *testing.T) {
	svc, _, order := newOrder(t)
	ctx := context.Background()

	o, err := svc.MarkPaid(ctx, seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, o.Status)
	assert.Equal(t, domain.PaymentExternal, o.PaymentMethod)
	require.NotNil(t, o.PaidAt)

	o, err = svc.Ship(ctx, seller, order.ID, " 1Z999 ")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, o.Status)
	assert.Equal(t, "1Z999", o.TrackingNumber)

	o, err = svc.Deliver(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)
}

func TestActorRules(t *testing.T) {
	svc, _, order := newOrder(t)
	ctx := context.Background()

	_, err := svc.MarkPaid(ctx, buyer, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, "stranger", order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Ship(ctx, seller, order.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot ship before payment")

	_, err = svc.Deliver(ctx, buyer, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Get(ctx, buyer, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestWalletPaymentAndRefund(t *testing.T) {
	svc, st, order := newOrder(t)
	ctx := context.Background()
	wallets := wallet.NewService(st, nil)
	_, err := wallets.Create(ctx, seller)
	require.NoError(t, err)
	_, err = wallets.Create(ctx, buyer)
	require.NoError(t, err)

	_, err = svc.PayWithWallet(ctx, buyer, order.ID)
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	_, err = wallets.Deposit(ctx, buyer, decimal.NewFromInt(30))
	require.NoError(t, err)

	o, err := svc.PayWithWallet(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentWallet, o.PaymentMethod)

	b, _, err := wallets.Get(ctx, buyer)
	require.NoError(t, err)
	s, _, err := wallets.Get(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, "5.00", b.Balance.StringFixed(2))
	assert.Equal(t, "25.00", s.Balance.StringFixed(2))

	o, err = svc.Refund(ctx, seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRefunded, o.Status)

	b, _, err = wallets.Get(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "30.00", b.Balance.StringFixed(2))

	_, err = svc.Refund(ctx, seller, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRelistsCard(t *testing.T) {
	svc, st, order := newOrder(t)
	ctx := context.Background()

	o, err := svc.Cancel(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)
	require.NotNil(t, o.CancelledAt)

	listing, err := st.GetListing(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingActive, listing.Status)
	assert.Nil(t, listing.SoldPrice)

	_, err = svc.MarkPaid(ctx, seller, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionsNotifyCounterpart(t *testing.T) {
	svc, st, order := newOrder(t)
	ctx := context.Background()

	_, err := svc.MarkPaid(ctx, seller, order.ID)
	require.NoError(t, err)

	msgs, err := st.ListConversation(ctx, seller, buyer, store.NormalizePage(1, 50))
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, buyer, msgs[0].RecipientID)
	assert.Contains(t, msgs[0].Body, "was confirmed")

	mine, total, err := svc.List(ctx, buyer, store.OrderFilter{Role: "buyer", Page: store.NormalizePage(1, 20)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, order.ID, mine[0].ID)
}

func TestOpenSaleLocksCard(t *testing.T) {
	svc, st, order := newOrder(t)
	ctx := context.Background()
	market := marketplace.NewService(st)
	relist := marketplace.CreateListingInput{CardID: "card-1", AskingPrice: decimal.NewFromInt(40)}

	_, err := market.CreateListing(ctx, seller, relist)
	assert.ErrorIs(t, err, marketplace.ErrCardAlreadyListed, "pending payment")
	_, err = gifts.NewService(st, nil).Send(ctx, seller, buyer, "card-1", "")
	assert.ErrorIs(t, err, gifts.ErrCardListed)
	assert.ErrorIs(t, collection.NewService(st, nil, nil).Delete(ctx, seller, "card-1"), collection.ErrCardListed)

	_, err = svc.MarkPaid(ctx, seller, order.ID)
	require.NoError(t, err)
	_, err = svc.Ship(ctx, seller, order.ID, "")
	require.NoError(t, err)
	_, err = market.CreateListing(ctx, seller, relist)
	assert.ErrorIs(t, err, marketplace.ErrCardAlreadyListed, "shipped")

	_, err = svc.Refund(ctx, seller, order.ID)
	require.NoError(t, err)
	listing, err := market.CreateListing(ctx, seller, relist)
	require.NoError(t, err, "a refunded sale frees the card")
	assert.Equal(t, domain.ListingActive, listing.Status)
}

func TestCancelRefusesWhenCardListedAgain(t *testing.T) {
	svc, st, order := newOrder(t)
	ctx := context.Background()
	again := domain.Listing{ID: "listing-2", SellerID: seller, CardID: "card-1", Title: "Black Lotus",
		AskingPrice: decimal.NewFromInt(30), Status: domain.ListingActive}
	require.NoError(t, st.CreateListing(ctx, &again))

	_, err := svc.Cancel(ctx, buyer, order.ID)
	assert.ErrorIs(t, err, ErrCardRelisted)

	stored, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPendingPayment, stored.Status)
	original, err := st.GetListing(ctx, order.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, original.Status)
}
