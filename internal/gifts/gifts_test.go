package gifts

import (
	"context"
	"testing"

	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	for _, id := range []string{"giver", "taker"} {
		p := domain.Profile{ID: id, Email: id + "@example.com", Username: id}
		require.NoError(t, st.CreateProfile(ctx, &p))
	}
	for _, id := range []string{"card-a", "card-b"} {
		c := domain.UserCard{ID: id, OwnerID: "giver", Name: "Umbreon " + id, Game: domain.GamePokemon, Quantity: 1}
		require.NoError(t, st.CreateCard(ctx, &c))
	}
	return NewService(st, nil), st
}

func TestAcceptMovesCard(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	g, err := svc.Send(ctx, "giver", "taker", "card-a", "happy birthday")
	require.NoError(t, err)
	assert.Equal(t, domain.GiftPending, g.Status)

	_, err = svc.Send(ctx, "giver", "taker", "card-a", "again")
	assert.ErrorIs(t, err, ErrAlreadyGifted)

	_, err = svc.Accept(ctx, "giver", g.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	g, err = svc.Accept(ctx, "taker", g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GiftAccepted, g.Status)
	require.NotNil(t, g.RespondedAt)

	card, err := st.GetCard(ctx, "card-a")
	require.NoError(t, err)
	assert.Equal(t, "taker", card.OwnerID)

	_, err = svc.Decline(ctx, "taker", g.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	received, err := svc.List(ctx, "taker", false, "")
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestSendRules(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "giver", "giver", "card-a", "")
	assert.ErrorIs(t, err, ErrGiftToSelf)

	_, err = svc.Send(ctx, "giver", "nobody", "card-a", "")
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = svc.Send(ctx, "taker", "giver", "card-a", "")
	assert.ErrorIs(t, err, ErrNotCardOwner)

	l := domain.Listing{ID: "l1", SellerID: "giver", CardID: "card-b", Title: "x", AskingPrice: decimal.NewFromInt(1), Status: domain.ListingActive}
	require.NoError(t, st.CreateListing(ctx, &l))
	_, err = svc.Send(ctx, "giver", "taker", "card-b", "")
	assert.ErrorIs(t, err, ErrCardListed)
}

func TestCancelAndDecline(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	g, err := svc.Send(ctx, "giver", "taker", "card-a", "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "taker", g.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	g, err = svc.Cancel(ctx, "giver", g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GiftCancelled, g.Status)

	g2, err := svc.Send(ctx, "giver", "taker", "card-a", "")
	require.NoError(t, err)
	g2, err = svc.Decline(ctx, "taker", g2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GiftDeclined, g2.Status)

	card, err := st.GetCard(ctx, "card-a")
	require.NoError(t, err)
	assert.Equal(t, "giver", card.OwnerID)

	sent, err := svc.List(ctx, "giver", true, domain.GiftDeclined)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, g2.ID, sent[0].ID)
}
