package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *memory.Store, *realtime.Hub) {
	t.Helper()
	st := memory.New()
	for _, name := range []string{"ash", "misty", "brock"} {
		p := domain.Profile{ID: name, Email: name + "@example.com", Username: name}
		require.NoError(t, st.CreateProfile(context.Background(), &p))
	}
	hub := realtime.NewHub(8)
	return NewService(st, hub), st, hub
}

func TestSendValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "ash", "misty", "   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = svc.Send(ctx, "ash", "misty", strings.Repeat("x", MaxBodyLength+1))
	assert.ErrorIs(t, err, ErrBodyTooLong)

	_, err = svc.Send(ctx, "ash", "ash", "hi me")
	assert.ErrorIs(t, err, ErrMessageToSelf)

	_, err = svc.Send(ctx, "ash", "gary", "smell ya later")
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestSendPublishesToRecipient(t *testing.T) {
	svc, _, hub := setup(t)
	sub := hub.Subscribe(Topic("misty"))
	defer sub.Close()

	m, err := svc.Send(context.Background(), "ash", "misty", " trade my Pikachu? ")
	require.NoError(t, err)
	assert.Equal(t, "trade my Pikachu?", m.Body)
	assert.False(t, m.IsSystem)

	select {
	case ev := <-sub.C:
		assert.Equal(t, realtime.Insert, ev.Type)
		assert.Equal(t, "messages", ev.Table)
	case <-time.After(time.Second):
		t.Fatal("no realtime event")
	}
}

func TestInboxGroupsByCounterpart(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "misty", "ash", "hello")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "misty", "ash", "are you there?")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "ash", "brock", "gym tomorrow")
	require.NoError(t, err)
	_, err = Notify(ctx, st, "brock", "ash", "Your offer was accepted", time.Now().UTC())
	require.NoError(t, err)

	inbox, err := svc.Inbox(ctx, "ash")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "brock", inbox[0].CounterpartID)
	assert.True(t, inbox[0].LastMessage.IsSystem)
	assert.True(t, strings.HasPrefix(inbox[0].LastMessage.Body, domain.SystemPrefix))
	assert.Equal(t, 1, inbox[0].Unread)
	assert.Equal(t, "misty", inbox[1].CounterpartID)
	assert.Equal(t, 2, inbox[1].Unread)

	n, err := svc.MarkRead(ctx, "ash", "misty")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	inbox, err = svc.Inbox(ctx, "ash")
	require.NoError(t, err)
	assert.Equal(t, 0, inbox[1].Unread)

	conv, err := svc.Conversation(ctx, "ash", "misty", store.NormalizePage(1, 1))
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "are you there?", conv[0].Body)
}
