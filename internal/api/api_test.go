package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"collector_hub/internal/cardlookup"
	"collector_hub/internal/collection"
	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"
	"collector_hub/internal/events"
	"collector_hub/internal/gifts"
	"collector_hub/internal/imagecrop"
	"collector_hub/internal/marketplace"
	"collector_hub/internal/messaging"
	"collector_hub/internal/orders"
	"collector_hub/internal/realtime"
	"collector_hub/internal/social"
	"collector_hub/internal/storage"
	"collector_hub/internal/utils"
	"collector_hub/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "api-test-secret"

type env struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	hub := realtime.NewHub(16)
	blobs, err := storage.NewLocal(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	lookup := cardlookup.NewService(st, nil, map[string][]cardlookup.Provider{}, nil)
	r := NewRouter(Deps{
		Store:       st,
		Hub:         hub,
		JWTSecret:   secret,
		Marketplace: marketplace.NewService(st, marketplace.WithPublisher(hub)),
		Orders:      orders.NewService(st, hub, nil),
		Wallet:      wallet.NewService(st, nil),
		Collection:  collection.NewService(st, blobs, lookup),
		Lookup:      lookup,
		Messaging:   messaging.NewService(st, hub),
		Gifts:       gifts.NewService(st, hub),
		Social:      social.NewService(st, blobs, hub),
		Events:      events.NewService(st),
	})
	return &env{t: t, store: st, router: r}
}

func (e *env) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (e *env) register(username string) (string, string) {
	e.t.Helper()
	code, out := e.do(http.MethodPost, "/auth/register", "", gin.H{
		"email":    username + "@example.com",
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(e.t, http.StatusCreated, code, out)
	profile := out["profile"].(map[string]any)
	return out["token"].(string), profile["id"].(string)
}

func field(m map[string]any, obj, key string) any {
	inner, _ := m[obj].(map[string]any)
	return inner[key]
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	e.register("ash")

	code, _ := e.do(http.MethodPost, "/auth/register", "", gin.H{"email": "ash@example.com", "username": "ash2", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(http.MethodPost, "/auth/register", "", gin.H{"email": "nope", "username": "misty", "password": "correct-horse"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(http.MethodPost, "/auth/register", "", gin.H{"email": "m@example.com", "username": "misty", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, out := e.do(http.MethodPost, "/auth/login", "", gin.H{"login": "ASH@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, code)
	token := out["token"].(string)
	assert.NotEmpty(t, out["expires_at"])

	code, _ = e.do(http.MethodPost, "/auth/login", "", gin.H{"login": "ash", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out = e.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ash", field(out, "profile", "username"))

	code, _ = e.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestNegotiationOverHTTP(t *testing.T) {
	e := newEnv(t)
	sellerToken, _ := e.register("seller")
	buyerToken, _ := e.register("buyer")

	code, out := e.do(http.MethodPost, "/cards", sellerToken, gin.H{"name": "Charizard", "game": "pokemon"})
	require.Equal(t, http.StatusCreated, code, out)
	cardID := field(out, "card", "id").(string)

	code, out = e.do(http.MethodPost, "/listings", sellerToken, gin.H{"card_id": cardID, "asking_price": "100"})
	require.Equal(t, http.StatusCreated, code, out)
	listingID := field(out, "listing", "id").(string)

	code, _ = e.do(http.MethodPost, "/listings/"+listingID+"/offers", sellerToken, gin.H{"amount": "50"})
	assert.Equal(t, http.StatusBadRequest, code, "own listing")

	code, out = e.do(http.MethodPost, "/listings/"+listingID+"/offers", buyerToken, gin.H{"amount": "50"})
	require.Equal(t, http.StatusCreated, code, out)
	offerID := field(out, "offer", "id").(string)

	code, out = e.do(http.MethodPost, "/offers/"+offerID+"/counter", sellerToken, gin.H{"amount": "75"})
	require.Equal(t, http.StatusCreated, code, out)
	counterID := field(out, "offer", "id").(string)
	assert.Equal(t, true, field(out, "offer", "is_counter"))

	code, _ = e.do(http.MethodPost, "/offers/"+counterID+"/cancel", buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, code, "only the proposer cancels")

	code, out = e.do(http.MethodPost, "/offers/"+counterID+"/accept", buyerToken, nil)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "75", field(out, "order", "amount"))
	assert.Equal(t, "pending_payment", field(out, "order", "status"))
	orderID := field(out, "order", "id").(string)

	code, _ = e.do(http.MethodPost, "/offers/"+counterID+"/accept", buyerToken, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, out = e.do(http.MethodGet, "/listings/"+listingID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sold", field(out, "listing", "status"))

	code, out = e.do(http.MethodGet, "/offers/"+counterID+"/lineage", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["offers"], 2)

	code, _ = e.do(http.MethodPost, "/orders/"+orderID+"/ship", buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = e.do(http.MethodPost, "/orders/"+orderID+"/mark-paid", sellerToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, out = e.do(http.MethodPost, "/orders/"+orderID+"/ship", sellerToken, gin.H{"tracking_number": "1Z999"})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "1Z999", field(out, "order", "tracking_number"))

	code, out = e.do(http.MethodGet, "/orders?role=buyer", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])

	code, out = e.do(http.MethodGet, "/messages", buyerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, out["conversations"])
}

func TestWalletOverHTTP(t *testing.T) {
	e := newEnv(t)
	ashToken, _ := e.register("ash")
	mistyToken, _ := e.register("misty")

	code, _ := e.do(http.MethodGet, "/wallet", ashToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	for _, tok := range []string{ashToken, mistyToken} {
		code, _ = e.do(http.MethodPost, "/wallet", tok, nil)
		require.Equal(t, http.StatusCreated, code)
	}
	code, _ = e.do(http.MethodPost, "/wallet", ashToken, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = e.do(http.MethodPost, "/wallet/deposit", ashToken, gin.H{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(http.MethodPost, "/wallet/deposit", ashToken, gin.H{"amount": "20.50"})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodPost, "/wallet/transfer", ashToken, gin.H{"to_username": "misty", "amount": "100"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(http.MethodPost, "/wallet/transfer", ashToken, gin.H{"to_username": "ash", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(http.MethodPost, "/wallet/transfer", ashToken, gin.H{"to_username": "misty", "amount": "5.25"})
	require.Equal(t, http.StatusOK, code)

	code, out := e.do(http.MethodGet, "/wallet", mistyToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5.25", field(out, "wallet", "balance"))
	assert.Equal(t, false, out["cached"])

	code, out = e.do(http.MethodGet, "/wallet/transactions?page_size=1", ashToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out["total"])
	assert.EqualValues(t, 2, out["total_pages"])
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	userToken, _ := e.register("ash")
	admin := domain.Profile{ID: "root", Email: "root@example.com", Username: "root", Role: domain.RoleAdmin}
	require.NoError(t, e.store.CreateProfile(context.Background(), &admin))
	adminToken, err := utils.GenerateJWT(admin.ID, secret)
	require.NoError(t, err)

	code, _ := e.do(http.MethodGet, "/admin/profiles", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, out := e.do(http.MethodGet, "/admin/profiles?page_size=1", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out["total"])
	assert.EqualValues(t, 2, out["total_pages"])
	assert.Equal(t, false, out["cached"])

	code, out = e.do(http.MethodGet, "/admin/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, out["total"])
}

func TestSocialAndEventsOverHTTP(t *testing.T) {
	e := newEnv(t)
	ashToken, ashID := e.register("ash")
	mistyToken, mistyID := e.register("misty")

	code, _ := e.do(http.MethodPost, "/profiles/"+mistyID+"/follow", ashToken, nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = e.do(http.MethodPost, "/profiles/"+mistyID+"/follow", ashToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, out := e.do(http.MethodGet, "/profiles/"+mistyID+"/followers", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])

	code, _ = e.do(http.MethodPost, "/profiles/"+ashID+"/wall", mistyToken, gin.H{"body": "gg"})
	require.Equal(t, http.StatusCreated, code)
	code, out = e.do(http.MethodGet, "/profiles/"+ashID+"/wall", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["total"])

	code, _ = e.do(http.MethodPost, "/feed", ashToken, gin.H{"body": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodPost, "/events", ashToken, gin.H{"title": "Cup", "starts_at": "2001-01-01T00:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, out = e.do(http.MethodPost, "/events", ashToken, gin.H{"title": "Cup", "game": "pokemon", "starts_at": "2999-01-01T00:00:00Z", "capacity": 1})
	require.Equal(t, http.StatusCreated, code, out)
	eventID := field(out, "event", "id").(string)

	code, _ = e.do(http.MethodPost, "/events/"+eventID+"/register", mistyToken, nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = e.do(http.MethodPost, "/events/"+eventID+"/register", ashToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, out = e.do(http.MethodGet, "/events/"+eventID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["attendees"], 1)
}

func TestRealtimeTopicAuthorization(t *testing.T) {
	e := newEnv(t)
	ashToken, ashID := e.register("ash")

	code, _ := e.do(http.MethodGet, "/realtime?topic="+messaging.Topic("someone-else"), ashToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = e.do(http.MethodGet, "/realtime?topic=bogus", ashToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(http.MethodGet, "/realtime?topic="+orders.Topic("missing"), ashToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Allowed topics reach the upgrader, which rejects a plain GET.
	code, _ = e.do(http.MethodGet, "/realtime?topic="+messaging.Topic(ashID), ashToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(marketplace.ErrListingNotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(orders.ErrForbidden))
	assert.Equal(t, http.StatusConflict, statusFor(wallet.ErrInsufficientFunds))
	assert.Equal(t, http.StatusBadGateway, statusFor(cardlookup.ErrUpstream))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(fmt.Errorf("%w: 20000x20000", imagecrop.ErrTooManyPixels)))
	assert.Equal(t, http.StatusConflict, statusFor(orders.ErrCardRelisted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
