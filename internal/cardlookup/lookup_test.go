package cardlookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pokemonBody = `{"data":[
 {"id":"base1-4","name":"Charizard","number":"4","rarity":"Rare Holo",
  "set":{"name":"Base"},"images":{"small":"https://img/base1-4.png"},
  "tcgplayer":{"prices":{"holofoil":{"market":412.555}}}},
 {"id":"base2-4","name":"Charizard","number":"4","rarity":"Rare",
  "set":{"name":"Base Set 2"},"images":{"small":"https://img/base2-4.png"}}
]}`

type upstream struct {
	srv   *httptest.Server
	calls map[string]*atomic.Int32
}

// newUpstream serves every provider from one test server; handlers are
// keyed by path prefix.
func newUpstream(t *testing.T, routes map[string]http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{calls: map[string]*atomic.Int32{}}
	for prefix := range routes {
		u.calls[prefix] = &atomic.Int32{}
	}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for prefix, h := range routes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				u.calls[prefix].Add(1)
				h(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) endpoints() Endpoints {
	return Endpoints{
		PokemonTCG: u.srv.URL + "/ptcg",
		Scryfall:   u.srv.URL + "/scryfall",
		YGOProDeck: u.srv.URL + "/ygo",
		JustTCG:    u.srv.URL + "/justtcg",
		TCGCodex:   u.srv.URL + "/codex",
		Lorcast:    u.srv.URL + "/lorcast",
	}
}

func TestSearchCachesInDatabase(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/ptcg/cards": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			assert.Contains(t, r.URL.Query().Get("q"), "charizard")
			_, _ = w.Write([]byte(pokemonBody))
		},
	})
	st := memory.New()
	svc := NewService(st, nil, DefaultProviders(up.srv.Client(), up.endpoints(), Keys{PokemonTCG: "secret"}), nil)
	ctx := context.Background()

	res, err := svc.Search(ctx, "Pokemon", "  Charizard ")
	require.NoError(t, err)
	assert.Equal(t, "pokemontcg", res.Source)
	require.Len(t, res.Cards, 2)
	assert.Equal(t, "Base", res.Cards[0].SetName)
	require.NotNil(t, res.Cards[0].Price)
	assert.Equal(t, "412.56", res.Cards[0].Price.StringFixed(2))
	assert.Nil(t, res.Cards[1].Price)

	res, err = svc.Search(ctx, "pokemon", "charizard")
	require.NoError(t, err)
	assert.Equal(t, "database", res.Source)
	assert.Len(t, res.Cards, 2)
	assert.EqualValues(t, 1, up.calls["/ptcg/cards"].Load())

	row, err := st.GetCardCache(ctx, CacheKey(domain.GamePokemon, "charizard"))
	require.NoError(t, err)
	assert.Equal(t, "charizard", row.Query)
}

func TestSearchRefetchesStaleEntries(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/ptcg/cards": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(pokemonBody)) },
	})
	svc := NewService(memory.New(), nil, DefaultProviders(up.srv.Client(), up.endpoints(), Keys{}), nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	_, err := svc.Search(ctx, domain.GamePokemon, "charizard")
	require.NoError(t, err)
	clock = clock.Add(CacheTTL + time.Minute)
	res, err := svc.Search(ctx, domain.GamePokemon, "charizard")
	require.NoError(t, err)
	assert.Equal(t, "pokemontcg", res.Source)
	assert.EqualValues(t, 2, up.calls["/ptcg/cards"].Load())
}

func TestOnePieceFallsBackToSecondProvider(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/justtcg/cards": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		},
		"/codex/onepiece/cards": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"id":"OP01-120","name":"Shanks","set_name":"Romance Dawn","number":"OP01-120","rarity":"SEC","price":"89.99"}]}`))
		},
	})
	svc := NewService(memory.New(), nil, DefaultProviders(up.srv.Client(), up.endpoints(), Keys{}), nil)

	res, err := svc.Search(context.Background(), domain.GameOnePiece, "shanks")
	require.NoError(t, err)
	assert.Equal(t, "tcgcodex", res.Source)
	require.Len(t, res.Cards, 1)
	assert.Equal(t, "89.99", res.Cards[0].Price.StringFixed(2))
}

func TestSearchErrors(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/scryfall/cards/search": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("q") == "nothing" {
				http.Error(w, `{"object":"error"}`, http.StatusNotFound)
				return
			}
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	svc := NewService(memory.New(), nil, DefaultProviders(up.srv.Client(), up.endpoints(), Keys{}), nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, "chess", "queen")
	assert.ErrorIs(t, err, ErrUnknownGame)

	_, err = svc.Search(ctx, domain.GameMagic, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Search(ctx, domain.GameMagic, "black lotus")
	assert.ErrorIs(t, err, ErrUpstream)

	res, err := svc.Search(ctx, domain.GameMagic, "nothing")
	require.NoError(t, err)
	assert.Empty(t, res.Cards)
}

func TestParseIdentified(t *testing.T) {
	fenced := "```json\n[{\"name\":\"Pikachu\",\"game\":\"Pokemon\",\"number\":\"58\"},{\"name\":\"\"}]\n```"
	cards, err := ParseIdentified(fenced)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "pokemon", cards[0].Game)
	assert.Equal(t, "58", cards[0].Number)

	cards, err = ParseIdentified(`{"cards":[{"name":"Dark Magician","game":"yugioh"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "Dark Magician", cards[0].Name)

	_, err = ParseIdentified("I could not see any card.")
	assert.ErrorIs(t, err, ErrUnidentified)

	_, err = ParseIdentified("[]")
	assert.ErrorIs(t, err, ErrUnidentified)
}

func TestIdentifyEnrichesWithLookup(t *testing.T) {
	up := newUpstream(t, map[string]http.HandlerFunc{
		"/ptcg/cards": func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(pokemonBody)) },
		"/vision": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer vk", r.Header.Get("Authorization"))
			var req visionRequest
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Messages[0].Content, 2) {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			assert.Equal(t, "test-model", req.Model)
			assert.True(t, strings.HasPrefix(req.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
			answer := "```json\n[{\"name\":\"Charizard\",\"game\":\"pokemon\",\"number\":\"4\"}]\n```"
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": answer}}},
			})
		},
	})
	vision := NewVision(up.srv.Client(), up.srv.URL+"/vision", "vk", "test-model")
	svc := NewService(memory.New(), nil, DefaultProviders(up.srv.Client(), up.endpoints(), Keys{}), vision)

	cards, err := svc.Identify(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.NotNil(t, cards[0].Match)
	assert.Equal(t, "base1-4", cards[0].Match.ExternalID)

	_, err = NewService(memory.New(), nil, nil, nil).Identify(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrNoVision)
}

func TestBestMatch(t *testing.T) {
	_, ok := BestMatch(nil, "", "")
	assert.False(t, ok)

	cards := []Card{{ExternalID: "a", Number: "1"}, {ExternalID: "b", Number: "2"}}
	c, _ := BestMatch(cards, "b", "")
	assert.Equal(t, "b", c.ExternalID)
	c, _ = BestMatch(cards, "", "2")
	assert.Equal(t, "b", c.ExternalID)
	c, _ = BestMatch(cards, "zz", "zz")
	assert.Equal(t, "a", c.ExternalID)
}
