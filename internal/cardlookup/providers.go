package cardlookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"collector_hub/internal/domain"
	"collector_hub/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Provider searches one third-party card catalogue.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Card, error)
}

// fields holds gjson paths relative to one result element. Price paths are
// tried in order; the first numeric one wins.
type fields struct {
	ID, Name, Set, Number, Rarity, Image string
	Price                                []string
}

// httpProvider maps a JSON search API onto Card through gjson paths.
type httpProvider struct {
	name     string
	game     string
	client   *http.Client
	endpoint func(query string) string
	headers  map[string]string
	list     string
	fields   fields
	currency string
	// statuses the API uses to say "no match"
	empty    []int
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) Search(ctx context.Context, query string) ([]Card, error) {
	cards, err := p.search(ctx, query)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(cards) == 0:
		outcome = "empty"
	}
	metrics.LookupUpstream.WithLabelValues(p.name, outcome).Inc()
	return cards, err
}

func (p *httpProvider) search(ctx context.Context, query string) ([]Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", p.name, err)
	}
	for _, code := range p.empty {
		if resp.StatusCode == code {
			return nil, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d: %s", p.name, resp.StatusCode, truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: invalid JSON response", p.name)
	}

	var cards []Card
	gjson.GetBytes(body, p.list).ForEach(func(_, item gjson.Result) bool {
		c := Card{
			ExternalID: item.Get(p.fields.ID).String(),
			Name:       item.Get(p.fields.Name).String(),
			Game:       p.game,
			SetName:    item.Get(p.fields.Set).String(),
			Number:     item.Get(p.fields.Number).String(),
			Rarity:     item.Get(p.fields.Rarity).String(),
			ImageURL:   item.Get(p.fields.Image).String(),
			Currency:   p.currency,
			Source:     p.name,
		}
		for _, path := range p.fields.Price {
			if v := item.Get(path); v.Exists() && v.String() != "" {
				if d, err := decimal.NewFromString(v.String()); err == nil && d.IsPositive() {
					price := d.Round(2)
					c.Price = &price
					break
				}
			}
		}
		if c.Name != "" {
			cards = append(cards, c)
		}
		return true
	})
	return cards, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Endpoints holds provider base URLs; tests point them at httptest servers.
type Endpoints struct {
	PokemonTCG string
	Scryfall   string
	YGOProDeck string
	JustTCG    string
	TCGCodex   string
	Lorcast    string
}

// DefaultEndpoints are the public API roots.
var DefaultEndpoints = Endpoints{
	PokemonTCG: "https://api.pokemontcg.io/v2",
	Scryfall:   "https://api.scryfall.com",
	YGOProDeck: "https://db.ygoprodeck.com/api/v7",
	JustTCG:    "https://api.justtcg.com/v1",
	TCGCodex:   "https://api.tcgcodex.com/v1",
	Lorcast:    "https://api.lorcast.com/v0",
}

// Keys holds provider API keys; empty keys are simply not sent.
type Keys struct {
	PokemonTCG string
	JustTCG    string
}

// DefaultProviders returns the provider chain for each game, in the order
// they are tried.
func DefaultProviders(client *http.Client, ep Endpoints, keys Keys) map[string][]Provider {
	esc := url.QueryEscape
	return map[string][]Provider{
		domain.GamePokemon: {&httpProvider{
			name:   "pokemontcg",
			game:   domain.GamePokemon,
			client: client,
			endpoint: func(q string) string {
				return ep.PokemonTCG + "/cards?pageSize=20&q=" + esc(`name:"`+q+`*"`)
			},
			headers: map[string]string{"X-Api-Key": keys.PokemonTCG},
			list:    "data",
			fields: fields{
				ID: "id", Name: "name", Set: "set.name", Number: "number", Rarity: "rarity", Image: "images.small",
				Price: []string{
					"tcgplayer.prices.holofoil.market",
					"tcgplayer.prices.normal.market",
					"tcgplayer.prices.reverseHolofoil.market",
					"cardmarket.prices.averageSellPrice",
				},
			},
			currency: "USD",
		}},
		domain.GameMagic: {&httpProvider{
			name:     "scryfall",
			game:     domain.GameMagic,
			client:   client,
			endpoint: func(q string) string { return ep.Scryfall + "/cards/search?q=" + esc(q) },
			list:     "data",
			fields: fields{
				ID: "id", Name: "name", Set: "set_name", Number: "collector_number", Rarity: "rarity", Image: "image_uris.normal",
				Price: []string{"prices.usd", "prices.usd_foil"},
			},
			currency: "USD",
			empty:    []int{http.StatusNotFound},
		}},
		domain.GameYugioh: {&httpProvider{
			name:     "ygoprodeck",
			game:     domain.GameYugioh,
			client:   client,
			endpoint: func(q string) string { return ep.YGOProDeck + "/cardinfo.php?fname=" + esc(q) },
			list:     "data",
			fields: fields{
				ID: "id", Name: "name", Set: "card_sets.0.set_name", Number: "card_sets.0.set_code",
				Rarity: "card_sets.0.set_rarity", Image: "card_images.0.image_url_small",
				Price: []string{"card_prices.0.tcgplayer_price", "card_prices.0.cardmarket_price"},
			},
			currency: "USD",
			empty:    []int{http.StatusBadRequest},
		}},
		domain.GameOnePiece: {
			&httpProvider{
				name:   "justtcg",
				game:   domain.GameOnePiece,
				client: client,
				endpoint: func(q string) string {
					return ep.JustTCG + "/cards?game=one-piece-card-game&q=" + esc(q)
				},
				headers: map[string]string{"x-api-key": keys.JustTCG},
				list:    "data",
				fields: fields{
					ID: "id", Name: "name", Set: "set", Number: "number", Rarity: "rarity", Image: "image",
					Price: []string{"variants.0.price"},
				},
				currency: "USD",
			},
			&httpProvider{
				name:     "tcgcodex",
				game:     domain.GameOnePiece,
				client:   client,
				endpoint: func(q string) string { return ep.TCGCodex + "/onepiece/cards?name=" + esc(q) },
				list:     "data",
				fields: fields{
					ID: "id", Name: "name", Set: "set_name", Number: "number", Rarity: "rarity", Image: "image",
					Price: []string{"price"},
				},
				currency: "USD",
				empty:    []int{http.StatusNotFound},
			},
		},
		domain.GameLorcana: {&httpProvider{
			name:     "lorcast",
			game:     domain.GameLorcana,
			client:   client,
			endpoint: func(q string) string { return ep.Lorcast + "/cards/search?q=" + esc(q) },
			list:     "results",
			fields: fields{
				ID: "id", Name: "name", Set: "set.name", Number: "collector_number", Rarity: "rarity",
				Image: "image_uris.digital.normal",
				Price: []string{"prices.usd", "prices.usd_foil"},
			},
			currency: "USD",
			empty:    []int{http.StatusNotFound},
		}},
	}
}

// normalizeQuery lowercases and collapses whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
