// Package cardlookup finds card metadata and market prices in third-party
// catalogues and identifies cards from photos. Results are cached in redis
// in front of the card_cache table.
package cardlookup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/metrics"
	"collector_hub/internal/store"
	"collector_hub/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CacheTTL is how long a lookup result is considered fresh.
const CacheTTL = 24 * time.Hour

var (
	ErrUnknownGame  = errors.New("unknown game")
	ErrEmptyQuery   = errors.New("query is required")
	ErrUpstream     = errors.New("card providers unavailable")
	ErrNoVision     = errors.New("card identification is not configured")
	ErrUnidentified = errors.New("no card could be identified")
)

// Card is a catalogue entry normalized across providers.
type Card struct {
	ExternalID string           `json:"external_id"`
	Name       string           `json:"name"`
	Game       string           `json:"game"`
	SetName    string           `json:"set_name"`
	Number     string           `json:"number"`
	Rarity     string           `json:"rarity"`
	ImageURL   string           `json:"image_url"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Source     string           `json:"source"`
}

// Result is a search answer and the tier that served it.
type Result struct {
	Cards     []Card    `json:"cards"`
	Source    string    `json:"source"` // redis, database or a provider name
	FetchedAt time.Time `json:"fetched_at"`
}

type Service struct {
	store     store.Store
	rdb       redis.Cmdable
	providers map[string][]Provider
	vision    *Vision
	now       func() time.Time
}

// NewService wires the lookup service. rdb and vision may be nil.
func NewService(st store.Store, rdb redis.Cmdable, providers map[string][]Provider, vision *Vision) *Service {
	return &Service{
		store:     st,
		rdb:       rdb,
		providers: providers,
		vision:    vision,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CacheKey is the card_cache primary key for a game and query.
func CacheKey(game, query string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return game + ":" + hex.EncodeToString(sum[:16])
}

// Search answers from redis, then the card_cache table, then the game's
// providers in order. The first provider returning cards wins.
func (s *Service) Search(ctx context.Context, game, query string) (Result, error) {
	game = strings.ToLower(strings.TrimSpace(game))
	if !domain.IsKnownGame(game) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	query = normalizeQuery(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	key := CacheKey(game, query)
	now := s.now()

	var cached Result
	if found, err := utils.GetCache(ctx, s.rdb, utils.LookupKey(key), &cached); err == nil && found {
		metrics.LookupCache.WithLabelValues("redis", "hit").Inc()
		cached.Source = "redis"
		return cached, nil
	}
	metrics.LookupCache.WithLabelValues("redis", "miss").Inc()

	row, err := s.store.GetCardCache(ctx, key)
	switch {
	case err == nil && row.Fresh(now, CacheTTL):
		var cards []Card
		if jerr := json.Unmarshal([]byte(row.Payload), &cards); jerr == nil {
			metrics.LookupCache.WithLabelValues("database", "hit").Inc()
			res := Result{Cards: cards, Source: "database", FetchedAt: row.FetchedAt}
			_ = utils.SetCache(ctx, s.rdb, utils.LookupKey(key), res, CacheTTL-now.Sub(row.FetchedAt))
			return res, nil
		}
	case err != nil && !errors.Is(err, store.ErrNotFound):
		logrus.WithField("error", err.Error()).Warn("Card cache read failed")
	}
	metrics.LookupCache.WithLabelValues("database", "miss").Inc()

	res, err := s.fetch(ctx, game, query)
	if err != nil {
		return Result{}, err
	}
	res.FetchedAt = now
	payload, err := json.Marshal(res.Cards)
	if err != nil {
		return Result{}, err
	}
	entry := domain.CardCache{CacheKey: key, Game: game, Query: query, Payload: string(payload), FetchedAt: now}
	if err := s.store.PutCardCache(ctx, &entry); err != nil {
		logrus.WithField("error", err.Error()).Warn("Card cache write failed")
	}
	_ = utils.SetCache(ctx, s.rdb, utils.LookupKey(key), res, CacheTTL)
	return res, nil
}

func (s *Service) fetch(ctx context.Context, game, query string) (Result, error) {
	chain := s.providers[game]
	var errs []error
	for _, p := range chain {
		cards, err := p.Search(ctx, query)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"provider": p.Name(),
				"game":     game,
				"error":    err.Error(),
			}).Warn("Card provider failed")
			errs = append(errs, err)
			continue
		}
		if len(cards) > 0 {
			return Result{Cards: cards, Source: p.Name()}, nil
		}
	}
	if len(chain) > 0 && len(errs) == len(chain) {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstream, errors.Join(errs...))
	}
	return Result{Cards: []Card{}, Source: "none"}, nil
}

// BestMatch picks the card matching externalID, then number, then the
// first priced card, then the first card.
func BestMatch(cards []Card, externalID, number string) (Card, bool) {
	if len(cards) == 0 {
		return Card{}, false
	}
	if externalID != "" {
		for _, c := range cards {
			if c.ExternalID == externalID {
				return c, true
			}
		}
	}
	if number != "" {
		for _, c := range cards {
			if strings.EqualFold(c.Number, number) {
				return c, true
			}
		}
	}
	for _, c := range cards {
		if c.Price != nil {
			return c, true
		}
	}
	return cards[0], true
}
