// Package marketplace implements listings and the offer negotiation state
// machine. Every transition is one database transaction that also writes
// the listing-scoped thread entry and the [SYSTEM] inbox notification.
package marketplace

import (
	"context"
	"errors"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/messaging"
	"collector_hub/internal/metrics"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"
	"collector_hub/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OfferTTL is how long a pending offer stays open.
const OfferTTL = 48 * time.Hour

var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrListingNotActive  = errors.New("listing is not active")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrOwnListing        = errors.New("cannot make an offer on your own listing")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrForbidden         = errors.New("not allowed to act on this offer")
	ErrInvalidTransition = errors.New("offer cannot move to the requested status")
	ErrOfferExpired      = errors.New("offer has expired")
	ErrCardNotFound      = errors.New("card not found")
	ErrNotCardOwner      = errors.New("card does not belong to you")
	ErrCardAlreadyListed = errors.New("card is already listed or in an open sale")
	ErrNotSeller         = errors.New("only the seller can do this")
)

// ListingTopic is the realtime channel for a listing's offers and thread.
func ListingTopic(listingID string) string {
	return "listing:" + listingID
}

// OrderTopic is the realtime channel for one order.
func OrderTopic(orderID string) string {
	return "order:" + orderID
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher enables realtime delivery.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithCache enables the redis listing cache.
func WithCache(rdb redis.Cmdable) Option {
	return func(s *Service) { s.rdb = rdb }
}

type Service struct {
	store store.Store
	pub   realtime.Publisher
	rdb   redis.Cmdable
	now   func() time.Time
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pending collects realtime events and cache keys while a transaction runs;
// they are released only after commit.
type pending struct {
	events      []realtime.Event
	listingKeys []string
	offers      []domain.OfferStatus
	orders      []domain.OrderStatus
}

func (p *pending) add(topic, typ, table string, record any) {
	p.events = append(p.events, realtime.Event{Type: typ, Table: table, Topic: topic, Record: record})
}

func (p *pending) notify(m domain.Message) {
	p.add(messaging.Topic(m.RecipientID), realtime.Insert, "messages", m)
}

func (s *Service) flush(ctx context.Context, p *pending) {
	for _, st := range p.offers {
		metrics.OfferTransitions.WithLabelValues(string(st)).Inc()
	}
	for _, st := range p.orders {
		metrics.OrderTransitions.WithLabelValues(string(st)).Inc()
	}
	if len(p.listingKeys) > 0 {
		keys := make([]string, 0, len(p.listingKeys))
		for _, id := range p.listingKeys {
			keys = append(keys, utils.ListingKey(id))
		}
		if err := utils.DeleteCache(ctx, s.rdb, keys...); err != nil {
			logrus.WithField("error", err.Error()).Warn("Listing cache invalidation failed")
		}
	}
	if s.pub == nil {
		return
	}
	at := s.now()
	for _, ev := range p.events {
		ev.At = at
		s.pub.Publish(ev.Topic, ev)
	}
}
