// Package events schedules tournaments and tracks their attendees.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrTitleRequired     = errors.New("title is required")
	ErrUnknownGame       = errors.New("unknown game")
	ErrStartsInPast      = errors.New("event must start in the future")
	ErrInvalidCapacity   = errors.New("capacity cannot be negative")
	ErrInvalidFee        = errors.New("entry fee cannot be negative")
	ErrEventFull         = errors.New("event is full")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
	ErrEventStarted      = errors.New("event already started")
)

// CreateInput carries the organizer supplied fields.
type CreateInput struct {
	Title       string          `json:"title"`
	Game        string          `json:"game"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	StartsAt    time.Time       `json:"starts_at"`
	Capacity    int             `json:"capacity"`
	EntryFee    decimal.Decimal `json:"entry_fee"`
}

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create schedules an event organized by organizerID.
func (s *Service) Create(ctx context.Context, organizerID string, in CreateInput) (domain.TournamentEvent, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return domain.TournamentEvent{}, ErrTitleRequired
	case in.Game != "" && !domain.IsKnownGame(in.Game):
		return domain.TournamentEvent{}, ErrUnknownGame
	case !in.StartsAt.After(s.now()):
		return domain.TournamentEvent{}, ErrStartsInPast
	case in.Capacity < 0:
		return domain.TournamentEvent{}, ErrInvalidCapacity
	case in.EntryFee.IsNegative():
		return domain.TournamentEvent{}, ErrInvalidFee
	}
	e := domain.TournamentEvent{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Title:       in.Title,
		Game:        in.Game,
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
		StartsAt:    in.StartsAt.UTC(),
		Capacity:    in.Capacity,
		EntryFee:    in.EntryFee.Round(2),
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return domain.TournamentEvent{}, err
	}
	logrus.WithFields(logrus.Fields{"event_id": e.ID, "organizer_id": organizerID, "starts_at": e.StartsAt}).Info("Event created")
	return e, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (domain.TournamentEvent, error) {
	e, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return e, ErrEventNotFound
	}
	return e, err
}

// ListUpcoming lists events that have not started, soonest first.
func (s *Service) ListUpcoming(ctx context.Context, game string, page store.Page) ([]domain.TournamentEvent, int64, error) {
	return s.store.ListEvents(ctx, store.EventFilter{Game: game, After: s.now(), Page: page})
}

// Register signs userID up. Capacity is checked in the same transaction
// as the insert.
func (s *Service) Register(ctx context.Context, eventID, userID string) (domain.EventRegistration, error) {
	var reg domain.EventRegistration
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		e, err := tx.GetEvent(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrEventNotFound
		} else if err != nil {
			return err
		}
		if !e.StartsAt.After(s.now()) {
			return ErrEventStarted
		}
		attendees, err := tx.ListRegistrations(ctx, eventID)
		if err != nil {
			return err
		}
		for _, a := range attendees {
			if a.UserID == userID {
				return ErrAlreadyRegistered
			}
		}
		if e.Capacity > 0 && len(attendees) >= e.Capacity {
			return ErrEventFull
		}
		reg = domain.EventRegistration{EventID: eventID, UserID: userID, CreatedAt: s.now()}
		if err := tx.CreateRegistration(ctx, &reg); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.EventRegistration{}, err
	}
	logrus.WithFields(logrus.Fields{"event_id": eventID, "user_id": userID}).Info("Registered for event")
	return reg, nil
}

// Unregister removes userID from the attendee list.
func (s *Service) Unregister(ctx context.Context, eventID, userID string) error {
	if _, err := s.Get(ctx, eventID); err != nil {
		return err
	}
	err := s.store.DeleteRegistration(ctx, eventID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotRegistered
	}
	return err
}

// Attendees lists the registrations of an event in sign-up order.
func (s *Service) Attendees(ctx context.Context, eventID string) ([]domain.EventRegistration, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListRegistrations(ctx, eventID)
}
