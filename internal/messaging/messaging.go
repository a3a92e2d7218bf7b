// Package messaging implements direct messages between collectors and the
// [SYSTEM] notifications other services send to the inbox.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxBodyLength bounds a single message body.
const MaxBodyLength = 4000

var (
	ErrEmptyBody         = errors.New("message body is required")
	ErrBodyTooLong       = errors.New("message body is too long")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMessageToSelf     = errors.New("cannot message yourself")
)

// Topic is the realtime channel of a user's inbox.
func Topic(userID string) string {
	return "messages:" + userID
}

// NewSystem builds a [SYSTEM] message without persisting it.
func NewSystem(senderID, recipientID, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        domain.SystemPrefix + text,
		IsSystem:    true,
		CreatedAt:   at,
	}
}

// Notify persists a [SYSTEM] message through st, which may be a
// transaction handle.
func Notify(ctx context.Context, st store.Store, senderID, recipientID, text string, at time.Time) (domain.Message, error) {
	m := NewSystem(senderID, recipientID, text, at)
	if err := st.CreateMessage(ctx, &m); err != nil {
		return domain.Message{}, fmt.Errorf("system message: %w", err)
	}
	return m, nil
}

// InboxEntry summarizes the conversation with one counterpart.
type InboxEntry struct {
	CounterpartID string         `json:"counterpart_id"`
	LastMessage   domain.Message `json:"last_message"`
	Unread        int            `json:"unread"`
}

type Service struct {
	store store.Store
	pub   realtime.Publisher
	now   func() time.Time
}

func NewService(st store.Store, pub realtime.Publisher) *Service {
	return &Service{store: st, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// Send delivers a user written message.
func (s *Service) Send(ctx context.Context, senderID, recipientID, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return domain.Message{}, ErrEmptyBody
	case len(body) > MaxBodyLength:
		return domain.Message{}, ErrBodyTooLong
	case senderID == recipientID:
		return domain.Message{}, ErrMessageToSelf
	}
	if _, err := s.store.GetProfile(ctx, recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Message{}, ErrRecipientNotFound
		}
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateMessage(ctx, &m); err != nil {
		return domain.Message{}, err
	}
	logrus.WithFields(logrus.Fields{
		"message_id":   m.ID,
		"sender_id":    senderID,
		"recipient_id": recipientID,
	}).Debug("Message sent")
	realtime.Publish(s.pub, Topic(recipientID), realtime.Insert, "messages", m)
	return m, nil
}

// Conversation returns the messages between userID and otherID, newest first.
func (s *Service) Conversation(ctx context.Context, userID, otherID string, page store.Page) ([]domain.Message, error) {
	return s.store.ListConversation(ctx, userID, otherID, page)
}

// Inbox groups the most recent messages by counterpart.
func (s *Service) Inbox(ctx context.Context, userID string) ([]InboxEntry, error) {
	recent, err := s.store.ListRecentMessages(ctx, userID, 500)
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var entries []InboxEntry
	for _, m := range recent {
		other := m.SenderID
		if other == userID {
			other = m.RecipientID
		}
		i, ok := index[other]
		if !ok {
			i = len(entries)
			index[other] = i
			entries = append(entries, InboxEntry{CounterpartID: other, LastMessage: m})
		}
		if m.RecipientID == userID && m.ReadAt == nil {
			entries[i].Unread++
		}
	}
	return entries, nil
}

// MarkRead marks every message from otherID to userID as read.
func (s *Service) MarkRead(ctx context.Context, userID, otherID string) (int64, error) {
	return s.store.MarkMessagesRead(ctx, userID, otherID, s.now())
}
