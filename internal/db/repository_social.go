package db

import (
	"context"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"
)

// --- direct messages ---

func (r *Repository) CreateMessage(ctx context.Context, m *domain.Message) error {
	return mapErr(r.with(ctx).Create(m).Error)
}

func (r *Repository) ListConversation(ctx context.Context, a, b string, page store.Page) ([]domain.Message, error) {
	var rows []domain.Message
	q := r.with(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("created_at desc")
	err := paginate(q, page).Find(&rows).Error
	return rows, err
}

func (r *Repository) ListRecentMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	var rows []domain.Message
	err := r.with(ctx).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkMessagesRead(ctx context.Context, recipientID, senderID string, at time.Time) (int64, error) {
	res := r.with(ctx).Model(&domain.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND read_at IS NULL", recipientID, senderID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

// --- gifts ---

func (r *Repository) CreateGift(ctx context.Context, g *domain.Gift) error {
	return mapErr(r.with(ctx).Create(g).Error)
}

func (r *Repository) GetGift(ctx context.Context, id string) (domain.Gift, error) {
	return first[domain.Gift](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListGifts(ctx context.Context, f store.GiftFilter) ([]domain.Gift, error) {
	q := r.with(ctx).Model(&domain.Gift{})
	if f.SenderID != "" {
		q = q.Where("sender_id = ?", f.SenderID)
	}
	if f.RecipientID != "" {
		q = q.Where("recipient_id = ?", f.RecipientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var rows []domain.Gift
	err := q.Order("created_at desc").Find(&rows).Error
	return rows, err
}

func (r *Repository) TransitionGift(ctx context.Context, id string, from, to domain.GiftStatus, at time.Time) error {
	res := r.with(ctx).Model(&domain.Gift{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "responded_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

// --- follows ---

func (r *Repository) CreateFollow(ctx context.Context, f *domain.Follow) error {
	return mapErr(r.with(ctx).Create(f).Error)
}

func (r *Repository) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	res := r.with(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) ListFollowers(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return r.listFollows(ctx, "followee_id = ?", userID, page)
}

func (r *Repository) ListFollowing(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return r.listFollows(ctx, "follower_id = ?", userID, page)
}

func (r *Repository) listFollows(ctx context.Context, cond, userID string, page store.Page) ([]domain.Follow, int64, error) {
	q := r.with(ctx).Model(&domain.Follow{}).Where(cond, userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Follow
	err := paginate(q.Order("created_at desc"), page).Find(&rows).Error
	return rows, total, err
}

// --- posts ---

func (r *Repository) CreatePost(ctx context.Context, p *domain.Post) error {
	return mapErr(r.with(ctx).Create(p).Error)
}

func (r *Repository) ListPosts(ctx context.Context, f store.PostFilter) ([]domain.Post, int64, error) {
	q := r.with(ctx).Model(&domain.Post{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.WallOwnerID != "" {
		q = q.Where("wall_owner_id = ?", f.WallOwnerID)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.Post
	err := paginate(q.Order("created_at desc"), f.Page).Find(&rows).Error
	return rows, total, err
}

// --- events ---

func (r *Repository) CreateEvent(ctx context.Context, e *domain.TournamentEvent) error {
	return mapErr(r.with(ctx).Create(e).Error)
}

func (r *Repository) GetEvent(ctx context.Context, id string) (domain.TournamentEvent, error) {
	return first[domain.TournamentEvent](r.with(ctx).Where("id = ?", id))
}

func (r *Repository) ListEvents(ctx context.Context, f store.EventFilter) ([]domain.TournamentEvent, int64, error) {
	q := r.with(ctx).Model(&domain.TournamentEvent{}).Where("starts_at >= ?", f.After)
	if f.Game != "" {
		q = q.Where("game = ?", f.Game)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.TournamentEvent
	err := paginate(q.Order("starts_at asc"), f.Page).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) CreateRegistration(ctx context.Context, reg *domain.EventRegistration) error {
	return mapErr(r.with(ctx).Create(reg).Error)
}

func (r *Repository) DeleteRegistration(ctx context.Context, eventID, userID string) error {
	res := r.with(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&domain.EventRegistration{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) ListRegistrations(ctx context.Context, eventID string) ([]domain.EventRegistration, error) {
	var rows []domain.EventRegistration
	err := r.with(ctx).Where("event_id = ?", eventID).Order("created_at asc").Find(&rows).Error
	return rows, err
}
