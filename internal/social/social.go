// Package social holds the follow graph, profile walls and the global feed.
package social

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/storage"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxPostLength bounds a post body.
const MaxPostLength = 2000

// GlobalTopic is the realtime channel of the global feed.
const GlobalTopic = "global_posts"

var (
	ErrFollowSelf      = errors.New("cannot follow yourself")
	ErrAlreadyFollows  = errors.New("already following")
	ErrNotFollowing    = errors.New("not following")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmptyPost       = errors.New("post needs text or media")
	ErrPostTooLong     = errors.New("post is too long")
)

// WallTopic is the realtime channel of one profile wall.
func WallTopic(ownerID string) string {
	return "wall:" + ownerID
}

// Media is an optional attachment uploaded with a post.
type Media struct {
	ContentType string
	Body        io.Reader
}

type Service struct {
	store store.Store
	blobs storage.Blobs
	pub   realtime.Publisher
	now   func() time.Time
}

func NewService(st store.Store, blobs storage.Blobs, pub realtime.Publisher) *Service {
	return &Service{store: st, blobs: blobs, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) profileExists(ctx context.Context, id string) error {
	if _, err := s.store.GetProfile(ctx, id); errors.Is(err, store.ErrNotFound) {
		return ErrProfileNotFound
	} else if err != nil {
		return err
	}
	return nil
}

// Follow makes followerID follow followeeID.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) (domain.Follow, error) {
	if followerID == followeeID {
		return domain.Follow{}, ErrFollowSelf
	}
	if err := s.profileExists(ctx, followeeID); err != nil {
		return domain.Follow{}, err
	}
	f := domain.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: s.now()}
	if err := s.store.CreateFollow(ctx, &f); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Follow{}, ErrAlreadyFollows
		}
		return domain.Follow{}, err
	}
	logrus.WithFields(logrus.Fields{"follower_id": followerID, "followee_id": followeeID}).Debug("Followed")
	return f, nil
}

// Unfollow removes the follow edge.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	err := s.store.DeleteFollow(ctx, followerID, followeeID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFollowing
	}
	return err
}

func (s *Service) Followers(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return s.store.ListFollowers(ctx, userID, page)
}

func (s *Service) Following(ctx context.Context, userID string, page store.Page) ([]domain.Follow, int64, error) {
	return s.store.ListFollowing(ctx, userID, page)
}

// PostToWall writes on ownerID's wall.
func (s *Service) PostToWall(ctx context.Context, authorID, ownerID, body string, media *Media) (domain.Post, error) {
	if err := s.profileExists(ctx, ownerID); err != nil {
		return domain.Post{}, err
	}
	owner := ownerID
	p := domain.Post{Kind: domain.PostWall, AuthorID: authorID, WallOwnerID: &owner}
	if err := s.create(ctx, &p, body, media); err != nil {
		return domain.Post{}, err
	}
	realtime.Publish(s.pub, WallTopic(ownerID), realtime.Insert, "wall_posts", p)
	return p, nil
}

// PostGlobal writes to the global feed.
func (s *Service) PostGlobal(ctx context.Context, authorID, body string, media *Media) (domain.Post, error) {
	p := domain.Post{Kind: domain.PostGlobal, AuthorID: authorID}
	if err := s.create(ctx, &p, body, media); err != nil {
		return domain.Post{}, err
	}
	realtime.Publish(s.pub, GlobalTopic, realtime.Insert, "global_posts", p)
	return p, nil
}

func (s *Service) create(ctx context.Context, p *domain.Post, body string, media *Media) error {
	body = strings.TrimSpace(body)
	if body == "" && media == nil {
		return ErrEmptyPost
	}
	if len(body) > MaxPostLength {
		return ErrPostTooLong
	}
	p.ID = uuid.NewString()
	p.Body = body
	p.CreatedAt = s.now()
	var obj storage.Object
	if media != nil {
		var err error
		obj, err = s.blobs.Put(ctx, storage.BucketWallPosts, storage.ObjectName(p.AuthorID, media.ContentType), media.ContentType, media.Body)
		if err != nil {
			return err
		}
		p.MediaURL = obj.URL
		p.MediaType = "image"
		if storage.IsVideo(obj.ContentType) {
			p.MediaType = "video"
		}
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		if media != nil {
			_ = s.blobs.Delete(ctx, obj.Bucket, obj.Name)
		}
		return err
	}
	logrus.WithFields(logrus.Fields{"post_id": p.ID, "kind": p.Kind, "author_id": p.AuthorID}).Info("Post created")
	return nil
}

// Wall lists posts on ownerID's wall, newest first.
func (s *Service) Wall(ctx context.Context, ownerID string, page store.Page) ([]domain.Post, int64, error) {
	return s.store.ListPosts(ctx, store.PostFilter{Kind: domain.PostWall, WallOwnerID: ownerID, Page: page})
}

// Feed lists global posts, newest first.
func (s *Service) Feed(ctx context.Context, page store.Page) ([]domain.Post, int64, error) {
	return s.store.ListPosts(ctx, store.PostFilter{Kind: domain.PostGlobal, Page: page})
}
