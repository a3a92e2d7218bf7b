package social

import (
	"context"
	"strings"
	"testing"

	"collector_hub/internal/db/memory"
	"collector_hub/internal/domain"
	"collector_hub/internal/realtime"
	"collector_hub/internal/storage"
	"collector_hub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *realtime.Hub) {
	t.Helper()
	st := memory.New()
	for _, id := range []string{"kaiba", "yugi", "joey"} {
		p := domain.Profile{ID: id, Email: id + "@example.com", Username: id}
		require.NoError(t, st.CreateProfile(context.Background(), &p))
	}
	blobs, err := storage.NewLocal(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	hub := realtime.NewHub(4)
	return NewService(st, blobs, hub), hub
}

func TestFollowGraph(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	page := store.NormalizePage(1, 20)

	_, err := svc.Follow(ctx, "joey", "joey")
	assert.ErrorIs(t, err, ErrFollowSelf)
	_, err = svc.Follow(ctx, "joey", "pegasus")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.Follow(ctx, "joey", "yugi")
	require.NoError(t, err)
	_, err = svc.Follow(ctx, "kaiba", "yugi")
	require.NoError(t, err)
	_, err = svc.Follow(ctx, "joey", "yugi")
	assert.ErrorIs(t, err, ErrAlreadyFollows)

	followers, total, err := svc.Followers(ctx, "yugi", page)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "kaiba", followers[0].FollowerID)

	require.NoError(t, svc.Unfollow(ctx, "joey", "yugi"))
	assert.ErrorIs(t, svc.Unfollow(ctx, "joey", "yugi"), ErrNotFollowing)

	following, total, err := svc.Following(ctx, "joey", page)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, following)
}

func TestWallAndFeed(t *testing.T) {
	svc, hub := setup(t)
	ctx := context.Background()
	sub := hub.Subscribe(WallTopic("yugi"))
	defer sub.Close()

	_, err := svc.PostToWall(ctx, "joey", "yugi", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyPost)
	_, err = svc.PostGlobal(ctx, "joey", strings.Repeat("a", MaxPostLength+1), nil)
	assert.ErrorIs(t, err, ErrPostTooLong)

	p, err := svc.PostToWall(ctx, "joey", "yugi", "nice deck", &Media{ContentType: "video/mp4", Body: strings.NewReader("mp4")})
	require.NoError(t, err)
	assert.Equal(t, "video", p.MediaType)
	assert.Contains(t, p.MediaURL, "/storage/wall-posts/joey/")

	ev := <-sub.C
	assert.Equal(t, "wall_posts", ev.Table)

	_, err = svc.PostGlobal(ctx, "kaiba", "Blue-Eyes restock", nil)
	require.NoError(t, err)

	wall, total, err := svc.Wall(ctx, "yugi", store.NormalizePage(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, p.ID, wall[0].ID)

	feed, total, err := svc.Feed(ctx, store.NormalizePage(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "kaiba", feed[0].AuthorID)
}
