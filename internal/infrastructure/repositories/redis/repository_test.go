package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"reelgate/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, Migrate(context.Background(), client, zap.NewNop().Sugar()))
	return client
}

func testVideo(id string, uploader domain.UserID, status domain.VideoStatus, createdAt time.Time) *domain.Video {
	return &domain.Video{
		ID:         domain.VideoID(id),
		Title:      "clip " + id,
		Tags:       []string{"a"},
		UploaderID: uploader,
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestRedisVideoRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisVideoRepository(newTestClient(t))
	now := time.Now().UTC()

	v := testVideo("v1", "u1", domain.VideoStatusPending, now)
	require.NoError(t, repo.Create(ctx, v))
	assert.Error(t, repo.Create(ctx, v), "duplicate ids are rejected")

	got, err := repo.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "clip v1", got.Title)
	assert.Equal(t, []string{"a"}, got.Tags)

	require.NoError(t, got.Approve("admin", now))
	require.NoError(t, repo.Update(ctx, got))

	approved, err := repo.List(ctx, domain.VideoFilter{Status: domain.VideoStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	pending, err := repo.List(ctx, domain.VideoFilter{Status: domain.VideoStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.Delete(ctx, "v1"))
	_, err = repo.GetByID(ctx, "v1")
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "v1"), domain.ErrVideoNotFound)
	assert.ErrorIs(t, repo.Update(ctx, v), domain.ErrVideoNotFound)

	all, err := repo.List(ctx, domain.VideoFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRedisVideoRepository_ListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisVideoRepository(newTestClient(t))
	base := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, testVideo("old", "u1", domain.VideoStatusApproved, base)))
	require.NoError(t, repo.Create(ctx, testVideo("mid", "u2", domain.VideoStatusPending, base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, testVideo("new", "u1", domain.VideoStatusPending, base.Add(2*time.Second))))

	all, err := repo.List(ctx, domain.VideoFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.VideoID("new"), all[0].ID)
	assert.Equal(t, domain.VideoID("old"), all[2].ID)

	paged, err := repo.List(ctx, domain.VideoFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, domain.VideoID("mid"), paged[0].ID)

	mine, err := repo.List(ctx, domain.VideoFilter{UploaderID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	minePending, err := repo.List(ctx, domain.VideoFilter{UploaderID: "u1", Status: domain.VideoStatusPending})
	require.NoError(t, err)
	require.Len(t, minePending, 1)
	assert.Equal(t, domain.VideoID("new"), minePending[0].ID)
}

func TestRedisVideoRepository_ConcurrentUpdatesKeepOneStatusEntry(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewRedisVideoRepository(client)
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, testVideo("v1", "u1", domain.VideoStatusPending, now)))

	statuses := []domain.VideoStatus{
		domain.VideoStatusApproved,
		domain.VideoStatusRejected,
		domain.VideoStatusApproved,
		domain.VideoStatusRejected,
		domain.VideoStatusPending,
		domain.VideoStatusApproved,
	}
	var wg sync.WaitGroup
	for _, status := range statuses {
		wg.Add(1)
		go func(status domain.VideoStatus) {
			defer wg.Done()
			// Every writer starts from the same stale copy.
			v := testVideo("v1", "u1", status, now)
			assert.NoError(t, repo.Update(ctx, v))
		}(status)
	}
	wg.Wait()

	stored, err := repo.GetByID(ctx, "v1")
	require.NoError(t, err)

	for _, status := range []domain.VideoStatus{domain.VideoStatusPending, domain.VideoStatusApproved, domain.VideoStatusRejected} {
		_, err := client.ZScore(ctx, videoStatusKey(status), "v1").Result()
		if status == stored.Status {
			assert.NoError(t, err, "stored status %s must be indexed", status)
		} else {
			assert.ErrorIs(t, err, redis.Nil, "stale status %s must not be indexed", status)
		}
	}
}

func TestRedisVideoRepository_ListIgnoresStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	repo := NewRedisVideoRepository(client)
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, testVideo("v1", "u1", domain.VideoStatusRejected, now)))
	require.NoError(t, repo.Create(ctx, testVideo("v2", "u1", domain.VideoStatusApproved, now.Add(time.Second))))
	require.NoError(t, client.ZAdd(ctx, videoStatusKey(domain.VideoStatusApproved), redis.Z{
		Score:  float64(now.UnixNano()),
		Member: "v1",
	}).Err())

	approved, err := repo.List(ctx, domain.VideoFilter{Status: domain.VideoStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, domain.VideoID("v2"), approved[0].ID)
}

func TestRedisUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisUserRepository(newTestClient(t))

	alice := &domain.User{ID: "u1", Username: "Alice", Role: domain.RoleUser, PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, alice))

	dup := &domain.User{ID: "u2", Username: "alice", CreatedAt: time.Now()}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrUsernameTaken)

	got, err := repo.GetByUsername(ctx, " ALICE ")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got.Role = domain.RoleAdmin
	got.Username = "mallory"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
	assert.Equal(t, "Alice", updated.Username)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = repo.GetByUsername(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRedisThemeRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisThemeRepository(newTestClient(t))

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrThemeNotFound)

	theme := domain.DefaultTheme()
	theme.SiteName = "clips"
	require.NoError(t, repo.Save(ctx, &theme))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "clips", got.SiteName)
	assert.Equal(t, theme.Colors, got.Colors)
}

func TestRedisPageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisPageRepository(newTestClient(t))

	created, err := repo.Save(ctx, &domain.Page{Slug: "faq", Title: "FAQ"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Save(ctx, &domain.Page{Slug: "faq", Title: "Questions"})
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Save(ctx, &domain.Page{Slug: "about", Title: "About"})
	require.NoError(t, err)

	pages, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, domain.PageSlug("about"), pages[0].Slug)
	assert.Equal(t, "Questions", pages[1].Title)

	require.NoError(t, repo.Delete(ctx, "faq"))
	assert.ErrorIs(t, repo.Delete(ctx, "faq"), domain.ErrPageNotFound)
	_, err = repo.Get(ctx, "faq")
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
}

func TestMigrate_RebuildsVideoIndexes(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	// A version 1 store only had the main index.
	require.NoError(t, client.Set(ctx, schemaVersionKey, 1, 0).Err())
	require.NoError(t, client.Set(ctx, docKey(domain.CollectionVideos, "v1"),
		`{"id":"v1","uploader_id":"u1","status":"approved","created_at":"2024-01-01T00:00:00Z"}`, 0).Err())
	require.NoError(t, client.ZAdd(ctx, videoIndexKey(), redis.Z{Score: 1, Member: "v1"}).Err())
	require.NoError(t, client.ZAdd(ctx, videoIndexKey(), redis.Z{Score: 2, Member: "ghost"}).Err())

	require.NoError(t, Migrate(ctx, client, nil))

	members, err := client.ZRange(ctx, videoStatusKey(domain.VideoStatusApproved), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, members)

	members, err = client.ZRange(ctx, videoUploaderKey("u1"), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, members)

	members, err = client.ZRange(ctx, videoIndexKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, members)

	version, err := getSchemaVersion(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}
