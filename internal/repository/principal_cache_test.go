package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
)

type countingUsers struct {
	UserRepository
	users map[string]*domain.User
	calls int
}

func (c *countingUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	c.calls++
	if user, ok := c.users[email]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, ErrNotFound
}

func newCacheFixture(t *testing.T) (*PrincipalCache, *countingUsers, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := &countingUsers{users: map[string]*domain.User{
		"alice@example.com": {ID: 1, Email: "alice@example.com", FullName: "Alice", PasswordHash: "secret-hash", IsActive: true},
	}}
	return NewPrincipalCache(users, client, time.Minute, nil), users, srv
}

func TestPrincipalCache_ReadThrough(t *testing.T) {
	cache, users, srv := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Empty(t, first.PasswordHash)

	second, err := cache.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, 1, users.calls, "second lookup must be served from redis")

	raw, err := srv.Get(principalKeyPrefix + "alice@example.com")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-hash")
	assert.Equal(t, time.Minute, srv.TTL(principalKeyPrefix+"alice@example.com"))
}

func TestPrincipalCache_MissPropagatesNotFound(t *testing.T) {
	cache, _, srv := newCacheFixture(t)

	_, err := cache.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, srv.Exists(principalKeyPrefix+"ghost@example.com"))
}

func TestPrincipalCache_Invalidate(t *testing.T) {
	cache, users, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	cache.Invalidate(ctx, "alice@example.com")

	_, err = cache.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, users.calls)
}

func TestPrincipalCache_RedisDownFallsBack(t *testing.T) {
	cache, users, srv := newCacheFixture(t)
	srv.Close()

	user, err := cache.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, 1, users.calls)
}

func TestPrincipalCache_CorruptEntryIsIgnored(t *testing.T) {
	cache, users, srv := newCacheFixture(t)
	require.NoError(t, srv.Set(principalKeyPrefix+"alice@example.com", "{not json"))

	user, err := cache.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FullName)
	assert.Equal(t, 1, users.calls)
}
