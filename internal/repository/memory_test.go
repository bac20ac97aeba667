package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Email: "a@example.com", FullName: "A", PasswordHash: "h", IsActive: true}
	require.NoError(t, repo.Create(ctx, user))
	assert.Equal(t, int64(1), user.ID)

	err := repo.Create(ctx, &domain.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got.FullName = "Renamed"
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.FullName)

	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.User{ID: 99}), ErrNotFound)
}

func TestMemoryUserRepository_EmailMatchIsExact(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &domain.User{Email: "a@x.com", IsActive: true}))

	_, err := repo.GetByEmail(ctx, "A@X.COM")
	assert.ErrorIs(t, err, ErrNotFound)

	upper := &domain.User{Email: "A@X.COM", IsActive: true}
	require.NoError(t, repo.Create(ctx, upper))
	assert.Equal(t, int64(2), upper.ID)
}

func TestMemoryTaskRepository_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	due := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Task{OwnerID: 1, Title: "t", Status: domain.TaskStatusPending, DueDate: due}))
	}
	foreign := &domain.Task{OwnerID: 2, Title: "other", Status: domain.TaskStatusPending, DueDate: due}
	require.NoError(t, repo.Create(ctx, foreign))

	page, err := repo.ListByOwner(ctx, 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	empty, err := repo.ListByOwner(ctx, 1, 10, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = repo.GetForOwner(ctx, foreign.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	hijack := *foreign
	hijack.OwnerID = 1
	assert.ErrorIs(t, repo.Update(ctx, &hijack), ErrNotFound)

	_, err = repo.Delete(ctx, foreign.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := repo.Delete(ctx, foreign.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "other", deleted.Title)
}
