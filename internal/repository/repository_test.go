package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

func TestMemoryUserRepository_UpsertCreates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Upsert(ctx, domain.Identity{
		ID:        42,
		Username:  "ali",
		FirstName: "Ali",
		Language:  "uz",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "ali", user.Username)
	assert.Equal(t, "Ali", user.FirstName)
	assert.Equal(t, "uz", user.Language)
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.LastSeen.IsZero())
}

func TestMemoryUserRepository_UpsertMergesNonDestructively(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, domain.Identity{
		ID:        42,
		Username:  "ali",
		FirstName: "Ali",
		LastName:  "Valiyev",
		Language:  "uz",
	})
	require.NoError(t, err)

	// A later contact with partial fields must keep the stored values.
	user, err := repo.Upsert(ctx, domain.Identity{ID: 42, Language: "ru"})
	require.NoError(t, err)

	assert.Equal(t, "ali", user.Username)
	assert.Equal(t, "Ali", user.FirstName)
	assert.Equal(t, "Valiyev", user.LastName)
	assert.Equal(t, "ru", user.Language, "non-empty fields still overwrite")
}

func TestMemoryUserRepository_UpsertBumpsLastSeen(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return current }

	first, err := repo.Upsert(ctx, domain.Identity{ID: 42, Username: "ali"})
	require.NoError(t, err)

	current = current.Add(time.Hour)

	second, err := repo.Upsert(ctx, domain.Identity{ID: 42})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.LastSeen.After(first.LastSeen))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestMemoryUserRepository_FindByID(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.Upsert(ctx, domain.Identity{ID: 42, Username: "ali"})
	require.NoError(t, err)

	user, err := repo.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ali", user.Username)
}

func TestMemoryListRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryListRepository()
	ctx := context.Background()

	list := &domain.ShoppingList{
		ID:          "list-1",
		OwnerUserID: 42,
		Items: []domain.LineItem{
			{RawName: "рис", Quantity: 2, UnitPrice: 12000, LineTotal: 24000, Resolved: true},
		},
		Total:     24000,
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, list))

	// The stored copy is detached from the caller's list.
	list.Items[0].Quantity = 99

	got, err := repo.FindByID(ctx, "list-1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got.Items[0].Quantity)
	assert.Equal(t, int64(24000), got.Total)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestMemoryListRepository_SaveOverwrites(t *testing.T) {
	repo := NewMemoryListRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.ShoppingList{ID: "list-1", Total: 100}))
	require.NoError(t, repo.Save(ctx, &domain.ShoppingList{ID: "list-1", Total: 200}))

	got, err := repo.FindByID(ctx, "list-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Total)
}
