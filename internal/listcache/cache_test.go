package listcache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

type redisStore struct {
	client *goredis.Client
}

func (s redisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s redisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func setupCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(redisStore{client}, ttl), mr
}

func sampleList() *domain.ShoppingList {
	return &domain.ShoppingList{
		ID:          "list-1",
		OwnerUserID: 7,
		Items: []domain.LineItem{
			{RawName: "2 кг рис", Quantity: 2, UnitPrice: 12000, LineTotal: 24000, Resolved: true},
		},
		Total:     24000,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCache_SetThenGet(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	original := sampleList()
	require.NoError(t, cache.Set(ctx, "tok-a", original))

	cached, err := cache.Get(ctx, "tok-a")
	require.NoError(t, err)
	require.NotNil(t, cached)

	assert.Equal(t, original.ID, cached.ID)
	assert.Equal(t, original.Items, cached.Items)
	assert.Equal(t, original.Total, cached.Total)
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)

	cached, err := cache.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_EntryExpires(t *testing.T) {
	cache, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tok-a", sampleList()))
	mr.FastForward(2 * time.Minute)

	cached, err := cache.Get(ctx, "tok-a")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_NilCacheIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tok-a", sampleList()))

	cached, err := cache.Get(ctx, "tok-a")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_NilListIsNotStored(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tok-a", nil))

	cached, err := cache.Get(ctx, "tok-a")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
