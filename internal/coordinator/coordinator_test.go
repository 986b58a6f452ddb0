package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/internal/idempotency"
	"github.com/bozorlik/miniapp-backend/internal/listcache"
	"github.com/bozorlik/miniapp-backend/internal/repository"
	"github.com/bozorlik/miniapp-backend/internal/sharing"
	"github.com/bozorlik/miniapp-backend/internal/userdir"
)

type captureNotifier struct {
	issuedTokens  []string
	issuedLinks   []string
	importedUsers []int64
}

func (n *captureNotifier) ShareIssued(_ int64, token, deepLink string) {
	n.issuedTokens = append(n.issuedTokens, token)
	n.issuedLinks = append(n.issuedLinks, deepLink)
}

func (n *captureNotifier) ListImported(userID int64, _ *domain.ShoppingList) {
	n.importedUsers = append(n.importedUsers, userID)
}

// failingUserRepo simulates a user store outage.
type failingUserRepo struct{}

func (failingUserRepo) Upsert(context.Context, domain.Identity) (*domain.User, error) {
	return nil, errors.New("users table is on fire")
}

func (failingUserRepo) FindByID(context.Context, int64) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testList(owner int64) *domain.ShoppingList {
	return &domain.ShoppingList{
		ID:          "list-1",
		OwnerUserID: owner,
		Items: []domain.LineItem{
			{RawName: "2 кг рис", Quantity: 2, UnitPrice: 12000, LineTotal: 24000, Resolved: true},
			{RawName: "widget123", Quantity: 1},
		},
		Total:     24000,
		CreatedAt: time.Now().UTC(),
	}
}

func newTestCoordinator(cfg Config, notifier Notifier) (*Coordinator, *repository.MemoryListRepository) {
	lists := repository.NewMemoryListRepository()
	coord := New(
		cfg,
		sharing.NewMemoryStore(sharing.RandomTokenGenerator{}, 0),
		lists,
		userdir.New(repository.NewMemoryUserRepository(), testLogger()),
		nil,
		nil,
		notifier,
		testLogger(),
	)
	return coord, lists
}

func TestCoordinator_Share(t *testing.T) {
	notifier := &captureNotifier{}
	coord, _ := newTestCoordinator(Config{BotUsername: "BozorlikBot"}, notifier)

	result, err := coord.Share(context.Background(), testList(7), domain.Identity{ID: 7, Username: "ali"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token.Token)
	assert.Equal(t, "list-1", result.Token.ListID)
	assert.Equal(t, int64(7), result.Token.IssuerUserID)
	assert.False(t, result.Replayed)
	assert.Equal(t, "https://t.me/BozorlikBot?startapp="+result.Token.Token, result.DeepLink)

	require.Len(t, notifier.issuedTokens, 1)
	assert.Equal(t, result.Token.Token, notifier.issuedTokens[0])
}

func TestCoordinator_ShareRelativeLinkWithoutBot(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)

	result, err := coord.Share(context.Background(), testList(7), domain.Identity{ID: 7})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.DeepLink, "/shared/"))
}

func TestCoordinator_ShareValidation(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)
	ctx := context.Background()

	_, err := coord.Share(ctx, nil, domain.Identity{ID: 7})
	assert.True(t, apperrors.IsValidation(err))

	_, err = coord.Share(ctx, &domain.ShoppingList{}, domain.Identity{ID: 7})
	assert.True(t, apperrors.IsValidation(err))

	_, err = coord.Share(ctx, testList(7), domain.Identity{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCoordinator_ShareSurvivesUserStoreOutage(t *testing.T) {
	coord := New(
		Config{},
		sharing.NewMemoryStore(sharing.RandomTokenGenerator{}, 0),
		repository.NewMemoryListRepository(),
		userdir.New(failingUserRepo{}, testLogger()),
		nil,
		nil,
		nil,
		testLogger(),
	)

	result, err := coord.Share(context.Background(), testList(7), domain.Identity{ID: 7})
	require.NoError(t, err, "identity tracking is best-effort")
	assert.NotEmpty(t, result.Token.Token)
}

func TestCoordinator_ShareReplayWithinWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())

	coord := New(
		Config{IssueTTL: time.Minute},
		sharing.NewMemoryStore(sharing.RandomTokenGenerator{}, 0),
		repository.NewMemoryListRepository(),
		userdir.New(repository.NewMemoryUserRepository(), testLogger()),
		idem,
		nil,
		nil,
		testLogger(),
	)

	ctx := context.Background()
	list := testList(7)

	first, err := coord.Share(ctx, list, domain.Identity{ID: 7})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := coord.Share(ctx, list, domain.Identity{ID: 7})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Token.Token, second.Token.Token)

	// A different issuer gets their own token for the same list.
	other, err := coord.Share(ctx, list, domain.Identity{ID: 8})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token.Token, other.Token.Token)
}

func TestCoordinator_ReplayKeepsOriginalSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())
	cache := listcache.NewCache(plainRedis{client}, time.Minute)

	coord := New(
		Config{IssueTTL: time.Minute},
		sharing.NewMemoryStore(sharing.RandomTokenGenerator{}, 0),
		repository.NewMemoryListRepository(),
		userdir.New(repository.NewMemoryUserRepository(), testLogger()),
		idem,
		cache,
		nil,
		testLogger(),
	)

	ctx := context.Background()

	first, err := coord.Share(ctx, testList(7), domain.Identity{ID: 7})
	require.NoError(t, err)

	// The same list grows between shares; the replayed share must not
	// overwrite the snapshot viewers already follow.
	grown := &domain.ShoppingList{
		ID:          "list-1",
		OwnerUserID: 7,
		Items: []domain.LineItem{
			{RawName: "500 кг рис", Quantity: 500, UnitPrice: 12000, LineTotal: 6000000, Resolved: true},
		},
		Total:     6000000,
		CreatedAt: time.Now().UTC(),
	}

	second, err := coord.Share(ctx, grown, domain.Identity{ID: 7})
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Token.Token, second.Token.Token)

	snapshot, err := coord.Preview(ctx, first.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(24000), snapshot.Total)
	assert.Len(t, snapshot.Items, 2)
}

func TestCoordinator_ShareRejectsInconsistentTotals(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)
	ctx := context.Background()

	badLine := testList(7)
	badLine.Items[0].LineTotal = 999

	_, err := coord.Share(ctx, badLine, domain.Identity{ID: 7})
	assert.True(t, apperrors.IsValidation(err))

	badTotal := testList(7)
	badTotal.Total = 1

	_, err = coord.Share(ctx, badTotal, domain.Identity{ID: 7})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCoordinator_Redeem(t *testing.T) {
	notifier := &captureNotifier{}
	coord, lists := newTestCoordinator(Config{}, notifier)
	ctx := context.Background()

	original := testList(7)
	shared, err := coord.Share(ctx, original, domain.Identity{ID: 7})
	require.NoError(t, err)

	imported, err := coord.Redeem(ctx, shared.Token.Token, domain.Identity{ID: 99, Username: "bob"})
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, imported.ID, "imported list gets a fresh id")
	assert.Equal(t, int64(99), imported.OwnerUserID)
	assert.Equal(t, original.Items, imported.Items)
	assert.Equal(t, int64(24000), imported.Total)

	saved, err := lists.FindByID(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, imported.ID, saved.ID)

	assert.Equal(t, []int64{99}, notifier.importedUsers)
}

func TestCoordinator_RedeemTwiceCreatesIndependentCopies(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)
	ctx := context.Background()

	shared, err := coord.Share(ctx, testList(7), domain.Identity{ID: 7})
	require.NoError(t, err)

	first, err := coord.Redeem(ctx, shared.Token.Token, domain.Identity{ID: 99})
	require.NoError(t, err)

	second, err := coord.Redeem(ctx, shared.Token.Token, domain.Identity{ID: 99})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "every redeem materializes a new list")
}

func TestCoordinator_RedeemUnknownToken(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)

	_, err := coord.Redeem(context.Background(), "no-such-token", domain.Identity{ID: 99})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCoordinator_RedeemValidation(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)
	ctx := context.Background()

	_, err := coord.Redeem(ctx, "", domain.Identity{ID: 99})
	assert.True(t, apperrors.IsValidation(err))

	_, err = coord.Redeem(ctx, "tok", domain.Identity{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCoordinator_PreviewServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := listcache.NewCache(plainRedis{client}, time.Minute)
	require.NoError(t, cache.Set(context.Background(), "cached-token", testList(7)))

	// The token store knows nothing about the token; only the cache does.
	coord := New(
		Config{},
		sharing.NewMemoryStore(sharing.RandomTokenGenerator{}, 0),
		repository.NewMemoryListRepository(),
		nil,
		nil,
		cache,
		nil,
		testLogger(),
	)

	list, err := coord.Preview(context.Background(), "cached-token")
	require.NoError(t, err)
	assert.Equal(t, "list-1", list.ID)
}

func TestCoordinator_PreviewFallsThroughToStore(t *testing.T) {
	coord, _ := newTestCoordinator(Config{}, nil)
	ctx := context.Background()

	shared, err := coord.Share(ctx, testList(7), domain.Identity{ID: 7})
	require.NoError(t, err)

	list, err := coord.Preview(ctx, shared.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, "list-1", list.ID)

	_, err = coord.Preview(ctx, "missing-token")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

// plainRedis adapts *redis.Client to the cache store interface.
type plainRedis struct {
	client *goredis.Client
}

func (p plainRedis) Get(ctx context.Context, key string) (string, error) {
	return p.client.Get(ctx, key).Result()
}

func (p plainRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return p.client.Set(ctx, key, value, ttl).Err()
}
