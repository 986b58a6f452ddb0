package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(NewRedisStore(client, testLogger()), testLogger()), mr
}

func issueToken(token string) Issue {
	return func(context.Context) (*domain.ShareToken, error) {
		return &domain.ShareToken{Token: token, ListID: "list-1", IssuerUserID: 7}, nil
	}
}

func TestIssueOnce_RunsIssueOnFirstCall(t *testing.T) {
	manager, _ := setupManager(t)

	result, err := manager.IssueOnce(context.Background(), "key-1", time.Minute, issueToken("tok-a"))
	require.NoError(t, err)

	assert.Equal(t, "tok-a", result.Token.Token)
	assert.False(t, result.FromCache)
}

func TestIssueOnce_ReplaysWithinTTL(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	first, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-a"))
	require.NoError(t, err)
	require.False(t, first.FromCache)

	calls := 0
	second, err := manager.IssueOnce(ctx, "key-1", time.Minute, func(context.Context) (*domain.ShareToken, error) {
		calls++
		return &domain.ShareToken{Token: "tok-b"}, nil
	})
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, "tok-a", second.Token.Token)
	assert.Zero(t, calls, "cached result must short-circuit issuance")
}

func TestIssueOnce_DistinctKeysAreIndependent(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	first, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-a"))
	require.NoError(t, err)

	second, err := manager.IssueOnce(ctx, "key-2", time.Minute, issueToken("tok-b"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Token.Token, second.Token.Token)
	assert.False(t, second.FromCache)
}

func TestIssueOnce_ReissuesAfterExpiry(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	_, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-a"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	result, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-b"))
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, "tok-b", result.Token.Token)
}

func TestIssueOnce_FailureDoesNotPoisonKey(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	issueErr := errors.New("token store down")
	_, err := manager.IssueOnce(ctx, "key-1", time.Minute, func(context.Context) (*domain.ShareToken, error) {
		return nil, issueErr
	})
	require.ErrorIs(t, err, issueErr)

	result, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-a"))
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, "tok-a", result.Token.Token)
}

func TestIssueOnce_ConcurrentRequestFailsFast(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, err := manager.IssueOnce(ctx, "key-1", time.Minute, func(context.Context) (*domain.ShareToken, error) {
			close(started)
			<-release
			return &domain.ShareToken{Token: "tok-a"}, nil
		})
		assert.NoError(t, err)
	}()

	<-started
	_, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-b"))
	assert.ErrorIs(t, err, ErrRequestInProgress)

	close(release)
	<-done

	result, err := manager.IssueOnce(ctx, "key-1", time.Minute, issueToken("tok-c"))
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, "tok-a", result.Token.Token)
}

func TestIssueOnce_NilIssueFn(t *testing.T) {
	manager, _ := setupManager(t)

	_, err := manager.IssueOnce(context.Background(), "key-1", time.Minute, nil)
	assert.Error(t, err)
}

func TestShareKey_DeterministicAndDistinct(t *testing.T) {
	assert.Equal(t, ShareKey(7, "list-1"), ShareKey(7, "list-1"))
	assert.NotEqual(t, ShareKey(7, "list-1"), ShareKey(8, "list-1"))
	assert.NotEqual(t, ShareKey(7, "list-1"), ShareKey(7, "list-2"))
}
