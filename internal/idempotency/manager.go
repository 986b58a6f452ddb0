// Package idempotency deduplicates share issuance: repeating a share request
// for the same (issuer, list) pair within the TTL returns the original token
// instead of minting a new one.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// ErrRequestInProgress signals that another request holds the issuance lock
// for the same key right now.
var ErrRequestInProgress = errors.New("share request with this key is already in progress")

const (
	lockTTL      = 30 * time.Second
	pollInterval = 100 * time.Millisecond
)

// Issue performs the actual token issuance when no cached result exists.
type Issue func(ctx context.Context) (*domain.ShareToken, error)

// Result carries the issued token and whether it was replayed from cache.
type Result struct {
	Token     *domain.ShareToken
	FromCache bool
}

// Manager coordinates lock-then-issue over a Store.
type Manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{store: store, log: log}
}

// IssueOnce returns the cached token for key when present; otherwise it runs
// fn under a short lock and records the result for ttl. A concurrent request
// that already started issuance for the same key gets ErrRequestInProgress.
func (m *Manager) IssueOnce(ctx context.Context, key string, ttl time.Duration, fn Issue) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("issue fn cannot be nil")
	}

	for {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		if record != nil {
			switch record.Status {
			case StatusCompleted:
				return replay(record)
			case StatusProcessing:
				return nil, ErrRequestInProgress
			}
		}

		locked, err := m.store.Lock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}
		if locked {
			break
		}

		// The lock holder has not written its record yet; wait for either.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	defer func() {
		if err := m.store.ReleaseLock(ctx, key); err != nil {
			m.log.Error("failed to release issuance lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// The previous holder may have completed between our Get and Lock.
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Status == StatusCompleted {
		return replay(record)
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusProcessing}, lockTTL); err != nil {
		return nil, err
	}

	token, err := fn(ctx)
	if err != nil {
		if delErr := m.store.Delete(ctx, key); delErr != nil {
			m.log.Error("failed to clear issuance record", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, err
	}

	encoded, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Token: encoded}, ttl); err != nil {
		return nil, err
	}

	return &Result{Token: token, FromCache: false}, nil
}

func replay(record *Record) (*Result, error) {
	var token domain.ShareToken
	if err := json.Unmarshal(record.Token, &token); err != nil {
		return nil, err
	}

	return &Result{Token: &token, FromCache: true}, nil
}

// ShareKey builds the deterministic issuance key for an issuer/list pair.
func ShareKey(issuerUserID int64, listID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("share:%d:%s", issuerUserID, listID)))
	return hex.EncodeToString(sum[:])
}
