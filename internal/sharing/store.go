// Package sharing issues and redeems share tokens over immutable list snapshots.
package sharing

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// maxIssueAttempts bounds token regeneration on collision. With 128 bits of
// entropy a collision is theoretical, but the store must never overwrite an
// existing snapshot silently.
const maxIssueAttempts = 5

// Store persists share tokens with their list snapshots.
type Store interface {
	// Issue snapshots list under a fresh unguessable token. The stored copy
	// is detached from the caller's list.
	Issue(ctx context.Context, list *domain.ShoppingList, issuerUserID int64) (*domain.ShareToken, error)
	// Redeem returns a copy of the snapshot and records userID in the token's
	// redeemed-by set exactly once. Unknown tokens yield a not-found error.
	Redeem(ctx context.Context, token string, userID int64) (*domain.ShoppingList, *domain.ShareToken, error)
	// Snapshot returns a copy of the stored snapshot without recording a
	// redemption. Used by the share preview page.
	Snapshot(ctx context.Context, token string) (*domain.ShoppingList, error)
}

// TokenGenerator produces share token identifiers. Isolated so tests can
// inject deterministic ids without weakening production entropy.
type TokenGenerator interface {
	Generate() string
}

// RandomTokenGenerator emits 128-bit crypto-random tokens in base64 RawURL
// form: 22 characters, URL-safe, embeddable in a deep link as-is.
type RandomTokenGenerator struct{}

func (RandomTokenGenerator) Generate() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; an error here means
		// the process has no usable entropy source at all.
		panic(err)
	}

	return base64.RawURLEncoding.EncodeToString(buf)
}
