// Package coordinator orchestrates the share and redeem flows over the token
// store, the user directory, and the transport-layer notifier.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/internal/idempotency"
	"github.com/bozorlik/miniapp-backend/internal/listcache"
	"github.com/bozorlik/miniapp-backend/internal/repository"
	"github.com/bozorlik/miniapp-backend/internal/sharing"
	"github.com/bozorlik/miniapp-backend/internal/userdir"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
)

// Notifier receives state-change fan-out for live viewers. Implementations
// must not block; the coordinator calls them on the request path.
type Notifier interface {
	ShareIssued(issuerUserID int64, token string, deepLink string)
	ListImported(importerUserID int64, list *domain.ShoppingList)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) ShareIssued(int64, string, string)        {}
func (NopNotifier) ListImported(int64, *domain.ShoppingList) {}

// Config tunes the coordinator.
type Config struct {
	// BotUsername is embedded in generated deep links.
	BotUsername string
	// IssueTTL is how long a repeated share of the same list by the same user
	// returns the previously issued token. Zero disables deduplication.
	IssueTTL time.Duration
}

// ShareResult is what the share flow hands back to the transport layer.
type ShareResult struct {
	Token    *domain.ShareToken
	DeepLink string
	Replayed bool
}

// Coordinator wires the share/redeem state machines together.
type Coordinator struct {
	cfg       Config
	tokens    sharing.Store
	lists     repository.ListRepository
	directory *userdir.Directory
	idem      *idempotency.Manager
	cache     *listcache.Cache
	breaker   *apperrors.CircuitBreaker
	notifier  Notifier
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New constructs a Coordinator. idem and cache may be nil; notifier may be
// nil, in which case events are discarded.
func New(
	cfg Config,
	tokens sharing.Store,
	lists repository.ListRepository,
	directory *userdir.Directory,
	idem *idempotency.Manager,
	cache *listcache.Cache,
	notifier Notifier,
	log *slog.Logger,
) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Coordinator{
		cfg:       cfg,
		tokens:    tokens,
		lists:     lists,
		directory: directory,
		idem:      idem,
		cache:     cache,
		breaker:   apperrors.NewCircuitBreaker(apperrors.BreakerConfig{}),
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Share snapshots the list and issues a share token for it. The issuer upsert
// is best-effort: its failure never blocks issuance. Token issuance failures
// after bounded retries are fatal to the request.
func (c *Coordinator) Share(ctx context.Context, list *domain.ShoppingList, issuer domain.Identity) (*ShareResult, error) {
	start := c.now()

	if list == nil || list.ID == "" {
		return nil, apperrors.NewValidationError("shopping list is required")
	}
	if issuer.ID == 0 {
		return nil, apperrors.NewValidationError("issuer user id is required")
	}
	if err := validateTotals(list); err != nil {
		return nil, err
	}

	c.upsertIdentity(ctx, issuer, "share")

	result, err := c.issue(ctx, list, issuer.ID)
	if err != nil {
		metrics.RecordOperation("share", "error", c.now().Sub(start))
		return nil, err
	}

	// A replayed token already has its snapshot cached; writing the caller's
	// current list would let Preview drift from what was shared first.
	if !result.Replayed {
		if err := c.cache.Set(ctx, result.Token.Token, list); err != nil {
			c.log.Warn("failed to cache share snapshot", slog.Any("error", err))
		}
	}

	result.DeepLink = c.deepLink(result.Token.Token)
	c.notifier.ShareIssued(issuer.ID, result.Token.Token, result.DeepLink)
	metrics.RecordOperation("share", "ok", c.now().Sub(start))

	return result, nil
}

// Redeem resolves a token to its snapshot and materializes a fresh list owned
// by the importer: new id, same items, created now. The importer's copy is
// fully decoupled from the issuer's original.
func (c *Coordinator) Redeem(ctx context.Context, token string, importer domain.Identity) (*domain.ShoppingList, error) {
	start := c.now()

	if token == "" {
		return nil, apperrors.NewValidationError("share token is required")
	}
	if importer.ID == 0 {
		return nil, apperrors.NewValidationError("importer user id is required")
	}

	var snapshot *domain.ShoppingList
	err := c.breaker.Call(func() error {
		return apperrors.WithRetry(ctx, func() error {
			var redeemErr error
			snapshot, _, redeemErr = c.tokens.Redeem(ctx, token, importer.ID)
			return redeemErr
		})
	})
	if err != nil {
		status := "error"
		if apperrors.IsNotFound(err) {
			status = "not_found"
		}
		metrics.RecordOperation("redeem", status, c.now().Sub(start))
		return nil, err
	}

	c.upsertIdentity(ctx, importer, "redeem")

	imported := snapshot.Clone()
	imported.ID = c.newID()
	imported.OwnerUserID = importer.ID
	imported.CreatedAt = c.now().UTC()
	imported.Total = imported.SumTotals()

	if err := apperrors.WithRetry(ctx, func() error {
		if saveErr := c.lists.Save(ctx, imported); saveErr != nil {
			return apperrors.NewStorageError(saveErr)
		}
		return nil
	}); err != nil {
		metrics.RecordOperation("redeem", "error", c.now().Sub(start))
		return nil, err
	}

	c.notifier.ListImported(importer.ID, imported)
	metrics.RecordOperation("redeem", "ok", c.now().Sub(start))

	return imported, nil
}

// Preview returns the shared snapshot without recording a redemption, serving
// the share page a viewer sees before importing. Reads go through the
// snapshot cache when one is wired.
func (c *Coordinator) Preview(ctx context.Context, token string) (*domain.ShoppingList, error) {
	if token == "" {
		return nil, apperrors.NewValidationError("share token is required")
	}

	if cached, err := c.cache.Get(ctx, token); err != nil {
		c.log.Warn("snapshot cache read failed", slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	snapshot, err := c.tokens.Snapshot(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, token, snapshot); err != nil {
		c.log.Warn("failed to cache share snapshot", slog.Any("error", err))
	}

	return snapshot, nil
}

func (c *Coordinator) issue(ctx context.Context, list *domain.ShoppingList, issuerID int64) (*ShareResult, error) {
	issueFn := func(ctx context.Context) (*domain.ShareToken, error) {
		var token *domain.ShareToken
		err := apperrors.WithRetry(ctx, func() error {
			var issueErr error
			token, issueErr = c.tokens.Issue(ctx, list, issuerID)
			return issueErr
		})
		return token, err
	}

	if c.idem == nil || c.cfg.IssueTTL <= 0 {
		token, err := issueFn(ctx)
		if err != nil {
			return nil, err
		}
		return &ShareResult{Token: token}, nil
	}

	result, err := c.idem.IssueOnce(ctx, idempotency.ShareKey(issuerID, list.ID), c.cfg.IssueTTL, issueFn)
	if err != nil {
		return nil, err
	}

	return &ShareResult{Token: result.Token, Replayed: result.FromCache}, nil
}

// upsertIdentity is fire-and-log: identity tracking must never fail the
// enclosing share or redeem flow.
func (c *Coordinator) upsertIdentity(ctx context.Context, identity domain.Identity, flow string) {
	if c.directory == nil {
		return
	}

	if _, err := c.directory.Upsert(ctx, identity); err != nil {
		c.log.Warn("best-effort identity upsert failed",
			slog.String("flow", flow),
			slog.Int64("user_id", identity.ID),
			slog.Any("error", err),
		)
	}
}

// validateTotals rejects lists whose line totals disagree with quantity times
// unit price, or whose grand total disagrees with the sum of the lines.
func validateTotals(list *domain.ShoppingList) error {
	for i := range list.Items {
		item := &list.Items[i]
		if item.LineTotal != domain.LineTotalFor(item.Quantity, item.UnitPrice) {
			return apperrors.NewValidationError(fmt.Sprintf("line total mismatch for %q", item.RawName))
		}
	}
	if list.Total != list.SumTotals() {
		return apperrors.NewValidationError("list total does not match line totals")
	}
	return nil
}

func (c *Coordinator) deepLink(token string) string {
	if c.cfg.BotUsername == "" {
		return fmt.Sprintf("/shared/%s", token)
	}

	return fmt.Sprintf("https://t.me/%s?startapp=%s", c.cfg.BotUsername, token)
}
