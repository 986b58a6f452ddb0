// Package userdir maintains Telegram user identity records.
package userdir

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/internal/repository"
)

// Directory provides upsert semantics over user records. Identity tracking is
// best-effort for the share/redeem flows: callers log failures and move on.
type Directory struct {
	repo repository.UserRepository
	log  *slog.Logger
}

// New constructs a Directory over the given repository.
func New(repo repository.UserRepository, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}

	return &Directory{repo: repo, log: log}
}

// Upsert creates or merges the identity record. A missing id is rejected
// before any storage work happens.
func (d *Directory) Upsert(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if identity.ID == 0 {
		return nil, apperrors.NewValidationError("user id is required")
	}

	user, err := d.repo.Upsert(ctx, identity)
	if err != nil {
		d.log.Error("user upsert failed",
			slog.Int64("user_id", identity.ID),
			slog.Any("error", err),
		)
		return nil, apperrors.NewStorageError(err)
	}

	return user, nil
}

// Lookup returns the stored record for id.
func (d *Directory) Lookup(ctx context.Context, id int64) (*domain.User, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError("user id is required")
	}

	user, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		return nil, apperrors.NewStorageError(err)
	}

	return user, nil
}
