package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// ErrUserNotFound is returned when no record exists for the requested id.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines persistence operations for Telegram users.
type UserRepository interface {
	// Upsert creates the user on first contact or merges the identity into the
	// existing record. Empty identity fields never overwrite stored values;
	// updated_at and last_seen are always bumped. The merge happens in a
	// single statement, so concurrent upserts for the same id cannot lose
	// each other's fields or expose a half-updated row.
	Upsert(ctx context.Context, identity domain.Identity) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) Upsert(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	const query = `
		INSERT INTO users (id, username, first_name, last_name, language, created_at, updated_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, now(), now(), now())
		ON CONFLICT (id) DO UPDATE SET
			username   = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
			last_name  = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
			language   = COALESCE(NULLIF(EXCLUDED.language, ''), users.language),
			updated_at = now(),
			last_seen  = now()
		RETURNING id, username, first_name, last_name, language, is_blocked, created_at, updated_at, last_seen
	`

	row := r.db.QueryRowContext(ctx, query,
		identity.ID,
		identity.Username,
		identity.FirstName,
		identity.LastName,
		identity.Language,
	)

	user, err := scanUser(row)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert user", slog.Int64("user_id", identity.ID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
		SELECT id, username, first_name, last_name, language, is_blocked, created_at, updated_at, last_seen
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Language,
		&user.IsBlocked,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastSeen,
	); err != nil {
		return nil, err
	}

	return &user, nil
}
