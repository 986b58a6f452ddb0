package sharing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
)

// PostgresStore keeps share tokens in the share_tokens table with the list
// snapshot serialized as JSONB. redeemed_by is a BIGINT[] treated as a set.
type PostgresStore struct {
	db  *sql.DB
	gen TokenGenerator
	log *slog.Logger
	ttl time.Duration
}

// NewPostgresStore constructs the store. ttl of zero disables expiry.
func NewPostgresStore(db *sql.DB, gen TokenGenerator, log *slog.Logger, ttl time.Duration) *PostgresStore {
	if gen == nil {
		gen = RandomTokenGenerator{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore{db: db, gen: gen, log: log, ttl: ttl}
}

// Issue inserts the snapshot under a generated token, regenerating on the
// (theoretical) collision instead of overwriting another token's snapshot.
func (s *PostgresStore) Issue(ctx context.Context, list *domain.ShoppingList, issuerUserID int64) (*domain.ShareToken, error) {
	if list == nil {
		return nil, apperrors.NewValidationError("list is required")
	}

	snapshot, err := json.Marshal(list.Clone())
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	const query = `
		INSERT INTO share_tokens (token, list_id, issuer_user_id, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO NOTHING
	`

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token := s.gen.Generate()
		createdAt := time.Now().UTC()

		res, err := s.db.ExecContext(ctx, query, token, list.ID, issuerUserID, snapshot, createdAt)
		if err != nil {
			s.log.Error("failed to insert share token", slog.String("list_id", list.ID), slog.Any("error", err))
			return nil, apperrors.NewStorageError(err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		if affected == 0 {
			s.log.Warn("share token collision, regenerating", slog.Int("attempt", attempt+1))
			continue
		}

		return &domain.ShareToken{
			Token:        token,
			ListID:       list.ID,
			IssuerUserID: issuerUserID,
			CreatedAt:    createdAt,
			RedeemedBy:   nil,
		}, nil
	}

	return nil, apperrors.NewTokenCollisionError(maxIssueAttempts)
}

// Redeem loads the snapshot and appends userID to redeemed_by unless already
// present. The snapshot read does not serialize on the redeemed_by update.
func (s *PostgresStore) Redeem(ctx context.Context, token string, userID int64) (*domain.ShoppingList, *domain.ShareToken, error) {
	if token == "" {
		return nil, nil, apperrors.NewValidationError("token is required")
	}

	const selectQuery = `
		SELECT token, list_id, issuer_user_id, snapshot, created_at, redeemed_by
		FROM share_tokens
		WHERE token = $1
	`

	row := s.db.QueryRowContext(ctx, selectQuery, token)

	var (
		record     domain.ShareToken
		snapshot   []byte
		redeemedBy pq.Int64Array
	)
	if err := row.Scan(
		&record.Token,
		&record.ListID,
		&record.IssuerUserID,
		&snapshot,
		&record.CreatedAt,
		&redeemedBy,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperrors.NewNotFoundError("share token")
		}

		s.log.Error("failed to fetch share token", slog.Any("error", err))
		return nil, nil, apperrors.NewStorageError(err)
	}

	if s.ttl > 0 && time.Since(record.CreatedAt) > s.ttl {
		return nil, nil, apperrors.NewNotFoundError("share token")
	}

	var list domain.ShoppingList
	if err := json.Unmarshal(snapshot, &list); err != nil {
		s.log.Error("corrupt share snapshot", slog.String("token_list_id", record.ListID), slog.Any("error", err))
		return nil, nil, apperrors.NewStorageError(err)
	}

	// Set semantics in one statement: append only when absent, so concurrent
	// redemptions by the same user still record the id once.
	const updateQuery = `
		UPDATE share_tokens
		SET redeemed_by = array_append(redeemed_by, $2)
		WHERE token = $1 AND NOT ($2 = ANY(redeemed_by))
	`

	if _, err := s.db.ExecContext(ctx, updateQuery, token, userID); err != nil {
		s.log.Error("failed to record redemption", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, nil, apperrors.NewStorageError(err)
	}

	record.RedeemedBy = appendUnique(redeemedBy, userID)

	return &list, &record, nil
}

// Snapshot reads the stored list copy without touching redeemed_by.
func (s *PostgresStore) Snapshot(ctx context.Context, token string) (*domain.ShoppingList, error) {
	if token == "" {
		return nil, apperrors.NewValidationError("token is required")
	}

	const query = `
		SELECT snapshot, created_at
		FROM share_tokens
		WHERE token = $1
	`

	var (
		snapshot  []byte
		createdAt time.Time
	)
	if err := s.db.QueryRowContext(ctx, query, token).Scan(&snapshot, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("share token")
		}

		s.log.Error("failed to fetch share snapshot", slog.Any("error", err))
		return nil, apperrors.NewStorageError(err)
	}

	if s.ttl > 0 && time.Since(createdAt) > s.ttl {
		return nil, apperrors.NewNotFoundError("share token")
	}

	var list domain.ShoppingList
	if err := json.Unmarshal(snapshot, &list); err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	return &list, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}

	return append(ids, id)
}
