package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// ErrListNotFound is returned when no list exists for the requested id.
var ErrListNotFound = errors.New("shopping list not found")

// ListRepository persists shopping lists. Lists are immutable snapshots:
// Save inserts, re-saving the same id replaces the stored snapshot wholesale.
type ListRepository interface {
	Save(ctx context.Context, list *domain.ShoppingList) error
	FindByID(ctx context.Context, id string) (*domain.ShoppingList, error)
}

type listRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewListRepository creates a SQL-backed list repository.
func NewListRepository(db *sql.DB, log *slog.Logger) ListRepository {
	return &listRepository{db: db, log: log}
}

func (r *listRepository) Save(ctx context.Context, list *domain.ShoppingList) error {
	if list == nil {
		return errors.New("list is nil")
	}

	items, err := json.Marshal(list.Items)
	if err != nil {
		return fmt.Errorf("encode list items: %w", err)
	}

	const query = `
		INSERT INTO shopping_lists (id, owner_user_id, items, total, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			total = EXCLUDED.total
	`

	if _, err := r.db.ExecContext(ctx, query, list.ID, list.OwnerUserID, items, list.Total, list.CreatedAt); err != nil {
		if r.log != nil {
			r.log.Error("failed to save list", slog.String("list_id", list.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert list: %w", err)
	}

	return nil
}

func (r *listRepository) FindByID(ctx context.Context, id string) (*domain.ShoppingList, error) {
	const query = `
		SELECT id, owner_user_id, items, total, created_at
		FROM shopping_lists
		WHERE id = $1
	`

	var (
		list  domain.ShoppingList
		items []byte
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&list.ID,
		&list.OwnerUserID,
		&items,
		&list.Total,
		&list.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch list", slog.String("list_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select list: %w", err)
	}

	if err := json.Unmarshal(items, &list.Items); err != nil {
		return nil, fmt.Errorf("decode list items: %w", err)
	}

	return &list, nil
}

// MemoryListRepository is the in-process ListRepository used when Postgres
// is not configured.
type MemoryListRepository struct {
	mu    sync.RWMutex
	lists map[string]*domain.ShoppingList
}

func NewMemoryListRepository() *MemoryListRepository {
	return &MemoryListRepository{lists: make(map[string]*domain.ShoppingList)}
}

func (r *MemoryListRepository) Save(_ context.Context, list *domain.ShoppingList) error {
	if list == nil {
		return errors.New("list is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[list.ID] = list.Clone()

	return nil
}

func (r *MemoryListRepository) FindByID(_ context.Context, id string) (*domain.ShoppingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.lists[id]
	if !ok {
		return nil, ErrListNotFound
	}

	return list.Clone(), nil
}
