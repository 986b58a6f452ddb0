// Package resolver turns raw item strings into priced shopping lists.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
)

// MaxItemLength bounds a single raw item; oversized input is rejected before
// any catalog work happens.
const MaxItemLength = 200

// PriceLookup is the catalog capability the resolver depends on. A miss is
// normal output, never an error.
type PriceLookup interface {
	Lookup(raw string) (*domain.CatalogEntry, bool)
}

// Resolver builds ShoppingLists from raw input preserving item order.
type Resolver struct {
	catalog PriceLookup
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
}

// New constructs a Resolver over the given catalog.
func New(catalog PriceLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{
		catalog: catalog,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Resolve maps each raw item to a LineItem in input order. Unresolved items
// keep their raw text with zero price; empty input yields an empty list.
func (r *Resolver) Resolve(ctx context.Context, ownerUserID int64, rawItems []string) (*domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := &domain.ShoppingList{
		ID:          r.newID(),
		OwnerUserID: ownerUserID,
		Items:       make([]domain.LineItem, 0, len(rawItems)),
		CreatedAt:   r.now().UTC(),
	}

	for i, raw := range rawItems {
		if utf8.RuneCountInString(raw) > MaxItemLength {
			return nil, apperrors.NewValidationError(fmt.Sprintf("item %d exceeds %d characters", i, MaxItemLength))
		}

		item := r.resolveItem(raw)
		list.Items = append(list.Items, item)
		list.Total += item.LineTotal
	}

	return list, nil
}

func (r *Resolver) resolveItem(raw string) domain.LineItem {
	quantity, name := extractQuantity(raw)

	entry, ok := r.catalog.Lookup(name)
	if !ok {
		return domain.LineItem{
			RawName:  raw,
			Quantity: quantity,
			Resolved: false,
		}
	}

	return domain.LineItem{
		RawName:      raw,
		MatchedEntry: entry,
		Quantity:     quantity,
		UnitPrice:    entry.UnitPrice,
		LineTotal:    domain.LineTotalFor(quantity, entry.UnitPrice),
		Resolved:     true,
	}
}
