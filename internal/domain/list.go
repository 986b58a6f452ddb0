package domain

import (
	"math"
	"time"
)

// CatalogEntry is a priced product from the loaded catalog snapshot.
// Entries are immutable for the lifetime of the snapshot; UnitPrice is in
// integer soums.
type CatalogEntry struct {
	NormalizedName string `json:"normalized_name"`
	DisplayName    string `json:"display_name"`
	UnitPrice      int64  `json:"unit_price"`
	Unit           string `json:"unit"`
}

// LineItem is a single resolved (or unresolved) position of a shopping list.
// It is never mutated after creation; a list is regenerated when inputs change.
type LineItem struct {
	RawName      string        `json:"raw_name"`
	MatchedEntry *CatalogEntry `json:"matched_entry,omitempty"`
	Quantity     float64       `json:"quantity"`
	UnitPrice    int64         `json:"unit_price"`
	LineTotal    int64         `json:"line_total"`
	Resolved     bool          `json:"resolved"`
}

// ShoppingList is an ordered, priced list owned by a single user.
type ShoppingList struct {
	ID          string     `json:"id"`
	OwnerUserID int64      `json:"owner_user_id"`
	Items       []LineItem `json:"items"`
	Total       int64      `json:"total"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ShareToken references an immutable snapshot of a shared list.
// RedeemedBy is a set: repeat redemption by the same user is recorded once.
type ShareToken struct {
	Token        string    `json:"token"`
	ListID       string    `json:"list_id"`
	IssuerUserID int64     `json:"issuer_user_id"`
	CreatedAt    time.Time `json:"created_at"`
	RedeemedBy   []int64   `json:"redeemed_by"`
}

// LineTotalFor computes quantity × unit price rounded to whole soums.
func LineTotalFor(quantity float64, unitPrice int64) int64 {
	return int64(math.Round(quantity * float64(unitPrice)))
}

// Clone returns a deep copy of the list so the snapshot stays independent of
// later edits to the original.
func (l *ShoppingList) Clone() *ShoppingList {
	if l == nil {
		return nil
	}

	cp := *l
	cp.Items = make([]LineItem, len(l.Items))
	for i, item := range l.Items {
		cp.Items[i] = item
		if item.MatchedEntry != nil {
			entry := *item.MatchedEntry
			cp.Items[i].MatchedEntry = &entry
		}
	}

	return &cp
}

// SumTotals recomputes the list total from its line items.
func (l *ShoppingList) SumTotals() int64 {
	var total int64
	for _, item := range l.Items {
		total += item.LineTotal
	}

	return total
}
