// Package catalog provides the read-only price catalog with fuzzy lookup.
package catalog

import (
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// similarityCutoff is the minimum fuzzy score for a match to count.
const similarityCutoff = 0.75

// Catalog serves lookups against an immutable snapshot. Reload swaps the
// snapshot atomically, so concurrent readers never observe a partial load.
type Catalog struct {
	snapshot atomic.Pointer[snapshot]
	log      *slog.Logger
}

type snapshot struct {
	entries map[string]*domain.CatalogEntry
	// synonyms maps a normalized alias (ru/uz) to the entry key.
	synonyms map[string]string
	// keys holds every matchable normalized name for fuzzy scans,
	// sorted for deterministic iteration.
	keys []string
}

// New creates an empty catalog. Use Load or Swap to install a snapshot.
func New(log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}

	c := &Catalog{log: log}
	c.snapshot.Store(&snapshot{
		entries:  map[string]*domain.CatalogEntry{},
		synonyms: map[string]string{},
	})

	return c
}

// Lookup resolves a raw product name to a catalog entry. A miss is normal
// output, not an error.
func (c *Catalog) Lookup(raw string) (*domain.CatalogEntry, bool) {
	snap := c.snapshot.Load()
	name := Normalize(raw)
	if name == "" {
		return nil, false
	}

	// Exact match: entry keys first, then synonyms.
	if entry, ok := snap.entries[name]; ok {
		return entry, true
	}
	if key, ok := snap.synonyms[name]; ok {
		if entry, ok := snap.entries[key]; ok {
			return entry, true
		}
	}

	return snap.fuzzyLookup(name)
}

// Search returns up to limit entries whose name or synonym contains query.
// Used by the catalog search endpoint.
func (c *Catalog) Search(query string, limit int) []*domain.CatalogEntry {
	snap := c.snapshot.Load()
	q := Normalize(query)
	if q == "" || limit <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var results []*domain.CatalogEntry

	for _, key := range snap.keys {
		if len(results) >= limit {
			break
		}
		if !strings.Contains(key, q) {
			continue
		}

		entryKey := key
		if mapped, ok := snap.synonyms[key]; ok {
			entryKey = mapped
		}
		if seen[entryKey] {
			continue
		}

		if entry, ok := snap.entries[entryKey]; ok {
			seen[entryKey] = true
			results = append(results, entry)
		}
	}

	return results
}

// Size reports the number of catalog entries in the current snapshot.
func (c *Catalog) Size() int {
	return len(c.snapshot.Load().entries)
}

func (s *snapshot) fuzzyLookup(name string) (*domain.CatalogEntry, bool) {
	best := ""
	bestScore := 0.0

	for _, key := range s.keys {
		score := similarity(name, key)
		if score < similarityCutoff {
			continue
		}

		// Ties: highest score, then shortest catalog name, then lexical order.
		if score > bestScore ||
			(score == bestScore && (best == "" || len(key) < len(best) ||
				(len(key) == len(best) && key < best))) {
			best = key
			bestScore = score
		}
	}

	if best == "" {
		return nil, false
	}

	entryKey := best
	if mapped, ok := s.synonyms[best]; ok {
		entryKey = mapped
	}

	entry, ok := s.entries[entryKey]
	return entry, ok
}

// Normalize lowercases and collapses internal whitespace.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func newSnapshot(entries map[string]*domain.CatalogEntry, synonyms map[string]string) *snapshot {
	keys := make([]string, 0, len(entries)+len(synonyms))
	for key := range entries {
		keys = append(keys, key)
	}
	for alias := range synonyms {
		if _, shadowed := entries[alias]; !shadowed {
			keys = append(keys, alias)
		}
	}
	sort.Strings(keys)

	return &snapshot{entries: entries, synonyms: synonyms, keys: keys}
}
