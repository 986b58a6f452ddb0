package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

// priceFile mirrors the prices.json layout: items keyed by normalized id with
// one or more price quotes, plus per-language synonym maps.
type priceFile struct {
	Items map[string]struct {
		DisplayName string `json:"display_name"`
		Unit        string `json:"unit"`
		Quotes      []struct {
			Price  int64  `json:"price"`
			Source string `json:"source"`
		} `json:"quotes"`
	} `json:"items"`
	Synonyms map[string]map[string]string `json:"synonyms"`
}

// Load reads the price file and atomically installs the parsed snapshot.
// Safe to call concurrently with readers; an error leaves the previous
// snapshot in place.
func (c *Catalog) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read price file %q: %w", path, err)
	}

	var file priceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse price file %q: %w", path, err)
	}

	entries := make(map[string]*domain.CatalogEntry, len(file.Items))
	for id, item := range file.Items {
		if len(item.Quotes) == 0 {
			continue
		}

		// Unit price is the integer average across quotes.
		var sum int64
		for _, quote := range item.Quotes {
			sum += quote.Price
		}

		key := Normalize(id)
		display := item.DisplayName
		if display == "" {
			display = id
		}

		entries[key] = &domain.CatalogEntry{
			NormalizedName: key,
			DisplayName:    display,
			UnitPrice:      sum / int64(len(item.Quotes)),
			Unit:           item.Unit,
		}
	}

	synonyms := make(map[string]string)
	for _, langMap := range file.Synonyms {
		for alias, id := range langMap {
			key := Normalize(id)
			if _, ok := entries[key]; !ok {
				continue
			}
			synonyms[Normalize(alias)] = key
		}
	}

	c.snapshot.Store(newSnapshot(entries, synonyms))
	c.log.Info("price catalog loaded",
		slog.String("path", path),
		slog.Int("entries", len(entries)),
		slog.Int("synonyms", len(synonyms)),
	)

	return nil
}
