package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

// BarcodeCache keeps product lookups so scanning a known barcode works
// offline.
type BarcodeCache struct {
	h *database.Handle
}

func NewBarcodeCache(h *database.Handle) *BarcodeCache {
	return &BarcodeCache{h: h}
}

func (c *BarcodeCache) Put(ctx context.Context, barcode string, payload json.RawMessage) error {
	db, err := c.h.DB()
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("cache barcode %q: payload is not valid JSON", barcode)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO barcode_cache (barcode, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(barcode) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		barcode, string(payload), nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("cache barcode %q: %w", barcode, err)
	}
	return nil
}

// Get returns the cached lookup, or nil when it is missing or older than
// maxAge. A zero maxAge never expires entries.
func (c *BarcodeCache) Get(ctx context.Context, barcode string, maxAge time.Duration) (*model.BarcodeLookup, error) {
	db, err := c.h.DB()
	if err != nil {
		return nil, err
	}
	var l model.BarcodeLookup
	var payload string
	err = db.QueryRowContext(ctx,
		`SELECT barcode, payload, cached_at FROM barcode_cache WHERE barcode = ?`, barcode,
	).Scan(&l.Barcode, &payload, &l.CachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get barcode %q: %w", barcode, err)
	}
	if maxAge > 0 && nowMillis()-l.CachedAt > maxAge.Milliseconds() {
		return nil, nil
	}
	l.Payload = json.RawMessage(payload)
	return &l, nil
}

// Prune deletes entries older than maxAge and returns how many were removed.
func (c *BarcodeCache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	db, err := c.h.DB()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx,
		`DELETE FROM barcode_cache WHERE cached_at < ?`, nowMillis()-maxAge.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("prune barcode cache: %w", err)
	}
	return result.RowsAffected()
}
