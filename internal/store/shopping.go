package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type ShoppingStore struct {
	h *database.Handle
}

func NewShoppingStore(h *database.Handle) *ShoppingStore {
	return &ShoppingStore{h: h}
}

var shoppingUpdatable = map[string]bool{
	"item_name": true, "quantity": true, "is_purchased": true, "synced": true,
}

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var purchased, synced int

	err := scanner.Scan(&item.ID, &item.ItemName, &item.Quantity, &purchased, &synced, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.IsPurchased = purchased != 0
	item.Synced = synced != 0
	return &item, nil
}

const shoppingCols = `id, item_name, quantity, is_purchased, synced, created_at, updated_at`

// shoppingOrder lists rows in creation order; rowid breaks ties between rows
// created within the same millisecond.
const shoppingOrder = `ORDER BY created_at ASC, rowid ASC`

func (s *ShoppingStore) Create(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error) {
	if item.ItemName == "" {
		return nil, ErrNameRequired
	}
	if item.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	now := nowMillis()
	return s.insert(ctx, item, now, now)
}

// InsertRemote stores a row that originated on the remote service. It is
// marked synced and keeps the remote updated_at; created_at is clamped so it
// never lies after updated_at. The remote id is reused unless a local row
// already holds it. A row given a fresh id no longer shares its id with the
// remote entry, so later single-item mirror calls for it miss on the remote
// and are left to reconciliation by name.
func (s *ShoppingStore) InsertRemote(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error) {
	if item.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if item.ID != "" {
		existing, err := s.Get(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			item.ID = ""
		}
	}
	item.Synced = true
	createdAt := nowMillis()
	updatedAt := item.UpdatedAt
	if updatedAt == 0 {
		updatedAt = createdAt
	}
	createdAt = min(createdAt, updatedAt)
	return s.insert(ctx, item, createdAt, updatedAt)
}

func (s *ShoppingStore) insert(ctx context.Context, item model.ShoppingItem, createdAt, updatedAt int64) (*model.ShoppingItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = newID()
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO shopping_list (`+shoppingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ItemName, item.Quantity, boolInt(item.IsPurchased), boolInt(item.Synced), createdAt, updatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	return s.Get(ctx, item.ID)
}

func (s *ShoppingStore) Get(ctx context.Context, id string) (*model.ShoppingItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+shoppingCols+` FROM shopping_list WHERE id = ?`, id)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return item, nil
}

// GetByName returns the earliest row with the given name. Later rows sharing
// the name are never chosen.
func (s *ShoppingStore) GetByName(ctx context.Context, name string) (*model.ShoppingItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		`SELECT `+shoppingCols+` FROM shopping_list WHERE item_name = ? `+shoppingOrder+` LIMIT 1`, name)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item by name: %w", err)
	}
	return item, nil
}

func (s *ShoppingStore) List(ctx context.Context) ([]model.ShoppingItem, error) {
	return s.list(ctx, shoppingOrder)
}

func (s *ShoppingStore) ListUnsynced(ctx context.Context) ([]model.ShoppingItem, error) {
	return s.list(ctx, `WHERE synced = 0 `+shoppingOrder)
}

func (s *ShoppingStore) list(ctx context.Context, clause string, args ...any) ([]model.ShoppingItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+shoppingCols+` FROM shopping_list `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ShoppingStore) Update(ctx context.Context, id string, p Patch) (*model.ShoppingItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["item_name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	if q, ok := p["quantity"]; ok {
		n, isInt := intValue(q)
		if !isInt || n < 0 {
			return nil, ErrInvalidQuantity
		}
	}
	query, args, err := buildUpdate("shopping_list", shoppingUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update shopping item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// ApplyRemote overwrites the row with remote values and adopts the remote
// updated_at, leaving the row synced. The row is only written while its
// updated_at is still older than the remote one, so a local edit made after
// the caller read the row wins. It reports whether the row was written.
func (s *ShoppingStore) ApplyRemote(ctx context.Context, id string, quantity int, purchased bool, updatedAt int64) (bool, error) {
	db, err := s.h.DB()
	if err != nil {
		return false, err
	}
	if quantity < 0 {
		return false, ErrInvalidQuantity
	}
	result, err := db.ExecContext(ctx,
		`UPDATE shopping_list SET quantity = ?, is_purchased = ?, synced = 1, updated_at = ? WHERE id = ? AND updated_at < ?`,
		quantity, boolInt(purchased), updatedAt, id, updatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("apply remote shopping item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply remote shopping item: %w", err)
	}
	return n > 0, nil
}

// MarkSynced flags the row as pushed. A remote updated_at newer than the
// local one is adopted; pass 0 to keep the local timestamp.
func (s *ShoppingStore) MarkSynced(ctx context.Context, id string, remoteUpdatedAt int64) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE shopping_list SET synced = 1, updated_at = MAX(updated_at, ?) WHERE id = ?`,
		remoteUpdatedAt, id,
	); err != nil {
		return fmt.Errorf("mark shopping item synced: %w", err)
	}
	return nil
}

func (s *ShoppingStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM shopping_list WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	return nil
}
