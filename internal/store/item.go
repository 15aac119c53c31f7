package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type ItemStore struct {
	h *database.Handle
}

func NewItemStore(h *database.Handle) *ItemStore {
	return &ItemStore{h: h}
}

var itemUpdatable = map[string]bool{
	"name": true, "description": true, "category": true,
	"location_id": true, "container_id": true,
	"photo_url": true, "local_photo_uri": true,
	"quantity": true, "min_quantity": true, "barcode": true,
	"purchase_date": true, "purchase_price": true, "purchase_store": true,
	"warranty_months": true, "synced": true,
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var description, category, photoURL, localPhoto, barcode, purchaseStore sql.NullString
	var locationID, containerID sql.NullString
	var minQty, purchaseDate, warranty sql.NullInt64
	var purchasePrice sql.NullFloat64
	var synced int

	err := scanner.Scan(
		&item.ID, &item.Name, &description, &category, &locationID, &containerID,
		&photoURL, &localPhoto, &item.Quantity, &minQty, &barcode,
		&purchaseDate, &purchasePrice, &purchaseStore, &warranty,
		&synced, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.Category = category.String
	item.LocationID = refPtr(locationID)
	item.ContainerID = refPtr(containerID)
	item.PhotoURL = photoURL.String
	item.LocalPhotoURI = localPhoto.String
	item.Barcode = barcode.String
	item.PurchaseStore = purchaseStore.String
	item.Synced = synced != 0
	if minQty.Valid {
		v := int(minQty.Int64)
		item.MinQuantity = &v
	}
	if purchaseDate.Valid {
		item.PurchaseDate = &purchaseDate.Int64
	}
	if purchasePrice.Valid {
		item.PurchasePrice = &purchasePrice.Float64
	}
	if warranty.Valid {
		v := int(warranty.Int64)
		item.WarrantyMonths = &v
	}
	return &item, nil
}

const itemCols = `id, name, description, category, location_id, container_id, photo_url, local_photo_uri, quantity, min_quantity, barcode, purchase_date, purchase_price, purchase_store, warranty_months, synced, created_at, updated_at`

// Create inserts item, assigning an id when it has none. Timestamps are
// always set to the current time.
func (s *ItemStore) Create(ctx context.Context, item model.Item) (*model.Item, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if item.Name == "" {
		return nil, ErrNameRequired
	}
	if item.ID == "" {
		item.ID = newID()
	}
	now := nowMillis()

	_, err = db.ExecContext(ctx,
		`INSERT INTO items (`+itemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, nullString(item.Description), nullString(item.Category),
		nullRef(item.LocationID), nullRef(item.ContainerID),
		nullString(item.PhotoURL), nullString(item.LocalPhotoURI),
		item.Quantity, item.MinQuantity, nullString(item.Barcode),
		item.PurchaseDate, item.PurchasePrice, nullString(item.PurchaseStore), item.WarrantyMonths,
		boolInt(item.Synced), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.Get(ctx, item.ID)
}

func (s *ItemStore) Get(ctx context.Context, id string) (*model.Item, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *ItemStore) List(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, `ORDER BY name COLLATE NOCASE ASC`)
}

func (s *ItemStore) ListByContainer(ctx context.Context, containerID string) ([]model.Item, error) {
	return s.list(ctx, `WHERE container_id = ? ORDER BY name COLLATE NOCASE ASC`, containerID)
}

func (s *ItemStore) ListByLocation(ctx context.Context, locationID string) ([]model.Item, error) {
	return s.list(ctx, `WHERE location_id = ? ORDER BY name COLLATE NOCASE ASC`, locationID)
}

// FindByBarcode matches barcode exactly. Several items may share one.
func (s *ItemStore) FindByBarcode(ctx context.Context, barcode string) ([]model.Item, error) {
	return s.list(ctx, `WHERE barcode = ? ORDER BY created_at ASC`, barcode)
}

func (s *ItemStore) ListUnsynced(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, `WHERE synced = 0 ORDER BY updated_at ASC`)
}

// ListLowStock returns items whose quantity is at or below their minimum.
func (s *ItemStore) ListLowStock(ctx context.Context) ([]model.Item, error) {
	return s.list(ctx, `WHERE min_quantity IS NOT NULL AND quantity <= min_quantity ORDER BY name COLLATE NOCASE ASC`)
}

func (s *ItemStore) list(ctx context.Context, clause string, args ...any) ([]model.Item, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+itemCols+` FROM items `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Update applies p and returns the updated row, or nil if id does not exist.
func (s *ItemStore) Update(ctx context.Context, id string, p Patch) (*model.Item, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	query, args, err := buildUpdate("items", itemUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// MarkSynced flags the item as pushed without touching updated_at.
func (s *ItemStore) MarkSynced(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE items SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark item synced: %w", err)
	}
	return nil
}

// Delete removes the item with its receipts. Project requirements that were
// fulfilled by it stay, unlinked.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete item: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("delete item receipts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE project_items SET inventory_item_id = NULL, is_fulfilled = 0, updated_at = MAX(?, updated_at + 1)
		 WHERE inventory_item_id = ?`,
		nowMillis(), id,
	); err != nil {
		return fmt.Errorf("unlink project items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return tx.Commit()
}
