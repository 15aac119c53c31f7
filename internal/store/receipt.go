package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type ReceiptStore struct {
	h *database.Handle
}

func NewReceiptStore(h *database.Handle) *ReceiptStore {
	return &ReceiptStore{h: h}
}

// Receipts carry no updated_at, so updates never bump a timestamp.
var receiptUpdatable = map[string]bool{"photo_url": true, "local_photo_uri": true, "synced": true}

func scanReceipt(scanner interface{ Scan(...any) error }) (*model.Receipt, error) {
	var r model.Receipt
	var photoURL, localPhoto sql.NullString
	var synced int

	if err := scanner.Scan(&r.ID, &r.ItemID, &photoURL, &localPhoto, &synced, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.PhotoURL = photoURL.String
	r.LocalPhotoURI = localPhoto.String
	r.Synced = synced != 0
	return &r, nil
}

const receiptCols = `id, item_id, photo_url, local_photo_uri, synced, created_at`

func (s *ReceiptStore) Create(ctx context.Context, r model.Receipt) (*model.Receipt, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = newID()
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO receipts (`+receiptCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, nullString(r.PhotoURL), nullString(r.LocalPhotoURI), boolInt(r.Synced), nowMillis(),
	); err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}
	return s.Get(ctx, r.ID)
}

func (s *ReceiptStore) Get(ctx context.Context, id string) (*model.Receipt, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+receiptCols+` FROM receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return r, nil
}

func (s *ReceiptStore) ListByItem(ctx context.Context, itemID string) ([]model.Receipt, error) {
	return s.list(ctx, `WHERE item_id = ? ORDER BY created_at ASC`, itemID)
}

func (s *ReceiptStore) ListUnsynced(ctx context.Context) ([]model.Receipt, error) {
	return s.list(ctx, `WHERE synced = 0 ORDER BY created_at ASC`)
}

func (s *ReceiptStore) list(ctx context.Context, clause string, args ...any) ([]model.Receipt, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+receiptCols+` FROM receipts `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []model.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, *r)
	}
	return receipts, rows.Err()
}

func (s *ReceiptStore) Update(ctx context.Context, id string, p Patch) (*model.Receipt, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	query, args, err := buildUpdate("receipts", receiptUpdatable, p, false)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update receipt: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func (s *ReceiptStore) MarkSynced(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE receipts SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark receipt synced: %w", err)
	}
	return nil
}

func (s *ReceiptStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}
