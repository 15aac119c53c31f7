package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type LocationStore struct {
	h *database.Handle
}

func NewLocationStore(h *database.Handle) *LocationStore {
	return &LocationStore{h: h}
}

var locationUpdatable = map[string]bool{"name": true}

func scanLocation(scanner interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	if err := scanner.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

const locationCols = `id, name, created_at, updated_at`

func (s *LocationStore) Create(ctx context.Context, l model.Location) (*model.Location, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if l.Name == "" {
		return nil, ErrNameRequired
	}
	if l.ID == "" {
		l.ID = newID()
	}
	now := nowMillis()

	if _, err := db.ExecContext(ctx,
		`INSERT INTO locations (`+locationCols+`) VALUES (?, ?, ?, ?)`,
		l.ID, l.Name, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return s.Get(ctx, l.ID)
}

func (s *LocationStore) Get(ctx context.Context, id string) (*model.Location, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+locationCols+` FROM locations WHERE id = ?`, id)
	l, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

func (s *LocationStore) List(ctx context.Context) ([]model.Location, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+locationCols+` FROM locations ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

func (s *LocationStore) Update(ctx context.Context, id string, p Patch) (*model.Location, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	query, args, err := buildUpdate("locations", locationUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// Delete removes the location and detaches items and containers that
// referenced it.
func (s *LocationStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete location: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	for _, table := range []string{"items", "containers"} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET location_id = NULL, updated_at = MAX(?, updated_at + 1) WHERE location_id = ?`,
			now, id,
		); err != nil {
			return fmt.Errorf("detach %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return tx.Commit()
}
