package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type ContainerStore struct {
	h *database.Handle
}

func NewContainerStore(h *database.Handle) *ContainerStore {
	return &ContainerStore{h: h}
}

var containerUpdatable = map[string]bool{
	"name": true, "location_id": true, "photo_url": true, "local_photo_uri": true, "synced": true,
}

func scanContainer(scanner interface{ Scan(...any) error }) (*model.Container, error) {
	var c model.Container
	var locationID, photoURL, localPhoto sql.NullString
	var synced int

	err := scanner.Scan(&c.ID, &c.Name, &locationID, &photoURL, &localPhoto, &synced, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LocationID = refPtr(locationID)
	c.PhotoURL = photoURL.String
	c.LocalPhotoURI = localPhoto.String
	c.Synced = synced != 0
	return &c, nil
}

const containerCols = `id, name, location_id, photo_url, local_photo_uri, synced, created_at, updated_at`

func (s *ContainerStore) Create(ctx context.Context, c model.Container) (*model.Container, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, ErrNameRequired
	}
	if c.ID == "" {
		c.ID = newID()
	}
	now := nowMillis()

	_, err = db.ExecContext(ctx,
		`INSERT INTO containers (`+containerCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullRef(c.LocationID), nullString(c.PhotoURL), nullString(c.LocalPhotoURI),
		boolInt(c.Synced), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert container: %w", err)
	}
	return s.Get(ctx, c.ID)
}

func (s *ContainerStore) Get(ctx context.Context, id string) (*model.Container, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+containerCols+` FROM containers WHERE id = ?`, id)
	c, err := scanContainer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return c, nil
}

func (s *ContainerStore) List(ctx context.Context) ([]model.Container, error) {
	return s.list(ctx, `ORDER BY name COLLATE NOCASE ASC`)
}

func (s *ContainerStore) ListByLocation(ctx context.Context, locationID string) ([]model.Container, error) {
	return s.list(ctx, `WHERE location_id = ? ORDER BY name COLLATE NOCASE ASC`, locationID)
}

func (s *ContainerStore) ListUnsynced(ctx context.Context) ([]model.Container, error) {
	return s.list(ctx, `WHERE synced = 0 ORDER BY updated_at ASC`)
}

func (s *ContainerStore) list(ctx context.Context, clause string, args ...any) ([]model.Container, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+containerCols+` FROM containers `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	var containers []model.Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		containers = append(containers, *c)
	}
	return containers, rows.Err()
}

func (s *ContainerStore) Update(ctx context.Context, id string, p Patch) (*model.Container, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	query, args, err := buildUpdate("containers", containerUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update container: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func (s *ContainerStore) MarkSynced(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE containers SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark container synced: %w", err)
	}
	return nil
}

// Delete removes the container. Items inside it are detached, not deleted.
func (s *ContainerStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete container: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET container_id = NULL, updated_at = MAX(?, updated_at + 1) WHERE container_id = ?`,
		nowMillis(), id,
	); err != nil {
		return fmt.Errorf("detach items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}
	return tx.Commit()
}
