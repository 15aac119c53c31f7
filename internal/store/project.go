package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
)

type ProjectStore struct {
	h *database.Handle
}

func NewProjectStore(h *database.Handle) *ProjectStore {
	return &ProjectStore{h: h}
}

// --- Project methods ---

var projectUpdatable = map[string]bool{
	"name": true, "description": true, "status": true, "due_date": true, "synced": true,
}

func scanProject(scanner interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	var description sql.NullString
	var dueDate sql.NullInt64
	var synced int

	err := scanner.Scan(&p.ID, &p.Name, &description, &p.Status, &dueDate, &synced, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	if dueDate.Valid {
		p.DueDate = &dueDate.Int64
	}
	p.Synced = synced != 0
	return &p, nil
}

const projectCols = `id, name, description, status, due_date, synced, created_at, updated_at`

func (s *ProjectStore) Create(ctx context.Context, p model.Project) (*model.Project, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, ErrNameRequired
	}
	if p.Status == "" {
		p.Status = model.ProjectPlanning
	}
	if !p.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if p.ID == "" {
		p.ID = newID()
	}
	now := nowMillis()

	if _, err := db.ExecContext(ctx,
		`INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Description), string(p.Status), p.DueDate, boolInt(p.Synced), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.Get(ctx, p.ID)
}

func (s *ProjectStore) Get(ctx context.Context, id string) (*model.Project, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *ProjectStore) List(ctx context.Context) ([]model.Project, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *ProjectStore) Update(ctx context.Context, id string, p Patch) (*model.Project, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	if status, ok := p["status"]; ok {
		if !projectStatus(status).Valid() {
			return nil, ErrInvalidStatus
		}
		p["status"] = string(projectStatus(status))
	}
	query, args, err := buildUpdate("projects", projectUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func projectStatus(v any) model.ProjectStatus {
	switch x := v.(type) {
	case string:
		return model.ProjectStatus(x)
	case model.ProjectStatus:
		return x
	}
	return ""
}

// Delete removes the project and all of its requirements.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete project: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_items WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete project items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return tx.Commit()
}

// --- Project item methods ---

var projectItemUpdatable = map[string]bool{
	"name": true, "inventory_item_id": true, "is_fulfilled": true, "notes": true, "synced": true,
}

func scanProjectItem(scanner interface{ Scan(...any) error }) (*model.ProjectItem, error) {
	var pi model.ProjectItem
	var itemID, notes sql.NullString
	var fulfilled, synced int

	err := scanner.Scan(&pi.ID, &pi.ProjectID, &itemID, &pi.Name, &fulfilled, &notes, &synced, &pi.CreatedAt, &pi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pi.InventoryItemID = refPtr(itemID)
	pi.Notes = notes.String
	pi.IsFulfilled = fulfilled != 0
	pi.Synced = synced != 0
	return &pi, nil
}

const projectItemCols = `id, project_id, inventory_item_id, name, is_fulfilled, notes, synced, created_at, updated_at`

// CreateItem adds a requirement to a project. A requirement linked to an
// inventory item starts fulfilled.
func (s *ProjectStore) CreateItem(ctx context.Context, pi model.ProjectItem) (*model.ProjectItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if pi.Name == "" {
		return nil, ErrNameRequired
	}
	if pi.ID == "" {
		pi.ID = newID()
	}
	if pi.InventoryItemID != nil && *pi.InventoryItemID != "" {
		pi.IsFulfilled = true
	}
	now := nowMillis()

	if _, err := db.ExecContext(ctx,
		`INSERT INTO project_items (`+projectItemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pi.ID, pi.ProjectID, nullRef(pi.InventoryItemID), pi.Name, boolInt(pi.IsFulfilled),
		nullString(pi.Notes), boolInt(pi.Synced), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert project item: %w", err)
	}
	return s.GetItem(ctx, pi.ID)
}

func (s *ProjectStore) GetItem(ctx context.Context, id string) (*model.ProjectItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+projectItemCols+` FROM project_items WHERE id = ?`, id)
	pi, err := scanProjectItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project item: %w", err)
	}
	return pi, nil
}

func (s *ProjectStore) ListItems(ctx context.Context, projectID string) ([]model.ProjectItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+projectItemCols+` FROM project_items WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list project items: %w", err)
	}
	defer rows.Close()

	var items []model.ProjectItem
	for rows.Next() {
		pi, err := scanProjectItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project item: %w", err)
		}
		items = append(items, *pi)
	}
	return items, rows.Err()
}

func (s *ProjectStore) UpdateItem(ctx context.Context, id string, p Patch) (*model.ProjectItem, error) {
	db, err := s.h.DB()
	if err != nil {
		return nil, err
	}
	if name, ok := p["name"]; ok && (name == nil || name == "") {
		return nil, ErrNameRequired
	}
	query, args, err := buildUpdate("project_items", projectItemUpdatable, p, true)
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update project item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetItem(ctx, id)
}

// LinkItem fulfils a requirement with an inventory item, or unlinks it when
// itemID is empty.
func (s *ProjectStore) LinkItem(ctx context.Context, id, itemID string) (*model.ProjectItem, error) {
	if itemID == "" {
		return s.UpdateItem(ctx, id, Patch{"inventory_item_id": nil, "is_fulfilled": false})
	}
	return s.UpdateItem(ctx, id, Patch{"inventory_item_id": itemID, "is_fulfilled": true})
}

func (s *ProjectStore) DeleteItem(ctx context.Context, id string) error {
	db, err := s.h.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM project_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project item: %w", err)
	}
	return nil
}
