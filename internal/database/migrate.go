package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// column is an additive column migration. Databases written by app versions
// that predate versioned migrations may already carry some of these, so each
// step inspects the table before altering it.
type column struct {
	table string
	name  string
	def   string
}

func init() {
	goose.AddNamedMigrationContext("00002_item_purchase_columns.go", addColumns(
		column{"items", "min_quantity", "INTEGER"},
		column{"items", "purchase_date", "INTEGER"},
		column{"items", "purchase_price", "REAL"},
		column{"items", "purchase_store", "TEXT"},
		column{"items", "warranty_months", "INTEGER"},
	), nil)

	goose.AddNamedMigrationContext("00003_photo_and_legacy_columns.go", addColumns(
		column{"items", "location_name", "TEXT"},
		column{"containers", "local_photo_uri", "TEXT"},
		column{"receipts", "local_photo_uri", "TEXT"},
	), nil)
}

func addColumns(cols ...column) goose.GoMigrationContext {
	return func(ctx context.Context, tx *sql.Tx) error {
		seen := make(map[string]map[string]bool)
		for _, c := range cols {
			existing, ok := seen[c.table]
			if !ok {
				var err error
				existing, err = tableColumns(ctx, tx, c.table)
				if err != nil {
					return err
				}
				seen[c.table] = existing
			}
			if existing[c.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.def)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", c.table, c.name, err)
			}
			existing[c.name] = true
		}
		return nil
	}
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
