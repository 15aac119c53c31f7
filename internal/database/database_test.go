package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dumpSchema(t *testing.T, db *sql.DB) string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'goose_db_version'
		ORDER BY name`)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan table: %v", err)
		}
		tables = append(tables, name)
	}
	rows.Close()

	var b strings.Builder
	for _, table := range tables {
		cols, err := db.Query(`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
		if err != nil {
			t.Fatalf("table info %s: %v", table, err)
		}
		var names []string
		for cols.Next() {
			var name string
			if err := cols.Scan(&name); err != nil {
				t.Fatalf("scan column: %v", err)
			}
			names = append(names, name)
		}
		cols.Close()
		b.WriteString(table + ": " + strings.Join(names, " ") + "\n")
	}
	return b.String()
}

func TestSchemaGolden(t *testing.T) {
	db := openTestDB(t)
	g := goldie.New(t)
	g.Assert(t, "schema", []byte(dumpSchema(t, db)))
}

func TestSetupIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	before := dumpSchema(t, db)

	if err := Setup(db); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if err := Setup(db); err != nil {
		t.Fatalf("third setup: %v", err)
	}

	if after := dumpSchema(t, db); after != before {
		t.Errorf("schema changed after repeated setup:\nbefore:\n%s\nafter:\n%s", before, after)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM locations`).Scan(&count); err != nil {
		t.Fatalf("count locations: %v", err)
	}
	if count != len(BaselineLocations) {
		t.Errorf("locations = %d, want %d (seeding must not repeat)", count, len(BaselineLocations))
	}
}

func TestFreshDatabaseSeedsLocations(t *testing.T) {
	db := openTestDB(t)

	rows, err := db.Query(`SELECT id, name FROM locations ORDER BY id`)
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	defer rows.Close()

	got := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got[id] = name
	}
	for _, loc := range BaselineLocations {
		if got[loc.ID] != loc.Name {
			t.Errorf("location %s = %q, want %q", loc.ID, got[loc.ID], loc.Name)
		}
	}
}

func TestSeedSkippedWhenLocationsExist(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(`DELETE FROM locations`); err != nil {
		t.Fatalf("clear locations: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO locations (id, name, created_at, updated_at) VALUES ('attic', 'Attic', 1, 1)`); err != nil {
		t.Fatalf("insert location: %v", err)
	}

	n, err := seedLocations(db, 2)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 0 {
		t.Errorf("seeded %d locations, want 0", n)
	}
}

// legacySchema mimics a database written before versioned migrations: no
// goose table, some additive columns already present, locations stored only
// on item rows.
const legacySchema = `
CREATE TABLE locations (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL);
CREATE TABLE containers (id TEXT PRIMARY KEY, name TEXT NOT NULL, location_id TEXT, photo_url TEXT, synced INTEGER NOT NULL DEFAULT 0, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL);
CREATE TABLE items (
    id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT, category TEXT,
    location_id TEXT, location_name TEXT, container_id TEXT, photo_url TEXT, local_photo_uri TEXT,
    quantity INTEGER NOT NULL DEFAULT 1, min_quantity INTEGER, barcode TEXT,
    synced INTEGER NOT NULL DEFAULT 0, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL
);
INSERT INTO items (id, name, location_id, location_name, created_at, updated_at) VALUES
    ('i1', 'Drill', 'shed', 'Shed', 1, 1),
    ('i2', 'Saw', 'shed', 'Shed', 1, 1),
    ('i3', 'Lamp', 'den', 'Den', 1, 1),
    ('i4', 'Rope', NULL, NULL, 1, 1);
`

func TestSetupMigratesLegacyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(legacySchema); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}

	if err := Setup(db); err != nil {
		t.Fatalf("setup legacy db: %v", err)
	}

	var warranty sql.NullInt64
	if err := db.QueryRow(`SELECT warranty_months FROM items WHERE id = 'i1'`).Scan(&warranty); err != nil {
		t.Fatalf("new column missing: %v", err)
	}

	rows, err := db.Query(`SELECT id, name FROM locations ORDER BY id`)
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, id+"="+name)
	}
	want := []string{"den=Den", "shed=Shed"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("locations = %v, want %v (no baseline seed when legacy locations exist)", got, want)
	}
}

func TestHandleNotInitialized(t *testing.T) {
	h := NewHandle(":memory:", nil)

	if _, err := h.DB(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("DB() before Initialize err = %v, want ErrNotInitialized", err)
	}
	if h.Initialized() {
		t.Error("expected handle to report not initialized")
	}
}

func TestHandleInitializeOnce(t *testing.T) {
	h := NewHandle(":memory:", nil)
	t.Cleanup(func() { h.Close() })
	ctx := context.Background()

	if err := h.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	first, err := h.DB()
	if err != nil {
		t.Fatalf("db: %v", err)
	}

	if err := h.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	second, _ := h.DB()
	if first != second {
		t.Error("expected Initialize to reuse the existing connection")
	}
}
