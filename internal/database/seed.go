package database

import (
	"database/sql"
	"fmt"
)

// BaselineLocations are inserted when the locations table is empty so a
// fresh install never presents zero locations.
var BaselineLocations = []struct {
	ID   string
	Name string
}{
	{"loc_kitchen", "Kitchen"},
	{"loc_garage", "Garage"},
	{"loc_basement", "Basement"},
	{"loc_living_room", "Living Room"},
	{"loc_bedroom", "Bedroom"},
	{"loc_office", "Office"},
}

// reconcileLegacyLocations inserts any (location_id, location_name) pair
// stored directly on items whose id is missing from locations.
func reconcileLegacyLocations(db *sql.DB, now int64) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO locations (id, name, created_at, updated_at)
		SELECT location_id, MIN(location_name), ?, ?
		FROM items
		WHERE location_id IS NOT NULL AND location_id <> ''
		  AND location_name IS NOT NULL AND location_name <> ''
		  AND location_id NOT IN (SELECT id FROM locations)
		GROUP BY location_id`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert legacy locations: %w", err)
	}
	return result.RowsAffected()
}

func seedLocations(db *sql.DB, now int64) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM locations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, loc := range BaselineLocations {
		if _, err := tx.Exec(
			`INSERT INTO locations (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			loc.ID, loc.Name, now, now,
		); err != nil {
			return 0, fmt.Errorf("insert location %q: %w", loc.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(BaselineLocations), nil
}
