package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	// A ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		t.Fatalf("listing tables: %v", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scanning table name: %v", err)
		}
		names[name] = true
	}
	return names
}

func TestMigrateUp(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	tables := tableNames(t, db)
	for _, want := range []string{"photos", "tracking_records", "photo_groups", "photo_group_members", "operations", "schema_migrations"} {
		if !tables[want] {
			t.Errorf("table %s missing after migration", want)
		}
	}

	// A second run is a no-op.
	if err := MigrateUp(db); err != nil {
		t.Fatalf("repeated MigrateUp() error = %v", err)
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("unmigrated database reports missing version", func(t *testing.T) {
		db := openTestDB(t)
		if err := CheckDBMigrationStatus(db); err == nil {
			t.Fatal("CheckDBMigrationStatus() passed on an empty database")
		}
	})

	t.Run("migrated database passes", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Fatalf("CheckDBMigrationStatus() error = %v", err)
		}
	})
}
