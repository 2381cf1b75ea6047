// Package database implements the tracking store on SQLite. It is the
// only component the engine touches through a transaction primitive, and
// only at commit time.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"photodate/internal/database/migrations"
	"photodate/internal/engine"
	"photodate/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements engine.TrackingStore plus the indexing and
// listing operations the scanner and the CLI need.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite tracking store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the store relies on.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite is single-writer, and a ":memory:" database exists per
	// connection. One pooled connection keeps both semantics sane.
	db.SetMaxOpenConns(1)

	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is current without changing it.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteStore implements the engine contract.
var _ engine.TrackingStore = (*SQLiteStore)(nil)

const dateLayout = "2006-01-02"

// Photo operations

// UpsertPhoto inserts a photo row if its filepath is not yet tracked.
// Returns true if a new row was inserted.
func (s *SQLiteStore) UpsertPhoto(p *model.Photo) (bool, error) {
	var suggested any
	if p.SuggestedDate != nil {
		suggested = p.SuggestedDate.Format(dateLayout)
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO photos (id, filepath, base_name, role, suggested_date, status, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Filepath, p.BaseName, string(p.Role), suggested, string(p.Status), p.DiscoveredAt)
	if err != nil {
		return false, fmt.Errorf("inserting photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n == 1, nil
}

// PhotoStatuses returns the status of every tracked photo keyed by
// filepath, so scans can skip known paths without per-file queries.
func (s *SQLiteStore) PhotoStatuses() (map[string]model.PhotoStatus, error) {
	rows, err := s.db.Query(`SELECT filepath, status FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("listing photo statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]model.PhotoStatus)
	for rows.Next() {
		var filepath, status string
		if err := rows.Scan(&filepath, &status); err != nil {
			return nil, fmt.Errorf("scanning photo status: %w", err)
		}
		statuses[filepath] = model.PhotoStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading photo statuses: %w", err)
	}
	return statuses, nil
}

// ListUnitMembers returns the unprocessed members of a unit ordered
// front, back, then variants (by filepath within a role).
func (s *SQLiteStore) ListUnitMembers(baseName string) ([]model.Photo, error) {
	rows, err := s.db.Query(`
		SELECT id, filepath, base_name, role, suggested_date, status, discovered_at
		FROM photos
		WHERE base_name = ? AND status = 'unprocessed'
		ORDER BY CASE role WHEN 'front' THEN 0 WHEN 'back' THEN 1 ELSE 2 END, filepath`,
		baseName)
	if err != nil {
		return nil, fmt.Errorf("listing unit members: %w", err)
	}
	defer rows.Close()

	return scanPhotos(rows)
}

// ListPendingUnits returns all unprocessed photos grouped by base name,
// ordered by base name, for listings and the request layer.
func (s *SQLiteStore) ListPendingUnits() ([]model.PendingUnit, error) {
	rows, err := s.db.Query(`
		SELECT id, filepath, base_name, role, suggested_date, status, discovered_at
		FROM photos
		WHERE status = 'unprocessed'
		ORDER BY base_name, CASE role WHEN 'front' THEN 0 WHEN 'back' THEN 1 ELSE 2 END, filepath`)
	if err != nil {
		return nil, fmt.Errorf("listing pending photos: %w", err)
	}
	defer rows.Close()

	photos, err := scanPhotos(rows)
	if err != nil {
		return nil, err
	}

	var units []model.PendingUnit
	for _, p := range photos {
		if len(units) == 0 || units[len(units)-1].BaseName != p.BaseName {
			units = append(units, model.PendingUnit{BaseName: p.BaseName})
		}
		u := &units[len(units)-1]
		u.Members = append(u.Members, model.PendingPhoto{
			Filepath:      p.Filepath,
			Role:          p.Role,
			SuggestedDate: p.SuggestedDate,
		})
	}
	return units, nil
}

// MarkUnitIgnored marks every unprocessed member of a unit ignored so
// scans and listings skip them. Returns the number of photos affected.
func (s *SQLiteStore) MarkUnitIgnored(baseName string) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE photos SET status = 'ignored'
		WHERE base_name = ? AND status = 'unprocessed'`, baseName)
	if err != nil {
		return 0, fmt.Errorf("marking unit ignored: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking ignore result: %w", err)
	}
	return n, nil
}

// CleanupMissing deletes unprocessed photo rows whose file no longer
// exists on disk. Returns the number of rows removed.
func (s *SQLiteStore) CleanupMissing(exists func(string) bool) (int, error) {
	rows, err := s.db.Query(`SELECT id, filepath FROM photos WHERE status = 'unprocessed'`)
	if err != nil {
		return 0, fmt.Errorf("listing unprocessed photos: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id, filepath string
		if err := rows.Scan(&id, &filepath); err != nil {
			return 0, fmt.Errorf("scanning photo row: %w", err)
		}
		if !exists(filepath) {
			missing = append(missing, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading photo rows: %w", err)
	}

	for _, id := range missing {
		if _, err := s.db.Exec(`DELETE FROM photos WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting missing photo: %w", err)
		}
	}
	return len(missing), nil
}

// Commit boundary

// RecordProcessed writes one tracking record per member and flips each
// member to processed inside a single transaction. Either every row is
// written or none is; a member that is not currently unprocessed fails
// the whole batch.
func (s *SQLiteStore) RecordProcessed(records []model.TrackingRecord) error {
	if len(records) == 0 {
		return errors.New("no records to commit")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.Exec(`
			INSERT INTO tracking_records (id, photo_id, original_path, final_path, assigned_date, fingerprint, base_name, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.PhotoID, r.OriginalPath, r.FinalPath, r.AssignedDate.Format(dateLayout),
			r.Fingerprint, r.BaseName, r.RecordedAt); err != nil {
			return fmt.Errorf("inserting tracking record: %w", err)
		}

		res, err := tx.Exec(`
			UPDATE photos SET status = 'processed', filepath = ?
			WHERE id = ? AND status = 'unprocessed'`,
			r.FinalPath, r.PhotoID)
		if err != nil {
			return fmt.Errorf("marking photo processed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking processed update: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("photo %s is not unprocessed", r.PhotoID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tracking records: %w", err)
	}
	return nil
}

// TrackingRecordsForUnit returns the committed records for a base name,
// in recording order.
func (s *SQLiteStore) TrackingRecordsForUnit(baseName string) ([]model.TrackingRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, photo_id, original_path, final_path, assigned_date, fingerprint, base_name, recorded_at
		FROM tracking_records
		WHERE base_name = ?
		ORDER BY recorded_at, original_path`, baseName)
	if err != nil {
		return nil, fmt.Errorf("listing tracking records: %w", err)
	}
	defer rows.Close()

	var records []model.TrackingRecord
	for rows.Next() {
		var r model.TrackingRecord
		var assigned string
		if err := rows.Scan(&r.ID, &r.PhotoID, &r.OriginalPath, &r.FinalPath, &assigned, &r.Fingerprint, &r.BaseName, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning tracking record: %w", err)
		}
		date, err := time.ParseInLocation(dateLayout, assigned, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing assigned date: %w", err)
		}
		r.AssignedDate = date
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tracking records: %w", err)
	}
	return records, nil
}

// Group operations

// CreateGroup creates a named unit group and returns it.
func (s *SQLiteStore) CreateGroup(name string) (*model.Group, error) {
	g := &model.Group{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Exec(`
		INSERT INTO photo_groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return g, nil
}

// AddGroupMember appends a unit to a group, preserving submission order.
func (s *SQLiteStore) AddGroupMember(groupID, baseName string) error {
	if _, err := s.db.Exec(`
		INSERT INTO photo_group_members (group_id, base_name, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM photo_group_members WHERE group_id = ?))`,
		groupID, baseName, groupID); err != nil {
		return fmt.Errorf("adding group member: %w", err)
	}
	return nil
}

// ListGroupUnits returns the base names in a group in membership order.
func (s *SQLiteStore) ListGroupUnits(groupID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT base_name FROM photo_group_members
		WHERE group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing group members: %w", err)
	}
	defer rows.Close()

	var baseNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning group member: %w", err)
		}
		baseNames = append(baseNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading group members: %w", err)
	}
	return baseNames, nil
}

// Operation records

// CreateOperation persists a CLI operation record and returns it with its
// auto-increment ID assigned.
func (s *SQLiteStore) CreateOperation(name, parameters string) (*model.Operation, error) {
	op := &model.Operation{
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  time.Now().UTC(),
	}
	res, err := s.db.Exec(`
		INSERT INTO operations (name, parameters, status, started_at)
		VALUES (?, ?, ?, ?)`,
		op.Name, op.Parameters, op.Status, op.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	op.ID = id
	return op, nil
}

// FinishOperation stamps an operation's final status and finish time.
func (s *SQLiteStore) FinishOperation(id int64, status string) error {
	if _, err := s.db.Exec(`
		UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func scanPhotos(rows *sql.Rows) ([]model.Photo, error) {
	var photos []model.Photo
	for rows.Next() {
		var p model.Photo
		var role, status string
		var suggested sql.NullString
		if err := rows.Scan(&p.ID, &p.Filepath, &p.BaseName, &role, &suggested, &status, &p.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		p.Role = model.Role(role)
		p.Status = model.PhotoStatus(status)
		if suggested.Valid {
			date, err := time.ParseInLocation(dateLayout, suggested.String, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("parsing suggested date: %w", err)
			}
			p.SuggestedDate = &date
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading photos: %w", err)
	}
	return photos, nil
}
