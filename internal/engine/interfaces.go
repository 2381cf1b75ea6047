package engine

import (
	"time"

	"photodate/internal/model"
)

// TrackingStore provides the unit membership input and the commit-time
// record write. RecordProcessed is the only method the engine calls with
// a transaction in flight, and it must be all-or-nothing.
type TrackingStore interface {
	// ListUnitMembers returns the ordered members of a unit that are still
	// unprocessed: front first, then back, then variants. The engine treats
	// this as authoritative and does not second-guess grouping decisions.
	ListUnitMembers(baseName string) ([]model.Photo, error)

	// ListGroupUnits returns the base names belonging to a group, in
	// membership order.
	ListGroupUnits(groupID string) ([]string, error)

	// RecordProcessed writes one tracking record per member and marks each
	// member processed inside a single store transaction. Either every row
	// is written or none is.
	RecordProcessed(records []model.TrackingRecord) error
}

// Backups makes and reverts per-file snapshots.
type Backups interface {
	// Snapshot copies the file's bytes to a sibling backup path.
	// It fails if a live backup already exists for the path.
	Snapshot(path string) (*model.Backup, error)

	// Restore overwrites the original path with the backup's bytes and
	// reapplies the original mtime. A Restore failure is unrecoverable:
	// the caller must flag the file for manual operator recovery.
	Restore(b *model.Backup) error

	// Discard removes the backup. Only called after a unit fully commits,
	// or after a clean restore.
	Discard(b *model.Backup) error
}

// Mutator applies the target date to a file's filesystem timestamps and
// embedded capture-date metadata. A non-nil error is fatal for the unit;
// embedded-metadata problems surface as warnings on the result instead.
type Mutator interface {
	Apply(path string, date time.Time) (*model.MutationResult, error)
}

// Verifier computes content fingerprints and checks post-mutation
// readability.
type Verifier interface {
	// Fingerprint returns the SHA-256 hex digest of the file's content.
	Fingerprint(path string) (string, error)

	// Verify re-opens and fully reads the file. An error means the file is
	// truncated or unreadable and the unit must roll back.
	Verify(path string) error
}

// Resolver computes a collision-free destination path for a corrected
// file. Resolution is side-effect-free: it only plans, never moves.
type Resolver interface {
	Resolve(date time.Time, originalFilename string) (string, error)
}

// Filesystem is the small set of real-filesystem operations the engine
// performs itself. Relocation uses Rename, not copy+delete, so each move
// is effectively atomic.
type Filesystem interface {
	Rename(oldPath, newPath string) error
	MkdirAll(dir string) error
	Exists(path string) bool
	Size(path string) (int64, error)
}
