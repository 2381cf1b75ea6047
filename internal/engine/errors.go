package engine

import "fmt"

// FailureKind classifies fatal per-file failures so callers can decide
// whether a retry makes sense without parsing message strings.
type FailureKind string

const (
	// FailBackup: a snapshot could not be made. Nothing was mutated, so the
	// unit aborted without rollback. Retryable.
	FailBackup FailureKind = "backup_failed"

	// FailMutation: a filesystem timestamp write failed. Triggers rollback.
	FailMutation FailureKind = "mutation_fatal"

	// FailVerification: a mutated file could not be read back. Treated as
	// corruption; triggers rollback.
	FailVerification FailureKind = "verification_failed"

	// FailCollision: the destination for a move already existed when the
	// rename ran. Triggers rollback.
	FailCollision FailureKind = "collision_exhausted"

	// FailRelocation: a move to the processed tree failed. Triggers rollback.
	FailRelocation FailureKind = "relocation_failed"

	// FailTrackingStore: the commit-time store transaction failed. The
	// filesystem changes are reversed so store and disk never disagree.
	FailTrackingStore FailureKind = "tracking_store_failed"

	// FailRestore: a backup could not be applied during rollback. The file
	// is left as-is and flagged for manual recovery. Unrecoverable.
	FailRestore FailureKind = "restore_failed"
)

// Failure is a fatal per-file error inside a unit transaction.
type Failure struct {
	Kind FailureKind
	Path string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Path, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(kind FailureKind, path string, err error) *Failure {
	return &Failure{Kind: kind, Path: path, Err: err}
}
