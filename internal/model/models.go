package model

import "time"

// Role identifies which side of a physical photo a scanned file captures.
type Role string

const (
	RoleFront   Role = "front"
	RoleBack    Role = "back"
	RoleVariant Role = "variant"
)

// PhotoStatus is the processing state of a tracked photo file.
type PhotoStatus string

const (
	StatusUnprocessed PhotoStatus = "unprocessed"
	StatusProcessed   PhotoStatus = "processed"
	StatusIgnored     PhotoStatus = "ignored"
)

// Photo is one tracked photo file as recorded by the tracking store.
type Photo struct {
	ID            string // UUID
	Filepath      string // Absolute path on disk
	BaseName      string // Logical unit key shared by front/back/variants
	Role          Role
	SuggestedDate *time.Time // Date read from EXIF or file times at scan, if any
	Status        PhotoStatus
	DiscoveredAt  time.Time
}

// PhotoFile is one physical file participating in a unit transaction.
// It is materialized from a Photo at transaction start and discarded
// when the transaction returns.
type PhotoFile struct {
	Path        string
	Role        Role
	Fingerprint string // SHA-256 of content, captured before mutation
	Format      string // Lowercase extension including the dot
	Size        int64
}

// PhotoUnit is the unit of atomicity: every file sharing one base name,
// corrected together or not at all.
type PhotoUnit struct {
	BaseName   string
	Members    []PhotoFile // Ordered: front, back, then variants
	TargetDate time.Time
}

// Backup is a point-in-time copy of a file's bytes, made before mutation
// and deleted only after the unit fully commits.
type Backup struct {
	OriginalPath string
	BackupPath   string
	Size         int64
	ModTime      time.Time // Original mtime, reapplied on restore
}

// MutationResult records the two independent sub-operations of a metadata
// mutation. A file counts as mutated when the timestamp update succeeded;
// embedded-metadata failures are carried as warnings only.
type MutationResult struct {
	TimestampSet bool
	MetadataSet  bool
	Warnings     []string
}

// TrackingRecord is one committed row per processed photo file.
// Records for a unit are written inside a single store transaction,
// never partially.
type TrackingRecord struct {
	ID           string
	PhotoID      string
	OriginalPath string
	FinalPath    string
	AssignedDate time.Time
	Fingerprint  string // Content digest after mutation
	BaseName     string
	RecordedAt   time.Time
}

// FileOutcome is the per-file result surfaced to the caller.
type FileOutcome struct {
	Path           string
	FinalPath      string // Set on success
	Succeeded      bool
	Reason         string
	Warnings       []string
	ManualRecovery bool // Backup could not be applied; operator must intervene
}

// UnitResult aggregates per-file outcomes for one unit transaction.
type UnitResult struct {
	BaseName  string
	Success   bool
	Message   string
	Corrupted bool // A rollback restore failed; filesystem state needs review
	PerFile   []FileOutcome
}

// PendingPhoto is one member of a not-yet-corrected unit, for listings.
type PendingPhoto struct {
	Filepath      string
	Role          Role
	SuggestedDate *time.Time
}

// PendingUnit groups unprocessed photos by base name, for listings.
type PendingUnit struct {
	BaseName string
	Members  []PendingPhoto
}

// Group is a named set of units whose dates are corrected together.
// Membership is supplied externally; the engine never second-guesses it.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Operation tracks one CLI invocation that may mutate state.
// Operations are created in memory with ID=0; only mutating commands
// persist them, giving them an auto-increment ID from the database.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
	FinishedAt *time.Time
}
