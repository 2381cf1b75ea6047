package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"photodate/internal/model"
)

// DateLayout is the calendar-date form accepted for target dates.
// The value "1900-01-01" is the documented convention for "date unknown"
// and flows through the identical code path as any other date.
const DateLayout = "2006-01-02"

// Engine drives all files of a unit through backup, mutation,
// verification, relocation, and commit as one all-or-nothing operation.
// On any fatal failure it reverts every member from backup and leaves the
// tracking store untouched.
type Engine struct {
	store    TrackingStore
	backups  Backups
	mutator  Mutator
	verifier Verifier
	resolver Resolver
	fs       Filesystem
	locks    *LockRegistry
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	// unprocessedRoot is the filesystem root every member must reside
	// under at transaction start.
	unprocessedRoot string
}

// New creates an Engine with the provided dependencies.
func New(store TrackingStore, backups Backups, mutator Mutator, verifier Verifier, resolver Resolver, fs Filesystem, locks *LockRegistry, logger Logger, clock Clock, idgen IDGenerator, unprocessedRoot string) *Engine {
	return &Engine{
		store:           store,
		backups:         backups,
		mutator:         mutator,
		verifier:        verifier,
		resolver:        resolver,
		fs:              fs,
		locks:           locks,
		logger:          logger,
		clock:           clock,
		idgen:           idgen,
		unprocessedRoot: unprocessedRoot,
	}
}

// member tracks how far one file progressed through the transaction so
// rollback knows exactly what to undo.
type member struct {
	photo     model.Photo
	file      model.PhotoFile
	backup    *model.Backup
	mutation  *model.MutationResult
	destPath  string
	mutated   bool
	relocated bool
}

// CorrectUnitDate corrects the capture date of every file in the unit
// identified by baseName. The returned UnitResult describes the outcome;
// a non-nil error is returned only for invalid input or when the unit
// cannot be materialized at all.
//
// Once the backup step completes the transaction always runs to either
// full commit or full rollback; ctx cancellation affects only the wait
// for the unit lock.
func (e *Engine) CorrectUnitDate(ctx context.Context, baseName, targetDate string) (*model.UnitResult, error) {
	date, err := time.ParseInLocation(DateLayout, targetDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}

	guard, err := e.locks.Acquire(ctx, baseName)
	if err != nil {
		return nil, fmt.Errorf("waiting for unit lock: %w", err)
	}
	defer guard.Release()

	members, err := e.materialize(baseName)
	if err != nil {
		return nil, err
	}

	e.logger.Info("unit transaction started", "base_name", baseName, "date", targetDate, "members", len(members))

	// Snapshot every member before mutating any. If a snapshot fails,
	// nothing has been mutated yet, so the unit aborts without rollback.
	for _, m := range members {
		b, err := e.backups.Snapshot(m.file.Path)
		if err != nil {
			e.discardBackups(members)
			e.logger.Warn("unit aborted before mutation", "base_name", baseName, "path", m.file.Path, "error", err)
			return e.failedResult(baseName, members, newFailure(FailBackup, m.file.Path, err)), nil
		}
		m.backup = b
	}

	// Mutate every member. A timestamp failure is fatal; embedded-metadata
	// problems ride along as warnings.
	for _, m := range members {
		m.mutated = true
		res, err := e.mutator.Apply(m.file.Path, date)
		m.mutation = res
		if err != nil {
			return e.abort(baseName, members, newFailure(FailMutation, m.file.Path, err)), nil
		}
	}

	// Verify every mutated member is still fully readable.
	for _, m := range members {
		if err := e.verifier.Verify(m.file.Path); err != nil {
			e.logger.Error("post-mutation verification failed", "path", m.file.Path, "error", err)
			return e.abort(baseName, members, newFailure(FailVerification, m.file.Path, err)), nil
		}
	}

	// Plan every destination before moving anything. Resolution is
	// side-effect-free, so a planning failure needs only a normal abort.
	for _, m := range members {
		dest, err := e.resolver.Resolve(date, filepath.Base(m.file.Path))
		if err != nil {
			return e.abort(baseName, members, newFailure(FailCollision, m.file.Path, err)), nil
		}
		m.destPath = dest
	}

	// Relocate with rename so each move is atomic per file.
	for _, m := range members {
		if err := e.fs.MkdirAll(filepath.Dir(m.destPath)); err != nil {
			return e.abort(baseName, members, newFailure(FailRelocation, m.file.Path, err)), nil
		}
		if e.fs.Exists(m.destPath) {
			err := fmt.Errorf("destination already exists: %s", m.destPath)
			return e.abort(baseName, members, newFailure(FailCollision, m.file.Path, err)), nil
		}
		if err := e.fs.Rename(m.file.Path, m.destPath); err != nil {
			return e.abort(baseName, members, newFailure(FailRelocation, m.file.Path, err)), nil
		}
		m.relocated = true
	}

	// Commit: all tracking records in one store transaction. If the store
	// fails, reverse the relocations and restore backups so filesystem and
	// store never disagree.
	records := make([]model.TrackingRecord, 0, len(members))
	for _, m := range members {
		fp, err := e.verifier.Fingerprint(m.destPath)
		if err != nil {
			return e.abort(baseName, members, newFailure(FailVerification, m.file.Path, err)), nil
		}
		records = append(records, model.TrackingRecord{
			ID:           e.idgen.New(),
			PhotoID:      m.photo.ID,
			OriginalPath: m.file.Path,
			FinalPath:    m.destPath,
			AssignedDate: date,
			Fingerprint:  fp,
			BaseName:     baseName,
			RecordedAt:   e.clock.Now(),
		})
	}
	if err := e.store.RecordProcessed(records); err != nil {
		e.logger.Error("tracking store commit failed", "base_name", baseName, "error", err)
		return e.abort(baseName, members, newFailure(FailTrackingStore, "", err)), nil
	}

	e.discardBackups(members)

	result := &model.UnitResult{
		BaseName: baseName,
		Success:  true,
		Message:  "unit date corrected",
	}
	for _, m := range members {
		result.PerFile = append(result.PerFile, model.FileOutcome{
			Path:      m.file.Path,
			FinalPath: m.destPath,
			Succeeded: true,
			Warnings:  m.mutation.Warnings,
		})
	}
	e.logger.Info("unit transaction committed", "base_name", baseName, "members", len(members))
	return result, nil
}

// CorrectGroupDates corrects every unit in a group sequentially, in
// membership order. Each unit runs its own transaction under its own
// lock; a failing unit is reported in its slot and does not block or
// roll back sibling units.
func (e *Engine) CorrectGroupDates(ctx context.Context, groupID, targetDate string) ([]*model.UnitResult, error) {
	if _, err := time.ParseInLocation(DateLayout, targetDate, time.UTC); err != nil {
		return nil, fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}

	baseNames, err := e.store.ListGroupUnits(groupID)
	if err != nil {
		return nil, fmt.Errorf("listing group units: %w", err)
	}
	if len(baseNames) == 0 {
		return nil, fmt.Errorf("group has no units: %s", groupID)
	}

	results := make([]*model.UnitResult, 0, len(baseNames))
	for _, baseName := range baseNames {
		r, err := e.CorrectUnitDate(ctx, baseName, targetDate)
		if err != nil {
			r = &model.UnitResult{
				BaseName: baseName,
				Success:  false,
				Message:  err.Error(),
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// materialize builds the transaction members from the tracking store and
// checks the unit invariants: non-empty, and every member currently under
// the unprocessed root.
func (e *Engine) materialize(baseName string) ([]*member, error) {
	photos, err := e.store.ListUnitMembers(baseName)
	if err != nil {
		return nil, fmt.Errorf("listing unit members: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("unit not found or already processed: %s", baseName)
	}

	root := strings.TrimSuffix(e.unprocessedRoot, string(filepath.Separator))
	members := make([]*member, 0, len(photos))
	for _, p := range photos {
		if !strings.HasPrefix(p.Filepath, root+string(filepath.Separator)) {
			return nil, fmt.Errorf("unit member outside unprocessed root: %s", p.Filepath)
		}
		size, err := e.fs.Size(p.Filepath)
		if err != nil {
			return nil, fmt.Errorf("stat unit member: %w", err)
		}
		fp, err := e.verifier.Fingerprint(p.Filepath)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting unit member: %w", err)
		}
		members = append(members, &member{
			photo: p,
			file: model.PhotoFile{
				Path:        p.Filepath,
				Role:        p.Role,
				Fingerprint: fp,
				Format:      strings.ToLower(filepath.Ext(p.Filepath)),
				Size:        size,
			},
		})
	}
	return members, nil
}

// abort rolls the whole unit back: every relocated member is moved back
// to its original path first, then every mutated member is restored from
// its backup. Backups that restored cleanly are discarded; a backup whose
// restore failed is kept on disk for the operator and the file is flagged
// for manual recovery.
func (e *Engine) abort(baseName string, members []*member, cause *Failure) *model.UnitResult {
	result := e.failedResult(baseName, members, cause)

	for i := len(members) - 1; i >= 0; i-- {
		m := members[i]
		outcome := &result.PerFile[i]

		if m.relocated {
			if err := e.fs.Rename(m.destPath, m.file.Path); err != nil {
				e.logger.Error("rollback move-back failed, file left relocated",
					"path", m.file.Path, "dest", m.destPath, "backup", m.backup.BackupPath, "error", err)
				outcome.ManualRecovery = true
				outcome.Reason = joinReasons(outcome.Reason, fmt.Sprintf("%s: %v", FailRestore, err))
				result.Corrupted = true
				continue
			}
			m.relocated = false
		}

		if !m.mutated {
			// Nothing touched this file; its backup can go.
			e.discardBackup(m)
			continue
		}

		if err := e.backups.Restore(m.backup); err != nil {
			e.logger.Error("rollback restore failed, manual recovery required",
				"path", m.file.Path, "backup", m.backup.BackupPath, "error", err)
			outcome.ManualRecovery = true
			outcome.Reason = joinReasons(outcome.Reason, fmt.Sprintf("%s: %v", FailRestore, err))
			result.Corrupted = true
			continue
		}
		e.discardBackup(m)
	}

	if result.Corrupted {
		result.Message = fmt.Sprintf("unit rolled back with errors, manual recovery required: %v", cause)
	}
	e.logger.Warn("unit transaction rolled back", "base_name", baseName, "reason", string(cause.Kind), "corrupted", result.Corrupted)
	return result
}

// failedResult builds the unit-level failure result before rollback runs,
// attributing the fatal reason to the failing file and aggregate.
func (e *Engine) failedResult(baseName string, members []*member, cause *Failure) *model.UnitResult {
	result := &model.UnitResult{
		BaseName: baseName,
		Success:  false,
		Message:  cause.Error(),
	}
	for _, m := range members {
		outcome := model.FileOutcome{
			Path:      m.file.Path,
			Succeeded: false,
		}
		switch {
		case cause.Path == m.file.Path:
			outcome.Reason = fmt.Sprintf("%s: %v", cause.Kind, cause.Err)
		case cause.Kind == FailBackup:
			// Snapshots happen before any mutation; nothing to roll back.
			outcome.Reason = fmt.Sprintf("aborted before mutation (%s)", cause.Kind)
		default:
			outcome.Reason = fmt.Sprintf("rolled back: unit failed (%s)", cause.Kind)
		}
		if m.mutation != nil {
			outcome.Warnings = m.mutation.Warnings
		}
		result.PerFile = append(result.PerFile, outcome)
	}
	return result
}

func (e *Engine) discardBackups(members []*member) {
	for _, m := range members {
		e.discardBackup(m)
	}
}

func (e *Engine) discardBackup(m *member) {
	if m.backup == nil {
		return
	}
	if err := e.backups.Discard(m.backup); err != nil {
		// A leftover backup file is harmless; scans skip the suffix.
		e.logger.Warn("could not discard backup", "backup", m.backup.BackupPath, "error", err)
	}
	m.backup = nil
}

func joinReasons(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}
