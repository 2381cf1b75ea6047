package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"photodate/internal/backup"
	"photodate/internal/config"
	"photodate/internal/database"
	"photodate/internal/destination"
	"photodate/internal/engine"
	"photodate/internal/fs"
	"photodate/internal/model"
	"photodate/internal/mutate"
	"photodate/internal/scan"
	"photodate/internal/verify"
)

// App is the application layer between the CLI and the correction
// engine. It constructs all dependencies from config, exposes high-level
// operations, and manages the store lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	fsmgr   *fs.OSFilesystem
	engine  *engine.Engine
	indexer *scan.Indexer
	op      *CorrectionOperation
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Scan",
// "CorrectUnit"); parameters carries its arguments for the audit record.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation, parameters string) (*App, error) {
	fsmgr := fs.NewOSFilesystem(cfg.Filesystem.Ignore)

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating tracking store: %w", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating tracking store: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapted := &slogAdapter{l: logger}

	resolver := destination.NewResolver(cfg.Photos.ProcessedDir, fsmgr.Exists)

	eng := engine.New(
		store,
		backup.NewManager(),
		mutate.NewMutator(),
		verify.NewVerifier(),
		resolver,
		fsmgr,
		engine.NewLockRegistry(),
		adapted,
		engine.RealClock{},
		engine.UUIDGenerator{},
		cfg.Photos.UnprocessedDir,
	)

	indexer := scan.NewIndexer(store, fsmgr, cfg.Photos.UnprocessedDir,
		adapted, engine.RealClock{}, engine.UUIDGenerator{})

	return &App{
		cfg:     cfg,
		store:   store,
		fsmgr:   fsmgr,
		engine:  eng,
		indexer: indexer,
		op:      NewCorrectionOperation(operation, parameters),
		logFile: logFile,
	}, nil
}

// persistOperation saves the operation record to the database, giving it
// an auto-increment ID. Only called for mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.store.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Scan indexes the unprocessed root. Returns the number of newly
// discovered photos.
func (a *App) Scan() (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.indexer.Scan()
}

// Pending returns the unprocessed units grouped by base name.
func (a *App) Pending() ([]model.PendingUnit, error) {
	return a.store.ListPendingUnits()
}

// CorrectUnit corrects one unit's capture date through the transaction
// engine.
func (a *App) CorrectUnit(ctx context.Context, baseName, targetDate string) (*model.UnitResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.engine.CorrectUnitDate(ctx, baseName, targetDate)
}

// CorrectGroup corrects every unit in a group, sequentially.
func (a *App) CorrectGroup(ctx context.Context, groupID, targetDate string) ([]*model.UnitResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.engine.CorrectGroupDates(ctx, groupID, targetDate)
}

// CreateGroup creates a named group containing the given units, in
// order, and returns its ID.
func (a *App) CreateGroup(name string, baseNames []string) (string, error) {
	if err := a.persistOperation(); err != nil {
		return "", err
	}
	g, err := a.store.CreateGroup(name)
	if err != nil {
		return "", err
	}
	for _, base := range baseNames {
		if err := a.store.AddGroupMember(g.ID, base); err != nil {
			return "", fmt.Errorf("adding %s to group: %w", base, err)
		}
	}
	return g.ID, nil
}

// Ignore marks every member of a unit ignored. Returns the number of
// photos affected.
func (a *App) Ignore(baseName string) (int64, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.store.MarkUnitIgnored(baseName)
}

// Cleanup removes tracking rows for unprocessed photos whose files no
// longer exist on disk.
func (a *App) Cleanup() (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.store.CleanupMissing(a.fsmgr.Exists)
}

// SetError marks the operation as failed for the final record.
func (a *App) SetError() {
	a.op.Status = "error"
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing tracking store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
