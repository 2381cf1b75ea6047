package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photodate/internal/backup"
	"photodate/internal/destination"
	"photodate/internal/engine"
	"photodate/internal/model"
	"photodate/internal/mutate"
	"photodate/internal/testutil"
	"photodate/internal/verify"

	"github.com/google/uuid"
)

// fixture wires a real filesystem under t.TempDir() with injectable
// failure points around the real components.
type fixture struct {
	unprocessed string
	processed   string
	store       *testutil.MemoryStore
	fsys        *testutil.FlakyFilesystem
	backups     *testutil.FailingBackups
	mutator     *testutil.FailingMutator
	verifier    *testutil.FailingVerifier
	eng         *engine.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		unprocessed: filepath.Join(root, "unprocessed"),
		processed:   filepath.Join(root, "processed"),
		store:       testutil.NewMemoryStore(),
		fsys:        testutil.NewFlakyFilesystem(),
		backups:     &testutil.FailingBackups{Inner: backup.NewManager()},
		mutator:     &testutil.FailingMutator{Inner: mutate.NewMutator()},
		verifier:    &testutil.FailingVerifier{Inner: verify.NewVerifier()},
	}
	for _, dir := range []string{f.unprocessed, f.processed} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}

	resolver := destination.NewResolver(f.processed, f.fsys.Exists)
	f.eng = engine.New(f.store, f.backups, f.mutator, f.verifier, resolver,
		f.fsys, engine.NewLockRegistry(), engine.NewNopLogger(),
		engine.RealClock{}, engine.UUIDGenerator{}, f.unprocessed)
	return f
}

// addFile writes a unit member into the unprocessed root with a fixed
// mtime and registers it with the store.
func (f *fixture) addFile(t *testing.T, name, content, baseName string, role model.Role) string {
	t.Helper()
	path := filepath.Join(f.unprocessed, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	mtime := time.Date(2001, 5, 6, 7, 8, 9, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("setting mtime on %s: %v", name, err)
	}
	f.store.AddPhoto(model.Photo{
		ID:       uuid.New().String(),
		Filepath: path,
		BaseName: baseName,
		Role:     role,
		Status:   model.StatusUnprocessed,
	})
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(b)
}

func mtime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.ModTime().UTC()
}

// requireNoBackups fails if any backup file is left anywhere under root.
func requireNoBackups(t *testing.T, root string) {
	t.Helper()
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, backup.Suffix) {
			t.Errorf("leftover backup file: %s", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
}

func TestEngine_CorrectUnitDate_Commit(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "FastFoto_0007.jpg", "front bytes", "FastFoto_0007", model.RoleFront)
	back := f.addFile(t, "FastFoto_0007_a.jpg", "back bytes", "FastFoto_0007", model.RoleBack)

	result, err := f.eng.CorrectUnitDate(context.Background(), "FastFoto_0007", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false, message: %s", result.Message)
	}
	if len(result.PerFile) != 2 {
		t.Fatalf("len(PerFile) = %d, want 2", len(result.PerFile))
	}

	wantFront := filepath.Join(f.processed, "2019", "03", "2019-03-02_FastFoto_0007.jpg")
	wantBack := filepath.Join(f.processed, "2019", "03", "2019-03-02_FastFoto_0007_a.jpg")
	if result.PerFile[0].FinalPath != wantFront {
		t.Errorf("front final path = %s, want %s", result.PerFile[0].FinalPath, wantFront)
	}
	if result.PerFile[1].FinalPath != wantBack {
		t.Errorf("back final path = %s, want %s", result.PerFile[1].FinalPath, wantBack)
	}

	// Originals gone, destinations present with the target-date mtime.
	for _, p := range []string{front, back} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("original still present: %s", p)
		}
	}
	want := time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, p := range []string{wantFront, wantBack} {
		if got := mtime(t, p); !got.Equal(want) {
			t.Errorf("mtime of %s = %v, want %v", p, got, want)
		}
	}

	// Exactly one tracking record per member, none missing.
	records := f.store.Records()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	for i, r := range records {
		if r.BaseName != "FastFoto_0007" {
			t.Errorf("record %d base name = %s", i, r.BaseName)
		}
		if r.Fingerprint == "" {
			t.Errorf("record %d has empty fingerprint", i)
		}
		if !r.AssignedDate.Equal(want) {
			t.Errorf("record %d assigned date = %v", i, r.AssignedDate)
		}
	}

	requireNoBackups(t, filepath.Dir(f.unprocessed))
}

func TestEngine_CorrectUnitDate_RollbackOnMutationFailure(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0010.jpg", "front bytes", "0010", model.RoleFront)
	back := f.addFile(t, "0010_a.jpg", "back bytes", "0010", model.RoleBack)
	origMtime := mtime(t, front)

	f.mutator.FailApplyCall = 2

	result, err := f.eng.CorrectUnitDate(context.Background(), "0010", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want rollback")
	}
	if result.Corrupted {
		t.Fatalf("result.Corrupted = true, want clean rollback: %s", result.Message)
	}
	if !strings.Contains(result.Message, string(engine.FailMutation)) {
		t.Errorf("message %q does not name the mutation failure", result.Message)
	}

	// Every member back at its original path with original bytes and mtime.
	if got := readFile(t, front); got != "front bytes" {
		t.Errorf("front content = %q", got)
	}
	if got := readFile(t, back); got != "back bytes" {
		t.Errorf("back content = %q", got)
	}
	for _, p := range []string{front, back} {
		if got := mtime(t, p); !got.Equal(origMtime) {
			t.Errorf("mtime of %s = %v, want %v", p, got, origMtime)
		}
	}

	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records written on failed unit: %d", n)
	}
	requireNoBackups(t, filepath.Dir(f.unprocessed))
}

func TestEngine_CorrectUnitDate_RollbackOnVerificationFailure(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0011.jpg", "front bytes", "0011", model.RoleFront)
	f.verifier.FailVerifyCall = 1

	result, err := f.eng.CorrectUnitDate(context.Background(), "0011", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want rollback")
	}
	if !strings.Contains(result.Message, string(engine.FailVerification)) {
		t.Errorf("message %q does not name the verification failure", result.Message)
	}
	if got := readFile(t, front); got != "front bytes" {
		t.Errorf("front content = %q", got)
	}
	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records written on failed unit: %d", n)
	}
	requireNoBackups(t, filepath.Dir(f.unprocessed))
}

func TestEngine_CorrectUnitDate_RollbackOnRelocationFailure(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0012.jpg", "front bytes", "0012", model.RoleFront)
	back := f.addFile(t, "0012_a.jpg", "back bytes", "0012", model.RoleBack)

	// First member moves, second move fails; the first must move back.
	f.fsys.FailRenameCall = 2

	result, err := f.eng.CorrectUnitDate(context.Background(), "0012", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want rollback")
	}
	if result.Corrupted {
		t.Fatalf("result.Corrupted = true, want clean rollback: %s", result.Message)
	}

	if got := readFile(t, front); got != "front bytes" {
		t.Errorf("front content = %q", got)
	}
	if got := readFile(t, back); got != "back bytes" {
		t.Errorf("back content = %q", got)
	}

	// Nothing may remain in the processed tree.
	entries, err := os.ReadDir(f.processed)
	if err != nil {
		t.Fatalf("reading processed dir: %v", err)
	}
	for _, e := range entries {
		leaf := filepath.Join(f.processed, e.Name())
		files, _ := filepath.Glob(filepath.Join(leaf, "*", "*"))
		if len(files) != 0 {
			t.Errorf("files left in processed tree: %v", files)
		}
	}

	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records written on failed unit: %d", n)
	}
	requireNoBackups(t, filepath.Dir(f.unprocessed))
}

func TestEngine_CorrectUnitDate_RollbackOnTrackingStoreFailure(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0013.jpg", "front bytes", "0013", model.RoleFront)
	f.store.FailNextRecord = true

	result, err := f.eng.CorrectUnitDate(context.Background(), "0013", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want rollback")
	}
	if !strings.Contains(result.Message, string(engine.FailTrackingStore)) {
		t.Errorf("message %q does not name the store failure", result.Message)
	}

	// Filesystem and store agree: file back in place, no records.
	if got := readFile(t, front); got != "front bytes" {
		t.Errorf("front content = %q", got)
	}
	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records written on failed unit: %d", n)
	}
	requireNoBackups(t, filepath.Dir(f.unprocessed))
}

func TestEngine_CorrectUnitDate_FailedRestoreRequiresManualRecovery(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0020.jpg", "front bytes", "0020", model.RoleFront)
	back := f.addFile(t, "0020_a.jpg", "back bytes", "0020", model.RoleBack)

	// Fatal mutation on the second member forces a rollback; the first
	// member's restore then fails. Rollback runs in reverse order, so the
	// failing restore is the second one.
	f.mutator.FailApplyCall = 2
	f.backups.FailRestoreCall = 2

	result, err := f.eng.CorrectUnitDate(context.Background(), "0020", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true after a failed restore")
	}
	if !result.Corrupted {
		t.Fatal("result.Corrupted = false, want manual-recovery flag")
	}
	if !strings.Contains(result.Message, "manual recovery") {
		t.Errorf("message %q does not call for manual recovery", result.Message)
	}

	// The member whose restore failed is flagged, with the backup kept on
	// disk for the operator.
	victim := result.PerFile[0]
	if victim.Path != front {
		t.Fatalf("PerFile[0].Path = %s, want %s", victim.Path, front)
	}
	if !victim.ManualRecovery {
		t.Error("ManualRecovery = false for the unrestorable member")
	}
	if !strings.Contains(victim.Reason, string(engine.FailRestore)) {
		t.Errorf("reason %q does not name the restore failure", victim.Reason)
	}
	if _, err := os.Stat(front + backup.Suffix); err != nil {
		t.Errorf("backup for unrestorable member not kept: %v", err)
	}

	// The other member rolled back cleanly: original bytes, no flag, no
	// leftover backup.
	if result.PerFile[1].ManualRecovery {
		t.Error("ManualRecovery = true for the cleanly restored member")
	}
	if got := readFile(t, back); got != "back bytes" {
		t.Errorf("back content = %q", got)
	}
	if _, err := os.Stat(back + backup.Suffix); !os.IsNotExist(err) {
		t.Error("backup for cleanly restored member not discarded")
	}

	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records written on failed unit: %d", n)
	}
}

func TestEngine_CorrectUnitDate_AbortOnBackupFailure(t *testing.T) {
	f := newFixture(t)
	front := f.addFile(t, "0014.jpg", "front bytes", "0014", model.RoleFront)
	back := f.addFile(t, "0014_a.jpg", "back bytes", "0014", model.RoleBack)
	origMtime := mtime(t, front)

	// A stale backup blocks the second member's snapshot.
	stale := back + backup.Suffix
	if err := os.WriteFile(stale, []byte("stale"), 0644); err != nil {
		t.Fatalf("writing stale backup: %v", err)
	}

	result, err := f.eng.CorrectUnitDate(context.Background(), "0014", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want abort")
	}
	if !strings.Contains(result.Message, string(engine.FailBackup)) {
		t.Errorf("message %q does not name the backup failure", result.Message)
	}
	// The non-failing member was never mutated, so its reason must not
	// claim a rollback happened.
	if got := result.PerFile[0].Reason; !strings.Contains(got, "aborted before mutation") {
		t.Errorf("PerFile[0].Reason = %q, want abort-before-mutation phrasing", got)
	}

	// Nothing was mutated: content and timestamps untouched.
	if got := readFile(t, front); got != "front bytes" {
		t.Errorf("front content = %q", got)
	}
	if got := mtime(t, front); !got.Equal(origMtime) {
		t.Errorf("front mtime = %v, want %v", got, origMtime)
	}
	// The first member's snapshot was cleaned up; only the stale one remains.
	if _, err := os.Stat(front + backup.Suffix); !os.IsNotExist(err) {
		t.Errorf("first member's backup not discarded")
	}
	if _, err := os.Stat(stale); err != nil {
		t.Errorf("stale backup removed: %v", err)
	}
}

func TestEngine_CorrectUnitDate_WarningTolerance(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "scan_042.bmp", "bitmap bytes", "scan_042", model.RoleFront)

	result, err := f.eng.CorrectUnitDate(context.Background(), "scan_042", "2020-06-01")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false: %s", result.Message)
	}
	if len(result.PerFile[0].Warnings) == 0 {
		t.Error("expected warnings for a format without embedded date support")
	}
	want := filepath.Join(f.processed, "2020", "06", "2020-06-01_scan_042.bmp")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("file not relocated despite warnings: %v", err)
	}
}

func TestEngine_CorrectUnitDate_UnknownDateConvention(t *testing.T) {
	// 1900-01-01 must flow through the identical path as any other date.
	run := func(date string) *model.UnitResult {
		f := newFixture(t)
		f.addFile(t, "0015.jpg", "front bytes", "0015", model.RoleFront)
		result, err := f.eng.CorrectUnitDate(context.Background(), "0015", date)
		if err != nil {
			t.Fatalf("CorrectUnitDate(%s) error = %v", date, err)
		}
		return result
	}

	unknown := run("1900-01-01")
	known := run("2020-06-01")

	if unknown.Success != known.Success {
		t.Errorf("success mismatch: %v vs %v", unknown.Success, known.Success)
	}
	if len(unknown.PerFile) != len(known.PerFile) {
		t.Fatalf("per-file count mismatch")
	}
	if !strings.Contains(unknown.PerFile[0].FinalPath, filepath.Join("1900", "01", "1900-01-01_")) {
		t.Errorf("unknown-date final path = %s", unknown.PerFile[0].FinalPath)
	}
	if len(unknown.PerFile[0].Warnings) != len(known.PerFile[0].Warnings) {
		t.Errorf("warning count differs between unknown and known dates")
	}
}

func TestEngine_CorrectUnitDate_CollisionGetsDistinctPath(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "0016.jpg", "front bytes", "0016", model.RoleFront)

	// Occupy the plain destination ahead of time.
	taken := filepath.Join(f.processed, "2019", "03", "2019-03-02_0016.jpg")
	if err := os.MkdirAll(filepath.Dir(taken), 0755); err != nil {
		t.Fatalf("creating destination dir: %v", err)
	}
	if err := os.WriteFile(taken, []byte("other photo"), 0644); err != nil {
		t.Fatalf("occupying destination: %v", err)
	}

	result, err := f.eng.CorrectUnitDate(context.Background(), "0016", "2019-03-02")
	if err != nil {
		t.Fatalf("CorrectUnitDate() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result.Success = false: %s", result.Message)
	}
	final := result.PerFile[0].FinalPath
	if final == taken {
		t.Fatalf("collision not resolved: %s", final)
	}
	if got := readFile(t, final); got != "front bytes" {
		t.Errorf("relocated content = %q", got)
	}
	if got := readFile(t, taken); got != "other photo" {
		t.Errorf("pre-existing file clobbered: %q", got)
	}
}

func TestEngine_CorrectUnitDate_InputErrors(t *testing.T) {
	t.Run("invalid date", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.eng.CorrectUnitDate(context.Background(), "x", "02-03-2019"); err == nil {
			t.Error("expected error for malformed date")
		}
	})

	t.Run("unknown unit", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.eng.CorrectUnitDate(context.Background(), "nope", "2019-03-02"); err == nil {
			t.Error("expected error for unknown unit")
		}
	})

	t.Run("member outside unprocessed root", func(t *testing.T) {
		f := newFixture(t)
		outside := filepath.Join(t.TempDir(), "stray.jpg")
		if err := os.WriteFile(outside, []byte("stray"), 0644); err != nil {
			t.Fatalf("writing stray file: %v", err)
		}
		f.store.AddPhoto(model.Photo{
			ID:       uuid.New().String(),
			Filepath: outside,
			BaseName: "stray",
			Role:     model.RoleFront,
			Status:   model.StatusUnprocessed,
		})
		if _, err := f.eng.CorrectUnitDate(context.Background(), "stray", "2019-03-02"); err == nil {
			t.Error("expected error for member outside unprocessed root")
		}
	})
}

func TestEngine_CorrectGroupDates(t *testing.T) {
	t.Run("failing unit does not block siblings", func(t *testing.T) {
		f := newFixture(t)
		f.addFile(t, "g1.jpg", "one", "g1", model.RoleFront)
		f.addFile(t, "g2.jpg", "two", "g2", model.RoleFront)
		f.addFile(t, "g3.jpg", "three", "g3", model.RoleFront)
		f.store.AddGroup("group-7", "g1", "g2", "g3")

		// Fatal mutation for the second unit only (one Apply per unit).
		f.mutator.FailApplyCall = 2

		results, err := f.eng.CorrectGroupDates(context.Background(), "group-7", "2019-03-02")
		if err != nil {
			t.Fatalf("CorrectGroupDates() error = %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("len(results) = %d, want 3", len(results))
		}
		if !results[0].Success || results[1].Success || !results[2].Success {
			t.Errorf("unexpected outcomes: %v %v %v",
				results[0].Success, results[1].Success, results[2].Success)
		}
		// Two committed units, one record each.
		if n := len(f.store.Records()); n != 2 {
			t.Errorf("records = %d, want 2", n)
		}
	})

	t.Run("empty group is an input error", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.eng.CorrectGroupDates(context.Background(), "missing", "2019-03-02"); err == nil {
			t.Error("expected error for empty group")
		}
	})
}
