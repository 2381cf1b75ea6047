package testutil

import (
	"fmt"
	"time"

	"photodate/internal/engine"
	"photodate/internal/fs"
	"photodate/internal/model"
)

// FlakyFilesystem wraps the real filesystem and fails the Nth Rename
// call, counting from 1. Zero means never fail.
type FlakyFilesystem struct {
	*fs.OSFilesystem
	FailRenameCall int
	renames        int
}

func NewFlakyFilesystem() *FlakyFilesystem {
	return &FlakyFilesystem{OSFilesystem: fs.NewOSFilesystem(nil)}
}

func (f *FlakyFilesystem) Rename(oldPath, newPath string) error {
	f.renames++
	if f.FailRenameCall != 0 && f.renames == f.FailRenameCall {
		return fmt.Errorf("injected rename failure (call %d)", f.renames)
	}
	return f.OSFilesystem.Rename(oldPath, newPath)
}

var _ engine.Filesystem = (*FlakyFilesystem)(nil)

// FailingBackups delegates to a real backup manager but fails the Nth
// Restore call, counting from 1. Zero means never fail. The underlying
// backup file is left untouched, as a real failed restore would.
type FailingBackups struct {
	Inner           engine.Backups
	FailRestoreCall int
	restores        int
}

func (b *FailingBackups) Snapshot(path string) (*model.Backup, error) {
	return b.Inner.Snapshot(path)
}

func (b *FailingBackups) Restore(bk *model.Backup) error {
	b.restores++
	if b.FailRestoreCall != 0 && b.restores == b.FailRestoreCall {
		return fmt.Errorf("injected restore failure (call %d)", b.restores)
	}
	return b.Inner.Restore(bk)
}

func (b *FailingBackups) Discard(bk *model.Backup) error {
	return b.Inner.Discard(bk)
}

// FailingMutator delegates to a real mutator but fails fatally on the
// Nth Apply call, counting from 1. Zero means never fail.
type FailingMutator struct {
	Inner         engine.Mutator
	FailApplyCall int
	applies       int
}

func (m *FailingMutator) Apply(path string, date time.Time) (*model.MutationResult, error) {
	m.applies++
	if m.FailApplyCall != 0 && m.applies == m.FailApplyCall {
		return &model.MutationResult{}, fmt.Errorf("injected timestamp failure (call %d)", m.applies)
	}
	return m.Inner.Apply(path, date)
}

// FailingVerifier delegates to a real verifier but fails verification on
// the Nth Verify call, counting from 1. Zero means never fail.
type FailingVerifier struct {
	Inner          engine.Verifier
	FailVerifyCall int
	verifies       int
}

func (v *FailingVerifier) Fingerprint(path string) (string, error) {
	return v.Inner.Fingerprint(path)
}

func (v *FailingVerifier) Verify(path string) error {
	v.verifies++
	if v.FailVerifyCall != 0 && v.verifies == v.FailVerifyCall {
		return fmt.Errorf("injected verification failure (call %d)", v.verifies)
	}
	return v.Inner.Verify(path)
}

// FixedClock returns a constant time.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// SequenceIDs generates deterministic IDs: id-1, id-2, ...
type SequenceIDs struct {
	n int
}

func (g *SequenceIDs) New() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}
