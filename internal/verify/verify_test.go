package verify_test

import (
	"os"
	"path/filepath"
	"testing"

	"photodate/internal/verify"
)

func TestVerifier_Fingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	v := verify.NewVerifier()
	got, err := v.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Errorf("Fingerprint() = %s, want %s", got, want)
	}

	if _, err := v.Fingerprint(filepath.Join(dir, "absent.jpg")); err == nil {
		t.Error("Fingerprint() succeeded for a missing file")
	}
}

func TestVerifier_Verify(t *testing.T) {
	dir := t.TempDir()
	v := verify.NewVerifier()

	t.Run("readable file passes", func(t *testing.T) {
		path := filepath.Join(dir, "ok.jpg")
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		if err := v.Verify(path); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	t.Run("empty file fails", func(t *testing.T) {
		path := filepath.Join(dir, "empty.jpg")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		if err := v.Verify(path); err == nil {
			t.Error("Verify() accepted an empty file")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if err := v.Verify(filepath.Join(dir, "absent.jpg")); err == nil {
			t.Error("Verify() accepted a missing file")
		}
	})
}
