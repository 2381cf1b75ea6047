package destination

import (
	"path/filepath"
	"testing"
	"time"
)

// setResolver builds a Resolver over a fake occupancy set with
// deterministic suffixes.
func setResolver(taken map[string]bool, suffixes []string) *Resolver {
	r := NewResolver("/processed", func(p string) bool { return taken[p] })
	i := 0
	r.randomHex = func(n int) (string, error) {
		s := suffixes[i%len(suffixes)]
		i++
		return s, nil
	}
	r.now = func() time.Time { return time.UnixMilli(1554000000000) }
	return r
}

func TestResolver_Resolve(t *testing.T) {
	date := time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("plain resolution", func(t *testing.T) {
		r := setResolver(nil, []string{"ab12cd"})
		got, err := r.Resolve(date, "FastFoto_0007.jpg")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join("/processed", "2019", "03", "2019-03-02_FastFoto_0007.jpg")
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
	})

	t.Run("existing date prefix replaced not stacked", func(t *testing.T) {
		r := setResolver(nil, []string{"ab12cd"})
		got, err := r.Resolve(date, "2017-12-25_FastFoto_0007.jpg")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join("/processed", "2019", "03", "2019-03-02_FastFoto_0007.jpg")
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
	})

	t.Run("collision gets random suffix before extension", func(t *testing.T) {
		taken := map[string]bool{
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan.jpg"): true,
		}
		r := setResolver(taken, []string{"ab12cd"})
		got, err := r.Resolve(date, "scan.jpg")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join("/processed", "2019", "03", "2019-03-02_scan_ab12cd.jpg")
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
	})

	t.Run("suffix retried until free", func(t *testing.T) {
		taken := map[string]bool{
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan.jpg"):        true,
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan_aaaaaa.jpg"): true,
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan_bbbbbb.jpg"): true,
		}
		r := setResolver(taken, []string{"aaaaaa", "bbbbbb", "cccccc"})
		got, err := r.Resolve(date, "scan.jpg")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join("/processed", "2019", "03", "2019-03-02_scan_cccccc.jpg")
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
	})

	t.Run("exhausted attempts fall back to timestamp", func(t *testing.T) {
		// Every random candidate collides; the timestamp fallback is
		// accepted without an occupancy check.
		taken := map[string]bool{
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan.jpg"):        true,
			filepath.Join("/processed", "2019", "03", "2019-03-02_scan_aaaaaa.jpg"): true,
		}
		r := setResolver(taken, []string{"aaaaaa"})
		got, err := r.Resolve(date, "scan.jpg")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := filepath.Join("/processed", "2019", "03", "2019-03-02_scan_1554000000000.jpg")
		if got != want {
			t.Errorf("Resolve() = %s, want %s", got, want)
		}
	})

	t.Run("invalid filename rejected", func(t *testing.T) {
		r := setResolver(nil, []string{"ab12cd"})
		for _, name := range []string{"", "dir/scan.jpg", "../scan.jpg"} {
			if _, err := r.Resolve(date, name); err == nil {
				t.Errorf("Resolve(%q) succeeded, want error", name)
			}
		}
	})
}
