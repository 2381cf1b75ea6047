package fs

import "testing"

func TestIgnoreMatcher_Match(t *testing.T) {
	m := NewIgnoreMatcher([]string{"*.tmp", "drafts/*", "", "# comment"})

	tests := []struct {
		path string
		want bool
	}{
		// Defaults always apply.
		{"photo.jpg.pdbackup", true},
		{"albums/photo.jpg.pdbackup", true},
		{"photo.jpg.exiftmp", true},
		{".DS_Store", true},
		{"albums/Thumbs.db", true},
		// Configured patterns.
		{"scratch.tmp", true},
		{"albums/scratch.tmp", true},
		{"drafts/photo.jpg", true},
		// Everything else passes.
		{"photo.jpg", false},
		{"albums/photo.jpg", false},
		{"drafts/nested/photo.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
