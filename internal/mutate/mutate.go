// Package mutate applies a corrected capture date to a photo file: the
// filesystem access and modification times, and the embedded EXIF date
// fields where the format carries them.
package mutate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photodate/internal/model"
)

// exifFormats are the formats whose embedded capture date is rewritten.
// Everything else (PNG, BMP, ...) has no standard EXIF facility and gets
// a warning instead.
var exifFormats = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// Mutator implements engine.Mutator against the real filesystem.
type Mutator struct{}

func NewMutator() *Mutator { return &Mutator{} }

// Apply sets the file's capture date to midnight UTC of date. The two
// sub-operations report independently: the EXIF rewrite fails soft (a
// warning on the result), the timestamp update fails hard (an error that
// aborts the unit). This asymmetry reflects that filesystem timestamps
// are universally supported while embedded metadata is not.
//
// The EXIF rewrite runs first because it rewrites the file's bytes and
// would otherwise clobber freshly set timestamps.
func (m *Mutator) Apply(path string, date time.Time) (*model.MutationResult, error) {
	result := &model.MutationResult{}
	stamp := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	ext := strings.ToLower(filepath.Ext(path))
	if !exifFormats[ext] {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("format %s has no embedded capture-date support", ext))
	} else if err := writeExifDates(path, stamp); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("could not update embedded capture date: %v", err))
	} else {
		result.MetadataSet = true
	}

	if err := os.Chtimes(path, stamp, stamp); err != nil {
		return result, fmt.Errorf("setting file timestamps: %w", err)
	}
	result.TimestampSet = true

	return result, nil
}
