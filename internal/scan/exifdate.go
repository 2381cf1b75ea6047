package scan

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// SuggestDate extracts a likely capture date for a photo: EXIF
// DateTimeOriginal first, then EXIF DateTime, then the file's mtime.
// Returns nil when nothing plausible is found. Purely advisory; the
// correction engine never reads it.
func SuggestDate(path string) *time.Time {
	if t, ok := exifDate(path); ok && plausible(t) {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	mt := info.ModTime()
	if !plausible(mt) {
		return nil
	}
	d := time.Date(mt.Year(), mt.Month(), mt.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func exifDate(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.ParseInLocation("2006:01:02 15:04:05", raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
