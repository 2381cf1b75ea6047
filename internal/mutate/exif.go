package mutate

import (
	"fmt"
	"os"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// exifDateLayout is the canonical EXIF date-time representation.
const exifDateLayout = "2006:01:02 15:04:05"

// writeExifDates rewrites DateTime, DateTimeOriginal, and
// DateTimeDigitized in a JPEG file. A missing or non-standard EXIF block
// is tolerated by building a fresh one. The rewrite goes through a
// sibling temp file and a rename so a failed write never truncates the
// original.
func writeExifDates(path string, date time.Time) error {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing jpeg: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// No usable EXIF block; start from an empty one.
		im, imErr := exifcommon.NewIfdMappingWithStandard()
		if imErr != nil {
			return fmt.Errorf("building ifd mapping: %w", imErr)
		}
		rootIb = exif.NewIfdBuilder(im, exif.NewTagIndex(),
			exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	}

	stamp := date.Format(exifDateLayout)

	ifd0, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return fmt.Errorf("locating IFD0: %w", err)
	}
	if err := ifd0.SetStandardWithName("DateTime", stamp); err != nil {
		return fmt.Errorf("setting DateTime: %w", err)
	}

	exifIfd, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return fmt.Errorf("locating IFD/Exif: %w", err)
	}
	if err := exifIfd.SetStandardWithName("DateTimeOriginal", stamp); err != nil {
		return fmt.Errorf("setting DateTimeOriginal: %w", err)
	}
	if err := exifIfd.SetStandardWithName("DateTimeDigitized", stamp); err != nil {
		return fmt.Errorf("setting DateTimeDigitized: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("attaching exif segment: %w", err)
	}

	tmp := path + ".exiftmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if err := sl.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing original: %w", err)
	}
	return nil
}
