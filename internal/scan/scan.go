// Package scan indexes the unprocessed photo root into the tracking
// store and derives unit membership from file naming: files sharing one
// logical base name form a unit that must be date-corrected together.
package scan

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"photodate/internal/engine"
	"photodate/internal/model"
)

// Store is the slice of the tracking store the indexer needs.
type Store interface {
	UpsertPhoto(p *model.Photo) (bool, error)
	PhotoStatuses() (map[string]model.PhotoStatus, error)
}

// Finder discovers photo files on disk.
type Finder interface {
	FindPhotos(root string) ([]string, error)
}

// Indexer walks the unprocessed root and records newly discovered photos.
type Indexer struct {
	store  Store
	finder Finder
	root   string
	logger engine.Logger
	clock  engine.Clock
	idgen  engine.IDGenerator
}

func NewIndexer(store Store, finder Finder, root string, logger engine.Logger, clock engine.Clock, idgen engine.IDGenerator) *Indexer {
	return &Indexer{
		store:  store,
		finder: finder,
		root:   root,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Scan discovers photos under the unprocessed root and upserts a row per
// new file, with a suggested date read from EXIF or file times. Paths
// already tracked (whatever their status) are left alone. Returns the
// number of newly indexed photos.
func (ix *Indexer) Scan() (int, error) {
	paths, err := ix.finder.FindPhotos(ix.root)
	if err != nil {
		return 0, fmt.Errorf("discovering photos: %w", err)
	}

	known, err := ix.store.PhotoStatuses()
	if err != nil {
		return 0, fmt.Errorf("loading known photos: %w", err)
	}

	count := 0
	for _, p := range paths {
		if _, ok := known[p]; ok {
			continue
		}

		filename := filepath.Base(p)
		photo := &model.Photo{
			ID:            ix.idgen.New(),
			Filepath:      p,
			BaseName:      ExtractBaseName(filename),
			Role:          ClassifyRole(filename),
			SuggestedDate: SuggestDate(p),
			Status:        model.StatusUnprocessed,
			DiscoveredAt:  ix.clock.Now(),
		}
		inserted, err := ix.store.UpsertPhoto(photo)
		if err != nil {
			return count, fmt.Errorf("indexing %s: %w", p, err)
		}
		if inserted {
			count++
			ix.logger.Debug("photo indexed", "path", p, "base_name", photo.BaseName, "role", string(photo.Role))
		}
	}

	ix.logger.Info("scan complete", "discovered", len(paths), "indexed", count)
	return count, nil
}

// baseNameRe captures the logical base name: an optional date prefix and
// an optional _a/_b role suffix are stripped.
var baseNameRe = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2}_)?(.+?)(_[ab])?\.(jpe?g|png|tiff?|bmp)$`)

// ExtractBaseName returns the logical unit key for a filename.
// "2019-03-02_FastFoto_0007_a.jpg" and "FastFoto_0007.jpg" both map to
// "FastFoto_0007".
func ExtractBaseName(filename string) string {
	if m := baseNameRe.FindStringSubmatch(filename); m != nil {
		return m[2]
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// ClassifyRole derives the member role from the filename suffix: the
// plain file is the front, "_a" is the back of the same photo, anything
// else with a suffix is a variant.
func ClassifyRole(filename string) model.Role {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch {
	case strings.HasSuffix(strings.ToLower(stem), "_a"):
		return model.RoleBack
	case strings.HasSuffix(strings.ToLower(stem), "_b"):
		return model.RoleVariant
	default:
		return model.RoleFront
	}
}

const (
	// Suggested dates outside this window are discarded as scanner noise
	// (epoch leftovers, camera clocks never set, far-future mtimes).
	minPlausibleYear = 1900
	maxPlausibleYear = 2030
)

func plausible(t time.Time) bool {
	return t.Year() >= minPlausibleYear && t.Year() <= maxPlausibleYear
}
