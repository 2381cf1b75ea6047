// Package destination computes date-organized destination paths for
// corrected photos. Resolution is a pure planning step: it performs no
// filesystem mutation, so it is safe to call for every member of a unit
// before committing to any move.
package destination

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// maxAttempts bounds the random-suffix collision retry loop.
	maxAttempts = 100
	// suffixBytes of randomness per attempt, rendered as lowercase hex.
	suffixBytes = 3
)

var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_`)

// Resolver plans destination paths under the processed root.
type Resolver struct {
	root   string
	exists func(string) bool

	// Test seams; production uses crypto/rand and the wall clock.
	randomHex func(n int) (string, error)
	now       func() time.Time
}

// NewResolver creates a Resolver rooted at the processed directory.
// exists reports whether a path is already taken.
func NewResolver(root string, exists func(string) bool) *Resolver {
	return &Resolver{
		root:      root,
		exists:    exists,
		randomHex: randomHex,
		now:       time.Now,
	}
}

// Resolve computes the destination for a file corrected to the given
// date: processed/<YYYY>/<MM>/<YYYY-MM-DD>_<name>. A date prefix already
// present on the name is replaced rather than stacked, so re-corrections
// do not accumulate prefixes.
//
// If the computed path is taken, up to maxAttempts random suffixes are
// tried before the extension. If every attempt collides, a suffix derived
// from the current high-resolution timestamp is used and accepted without
// re-checking.
func (r *Resolver) Resolve(date time.Time, originalFilename string) (string, error) {
	if originalFilename == "" || originalFilename != filepath.Base(originalFilename) {
		return "", fmt.Errorf("invalid original filename: %q", originalFilename)
	}

	dir := filepath.Join(r.root, date.Format("2006"), date.Format("01"))
	name := date.Format("2006-01-02") + "_" + datePrefixRe.ReplaceAllString(originalFilename, "")

	candidate := filepath.Join(dir, name)
	if !r.exists(candidate) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		suffix, err := r.randomHex(suffixBytes)
		if err != nil {
			return "", fmt.Errorf("generating collision suffix: %w", err)
		}
		candidate = filepath.Join(dir, stem+"_"+suffix+ext)
		if !r.exists(candidate) {
			return candidate, nil
		}
	}

	// Astronomically unlikely to collide; not re-checked.
	stamp := strconv.FormatInt(r.now().UnixMilli(), 10)
	return filepath.Join(dir, stem+"_"+stamp+ext), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
