// Package cursor persists the last-successful-sync timestamp for the
// people change feed.
package cursor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FileName is the cursor file kept under the entity storage root.
const FileName = "last_sync.txt"

// throttleInterval is the minimum spacing between sync attempts. The
// cursor file's mtime tracks the last attempt; its content tracks the
// last remote timestamp synced through. Both signals are kept because a
// run that bootstraps a fresh cursor still counts as an attempt.
const throttleInterval = 24 * time.Hour

// Store reads and writes the sync cursor file.
type Store struct {
	path string
}

// NewStore creates a cursor store rooted at the entity storage directory.
func NewStore(root string) *Store {
	return &Store{path: filepath.Join(root, FileName)}
}

// Path returns the cursor file location.
func (s *Store) Path() string {
	return s.path
}

// ShouldRun reports whether a sync attempt is due. It returns false only
// when the cursor file exists and was written less than the throttle
// interval before now.
func (s *Store) ShouldRun(now time.Time) bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return true
	}
	return now.Sub(info.ModTime()) >= throttleInterval
}

// Load returns the stored timestamp. A missing file or unparsable
// content is reported as absence, never as an error, so a corrupt
// cursor degrades to a fresh baseline instead of failing the run.
func (s *Store) Load() (time.Time, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return time.Time{}, false
	}
	ticks, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		logrus.WithField("path", s.path).Warn("Cursor file content is not a valid timestamp, treating as absent")
		return time.Time{}, false
	}
	return time.Unix(0, ticks).UTC(), true
}

// Save overwrites the cursor file with now's nanosecond timestamp.
func (s *Store) Save(now time.Time) error {
	value := strconv.FormatInt(now.UTC().UnixNano(), 10)
	return os.WriteFile(s.path, []byte(value), 0644)
}
