// Package index enumerates the person records already cached on disk.
package index

import (
	"fmt"
	"os"
	"path/filepath"
)

// Index lists locally cached entities under a storage root. Each entity
// is a child directory named by its identifier.
type Index struct {
	root string
}

// New creates an index over the given storage root.
func New(root string) *Index {
	return &Index{root: root}
}

// Root returns the storage root directory.
func (i *Index) Root() string {
	return i.root
}

// EnsureRoot creates the storage root if it does not exist, so a
// first-ever run does not fail on an empty installation.
func (i *Index) EnsureRoot() error {
	if err := os.MkdirAll(i.root, 0755); err != nil {
		return fmt.Errorf("failed to create entity storage root: %w", err)
	}
	return nil
}

// List returns the identifiers of all locally cached entities, taken as
// the immediate child directory names of the storage root. Regular
// files (such as the cursor file) are skipped.
func (i *Index) List() ([]string, error) {
	if err := i.EnsureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(i.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity storage root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// EntityPath returns the data directory for a single entity.
func (i *Index) EntityPath(id string) string {
	return filepath.Join(i.root, id)
}
