package sync

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/errors"
)

// ProcessedSet tracks the paths an agent has already transferred. It's only
// accessed from the agent's polling loop, so it isn't threadsafe.
type ProcessedSet struct {
	paths map[string]struct{}

	// store is nil unless the set is persisted.
	store Store
	log   log.FieldLogger
}

// NewProcessedSet returns an empty, in-memory ProcessedSet.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{
		paths: map[string]struct{}{},
		log:   log.StandardLogger(),
	}
}

// LoadProcessedSet returns a ProcessedSet that is persisted in `store`, and
// seeded with the paths already in it.
func LoadProcessedSet(store Store) (*ProcessedSet, error) {
	paths, err := store.Paths()
	if err != nil {
		return nil, errors.WithContext(err, "load processed paths")
	}

	set := NewProcessedSet()
	set.store = store
	for _, path := range paths {
		set.paths[path] = struct{}{}
	}
	return set, nil
}

// Has returns whether `path` has been processed.
func (set *ProcessedSet) Has(path string) bool {
	_, ok := set.paths[path]
	return ok
}

// Add marks `path` as processed.
func (set *ProcessedSet) Add(path string) {
	set.paths[path] = struct{}{}
	if set.store != nil {
		if err := set.store.Add(path); err != nil {
			set.log.WithError(err).WithField("path", path).Warn(
				"Failed to persist processed file. It may be transferred again after a restart.")
		}
	}
}

// Remove forgets `path`.
func (set *ProcessedSet) Remove(path string) {
	delete(set.paths, path)
	if set.store != nil {
		if err := set.store.Remove(path); err != nil {
			set.log.WithError(err).WithField("path", path).Warn(
				"Failed to remove processed file from the state store.")
		}
	}
}

// Retain removes every path that isn't in `current`, and returns the removed
// paths.
func (set *ProcessedSet) Retain(current map[string]struct{}) (removed []string) {
	for path := range set.paths {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}

	sort.Strings(removed)
	for _, path := range removed {
		set.Remove(path)
	}
	return removed
}

// Len returns the number of processed paths.
func (set *ProcessedSet) Len() int {
	return len(set.paths)
}

// Paths returns the processed paths in sorted order.
func (set *ProcessedSet) Paths() []string {
	paths := make([]string, 0, len(set.paths))
	for path := range set.paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
