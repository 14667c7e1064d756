package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Store persists a ProcessedSet so that it survives restarts.
type Store interface {
	// Paths returns every path in the store.
	Paths() ([]string, error)
	Add(path string) error
	Remove(path string) error
}

type diskStore struct {
	db *diskv.Diskv
}

// agentStore returns the Store for `agent` inside the state directory. Each
// agent gets its own subdirectory so that a sender and a receiver can share a
// state directory without loading each other's paths.
func agentStore(stateDir, agent string) Store {
	return NewDiskStore(filepath.Join(stateDir, agent))
}

// NewDiskStore returns a Store that keeps one small file per path inside
// `dir`.
func NewDiskStore(dir string) Store {
	return diskStore{
		db: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024,
		}),
	}
}

// Paths can't be used as keys directly because they contain separators.
func storeKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

func (s diskStore) Paths() ([]string, error) {
	// Stop diskv's directory walk if we return early.
	cancel := make(chan struct{})
	defer close(cancel)

	var paths []string
	for key := range s.db.Keys(cancel) {
		path, err := s.db.Read(key)
		if err != nil {
			return nil, errors.WithContext(err, "read "+key)
		}
		paths = append(paths, string(path))
	}
	return paths, nil
}

func (s diskStore) Add(path string) error {
	return s.db.Write(storeKey(path), []byte(path))
}

func (s diskStore) Remove(path string) error {
	err := s.db.Erase(storeKey(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
