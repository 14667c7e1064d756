package sync

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedSet(t *testing.T) {
	set := NewProcessedSet()
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Has("/shared/a.txt"))

	set.Add("/shared/b.txt")
	set.Add("/shared/a.txt")
	set.Add("/shared/a.txt")
	assert.True(t, set.Has("/shared/a.txt"))
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"/shared/a.txt", "/shared/b.txt"}, set.Paths())

	set.Remove("/shared/b.txt")
	assert.False(t, set.Has("/shared/b.txt"))
	assert.Equal(t, []string{"/shared/a.txt"}, set.Paths())
}

func TestProcessedSetRetain(t *testing.T) {
	set := NewProcessedSet()
	for _, path := range []string{"/src/a", "/src/b", "/src/c"} {
		set.Add(path)
	}

	removed := set.Retain(map[string]struct{}{
		"/src/b": {},
		"/src/d": {},
	})
	assert.Equal(t, []string{"/src/a", "/src/c"}, removed)
	assert.Equal(t, []string{"/src/b"}, set.Paths())

	assert.Empty(t, set.Retain(map[string]struct{}{"/src/b": {}}))
}

func TestPersistedProcessedSet(t *testing.T) {
	dir, err := ioutil.TempDir("", "dirsync-state")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	set, err := LoadProcessedSet(NewDiskStore(dir))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	set.Add("/shared/a.txt")
	set.Add("/shared/nested/b.txt")
	set.Add("/shared/c.txt")
	set.Remove("/shared/c.txt")

	// Removing a path that was never stored isn't an error.
	set.Remove("/shared/never-added")

	reloaded, err := LoadProcessedSet(NewDiskStore(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"/shared/a.txt", "/shared/nested/b.txt"}, reloaded.Paths())
}

func TestDiskStoreUnreadableEntry(t *testing.T) {
	dir, err := ioutil.TempDir("", "dirsync-state")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	// Dangling symlinks are listed as keys, but can't be read.
	for _, name := range []string{"a-broken", "b-broken", "c-broken"} {
		require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, name)))
	}

	goroutines := runtime.NumGoroutine()
	_, err = LoadProcessedSet(NewDiskStore(dir))
	assert.Error(t, err)

	// The directory walk must not stay blocked on the remaining keys.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= goroutines
	}, time.Second, 10*time.Millisecond)
}

func TestAgentStoresAreSeparate(t *testing.T) {
	dir, err := ioutil.TempDir("", "dirsync-state")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	senderSet, err := LoadProcessedSet(agentStore(dir, "sender"))
	require.NoError(t, err)
	senderSet.Add("/app/outbox/a.txt")

	receiverSet, err := LoadProcessedSet(agentStore(dir, "receiver"))
	require.NoError(t, err)
	receiverSet.Add("/shared/a.txt")

	senderSet, err = LoadProcessedSet(agentStore(dir, "sender"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, senderSet.Paths())

	receiverSet, err = LoadProcessedSet(agentStore(dir, "receiver"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/shared/a.txt"}, receiverSet.Paths())
}
