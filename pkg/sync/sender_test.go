package sync

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/pkg/errors"
)

func TestSenderPublishesOncePerAppearance(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())
	ctx := context.Background()

	writeFile(t, "/app/outbox/a.txt", "first")
	res := s.Poll(ctx)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Copied)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "first", readFile(t, "/shared/a.txt"))

	// Changes to a file that's still present aren't published again.
	writeFile(t, "/app/outbox/a.txt", "second")
	res = s.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Equal(t, "first", readFile(t, "/shared/a.txt"))
	assert.Equal(t, []string{"/app/outbox/a.txt"}, s.Processed())

	// Once the file disappears, its entry is retired.
	require.NoError(t, fs.Remove("/app/outbox/a.txt"))
	res = s.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Forgotten)
	assert.Empty(t, s.Processed())

	// The published copy is left alone.
	assert.Equal(t, "first", readFile(t, "/shared/a.txt"))

	// Re-creating the file is a new appearance.
	writeFile(t, "/app/outbox/a.txt", "third")
	res = s.Poll(ctx)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Copied)
	assert.Equal(t, "third", readFile(t, "/shared/a.txt"))
}

func TestSenderDoesNotModifySource(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())

	writeFile(t, "/app/outbox/a.txt", "contents")
	s.Poll(context.Background())

	assert.Equal(t, "contents", readFile(t, "/app/outbox/a.txt"))
	assert.Equal(t, []string{"a.txt"}, dirContents(t, sourceDir))
}

func TestSenderValidationGate(t *testing.T) {
	resetFs(t)
	s, hook := newTestSender(t, senderConfig())
	ctx := context.Background()

	writeFile(t, "/app/outbox/b.txt", "")
	for i := 0; i < 3; i++ {
		res := s.Poll(ctx)
		assert.Empty(t, res.Copied)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, errors.ValidationError{
			Path:   "/app/outbox/b.txt",
			Reason: errors.ReasonEmpty,
		}, res.Errors[0])
	}
	assertDoesNotExist(t, "/shared/b.txt")
	assert.Empty(t, s.Processed())
	assert.True(t, hasMessage(hook, logrus.WarnLevel, "Skipped file. It failed validation."))

	// The rejected file was never marked as processed, so it's published as
	// soon as it's valid.
	writeFile(t, "/app/outbox/b.txt", "hello")
	res := s.Poll(ctx)
	assert.Equal(t, []string{"/app/outbox/b.txt"}, res.Copied)
	assert.Equal(t, "hello", readFile(t, "/shared/b.txt"))
}

func TestSenderPolicy(t *testing.T) {
	resetFs(t)
	cfg := senderConfig()
	cfg.Policy.Exclude = []string{"*.part"}
	s, _ := newTestSender(t, cfg)

	writeFile(t, "/app/outbox/report.csv", "a,b,c")
	writeFile(t, "/app/outbox/upload.part", "partial")

	res := s.Poll(context.Background())
	assert.Equal(t, []string{"/app/outbox/report.csv"}, res.Copied)
	assert.Equal(t, []string{"report.csv"}, dirContents(t, sharedDir))
}

func TestSenderRetriesFailedCopies(t *testing.T) {
	resetFs(t)
	s, hook := newTestSender(t, senderConfig())
	ctx := context.Background()

	copyErr := errors.CopyError{Src: "/app/outbox/a.txt", Dst: "/shared/a.txt", Err: os.ErrPermission}
	calls := 0
	copyFile = func(src, dst string, atomic bool) error {
		calls++
		if calls == 1 {
			return copyErr
		}
		return copyFileImpl(src, dst, atomic)
	}
	defer func() { copyFile = copyFileImpl }()

	writeFile(t, "/app/outbox/a.txt", "contents")
	res := s.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Equal(t, []error{copyErr}, res.Errors)
	assert.Empty(t, s.Processed())
	assert.True(t, hasMessage(hook, logrus.ErrorLevel, "Failed to copy file. Will retry on the next poll."))

	res = s.Poll(ctx)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Copied)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "contents", readFile(t, "/shared/a.txt"))
}

func TestSenderSurvivesListingErrors(t *testing.T) {
	fs = afero.NewMemMapFs()
	s, hook := newTestSender(t, senderConfig())
	ctx := context.Background()

	// The source directory doesn't exist yet.
	res := s.Poll(ctx)
	require.Len(t, res.Errors, 1)
	assert.IsType(t, errors.ListingError{}, res.Errors[0])
	assert.True(t, hasMessage(hook, logrus.ErrorLevel, "Failed to list directory. Will retry in 1s."))

	require.NoError(t, fs.MkdirAll(sharedDir, 0755))
	writeFile(t, "/app/outbox/a.txt", "contents")
	res = s.Poll(ctx)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Copied)
}

func TestSenderListingErrorKeepsProcessedSet(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())
	ctx := context.Background()

	writeFile(t, "/app/outbox/a.txt", "contents")
	s.Poll(ctx)

	// A failed listing says nothing about which files exist, so nothing is
	// retired.
	memFs := fs
	fs = afero.NewMemMapFs()
	res := s.Poll(ctx)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, s.Processed())

	fs = memFs
	res = s.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Empty(t, res.Errors)
}

func TestSenderProcessIsIdempotent(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())

	calls := 0
	copyFile = func(src, dst string, atomic bool) error {
		calls++
		return copyFileImpl(src, dst, atomic)
	}
	defer func() { copyFile = copyFileImpl }()

	writeFile(t, "/app/outbox/a.txt", "contents")
	assert.NoError(t, s.Process("/app/outbox/a.txt"))
	assert.NoError(t, s.Process("/app/outbox/a.txt"))
	assert.Equal(t, 1, calls)
}

func TestSenderStopsOnCancelledContext(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())

	writeFile(t, "/app/outbox/a.txt", "contents")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Empty(t, res.Forgotten)
}

// The engine doesn't detect files that are still being written. Whatever
// bytes exist at poll time are published, and later writes aren't.
func TestSenderPublishesPartialWrites(t *testing.T) {
	resetFs(t)
	s, _ := newTestSender(t, senderConfig())
	ctx := context.Background()

	f, err := fs.Create("/app/outbox/big.bin")
	require.NoError(t, err)
	_, err = f.Write([]byte("first half"))
	require.NoError(t, err)

	res := s.Poll(ctx)
	assert.Equal(t, []string{"/app/outbox/big.bin"}, res.Copied)

	_, err = f.Write([]byte(", second half"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s.Poll(ctx)
	assert.Equal(t, "first half", readFile(t, "/shared/big.bin"))
}

func TestSenderAtomicPublication(t *testing.T) {
	resetFs(t)
	cfg := senderConfig()
	cfg.Atomic = true
	s, _ := newTestSender(t, cfg)

	writeFile(t, "/app/outbox/a.txt", "contents")
	res := s.Poll(context.Background())
	assert.Equal(t, []string{"/app/outbox/a.txt"}, res.Copied)
	assert.Equal(t, []string{"a.txt"}, dirContents(t, sharedDir))
}

func TestSenderPersistedState(t *testing.T) {
	resetFs(t)
	stateDir, err := ioutil.TempDir("", "dirsync-sender-state")
	require.NoError(t, err)
	defer os.RemoveAll(stateDir)

	cfg := senderConfig()
	cfg.StateDir = stateDir
	ctx := context.Background()

	writeFile(t, "/app/outbox/a.txt", "a")
	writeFile(t, "/app/outbox/b.txt", "b")
	first, _ := newTestSender(t, cfg)
	assert.Len(t, first.Poll(ctx).Copied, 2)

	// After a restart, files that are still present aren't published again,
	// and files that vanished while the sender was down are retired.
	require.NoError(t, fs.Remove("/app/outbox/b.txt"))
	second, _ := newTestSender(t, cfg)
	res := second.Poll(ctx)
	assert.Empty(t, res.Copied)
	assert.Equal(t, []string{"/app/outbox/b.txt"}, res.Forgotten)

	third, _ := newTestSender(t, cfg)
	assert.Equal(t, []string{"/app/outbox/a.txt"}, third.Processed())
}
