package sync

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/pkg/config"
)

const (
	sourceDir = "/app/outbox"
	sharedDir = "/shared"
	destDir   = "/app/inbox"
)

func senderConfig() config.Sender {
	return config.Sender{
		SourceDir: sourceDir,
		SharedDir: sharedDir,
		Agent:     config.Agent{PollInterval: config.Duration{Duration: time.Second}},
	}
}

func receiverConfig() config.Receiver {
	return config.Receiver{
		SharedDir: sharedDir,
		DestDir:   destDir,
		Agent:     config.Agent{PollInterval: config.Duration{Duration: time.Second}},
	}
}

// resetFs swaps in an empty in-memory filesystem containing the three
// directories, and restores the real copy implementation.
func resetFs(t *testing.T) {
	fs = afero.NewMemMapFs()
	copyFile = copyFileImpl
	for _, dir := range []string{sourceDir, sharedDir, destDir} {
		require.NoError(t, fs.MkdirAll(dir, 0755))
	}
}

func newTestSender(t *testing.T, cfg config.Sender) (*Sender, *test.Hook) {
	s, err := NewSender(cfg)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.log = logger.WithField("agent", "sender")
	s.processed.log = s.log
	return s, hook
}

func newTestReceiver(t *testing.T, cfg config.Receiver) (*Receiver, *test.Hook) {
	r, err := NewReceiver(cfg)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r.log = logger.WithField("agent", "receiver")
	r.processed.log = r.log
	return r, hook
}

func writeFile(t *testing.T, path, contents string) {
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
}

func readFile(t *testing.T, path string) string {
	contents, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(contents)
}

func assertExists(t *testing.T, path string) {
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists, "expected %s to exist", path)
}

func assertDoesNotExist(t *testing.T, path string) {
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists, "expected %s to not exist", path)
}

func dirContents(t *testing.T, dir string) (names []string) {
	infos, err := afero.ReadDir(fs, dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

// hasMessage returns whether any logged entry has the given message.
func hasMessage(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Level == level && entry.Message == msg {
			return true
		}
	}
	return false
}
