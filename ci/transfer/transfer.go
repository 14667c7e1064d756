package transfer

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/ci/util"
)

// Test runs both agents with `dirsync pair`, and checks that files travel
// from the source directory to the destination directory.
func Test(t *testing.T, helper *util.TestHelper) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sourceDir := helper.Config.Sender.SourceDir
	sharedDir := helper.Config.Sender.SharedDir
	destDir := helper.Config.Receiver.DestDir

	log.Info("Starting dirsync pair")
	pairCtx, stopPair := context.WithCancel(ctx)
	waitErr, err := helper.Start(pairCtx, "pair", "pair")
	require.NoError(t, err, "start dirsync pair")
	defer func() {
		stopPair()
		assert.NoError(t, <-waitErr, "run dirsync pair")
	}()

	require.NoError(t, util.WriteFile(sourceDir, "a.txt", "0123456789"))
	require.NoError(t, util.WriteFile(sourceDir, "b.txt", ""))

	log.Info("Waiting for a.txt to be ingested")
	require.True(t, util.WaitForFile(ctx, filepath.Join(destDir, "a.txt"), "0123456789"))
	assert.False(t, util.Exists(filepath.Join(sharedDir, "b.txt")),
		"empty files shouldn't be published")

	log.Info("Filling in b.txt")
	require.NoError(t, util.WriteFile(sourceDir, "b.txt", "hello"))
	require.True(t, util.WaitForFile(ctx, filepath.Join(destDir, "b.txt"), "hello"))

	t.Run("Republish", func(t *testing.T) { testRepublish(ctx, t, helper) })
	t.Run("Status", func(t *testing.T) { testStatus(ctx, t, helper) })
}

// testRepublish checks that a recreated source file is published again, but
// not ingested again.
func testRepublish(ctx context.Context, t *testing.T, helper *util.TestHelper) {
	sourceDir := helper.Config.Sender.SourceDir
	sharedDir := helper.Config.Sender.SharedDir
	destDir := helper.Config.Receiver.DestDir

	require.NoError(t, os.Remove(filepath.Join(sourceDir, "a.txt")))

	// Give the sender a few polls to notice that the file is gone.
	time.Sleep(5 * util.PollInterval)
	require.NoError(t, util.WriteFile(sourceDir, "a.txt", "second"))
	require.True(t, util.WaitForFile(ctx, filepath.Join(sharedDir, "a.txt"), "second"))

	time.Sleep(5 * util.PollInterval)
	contents, err := ioutil.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(contents))
}

func testStatus(ctx context.Context, t *testing.T, helper *util.TestHelper) {
	out, err := helper.Run(ctx, "status", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Outgoing (sender)")
	assert.Regexp(t, `a\.txt +Published`, string(out))
	assert.Regexp(t, `b\.txt +Ingested`, string(out))
}
