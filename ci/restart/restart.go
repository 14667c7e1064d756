package restart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/dirsync/ci/util"
)

// Test restarts the receiver, and checks that files ingested before the
// restart aren't ingested again, since the receiver is configured with a
// state directory.
func Test(t *testing.T, helper *util.TestHelper) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sharedDir := helper.Config.Receiver.SharedDir
	destDir := helper.Config.Receiver.DestDir

	require.NoError(t, util.WriteFile(sharedDir, "a.txt", "contents"))

	log.Info("Starting dirsync receiver")
	receiverCtx, stopReceiver := context.WithCancel(ctx)
	waitErr, err := helper.Start(receiverCtx, "receiver", "receiver")
	require.NoError(t, err, "start dirsync receiver")
	require.True(t, util.WaitForFile(ctx, filepath.Join(destDir, "a.txt"), "contents"))

	log.Info("Killing dirsync receiver")
	stopReceiver()
	require.NoError(t, <-waitErr, "run dirsync receiver initial")

	require.NoError(t, os.Remove(filepath.Join(destDir, "a.txt")))

	log.Info("Restarting dirsync receiver")
	receiverCtx, stopReceiver = context.WithCancel(ctx)
	waitErr, err = helper.Start(receiverCtx, "receiver", "receiver")
	require.NoError(t, err, "start dirsync receiver again")
	defer func() {
		stopReceiver()
		assert.NoError(t, <-waitErr, "run dirsync receiver again")
	}()

	// New files are still ingested.
	require.NoError(t, util.WriteFile(sharedDir, "c.txt", "new"))
	require.True(t, util.WaitForFile(ctx, filepath.Join(destDir, "c.txt"), "new"))
	assert.False(t, util.Exists(filepath.Join(destDir, "a.txt")),
		"a.txt shouldn't be ingested again after a restart")
}
