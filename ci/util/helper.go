package util

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	cliUtil "github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/fswatch"
)

// PollInterval is the poll interval used by the agents under test.
const PollInterval = 100 * time.Millisecond

// TestHelper contains methods commonly used during integration tests. Each
// helper owns a scratch directory holding the source, shared and destination
// directories, the agents' config, and their logs.
type TestHelper struct {
	Binary     string
	Root       string
	ConfigPath string
	Config     config.Config
}

// NewTestHelper creates a new TestHelper that runs `binary`.
func NewTestHelper(binary string) (*TestHelper, error) {
	root, err := ioutil.TempDir("", "dirsync-ci")
	if err != nil {
		return nil, errors.WithContext(err, "create root")
	}

	interval := config.Duration{Duration: PollInterval}
	cfg := config.Defaults()
	cfg.Sender.SourceDir = filepath.Join(root, "outbox")
	cfg.Sender.SharedDir = filepath.Join(root, "shared")
	cfg.Sender.PollInterval = interval
	cfg.Receiver.SharedDir = filepath.Join(root, "shared")
	cfg.Receiver.DestDir = filepath.Join(root, "inbox")
	cfg.Receiver.StateDir = filepath.Join(root, "receiver-state")
	cfg.Receiver.PollInterval = interval

	for _, dir := range []string{cfg.Sender.SourceDir, cfg.Sender.SharedDir, cfg.Receiver.DestDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithContext(err, "create directory")
		}
	}

	configPath := filepath.Join(root, "dirsync.yaml")
	if err := config.Write(configPath, cfg); err != nil {
		return nil, errors.WithContext(err, "write config")
	}

	return &TestHelper{
		Binary:     binary,
		Root:       root,
		ConfigPath: configPath,
		Config:     cfg,
	}, nil
}

// Cleanup removes the scratch directory.
func (helper *TestHelper) Cleanup() {
	if err := os.RemoveAll(helper.Root); err != nil {
		log.WithError(err).Warn("Failed to remove test directory")
	}
}

// LogPath returns where the logs of the command started with `name` are
// written.
func (helper *TestHelper) LogPath(name string) string {
	return filepath.Join(helper.Root, name+".log")
}

// Start starts the given dirsync command, and appends its logs to
// LogPath(name). It returns a channel for obtaining any errors after starting
// the command, and any errors from starting the command. The command is
// stopped with SIGTERM when `ctx` is cancelled.
func (helper *TestHelper) Start(ctx context.Context, name string, args ...string) (
	chan error, error) {

	logFile, err := os.OpenFile(helper.LogPath(name),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.WithContext(err, "open log file")
	}

	cmd := exec.Command(helper.Binary, helper.withConfig(args)...)
	cmd.Stderr = logFile
	cmd.Stdout = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}

	errChan := make(chan error)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		defer logFile.Close()
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errChan <- errors.WithContext(err, "kill")
				return
			}
			if err := <-waitErr; err != nil {
				errChan <- errors.WithContext(err, "shutdown")
			}
		case err := <-waitErr:
			errChan <- fmt.Errorf("crashed (%v): see %s", err, helper.LogPath(name))
		}
	}()
	return errChan, nil
}

// Run runs the given dirsync command, and returns its stdout.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	stderr := bytes.NewBuffer(nil)
	cmd := exec.CommandContext(ctx, helper.Binary, helper.withConfig(args)...)
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s (stderr: %s)", err, stderr)
	}
	return out, nil
}

func (helper *TestHelper) withConfig(args []string) []string {
	return append(args, "--"+cliUtil.ConfigFlag, helper.ConfigPath)
}

// WriteFile writes `contents` to `name` inside `dir`.
func WriteFile(dir, name, contents string) error {
	return ioutil.WriteFile(filepath.Join(dir, name), []byte(contents), 0644)
}

// WaitForFile blocks until the file at `path` has the expected contents, or
// `ctx` expires. It's woken up early by changes to the file's directory.
func WaitForFile(ctx context.Context, path, expContents string) bool {
	var trigger <-chan struct{}
	if events, stop, err := fswatch.Watch(filepath.Dir(path)); err == nil {
		defer stop()
		trigger = events
	} else {
		log.WithError(err).Debug("Failed to watch directory. Falling back to polling.")
	}

	return TestWithRetry(ctx, trigger, func() bool {
		contents, err := ioutil.ReadFile(path)
		return err == nil && string(contents) == expContents
	})
}

// TestWithRetry runs `test` until it passes, or `ctx` expires. It retries
// with exponential backoff, or immediately if `trigger` fires.
func TestWithRetry(ctx context.Context, trigger <-chan struct{}, test func() bool) bool {
	maxSleepTime := 5 * time.Second
	sleepTime := 50 * time.Millisecond
	for {
		if test() {
			return true
		}

		select {
		case <-ctx.Done():
			return test()
		case <-time.After(sleepTime):
			sleepTime *= 2
			if sleepTime > maxSleepTime {
				sleepTime = maxSleepTime
			}
		case <-trigger:
		}
	}
}

// Exists returns whether `path` exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
