package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked out for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError prints `err` and exits. Friendly errors are printed as-is,
// since their message is meant for the user. Everything else is logged along
// with its context.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
	} else {
		log.WithError(err).Error("Fatal error")
	}
	exit(1)
}

// HandlePanic logs a panic along with its stack trace before exiting. It
// should be deferred at the top of main.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		exit(1)
	}
}

// SignalContext returns a context that's cancelled when the process receives
// SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Received signal. Shutting down.")
		signal.Stop(sigChan)
		cancel()
	}()
	return ctx
}

// ConfigFlag is the persistent flag that overrides the config path.
const ConfigFlag = "config"

// ConfigPath returns the config path requested on the command line.
func ConfigPath(cmd *cobra.Command) string {
	if path, err := cmd.Flags().GetString(ConfigFlag); err == nil && path != "" {
		return path
	}
	return config.DefaultConfigPath
}

// LoadConfig reads the config at `path`, falling back to the defaults if it
// doesn't exist. Parse failures are returned as friendly errors.
func LoadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if _, ok := errors.GetFriendlyMessage(err); ok {
			return config.Config{}, err
		}
		return config.Config{}, errors.NewFriendlyError(
			"Failed to load config from %s:\n%s", path, err)
	}
	return cfg, nil
}
