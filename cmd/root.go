package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/dirsync/cmd/config"
	"github.com/sidkik/dirsync/cmd/pair"
	"github.com/sidkik/dirsync/cmd/receiver"
	"github.com/sidkik/dirsync/cmd/sender"
	"github.com/sidkik/dirsync/cmd/status"
	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/cmd/version"
	"github.com/sidkik/dirsync/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "DIRSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	setupLogging()
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dirsync",
		Short: "Relay files between directories through a shared directory",
		Long: "dirsync moves files between two isolated environments that can " +
			"both access a shared directory.\n" +
			"The sender publishes new files from a local directory into the " +
			"shared directory, and the receiver copies them into its own " +
			"local directory.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(util.ConfigFlag, config.DefaultConfigPath,
		"The path to the dirsync config. If it doesn't exist, the defaults are used.")

	rootCmd.AddCommand(
		configCmd.New(),
		pair.New(),
		receiver.New(),
		sender.New(),
		status.New(),
		version.New(),
	)
	return rootCmd
}
