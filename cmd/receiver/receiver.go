package receiver

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/sync"
)

// Mocked out for unit testing.
var runReceiver = func(ctx context.Context, cfg config.Receiver) error {
	r, err := sync.NewReceiver(cfg)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

type flags struct {
	sharedDir, destDir, stateDir string
	pollInterval                 time.Duration
	atomic, watchEvents          bool
}

// New creates a new `receiver` command.
func New() *cobra.Command {
	var opts flags
	cmd := &cobra.Command{
		Use:   "receiver",
		Short: "Ingest new files from the shared directory into a local directory",
		Long: "Watch the shared directory, and copy each file that hasn't been " +
			"ingested yet into the destination directory.\n" +
			"Each path is only ingested once, even if it's later replaced.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(cmd, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&opts.sharedDir, "shared-dir", "",
		"The directory to ingest files from")
	cmd.Flags().StringVar(&opts.destDir, "dest-dir", "",
		"The directory to copy ingested files into")
	cmd.Flags().StringVar(&opts.stateDir, "state-dir", "",
		"Persist the ingested files in this directory so that they aren't "+
			"ingested again after a restart")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0,
		"How often to scan the shared directory")
	cmd.Flags().BoolVar(&opts.atomic, "atomic", false,
		"Write into a temporary file and rename it into place")
	cmd.Flags().BoolVar(&opts.watchEvents, "watch", false,
		"Scan immediately when the shared directory changes")
	return cmd
}

func run(cmd *cobra.Command, opts flags) error {
	cfg, err := util.LoadConfig(util.ConfigPath(cmd))
	if err != nil {
		return err
	}

	receiverCfg := applyFlags(cmd, cfg.Receiver, opts)
	if err := receiverCfg.Validate(); err != nil {
		return errors.WithContext(err, "validate config")
	}
	return runReceiver(util.SignalContext(), receiverCfg)
}

// applyFlags overrides the config with the flags that were explicitly set.
func applyFlags(cmd *cobra.Command, cfg config.Receiver, opts flags) config.Receiver {
	changed := cmd.Flags().Changed
	if changed("shared-dir") {
		cfg.SharedDir = opts.sharedDir
	}
	if changed("dest-dir") {
		cfg.DestDir = opts.destDir
	}
	if changed("state-dir") {
		cfg.StateDir = opts.stateDir
	}
	if changed("poll-interval") {
		cfg.PollInterval = config.Duration{Duration: opts.pollInterval}
	}
	if changed("atomic") {
		cfg.Atomic = opts.atomic
	}
	if changed("watch") {
		cfg.WatchEvents = opts.watchEvents
	}
	return cfg
}
