package sender

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
var runSender = func(ctx context.Context, cfg config.Sender) error {
	s, err := sync.NewSender(cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

type flags struct {
	sourceDir, sharedDir, stateDir string
	pollInterval                   time.Duration
	atomic, watchEvents            bool
	include, exclude               []string
	maxSize                        int64
}

// New creates a new `sender` command.
func New() *cobra.Command {
	var opts flags
	cmd := &cobra.Command{
		Use:   "sender",
		Short: "Publish new files from a local directory into the shared directory",
		Long: "Watch the source directory, and copy each new file that passes " +
			"validation into the shared directory.\n" +
			"A file is published once per appearance. If it's deleted and " +
			"created again, it's published again.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(cmd, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&opts.sourceDir, "source-dir", "",
		"The directory to publish files from")
	cmd.Flags().StringVar(&opts.sharedDir, "shared-dir", "",
		"The directory to publish files into")
	cmd.Flags().StringVar(&opts.stateDir, "state-dir", "",
		"Persist the published files in this directory so that they aren't "+
			"published again after a restart")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0,
		"How often to scan the source directory")
	cmd.Flags().BoolVar(&opts.atomic, "atomic", false,
		"Write into a temporary file and rename it into place")
	cmd.Flags().BoolVar(&opts.watchEvents, "watch", false,
		"Scan immediately when the source directory changes")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil,
		"Only publish files whose name matches one of these patterns")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil,
		"Never publish files whose name matches one of these patterns")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", 0,
		"Never publish files larger than this many bytes")
	return cmd
}

func run(cmd *cobra.Command, opts flags) error {
	cfg, err := util.LoadConfig(util.ConfigPath(cmd))
	if err != nil {
		return err
	}

	senderCfg := applyFlags(cmd, cfg.Sender, opts)
	if err := senderCfg.Validate(); err != nil {
		return errors.WithContext(err, "validate config")
	}
	return runSender(util.SignalContext(), senderCfg)
}

// applyFlags overrides the config with the flags that were explicitly set.
func applyFlags(cmd *cobra.Command, cfg config.Sender, opts flags) config.Sender {
	changed := cmd.Flags().Changed
	if changed("source-dir") {
		cfg.SourceDir = opts.sourceDir
	}
	if changed("shared-dir") {
		cfg.SharedDir = opts.sharedDir
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
	if changed("include") {
		cfg.Policy.Include = opts.include
	}
	if changed("exclude") {
		cfg.Policy.Exclude = opts.exclude
	}
	if changed("max-size") {
		cfg.Policy.MaxSize = opts.maxSize
	}
	return cfg
}
