package pair

import (
	"context"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/sync"
)

// agent is implemented by sync.Sender and sync.Receiver.
type agent interface {
	Run(context.Context) error
}

// Mocked out for unit testing.
var (
	newSender = func(cfg config.Sender) (agent, error) {
		return sync.NewSender(cfg)
	}
	newReceiver = func(cfg config.Receiver) (agent, error) {
		return sync.NewReceiver(cfg)
	}
)

type flags struct {
	sourceDir, sharedDir, destDir string
	pollInterval                  time.Duration
}

// New creates a new `pair` command.
func New() *cobra.Command {
	var opts flags
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Run a sender and a receiver in the same process",
		Long: "Run both agents against the same shared directory. " +
			"This is mostly useful for trying out dirsync locally.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(cmd, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&opts.sourceDir, "source-dir", "",
		"The directory the sender publishes files from")
	cmd.Flags().StringVar(&opts.sharedDir, "shared-dir", "",
		"The shared directory used by both agents")
	cmd.Flags().StringVar(&opts.destDir, "dest-dir", "",
		"The directory the receiver copies files into")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0,
		"How often both agents scan their directories")
	return cmd
}

func run(cmd *cobra.Command, opts flags) error {
	cfg, err := util.LoadConfig(util.ConfigPath(cmd))
	if err != nil {
		return err
	}

	cfg = applyFlags(cmd, cfg, opts)
	if err := cfg.Sender.Validate(); err != nil {
		return errors.WithContext(err, "validate sender config")
	}
	if err := cfg.Receiver.Validate(); err != nil {
		return errors.WithContext(err, "validate receiver config")
	}
	if err := validatePair(cfg); err != nil {
		return err
	}
	return runPair(util.SignalContext(), cfg)
}

// validatePair rejects configs where the receiver would ingest into the
// sender's source directory, and overwrite the files being published. The
// default config does this, since it expects each agent in its own container.
func validatePair(cfg config.Config) error {
	if filepath.Clean(cfg.Sender.SourceDir) == filepath.Clean(cfg.Receiver.DestDir) {
		return errors.NewFriendlyError("The sender's source directory and the "+
			"receiver's destination directory are both %s.\n"+
			"Set --source-dir or --dest-dir so that they differ.", cfg.Sender.SourceDir)
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg config.Config, opts flags) config.Config {
	changed := cmd.Flags().Changed
	if changed("source-dir") {
		cfg.Sender.SourceDir = opts.sourceDir
	}
	if changed("shared-dir") {
		cfg.Sender.SharedDir = opts.sharedDir
		cfg.Receiver.SharedDir = opts.sharedDir
	}
	if changed("dest-dir") {
		cfg.Receiver.DestDir = opts.destDir
	}
	if changed("poll-interval") {
		interval := config.Duration{Duration: opts.pollInterval}
		cfg.Sender.PollInterval = interval
		cfg.Receiver.PollInterval = interval
	}
	return cfg
}

// runPair runs both agents until `ctx` is cancelled, or until either of them
// fails.
func runPair(ctx context.Context, cfg config.Config) error {
	if filepath.Clean(cfg.Sender.SharedDir) != filepath.Clean(cfg.Receiver.SharedDir) {
		log.WithFields(log.Fields{
			"sender":   cfg.Sender.SharedDir,
			"receiver": cfg.Receiver.SharedDir,
		}).Warn("The sender and receiver use different shared directories. " +
			"Files published by the sender won't reach the receiver.")
	}

	s, err := newSender(cfg.Sender)
	if err != nil {
		return errors.WithContext(err, "create sender")
	}

	r, err := newReceiver(cfg.Receiver)
	if err != nil {
		return errors.WithContext(err, "create receiver")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.WithContext(s.Run(ctx), "sender")
	})
	g.Go(func() error {
		return errors.WithContext(r.Run(ctx), "receiver")
	})
	return g.Wait()
}
