package sync

import (
	"context"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Sender publishes files from a local source directory into the shared
// directory. A file is published at most once per appearance: it becomes
// eligible again only after it disappears from the source directory.
type Sender struct {
	sourceDir string
	sharedDir string
	atomic    bool

	validator Validator
	processed *ProcessedSet

	poller
}

// NewSender creates a Sender from its config. The config must be valid.
func NewSender(cfg config.Sender) (*Sender, error) {
	processed := NewProcessedSet()
	if cfg.StateDir != "" {
		var err error
		processed, err = LoadProcessedSet(agentStore(cfg.StateDir, "sender"))
		if err != nil {
			return nil, errors.WithContext(err, "load state")
		}
	}

	s := &Sender{
		sourceDir: cfg.SourceDir,
		sharedDir: cfg.SharedDir,
		atomic:    cfg.Atomic,
		validator: NewValidator(cfg.Policy),
		processed: processed,
		poller:    newPoller("sender", cfg.SourceDir, cfg.PollInterval.Duration, cfg.WatchEvents),
	}
	s.processed.log = s.log
	return s, nil
}

// Processed returns the paths published during the current appearance of
// each file.
func (s *Sender) Processed() []string {
	return s.processed.Paths()
}

// Run creates the source and shared directories if they're missing, and then
// polls the source directory until `ctx` is cancelled.
func (s *Sender) Run(ctx context.Context) error {
	for _, dir := range []string{s.sourceDir, s.sharedDir} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.WithContext(err, "create "+dir)
		}
	}

	s.log.WithField("dir", s.sourceDir).Infof("Watching directory. Publishing to %s", s.sharedDir)
	if initial, err := ListFiles(s.sourceDir); err == nil {
		s.log.Infof("Initial contents of %s: %d files", s.sourceDir, len(initial))
	}

	s.run(ctx, s.Poll)
	return nil
}

// Poll scans the source directory once. It publishes every new file that
// passes validation, and then forgets files that are no longer present.
func (s *Sender) Poll(ctx context.Context) (res Result) {
	paths, err := ListFiles(s.sourceDir)
	if err != nil {
		s.handleError(&res, err)
		return res
	}

	current := map[string]struct{}{}
	for _, path := range paths {
		current[path] = struct{}{}
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if s.processed.Has(path) {
			continue
		}

		s.log.WithField("path", path).Info("Found new file")
		if err := s.Process(path); err != nil {
			s.handleError(&res, err)
			continue
		}
		res.Copied = append(res.Copied, path)
	}

	res.Forgotten = s.processed.Retain(current)
	for _, path := range res.Forgotten {
		s.log.WithField("path", path).Debug("File removed from source directory. " +
			"It will be published again if it reappears.")
	}
	return res
}

// Process validates `path` and copies it into the shared directory. The path
// is only marked as processed if the copy succeeds, so files that fail are
// retried on the next poll. It's a no-op for paths already processed.
func (s *Sender) Process(path string) error {
	if s.processed.Has(path) {
		return nil
	}

	dst := filepath.Join(s.sharedDir, filepath.Base(path))
	s.log.WithFields(log.Fields{
		"path": path,
		"dst":  dst,
	}).Debug("Processing file")

	if err := s.validator.Check(path); err != nil {
		return err
	}
	s.log.WithField("path", path).Info("File passed validation")

	if err := copyFile(path, dst, s.atomic); err != nil {
		return err
	}

	s.processed.Add(path)
	s.log.WithField("path", path).Infof("Published %s to %s", filepath.Base(path), s.sharedDir)
	return nil
}
