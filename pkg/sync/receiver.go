package sync

import (
	"context"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Receiver ingests files from the shared directory into a local destination
// directory. Each path is ingested at most once per run, even if the file is
// later removed and recreated in the shared directory.
// There's no validation step. The sender is responsible for only publishing
// eligible files.
type Receiver struct {
	sharedDir string
	destDir   string
	atomic    bool

	processed *ProcessedSet

	poller
}

// NewReceiver creates a Receiver from its config. The config must be valid.
func NewReceiver(cfg config.Receiver) (*Receiver, error) {
	processed := NewProcessedSet()
	if cfg.StateDir != "" {
		var err error
		processed, err = LoadProcessedSet(agentStore(cfg.StateDir, "receiver"))
		if err != nil {
			return nil, errors.WithContext(err, "load state")
		}
	}

	r := &Receiver{
		sharedDir: cfg.SharedDir,
		destDir:   cfg.DestDir,
		atomic:    cfg.Atomic,
		processed: processed,
		poller:    newPoller("receiver", cfg.SharedDir, cfg.PollInterval.Duration, cfg.WatchEvents),
	}
	r.processed.log = r.log
	return r, nil
}

// Processed returns the shared paths ingested so far.
func (r *Receiver) Processed() []string {
	return r.processed.Paths()
}

// Run creates the destination directory if it's missing, and then polls the
// shared directory until `ctx` is cancelled.
// The shared directory isn't created since it's expected to be provided by a
// mount. If it's unavailable, polls fail and are retried.
func (r *Receiver) Run(ctx context.Context) error {
	if err := fs.MkdirAll(r.destDir, 0755); err != nil {
		return errors.WithContext(err, "create "+r.destDir)
	}

	r.log.WithField("dir", r.sharedDir).Infof("Watching shared directory. Ingesting to %s", r.destDir)
	if initial, err := ListFiles(r.sharedDir); err == nil {
		r.log.Infof("Initial contents of %s: %d files", r.sharedDir, len(initial))
	}

	r.run(ctx, r.Poll)
	return nil
}

// Poll scans the shared directory once, and copies every file that hasn't
// been ingested yet into the destination directory. Failed copies are retried
// on the next poll.
func (r *Receiver) Poll(ctx context.Context) (res Result) {
	paths, err := ListFiles(r.sharedDir)
	if err != nil {
		r.handleError(&res, err)
		return res
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		if r.processed.Has(path) {
			continue
		}

		name := filepath.Base(path)
		dst := filepath.Join(r.destDir, name)
		r.log.WithField("path", path).Info("Found new file in shared directory")

		if err := copyFile(path, dst, r.atomic); err != nil {
			r.handleError(&res, err)
			continue
		}

		r.processed.Add(path)
		res.Copied = append(res.Copied, path)
		r.log.WithFields(log.Fields{
			"path": path,
			"dst":  dst,
		}).Infof("Ingested %s", name)
	}
	return res
}
