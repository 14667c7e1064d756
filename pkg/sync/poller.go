package sync

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/dirsync/pkg/errors"
	"github.com/sidkik/dirsync/pkg/fswatch"
)

// Mocked out for unit testing.
var watchDir = fswatch.Watch

// Result summarizes a single poll of the watched directory.
type Result struct {
	// Copied contains the source paths that were transferred.
	Copied []string

	// Forgotten contains the paths dropped from the processed set because
	// they disappeared from the watched directory.
	Forgotten []string

	// Errors contains every error raised during the poll, in order. Each
	// one has already been logged.
	Errors []error
}

// poller contains the loop shared by the sender and the receiver.
type poller struct {
	dir         string
	interval    time.Duration
	watchEvents bool

	clock clockwork.Clock
	log   log.FieldLogger
}

func newPoller(agent, dir string, interval time.Duration, watchEvents bool) poller {
	return poller{
		dir:         dir,
		interval:    interval,
		watchEvents: watchEvents,
		clock:       clockwork.NewRealClock(),
		log:         log.WithField("agent", agent),
	}
}

// run calls `poll` every interval until `ctx` is cancelled. Errors are
// handled inside `poll`, so nothing here can end the loop early.
func (p poller) run(ctx context.Context, poll func(context.Context) Result) {
	trigger := p.startWatcher(ctx)
	for {
		poll(ctx)

		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("Stopped watching")
			return
		case <-trigger:
			p.log.Debug("Change detected. Polling early.")
		case <-timer.Chan():
		}
		timer.Stop()
	}
}

// startWatcher returns a channel that fires when the watched directory
// changes. It returns nil, which blocks forever, if event watching is
// disabled or unavailable.
func (p poller) startWatcher(ctx context.Context) <-chan struct{} {
	if !p.watchEvents {
		return nil
	}

	events, stop, err := watchDir(p.dir)
	if err != nil {
		p.log.WithError(err).Warnf("Failed to watch %s for changes. "+
			"Will poll every %s instead.", p.dir, p.interval)
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := stop(); err != nil {
			p.log.WithError(err).Warn("Failed to close file watcher")
		}
	}()
	return events
}

// handleError logs `err` according to its kind, and records it in `res`.
func (p poller) handleError(res *Result, err error) {
	res.Errors = append(res.Errors, err)

	var listingErr errors.ListingError
	var validationErr errors.ValidationError
	var copyErr errors.CopyError
	switch {
	case errors.As(err, &listingErr):
		p.log.WithError(listingErr.Err).WithField("dir", listingErr.Dir).Errorf(
			"Failed to list directory. Will retry in %s.", p.interval)
	case errors.As(err, &validationErr):
		entry := p.log.WithFields(log.Fields{
			"path":   validationErr.Path,
			"reason": string(validationErr.Reason),
		})
		if validationErr.Err != nil {
			entry = entry.WithError(validationErr.Err)
		}
		entry.Warn("Skipped file. It failed validation.")
	case errors.As(err, &copyErr):
		p.log.WithError(copyErr.Err).WithFields(log.Fields{
			"path": copyErr.Src,
			"dst":  copyErr.Dst,
		}).Error("Failed to copy file. Will retry on the next poll.")
	default:
		p.log.WithError(err).Error("Unexpected error")
	}
}
