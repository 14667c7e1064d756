package fswatch

import (
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches for changes to the entries of `dir`. It sends an event on the
// returned channel whenever a file is created, written, renamed or removed.
// Bursts of events are combined, so receivers should rescan the directory
// rather than count events. The returned function stops the watcher.
func Watch(dir string) (<-chan struct{}, func() error, error) {
	fi, err := fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileNotFound{Path: dir}
		}
		return nil, nil, errors.WithContext(err, "stat")
	}
	if !fi.IsDir() {
		return nil, nil, errors.Errorf("%q is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WithContext(err, "create watcher")
	}

	if err := watcher.Add(dir); err != nil {
		// Close the watcher so that we release its file handles.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, nil, errors.WithContext(err, "watch "+dir)
	}

	go logErrors(watcher.Errors)
	return combineUpdates(watcher.Events), watcher.Close, nil
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for event := range updates {
			if event.Op == fsnotify.Chmod {
				continue
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Debug("File watcher error")
	}
}
