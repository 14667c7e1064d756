package sync

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// FileState describes how far a file has travelled.
type FileState string

const (
	// StatePending means the file hasn't reached the next directory yet.
	StatePending FileState = "Pending"

	// StateIneligible means the sender won't publish the file in its current
	// form.
	StateIneligible FileState = "Ineligible"

	// StatePublished means a source file is present in the shared directory.
	StatePublished FileState = "Published"

	// StateIngested means a shared file is present in the destination
	// directory.
	StateIngested FileState = "Ingested"
)

// FileStatus is the state of a single file.
type FileStatus struct {
	Name   string
	State  FileState
	Detail string
}

// StatusReport is a point-in-time view of both legs of the transfer. It's
// computed from the directory contents only, so it doesn't know about
// files that were transferred and then removed.
type StatusReport struct {
	// Outgoing contains the files in the sender's source directory.
	Outgoing []FileStatus

	// Incoming contains the files in the receiver's shared directory.
	Incoming []FileStatus

	// Errors contains the listing errors that made the report incomplete.
	Errors []error
}

// GetStatus compares the directories in `cfg` and reports on each file.
func GetStatus(cfg config.Config) StatusReport {
	var report StatusReport

	validator := NewValidator(cfg.Sender.Policy)
	if paths, err := ListFiles(cfg.Sender.SourceDir); err != nil {
		report.Errors = append(report.Errors, err)
	} else {
		for _, path := range paths {
			status := FileStatus{Name: filepath.Base(path)}
			if err := validator.Check(path); err != nil {
				status.State = StateIneligible
				if validationErr, ok := err.(errors.ValidationError); ok {
					status.Detail = string(validationErr.Reason)
				}
			} else {
				status.State = presentIn(cfg.Sender.SharedDir, status.Name, StatePublished)
			}
			report.Outgoing = append(report.Outgoing, status)
		}
	}

	if paths, err := ListFiles(cfg.Receiver.SharedDir); err != nil {
		report.Errors = append(report.Errors, err)
	} else {
		for _, path := range paths {
			name := filepath.Base(path)
			report.Incoming = append(report.Incoming, FileStatus{
				Name:  name,
				State: presentIn(cfg.Receiver.DestDir, name, StateIngested),
			})
		}
	}
	return report
}

func presentIn(dir, name string, state FileState) FileState {
	if exists, err := afero.Exists(fs, filepath.Join(dir, name)); err == nil && exists {
		return state
	}
	return StatePending
}
