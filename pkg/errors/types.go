package errors

import (
	"fmt"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ListingError is returned when a watched directory couldn't be read. The
// whole poll iteration is skipped and retried on the next tick.
type ListingError struct {
	Dir string
	Err error
}

func (err ListingError) Error() string {
	return fmt.Sprintf("list %q: %s", err.Dir, err.Err)
}

func (err ListingError) Unwrap() error {
	return err.Err
}

// ValidationReason describes why a file was rejected.
type ValidationReason string

const (
	// ReasonMissing means the file didn't exist when it was checked.
	ReasonMissing ValidationReason = "file does not exist"

	// ReasonEmpty means the file has zero length.
	ReasonEmpty ValidationReason = "file is empty"

	// ReasonExcluded means the file name didn't pass the include and
	// exclude patterns.
	ReasonExcluded ValidationReason = "file is excluded by pattern"

	// ReasonTooLarge means the file is over the configured size limit.
	ReasonTooLarge ValidationReason = "file exceeds size limit"

	// ReasonStatFailed means the file couldn't be inspected at all.
	ReasonStatFailed ValidationReason = "failed to inspect file"
)

// ValidationError is returned when a file isn't eligible for publication.
// Err is only set if the rejection was caused by an underlying failure.
type ValidationError struct {
	Path   string
	Reason ValidationReason
	Err    error
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("validate %q: %s: %s", err.Path, err.Reason, err.Err)
	}
	return fmt.Sprintf("validate %q: %s", err.Path, err.Reason)
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// CopyError is returned when a file couldn't be copied to its destination.
type CopyError struct {
	Src string
	Dst string
	Err error
}

func (err CopyError) Error() string {
	return fmt.Sprintf("copy %q to %q: %s", err.Src, err.Dst, err.Err)
}

func (err CopyError) Unwrap() error {
	return err.Err
}
