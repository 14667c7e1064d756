package sync

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Validator decides whether a file in the source directory may be published.
// The zero value only requires the file to exist and be non-empty.
type Validator struct {
	// Include, if non-empty, restricts publication to file names matching
	// at least one pattern.
	Include []string

	// Exclude rejects file names matching any pattern.
	Exclude []string

	// MaxSize rejects files larger than this many bytes. Zero means no limit.
	MaxSize int64
}

// NewValidator creates a Validator that enforces `policy`.
func NewValidator(policy config.Policy) Validator {
	return Validator{
		Include: policy.Include,
		Exclude: policy.Exclude,
		MaxSize: policy.MaxSize,
	}
}

// Eligible returns whether `path` may be published. It never fails: anything
// that prevents a positive answer makes the file ineligible.
func (v Validator) Eligible(path string) bool {
	return v.Check(path) == nil
}

// Check returns nil if `path` may be published, and otherwise a
// ValidationError describing why not.
func (v Validator) Check(path string) error {
	fi, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ValidationError{Path: path, Reason: errors.ReasonMissing}
		}
		return errors.ValidationError{Path: path, Reason: errors.ReasonStatFailed, Err: err}
	}

	if fi.Size() == 0 {
		return errors.ValidationError{Path: path, Reason: errors.ReasonEmpty}
	}

	name := filepath.Base(path)
	if len(v.Include) != 0 {
		included, err := matchAny(v.Include, name)
		if err != nil {
			return errors.ValidationError{Path: path, Reason: errors.ReasonStatFailed, Err: err}
		}
		if !included {
			return errors.ValidationError{Path: path, Reason: errors.ReasonExcluded}
		}
	}

	excluded, err := matchAny(v.Exclude, name)
	if err != nil {
		return errors.ValidationError{Path: path, Reason: errors.ReasonStatFailed, Err: err}
	}
	if excluded {
		return errors.ValidationError{Path: path, Reason: errors.ReasonExcluded}
	}

	if v.MaxSize > 0 && fi.Size() > v.MaxSize {
		return errors.ValidationError{Path: path, Reason: errors.ReasonTooLarge}
	}
	return nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, errors.WithContext(err, "match pattern")
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
