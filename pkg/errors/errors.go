package errors

import (
	goErrors "errors"
	"fmt"

	pkgErrors "github.com/pkg/errors"
)

// New returns an error that formats as the given text.
func New(text string) error {
	return goErrors.New(text)
}

// Errorf formats according to a format specifier and returns the string as
// a value that satisfies error.
func Errorf(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

type withContext struct {
	context string
	err     error
}

// WithContext annotates `err` with a short description of what was being
// attempted when it occurred. It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, err: err}
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

// Cause lets pkg/errors walk through the context chain.
func (err withContext) Cause() error {
	return err.err
}

func (err withContext) Unwrap() error {
	return err.err
}

// RootCause returns the innermost error that isn't a context wrapper.
func RootCause(err error) error {
	return pkgErrors.Cause(err)
}

// Friendly is implemented by errors whose message is meant to be shown to the
// user as-is, without the context chain.
type Friendly interface {
	FriendlyMessage() string
}

// FriendlyError is an error with a message that's directly displayable to
// users.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from a format string.
func NewFriendlyError(format string, a ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, a...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message to display to the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetFriendlyMessage returns the friendly message carried by `err`'s root
// cause, if any.
func GetFriendlyMessage(err error) (string, bool) {
	if friendly, ok := RootCause(err).(Friendly); ok {
		return friendly.FriendlyMessage(), true
	}
	return "", false
}
