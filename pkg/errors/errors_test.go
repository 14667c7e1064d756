package errors

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.NoError(t, WithContext(nil, "ignored"))

	base := New("base")
	err := WithContext(WithContext(base, "inner"), "outer")
	assert.EqualError(t, err, "outer: inner: base")
	assert.Equal(t, base, RootCause(err))
	assert.True(t, Is(err, base))
}

func TestFriendlyMessage(t *testing.T) {
	friendly := NewFriendlyError("config %q is broken", "/etc/dirsync.yaml")
	msg, ok := GetFriendlyMessage(WithContext(friendly, "load config"))
	assert.True(t, ok)
	assert.Equal(t, `config "/etc/dirsync.yaml" is broken`, msg)

	_, ok = GetFriendlyMessage(WithContext(New("plain"), "load config"))
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expMsg string
		expErr error
	}{
		{
			name:   "Listing",
			err:    ListingError{Dir: "/shared", Err: os.ErrPermission},
			expMsg: `list "/shared": permission denied`,
			expErr: os.ErrPermission,
		},
		{
			name:   "ValidationWithoutCause",
			err:    ValidationError{Path: "/src/b.txt", Reason: ReasonEmpty},
			expMsg: `validate "/src/b.txt": file is empty`,
		},
		{
			name:   "ValidationWithCause",
			err:    ValidationError{Path: "/src/b.txt", Reason: ReasonStatFailed, Err: os.ErrPermission},
			expMsg: `validate "/src/b.txt": failed to inspect file: permission denied`,
			expErr: os.ErrPermission,
		},
		{
			name:   "Copy",
			err:    CopyError{Src: "/src/a.txt", Dst: "/shared/a.txt", Err: os.ErrNotExist},
			expMsg: `copy "/src/a.txt" to "/shared/a.txt": file does not exist`,
			expErr: os.ErrNotExist,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.EqualError(t, test.err, test.expMsg)
			if test.expErr != nil {
				assert.True(t, Is(WithContext(test.err, "poll"), test.expErr))
			}
		})
	}

	var copyErr CopyError
	assert.True(t, As(WithContext(CopyError{Src: "a", Dst: "b", Err: os.ErrClosed}, "poll"), &copyErr))
	assert.Equal(t, "a", copyErr.Src)
}
