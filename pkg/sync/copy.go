package sync

import (
	"io"
	"time"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked out for unit testing.
var copyFile = copyFileImpl

// copyFileImpl copies `src` to `dst`, preserving the file mode and
// modification time. If `atomic` is set, the contents are written to a
// temporary file next to `dst` which is then renamed into place.
// The destination's parent directory must already exist. Agents create it on
// startup, and recreating it later could hide an unmounted shared volume.
func copyFileImpl(src, dst string, atomic bool) (err error) {
	defer func() {
		if err != nil {
			err = errors.CopyError{Src: src, Dst: dst, Err: err}
		}
	}()

	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	writePath := dst
	if atomic {
		writePath = tmpPath(dst)
		defer func() {
			if err != nil {
				fs.Remove(writePath)
			}
		}()
	}

	dstFile, err := fs.Create(writePath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return errors.WithContext(err, "copy")
	}

	if err := dstFile.Close(); err != nil {
		return errors.WithContext(err, "close destination")
	}

	if err := fs.Chmod(writePath, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(writePath, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}

	if atomic {
		if err := fs.Rename(writePath, dst); err != nil {
			return errors.WithContext(err, "rename into place")
		}
	}
	return nil
}
