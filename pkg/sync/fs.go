package sync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// tmpSuffix marks files that an agent is still writing during atomic
// publication. They're never listed.
const tmpSuffix = ".dirsync-tmp"

// tmpPath returns the in-flight name used while writing `dst`.
func tmpPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+tmpSuffix)
}

// ListFiles returns the paths of the regular files directly inside `dir`,
// sorted by name. Symlinks are followed.
func ListFiles(dir string) ([]string, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.ListingError{Dir: dir, Err: err}
	}

	var paths []string
	for _, fi := range infos {
		if strings.HasSuffix(fi.Name(), tmpSuffix) {
			continue
		}

		path := filepath.Join(dir, fi.Name())
		if fi.Mode()&os.ModeSymlink != 0 {
			// The link may be dangling, in which case it isn't a file yet.
			target, err := fs.Stat(path)
			if err != nil {
				continue
			}
			fi = target
		}

		// Some filesystems don't set the mode bits of implicitly created
		// directories, so check IsDir as well.
		if fi.IsDir() || !fi.Mode().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}
