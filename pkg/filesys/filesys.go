// Package filesys collects the small set of file-system operations the
// Segment Store and IdMap Store need to set up their data directory. It is
// deliberately narrow: this module has no use for the broader copy/search
// utilities a general-purpose file-system helper package offers.
package filesys

import (
	"errors"
	"os"
)

// ErrIsNotDir is returned when a path expected to be a directory (or usable
// as one) turns out to be a regular file.
var ErrIsNotDir = errors.New("path isn't a directory")

// CreateDir creates dirPath, and any missing parents, with the given
// permission. It is not an error for dirPath to already exist, as long as
// it is a directory.
func CreateDir(dirPath string, permission os.FileMode) error {
	stat, err := os.Stat(dirPath)
	if err == nil && !stat.IsDir() {
		return ErrIsNotDir
	}
	return os.MkdirAll(dirPath, permission)
}

// Exists reports whether a file or directory exists at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// DeleteDir removes path and everything under it. Used by tests that need a
// clean data directory between runs.
func DeleteDir(path string) error {
	return os.RemoveAll(path)
}
