package idmapstore

import (
	"os"

	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"golang.org/x/sys/unix"
)

// lockPath acquires an exclusive, non-blocking flock(2) lease on the
// dedicated lock file at path, mirroring the Segment Store's wlock.
func lockPath(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, serrors.NewLockContendedError(err, path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, serrors.NewLockContendedError(err, path)
	}
	return f, nil
}

func unlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}
