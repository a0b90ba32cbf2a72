//go:build unix

package session

import (
	"errors"
	"os"

	"github.com/chainguard-dev/region-proxy/internal/errs"
	"golang.org/x/sys/unix"
)

func tryLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errs.ErrLocked
	} else if err != nil {
		return errs.Wrap(errs.ErrLocalIO, "locking state directory", err)
	}
	return nil
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
