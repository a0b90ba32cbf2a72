package session

import (
	"os"
	"path/filepath"

	"github.com/chainguard-dev/region-proxy/internal/errs"
)

// Lock is an exclusive advisory lock on the state directory. Mutating
// commands hold it for their whole duration.
type Lock struct {
	f *os.File
}

// Lock acquires the invocation lock without blocking. It fails with
// 'errs.ErrLocked' when another process holds it.
func (s *Store) Lock() (*Lock, error) {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return nil, errs.Wrap(errs.ErrLocalIO, "creating state directory", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, lockFile), os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return nil, errs.Wrap(errs.ErrLocalIO, "opening lock file", err)
	}
	if err := tryLock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Unlock releases the lock. It is safe to call more than once.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	unlock(f)
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrLocalIO, "closing lock file", err)
	}
	return nil
}
