package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/moby/sys/atomicwriter"
)

const (
	appName   = "region-proxy"
	stateFile = "state.json"
	keysDir   = "keys"
	lockFile  = "lock"

	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// DefaultDir is '$XDG_STATE_HOME/region-proxy'.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// Store keeps the session file, the per-session private keys, and the
// invocation lock under one directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path() string {
	return filepath.Join(s.dir, stateFile)
}

// Load reads the session. A missing session file is not an error; it means
// no proxy is running and yields nil.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errs.Wrap(errs.ErrLocalIO, "reading session", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errs.Wrap(errs.ErrLocalIO, "decoding session "+s.path(), err)
	}
	return &sess, nil
}

// Save replaces the session file atomically, so readers see either the
// previous session or the new one and never a partial write.
func (s *Store) Save(sess *Session) error {
	if sess == nil {
		return fmt.Errorf("%w: saving a nil session", errs.ErrLocalIO)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrLocalIO, "encoding session", err)
	}
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return errs.Wrap(errs.ErrLocalIO, "creating state directory", err)
	}
	if err := atomicwriter.WriteFile(s.path(), data, fileMode); err != nil {
		return errs.Wrap(errs.ErrLocalIO, "writing session", err)
	}
	return nil
}

// Delete removes the session file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(errs.ErrLocalIO, "deleting session", err)
	}
	return nil
}

// IsRunning reports whether a session exists.
func (s *Store) IsRunning() (bool, error) {
	sess, err := s.Load()
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// KeysDir is the directory holding per-session private keys.
func (s *Store) KeysDir() string {
	return filepath.Join(s.dir, keysDir)
}

// KeyPath is the private key file for the key pair 'name'.
func (s *Store) KeyPath(name string) string {
	return filepath.Join(s.KeysDir(), name+".pem")
}

// WriteKey stores the PEM-encoded private key of key pair 'name' with
// owner-only permissions and returns its path.
func (s *Store) WriteKey(name string, pem []byte) (string, error) {
	if err := os.MkdirAll(s.KeysDir(), dirMode); err != nil {
		return "", errs.Wrap(errs.ErrLocalIO, "creating keys directory", err)
	}
	path := s.KeyPath(name)
	if err := atomicwriter.WriteFile(path, pem, fileMode); err != nil {
		return "", errs.Wrap(errs.ErrLocalIO, "writing private key", err)
	}
	return path, nil
}

// RemoveKey deletes a private key file. A missing file is not an error.
func RemoveKey(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(errs.ErrLocalIO, "removing private key", err)
	}
	return nil
}
