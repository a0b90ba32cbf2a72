// errs holds the error taxonomy shared by every region-proxy package.
//
// Errors are classified by wrapping one of the sentinels below, either
// directly ('fmt.Errorf("%w: %w", errs.ErrTimeout, err)') or through 'Wrap',
// so that callers can branch with 'errors.Is'.
package errs

import (
	"errors"
	"fmt"
)

var (
	// No matching image or resource exists.
	ErrNotFound = errors.New("not found")
	// A polling budget was exhausted.
	ErrTimeout = errors.New("timed out")
	// The backend API refused or failed a call.
	ErrBackendRejected = errors.New("backend rejected request")
	// A session is already active.
	ErrAlreadyRunning = errors.New("a proxy is already running")
	// No session is active.
	ErrNotRunning = errors.New("no active proxy found")
	// A local file or process operation failed.
	ErrLocalIO = errors.New("local I/O failure")
	// Another invocation holds the session lock.
	ErrLocked = errors.New("another region-proxy command is in progress")
	// User supplied options or preferences are invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrap annotates 'err' with the 'kind' sentinel and a short description of
// the failed operation. A nil 'err' yields nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// Kind returns the first taxonomy sentinel 'err' wraps, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrAlreadyRunning,
		ErrNotRunning,
		ErrLocked,
		ErrInvalidConfig,
		ErrTimeout,
		ErrNotFound,
		ErrBackendRejected,
		ErrLocalIO,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
