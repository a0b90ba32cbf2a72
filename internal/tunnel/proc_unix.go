//go:build unix

package tunnel

import "syscall"

// detached starts the process in a new session so that it survives the
// terminal closing and the CLI exiting.
func detached() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
