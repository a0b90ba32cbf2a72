//go:build !unix

package tunnel

import "syscall"

func detached() *syscall.SysProcAttr {
	return nil
}
