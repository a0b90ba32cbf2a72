// Package sysproxy toggles the operating system's SOCKS proxy setting so
// that applications pick up the tunnel without per-app configuration.
package sysproxy

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/chainguard-dev/region-proxy/internal/errs"
)

var ErrUnsupported = errors.New("system proxy configuration is not supported on this platform")

// Configurator enables and disables the system-wide SOCKS proxy. All
// operations are idempotent.
type Configurator interface {
	// Supported reports whether the platform can be configured at all.
	Supported() bool
	// Enable points the system proxy at the local SOCKS port and returns
	// the settings it replaced.
	Enable(ctx context.Context, port int) (State, error)
	// Disable restores 'prior', as returned by Enable. An empty 'prior'
	// turns the proxy off.
	Disable(ctx context.Context, prior State) error
	IsEnabled(ctx context.Context) (bool, error)
}

// State is a platform specific snapshot of the proxy settings, kept in the
// session between start and stop.
type State map[string]string

// Runner runs a configuration command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// New returns the configurator for the running platform: 'networksetup' on
// macOS, 'gsettings' on Linux desktops running GNOME, and 'Unsupported'
// everywhere else.
func New() Configurator {
	switch runtime.GOOS {
	case "darwin":
		return NewMacOS(execRunner{})
	case "linux":
		if _, err := exec.LookPath(gsettings); err == nil {
			return NewGNOME(execRunner{})
		}
	}
	return Unsupported{}
}

// Unsupported is the configurator for platforms without a known system
// proxy switch.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }

func (Unsupported) Enable(context.Context, int) (State, error) { return nil, ErrUnsupported }

func (Unsupported) Disable(context.Context, State) error { return nil }

func (Unsupported) IsEnabled(context.Context) (bool, error) { return false, nil }

// leftover reports whether a proxy already pointing at the local port is
// what an earlier, interrupted session left behind.
func leftover(host, port string, ours int) bool {
	return (host == "localhost" || host == "127.0.0.1") && port == strconv.Itoa(ours)
}

func commandError(op string, err error) error {
	return errs.Wrap(errs.ErrLocalIO, op, err)
}
