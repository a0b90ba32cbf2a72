// Package tunnel manages the local 'ssh -D' process that exposes the remote
// instance as a SOCKS proxy.
package tunnel

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/retry"
	"github.com/kballard/go-shellquote"
)

// DefaultUser is the login user of Amazon Linux images.
const DefaultUser = "ec2-user"

var (
	ErrSpawn       = errors.New("failed to start ssh")
	ErrNoSuchPID   = fmt.Errorf("%w: no such process", errs.ErrNotFound)
	ErrInvalidPID  = errors.New("invalid process id")
	ErrPortLookup  = errors.New("failed to look up the process listening on the port")
	ErrKeyFileMode = errors.New("failed to restrict key file permissions")
)

// Manager starts, probes, and stops tunnel processes.
type Manager struct {
	run    Runner
	ssh    string
	ready  retry.Policy
	dialer *net.Dialer
}

type Option func(*Manager)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(m *Manager) { m.run = r }
}

// WithReadyPolicy overrides the readiness probe budget.
func WithReadyPolicy(p retry.Policy) Option {
	return func(m *Manager) { m.ready = p }
}

// WithSSH sets the ssh client binary.
func WithSSH(path string) Option {
	return func(m *Manager) { m.ssh = path }
}

// New returns a Manager using the system 'ssh' and 'lsof'. Readiness is
// probed every second for up to 30 attempts.
func New(opts ...Option) *Manager {
	m := &Manager{
		run:    execRunner{},
		ssh:    "ssh",
		ready:  retry.Policy{Attempts: 30, Interval: time.Second},
		dialer: &net.Dialer{Timeout: time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// sshArgs builds the 'ssh' command line for a dynamic forward on
// 'localPort'. Host key checking is disabled: the remote host was created
// moments ago and its key cannot be known in advance.
func sshArgs(host, keyFile string, localPort int, user string) []string {
	return []string{
		"-N",
		"-D", strconv.Itoa(localPort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ServerAliveInterval=60",
		"-o", "ServerAliveCountMax=3",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "LogLevel=ERROR",
		"-i", keyFile,
		user + "@" + host,
	}
}

// Start restricts 'keyFile' to the owner and spawns a detached ssh process
// forwarding 'localPort' to 'host'. It returns the ssh pid.
func (m *Manager) Start(ctx context.Context, host, keyFile string, localPort int, user string) (int, error) {
	log := clog.FromContext(ctx).With("host", host, "port", localPort)

	// ssh refuses private keys readable by anyone else.
	if err := os.Chmod(keyFile, 0o600); err != nil {
		return 0, fmt.Errorf("%w: %w: %w", errs.ErrLocalIO, ErrKeyFileMode, err)
	}

	args := sshArgs(host, keyFile, localPort, user)
	log.Debug("starting tunnel", "command", shellquote.Join(append([]string{m.ssh}, args...)...))

	pid, err := m.run.Spawn(ctx, m.ssh, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %w", errs.ErrLocalIO, ErrSpawn, err)
	}

	log.Info("tunnel process started", "pid", pid)
	return pid, nil
}

func localAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// portOpen reports whether something accepts TCP connections on the local
// port.
func (m *Manager) portOpen(ctx context.Context, port int) bool {
	log := clog.FromContext(ctx).With("port", port)
	conn, err := m.dialer.DialContext(ctx, "tcp", localAddr(port))
	if err != nil {
		log.Debug("port is not yet reachable", "error", err)
		return false
	}
	if err := conn.Close(); err != nil {
		log.Warn("encountered error closing TCP connection", "error", err)
	}
	return true
}

// WaitReady polls the local port until the forward accepts connections.
func (m *Manager) WaitReady(ctx context.Context, port int) error {
	log := clog.FromContext(ctx).With("port", port)
	log.Info("waiting for tunnel to accept connections")
	_, err := retry.Poll(ctx, m.ready, func(ctx context.Context) (struct{}, error) {
		if !m.portOpen(ctx, port) {
			return struct{}{}, fmt.Errorf("%w: %s is not accepting connections", retry.ErrPending, localAddr(port))
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	log.Info("tunnel is ready")
	return nil
}

// FindByPort returns the pid of the process listening on the local TCP
// port, if any.
func (m *Manager) FindByPort(ctx context.Context, port int) (int, bool, error) {
	out, err := m.run.Output(ctx, "lsof", "-nP", "-t", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN")
	if pids := parsePIDs(out); len(pids) > 0 {
		return pids[0], true, nil
	}
	// lsof exits non-zero when nothing matches.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, false, fmt.Errorf("%w: %w: %w", errs.ErrLocalIO, ErrPortLookup, err)
	}
	return 0, false, nil
}

func parsePIDs(out []byte) []int {
	var pids []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		pid, err := strconv.Atoi(string(bytes.TrimSpace(scanner.Bytes())))
		if err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// Alive reports whether the tunnel is listening on the port. When the
// listener cannot be looked up, a TCP probe decides.
func (m *Manager) Alive(ctx context.Context, port int) bool {
	_, found, err := m.FindByPort(ctx, port)
	if err != nil {
		clog.FromContext(ctx).Debug("port lookup failed, probing instead", "error", err)
		return m.portOpen(ctx, port)
	}
	return found
}

// Stop asks the process to terminate with SIGTERM. A process that no longer
// exists yields 'ErrNoSuchPID'.
func (m *Manager) Stop(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	log := clog.FromContext(ctx).With("pid", pid)
	log.Info("stopping tunnel process")

	err := m.run.Signal(pid, syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("%w: %d", ErrNoSuchPID, pid)
	} else if err != nil {
		return fmt.Errorf("%w: signaling process %d: %w", errs.ErrLocalIO, pid, err)
	}
	return nil
}

// StopByPort stops whichever process listens on the port. Nothing listening
// is a success.
func (m *Manager) StopByPort(ctx context.Context, port int) error {
	pid, found, err := m.FindByPort(ctx, port)
	if err != nil {
		return err
	}
	if !found {
		clog.FromContext(ctx).Info("no process listening on port", "port", port)
		return nil
	}
	err = m.Stop(ctx, pid)
	if errors.Is(err, ErrNoSuchPID) {
		return nil
	}
	return err
}
