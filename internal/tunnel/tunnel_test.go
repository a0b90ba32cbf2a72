package tunnel

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spawnCall struct {
	name string
	args []string
}

type fakeRunner struct {
	spawnFunc  func(name string, args ...string) (int, error)
	outputFunc func(name string, args ...string) ([]byte, error)
	signalFunc func(pid int, sig syscall.Signal) error

	spawned  []spawnCall
	outputs  []spawnCall
	signaled []int
}

func (f *fakeRunner) Spawn(_ context.Context, name string, args ...string) (int, error) {
	f.spawned = append(f.spawned, spawnCall{name, args})
	if f.spawnFunc != nil {
		return f.spawnFunc(name, args...)
	}
	return 4242, nil
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.outputs = append(f.outputs, spawnCall{name, args})
	if f.outputFunc != nil {
		return f.outputFunc(name, args...)
	}
	return nil, nil
}

func (f *fakeRunner) Signal(pid int, sig syscall.Signal) error {
	f.signaled = append(f.signaled, pid)
	if f.signalFunc != nil {
		return f.signalFunc(pid, sig)
	}
	return nil
}

func TestStart(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0o644))

	r := &fakeRunner{}
	m := New(WithRunner(r))

	pid, err := m.Start(t.Context(), "203.0.113.10", keyFile, 1080, DefaultUser)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Len(t, r.spawned, 1)
	assert.Equal(t, "ssh", r.spawned[0].name)
	assert.Equal(t, []string{
		"-N",
		"-D", "1080",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ServerAliveInterval=60",
		"-o", "ServerAliveCountMax=3",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "LogLevel=ERROR",
		"-i", keyFile,
		"ec2-user@203.0.113.10",
	}, r.spawned[0].args)
}

func TestStartMissingKey(t *testing.T) {
	r := &fakeRunner{}
	_, err := New(WithRunner(r)).Start(t.Context(), "203.0.113.10", filepath.Join(t.TempDir(), "absent.pem"), 1080, DefaultUser)
	assert.ErrorIs(t, err, errs.ErrLocalIO)
	assert.ErrorIs(t, err, ErrKeyFileMode)
	assert.Empty(t, r.spawned)
}

func TestStartSpawnFailure(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0o600))

	r := &fakeRunner{spawnFunc: func(string, ...string) (int, error) {
		return 0, exec.ErrNotFound
	}}
	_, err := New(WithRunner(r)).Start(t.Context(), "203.0.113.10", keyFile, 1080, DefaultUser)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestWaitReady(t *testing.T) {
	_, port := listen(t)
	m := New(WithReadyPolicy(retry.Policy{Attempts: 3, Interval: time.Millisecond}))
	require.NoError(t, m.WaitReady(t.Context(), port))
}

func TestWaitReadyTimeout(t *testing.T) {
	ln, port := listen(t)
	require.NoError(t, ln.Close())

	m := New(WithReadyPolicy(retry.Policy{Attempts: 3, Interval: time.Millisecond}))
	err := m.WaitReady(t.Context(), port)
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestFindByPort(t *testing.T) {
	t.Run("listening", func(t *testing.T) {
		r := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
			return []byte("1234\n5678\n"), nil
		}}
		pid, found, err := New(WithRunner(r)).FindByPort(t.Context(), 1080)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 1234, pid)
		require.Len(t, r.outputs, 1)
		assert.Equal(t, "lsof", r.outputs[0].name)
		assert.Equal(t, []string{"-nP", "-t", "-iTCP:1080", "-sTCP:LISTEN"}, r.outputs[0].args)
	})

	t.Run("nothing listening", func(t *testing.T) {
		r := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
			return nil, &exec.ExitError{}
		}}
		_, found, err := New(WithRunner(r)).FindByPort(t.Context(), 1080)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("lsof missing", func(t *testing.T) {
		r := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
			return nil, exec.ErrNotFound
		}}
		_, _, err := New(WithRunner(r)).FindByPort(t.Context(), 1080)
		assert.ErrorIs(t, err, errs.ErrLocalIO)
	})
}

func TestAlive(t *testing.T) {
	_, port := listen(t)

	found := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
		return []byte("99\n"), nil
	}}
	assert.True(t, New(WithRunner(found)).Alive(t.Context(), port))

	none := &fakeRunner{}
	assert.False(t, New(WithRunner(none)).Alive(t.Context(), port))

	// Without lsof the TCP probe decides.
	broken := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	}}
	assert.True(t, New(WithRunner(broken)).Alive(t.Context(), port))
}

func TestStop(t *testing.T) {
	r := &fakeRunner{}
	m := New(WithRunner(r))
	require.NoError(t, m.Stop(t.Context(), 1234))
	assert.Equal(t, []int{1234}, r.signaled)

	assert.ErrorIs(t, m.Stop(t.Context(), 0), ErrInvalidPID)

	r.signalFunc = func(int, syscall.Signal) error { return os.ErrProcessDone }
	err := m.Stop(t.Context(), 1234)
	assert.ErrorIs(t, err, ErrNoSuchPID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	r.signalFunc = func(int, syscall.Signal) error { return syscall.EPERM }
	assert.ErrorIs(t, m.Stop(t.Context(), 1234), errs.ErrLocalIO)
}

func TestStopByPort(t *testing.T) {
	t.Run("stops the listener", func(t *testing.T) {
		r := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
			return []byte("777\n"), nil
		}}
		require.NoError(t, New(WithRunner(r)).StopByPort(t.Context(), 1080))
		assert.Equal(t, []int{777}, r.signaled)
	})

	t.Run("nothing listening", func(t *testing.T) {
		r := &fakeRunner{}
		require.NoError(t, New(WithRunner(r)).StopByPort(t.Context(), 1080))
		assert.Empty(t, r.signaled)
	})

	t.Run("exited meanwhile", func(t *testing.T) {
		r := &fakeRunner{
			outputFunc: func(string, ...string) ([]byte, error) { return []byte("777\n"), nil },
			signalFunc: func(int, syscall.Signal) error { return syscall.ESRCH },
		}
		require.NoError(t, New(WithRunner(r)).StopByPort(t.Context(), 1080))
	})

	t.Run("lookup fails", func(t *testing.T) {
		r := &fakeRunner{outputFunc: func(string, ...string) ([]byte, error) {
			return nil, errors.New("boom")
		}}
		assert.Error(t, New(WithRunner(r)).StopByPort(t.Context(), 1080))
	})
}

func TestParsePIDs(t *testing.T) {
	assert.Equal(t, []int{1, 22, 333}, parsePIDs([]byte("1\n22\n  333  \n\nbogus\n")))
	assert.Empty(t, parsePIDs(nil))
}
