package tunnel

import (
	"context"
	"os"
	"os/exec"
	"syscall"
)

// Runner executes the external processes the tunnel depends on.
type Runner interface {
	// Spawn starts 'name' detached from the calling process and returns its
	// pid without waiting for it.
	Spawn(ctx context.Context, name string, args ...string) (int, error)
	// Output runs 'name' to completion and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Signal delivers 'sig' to 'pid'.
	Signal(pid int, sig syscall.Signal) error
}

type execRunner struct{}

func (execRunner) Spawn(_ context.Context, name string, args ...string) (int, error) {
	// The spawned process must outlive this invocation, so it is not bound to
	// the caller's context.
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = detached()
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	// Reap the child if it exits while we are still running.
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) Signal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}
