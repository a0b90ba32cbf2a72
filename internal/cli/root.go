// Package cli is the region-proxy command tree.
package cli

import (
	"context"
	"log/slog"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/backend"
	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/lifecycle"
	"github.com/chainguard-dev/region-proxy/internal/log"
	"github.com/chainguard-dev/region-proxy/internal/o11y"
	"github.com/chainguard-dev/region-proxy/internal/reconcile"
	"github.com/chainguard-dev/region-proxy/internal/session"
	"github.com/chainguard-dev/region-proxy/internal/sysproxy"
	"github.com/chainguard-dev/region-proxy/internal/tunnel"
	"github.com/spf13/cobra"
)

// regionBackend serves both the orchestrator and the reconciler.
type regionBackend interface {
	lifecycle.Backend
	reconcile.Backend
}

// app carries global flags and the collaborators every command builds on.
type app struct {
	verbose    bool
	logDir     string
	configPath string
	stateDir   string

	proxy  sysproxy.Configurator
	tunnel lifecycle.Tunnel
	// connect returns a backend client for a region, using the named AWS
	// profile when it is not empty.
	connect func(ctx context.Context, region, profile string) (regionBackend, error)

	closers []func()
}

func defaultApp() *app {
	return &app{
		proxy:  sysproxy.New(),
		tunnel: tunnel.New(),
		connect: func(ctx context.Context, region, profile string) (regionBackend, error) {
			var opts []backend.Option
			if profile != "" {
				opts = append(opts, backend.WithProfile(profile))
			}
			c, err := backend.New(ctx, region, opts...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Execute runs the command line in 'args' and releases every resource the
// commands set up, the log file in particular.
func Execute(ctx context.Context, version string, args []string) error {
	a := defaultApp()
	defer a.close()

	cmd := a.root(version)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Hint suggests a next step for a failed invocation, or "" when there is
// nothing useful to add.
func Hint(err error) string {
	switch errs.Kind(err) {
	case errs.ErrAlreadyRunning:
		return "Run 'region-proxy stop' first, or 'region-proxy status' to inspect it."
	case errs.ErrNotRunning:
		return "Run 'region-proxy cleanup' to remove resources left behind by an earlier run."
	case errs.ErrLocked:
		return "Wait for the other command to finish and try again."
	case errs.ErrInvalidConfig:
		return "Check your flags, or run 'region-proxy config show'."
	case errs.ErrTimeout, errs.ErrBackendRejected:
		return "Run 'region-proxy stop --force' and 'region-proxy cleanup' to remove anything left behind."
	default:
		return ""
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) root(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region-proxy",
		Short: "Create a SOCKS proxy through AWS EC2 in any region",
		Long: `region-proxy launches a short-lived EC2 instance in the region of your choice,
opens an SSH dynamic port forward to it, and points the system proxy at the
local SOCKS port. 'region-proxy stop' removes everything again.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&a.logDir, "log-dir", "", "Also write a JSON log of this invocation to the directory")
	flags.StringVar(&a.configPath, "config", config.DefaultPath(), "Preferences file")
	flags.StringVar(&a.stateDir, "state-dir", session.DefaultDir(), "Directory holding the session state and keys")
	_ = flags.MarkHidden("config")
	_ = flags.MarkHidden("state-dir")

	cmd.AddCommand(
		a.startCmd(),
		a.stopCmd(),
		a.statusCmd(),
		a.cleanupCmd(),
		a.listRegionsCmd(),
		a.configCmd(),
	)
	return cmd
}

// setup installs the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var extra []slog.Handler
	otlp, shutdown, err := o11y.SetupLogs(ctx, cmd.Root().Version)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = shutdown(context.WithoutCancel(ctx)) })
	if otlp != nil {
		extra = append(extra, otlp)
	}

	ctx, closeLog := log.Setup(ctx, log.Options{
		Verbose:  a.verbose,
		Dir:      a.logDir,
		Command:  cmd.CommandPath(),
		Console:  cmd.ErrOrStderr(),
		Handlers: extra,
	})
	a.closers = append(a.closers, closeLog)

	cmd.SetContext(log.With(ctx, o11y.AttrCommand, cmd.Name()))
	return nil
}

func (a *app) store() *session.Store {
	return session.NewStore(a.stateDir)
}

func (a *app) preferences() (*config.Preferences, error) {
	return config.Load(a.configPath)
}

// lenientPreferences is for commands that must keep working on a broken
// preferences file. Only the AWS profile is read from it.
func (a *app) lenientPreferences(ctx context.Context) *config.Preferences {
	prefs, err := a.preferences()
	if err != nil {
		clog.FromContext(ctx).Warn("ignoring preferences", "path", a.configPath, "error", err)
		return &config.Preferences{}
	}
	return prefs
}

func profileOf(prefs *config.Preferences) string {
	if prefs.Profile == nil {
		return ""
	}
	return *prefs.Profile
}

func (a *app) orchestrator(prefs *config.Preferences) *lifecycle.Orchestrator {
	profile := profileOf(prefs)
	return lifecycle.New(func(ctx context.Context, region string) (lifecycle.Backend, error) {
		return a.connect(ctx, region, profile)
	}, a.tunnel, a.proxy, a.store())
}

func (a *app) reconciler(prefs *config.Preferences) *reconcile.Reconciler {
	profile := profileOf(prefs)
	return reconcile.New(func(ctx context.Context, region string) (reconcile.Backend, error) {
		return a.connect(ctx, region, profile)
	})
}

// withLock runs 'fn' holding the state directory lock, so concurrent
// mutating invocations fail fast instead of racing on the session.
func (a *app) withLock(ctx context.Context, fn func() error) error {
	lock, err := a.store().Lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			clog.FromContext(ctx).Warn("failed to release lock", "error", err)
		}
	}()
	return fn()
}
