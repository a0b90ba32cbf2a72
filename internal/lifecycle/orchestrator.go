// Package lifecycle drives a proxy session through its states:
//
//	Idle -> Provisioning -> Running -> Stopping -> Idle
//
// Only Idle (no session file) and Running (session file present) survive
// between invocations; every command rebuilds its view from the session
// store. Provisioning rolls back everything it created when any step fails,
// and stopping runs one ordered teardown plan in strict or best-effort mode.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/chainguard-dev/region-proxy/internal/backend"
	"github.com/chainguard-dev/region-proxy/internal/session"
	"github.com/chainguard-dev/region-proxy/internal/sysproxy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"
)

// Backend provisions and reclaims the cloud resources of one region.
type Backend interface {
	Region() string
	FindLatestImage(ctx context.Context, arch backend.Arch) (string, error)
	CreateSecurityGroup(ctx context.Context) (string, error)
	AuthorizeIngress(ctx context.Context, groupID string, port int32, cidr string) error
	CreateKeyPair(ctx context.Context) (string, []byte, error)
	LaunchInstance(ctx context.Context, image, instanceType, groupID, keyName string) (string, error)
	WaitUntilRunning(ctx context.Context, id string) (string, error)
	TerminateInstance(ctx context.Context, id string) error
	WaitUntilTerminated(ctx context.Context, id string) error
	DeleteSecurityGroup(ctx context.Context, id string) error
	DeleteKeyPair(ctx context.Context, name string) error
}

var _ Backend = (*backend.Client)(nil)

// BackendFactory returns the backend for a region.
type BackendFactory func(ctx context.Context, region string) (Backend, error)

// Tunnel manages the local ssh forward.
type Tunnel interface {
	Start(ctx context.Context, host, keyFile string, localPort int, user string) (int, error)
	WaitReady(ctx context.Context, port int) error
	Stop(ctx context.Context, pid int) error
	StopByPort(ctx context.Context, port int) error
	Alive(ctx context.Context, port int) bool
	ExitAddress(ctx context.Context, port int) (string, error)
}

// Store persists the session and its private key.
type Store interface {
	Load() (*session.Session, error)
	Save(sess *session.Session) error
	Delete() error
	WriteKey(name string, pem []byte) (string, error)
}

var _ Store = (*session.Store)(nil)

const (
	sshPort = 22

	// defaultRollbackTimeout bounds a rollback running after the start
	// context was cancelled. It covers one instance termination wait plus
	// every security group delete attempt.
	defaultRollbackTimeout = 3 * time.Minute
)

// Orchestrator sequences backend, tunnel, system proxy, and store calls.
type Orchestrator struct {
	backends        BackendFactory
	tunnel          Tunnel
	proxy           sysproxy.Configurator
	store           Store
	clock           clock.PassiveClock
	callerCIDR      func(ctx context.Context) (string, error)
	rollbackTimeout time.Duration
	tracer          trace.Tracer
}

type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c clock.PassiveClock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithCallerCIDR replaces the lookup of the caller's public address used by
// restricted ingress.
func WithCallerCIDR(f func(ctx context.Context) (string, error)) Option {
	return func(o *Orchestrator) { o.callerCIDR = f }
}

// WithRollbackTimeout bounds rollbacks that run after cancellation.
func WithRollbackTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.rollbackTimeout = d }
}

func New(backends BackendFactory, tunnel Tunnel, proxy sysproxy.Configurator, store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backends:        backends,
		tunnel:          tunnel,
		proxy:           proxy,
		store:           store,
		clock:           clock.RealClock{},
		callerCIDR:      backend.CallerCIDR,
		rollbackTimeout: defaultRollbackTimeout,
		tracer:          otel.Tracer("github.com/chainguard-dev/region-proxy/internal/lifecycle"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var errTunnelDown = errors.New("tunnel is not running")
