package lifecycle

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/backend/pricelist"
	"github.com/chainguard-dev/region-proxy/internal/session"
)

// Status is the recorded session combined with live probes. The probes may
// disagree with what the session recorded; they report what is true now.
type Status struct {
	Running bool
	Session *session.Session

	// TunnelAlive reports whether something listens on the session's port.
	TunnelAlive bool
	// SystemProxyEnabled is only meaningful when SystemProxySupported.
	SystemProxyEnabled   bool
	SystemProxySupported bool

	Uptime time.Duration
	// EstimatedCost is the accumulated on-demand cost in USD; zero when
	// CostKnown is false.
	EstimatedCost float64
	CostKnown     bool

	// ExitAddress is the public address seen through the tunnel, set by a
	// verifying status when the probe succeeded.
	ExitAddress string
	VerifyError error
}

// Status reports the session and probes the tunnel and the system proxy.
// With 'verify', a request is also sent through the tunnel to learn its exit
// address. Status never changes any state.
func (o *Orchestrator) Status(ctx context.Context, verify bool) (_ Status, err error) {
	ctx, span := o.tracer.Start(ctx, "Status")
	defer func() { endSpan(span, err) }()

	sess, err := o.store.Load()
	if err != nil {
		return Status{}, err
	}
	if sess == nil {
		return Status{Running: false}, nil
	}

	log := clog.FromContext(ctx)
	st := Status{
		Running:              true,
		Session:              sess,
		TunnelAlive:          o.tunnel.Alive(ctx, sess.LocalPort),
		SystemProxySupported: o.proxy.Supported(),
		Uptime:               sess.Uptime(o.clock.Now()),
	}

	if st.SystemProxySupported {
		if st.SystemProxyEnabled, err = o.proxy.IsEnabled(ctx); err != nil {
			log.Warn("failed to read system proxy state", "error", err)
		}
	}

	st.EstimatedCost, st.CostKnown = pricelist.Estimate(types.InstanceType(sess.InstanceType), st.Uptime)

	if verify {
		if !st.TunnelAlive {
			st.VerifyError = errTunnelDown
		} else {
			st.ExitAddress, st.VerifyError = o.tunnel.ExitAddress(ctx, sess.LocalPort)
		}
	}
	return st, nil
}
