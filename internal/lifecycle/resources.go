package lifecycle

import (
	"context"
	"errors"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/session"
)

// lazyBackend creates the region's backend on first use, so local teardown
// steps still run when the backend cannot be reached at all.
type lazyBackend struct {
	factory BackendFactory
	region  string
	be      Backend
	err     error
}

func (l *lazyBackend) get(ctx context.Context) (Backend, error) {
	if l.be == nil && l.err == nil {
		l.be, l.err = l.factory(ctx, l.region)
	}
	return l.be, l.err
}

// teardownPlan builds the ordered list of steps reclaiming every resource
// recorded in 'sess'. Steps for resources that were never created are left
// out. With 'byPort', the tunnel is also looked up by its port when no pid
// is recorded or signaling the pid fails.
func (o *Orchestrator) teardownPlan(sess *session.Session, backends *lazyBackend, byPort bool) *plan {
	p := new(plan)

	if sess.SystemProxy {
		p.Add("disable system proxy", func(ctx context.Context) error {
			return o.proxy.Disable(ctx, sess.SystemProxyPrior)
		})
	}

	pid, hasPID := sess.PID()
	if hasPID || byPort {
		p.Add("stop tunnel", func(ctx context.Context) error {
			if hasPID {
				err := o.tunnel.Stop(ctx, pid)
				if err == nil || !byPort {
					return err
				}
				clog.FromContext(ctx).Info("stopping tunnel by pid failed, trying by port", "pid", pid, "error", err)
			}
			return o.tunnel.StopByPort(ctx, sess.LocalPort)
		})
	}

	if id := sess.InstanceID; id != "" {
		p.Add("terminate instance", func(ctx context.Context) error {
			be, err := backends.get(ctx)
			if err != nil {
				return err
			}
			if err := be.TerminateInstance(ctx, id); err != nil {
				return err
			}
			// The security group stays attached until the instance is gone, but
			// a slow termination must not keep the remaining steps from running.
			if err := be.WaitUntilTerminated(ctx, id); err != nil {
				clog.FromContext(ctx).Warn("instance termination not confirmed", "id", id, "error", err)
			}
			return nil
		})
	}

	if id := sess.SecurityGroupID; id != "" {
		p.Add("delete security group", func(ctx context.Context) error {
			be, err := backends.get(ctx)
			if err != nil {
				return err
			}
			return be.DeleteSecurityGroup(ctx, id)
		})
	}

	if name := sess.KeyPairName; name != "" {
		p.Add("delete key pair", func(ctx context.Context) error {
			be, err := backends.get(ctx)
			if err != nil {
				return err
			}
			return be.DeleteKeyPair(ctx, name)
		})
	}

	if path := sess.KeyPath; path != "" {
		p.Add("remove key file", func(context.Context) error {
			return session.RemoveKey(path)
		})
	}

	return p
}

// rollback reclaims whatever a failed start created. It runs on a context
// detached from 'ctx' so that an interrupted start still cleans up.
func (o *Orchestrator) rollback(ctx context.Context, backends *lazyBackend, sess *session.Session, cause error) {
	log := clog.FromContext(ctx)
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		log.Warn("start interrupted, rolling back")
	} else {
		log.Warn("start failed, rolling back", "error", cause)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.rollbackTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "Rollback")
	defer span.End()

	if err := o.teardownPlan(sess, backends, false).Run(ctx, BestEffort); err != nil {
		span.RecordError(err)
		log.Error("rollback left resources behind, run 'region-proxy cleanup' to reclaim them", "error", err)
		return
	}
	log.Info("rollback complete")
}
