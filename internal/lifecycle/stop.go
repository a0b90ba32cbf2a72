package lifecycle

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/o11y"
	"go.opentelemetry.io/otel/attribute"
)

// Stop tears the running session down.
//
// Without 'force' the first failing step aborts the teardown and the session
// is kept, so a later stop retries the remaining work; resources already
// gone count as reclaimed, so retries converge. With 'force' every step is
// attempted, failures are only logged, and the session is always deleted.
// Forcing a stop with no session is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, force bool) (err error) {
	ctx, span := o.tracer.Start(ctx, "Stop")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Bool("force", force))

	log := clog.FromContext(ctx)
	sess, err := o.store.Load()
	if err != nil && !force {
		return err
	} else if err != nil {
		// An unreadable session cannot be torn down, only discarded.
		log.Warn("session unreadable, discarding it", "error", err)
		return o.store.Delete()
	}
	if sess == nil {
		if force {
			log.Warn("no active proxy found, nothing to stop")
			return nil
		}
		return fmt.Errorf("%w, nothing to stop", errs.ErrNotRunning)
	}

	log = log.With("region", sess.Region, "instance", sess.InstanceID)
	ctx = clog.WithLogger(ctx, log)
	span.SetAttributes(attribute.String(o11y.AttrRegion, sess.Region), attribute.String(o11y.AttrInstanceID, sess.InstanceID))
	log.Info("stopping proxy")

	mode := Strict
	if force {
		mode = BestEffort
	}

	p := o.teardownPlan(sess, &lazyBackend{factory: o.backends, region: sess.Region}, true)
	if !force {
		p.Add("delete session", func(context.Context) error { return o.store.Delete() })
		return p.Run(ctx, mode)
	}

	if err := p.Run(ctx, mode); err != nil {
		log.Warn("forced stop left resources behind, run 'region-proxy cleanup' to reclaim them", "error", err)
	}
	if err := o.store.Delete(); err != nil {
		log.Error("failed to delete session", "error", err)
	}
	return nil
}
