package lifecycle

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/backend"
	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/o11y"
	"github.com/chainguard-dev/region-proxy/internal/session"
	"github.com/chainguard-dev/region-proxy/internal/tunnel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Start provisions an instance, connects the tunnel, and persists the
// session. Any failure after the first resource was created rolls back
// everything created so far before the error is returned; the caller never
// has to clean up after a failed start.
func (o *Orchestrator) Start(ctx context.Context, opts config.StartOptions) (_ *session.Session, err error) {
	ctx, span := o.tracer.Start(ctx, "Start")
	defer func() { endSpan(span, err) }()

	existing, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w in %s, run 'region-proxy stop' first", errs.ErrAlreadyRunning, existing.Region)
	}

	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	arch := backend.ArchitectureFor(opts.InstanceType)
	span.SetAttributes(
		attribute.String(o11y.AttrRegion, opts.Region),
		attribute.String(o11y.AttrInstanceType, opts.InstanceType),
		attribute.String("arch", string(arch)),
		attribute.Int("port", opts.Port),
	)

	cidr := backend.AnyIPv4
	if opts.RestrictIngress {
		if cidr, err = o.callerCIDR(ctx); err != nil {
			return nil, err
		}
	}

	log := clog.FromContext(ctx).With("region", opts.Region)
	ctx = clog.WithLogger(ctx, log)
	log.Info("starting proxy",
		"name", config.RegionName(opts.Region),
		"instance_type", opts.InstanceType,
		"port", opts.Port,
		"ingress", cidr,
	)

	backends := &lazyBackend{factory: o.backends, region: opts.Region}
	be, err := backends.get(ctx)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		Region:       opts.Region,
		LocalPort:    opts.Port,
		InstanceType: opts.InstanceType,
	}
	defer func() {
		if err != nil {
			o.rollback(ctx, backends, sess, err)
		}
	}()

	if err := o.provision(ctx, be, sess, arch, cidr); err != nil {
		return nil, err
	}
	span.AddEvent("provisioned", trace.WithAttributes(attribute.String(o11y.AttrInstanceID, sess.InstanceID)))

	if err := o.connect(ctx, sess, opts.NoSystemProxy); err != nil {
		return nil, err
	}

	sess.StartedAt = o.clock.Now().UTC()
	if err := o.store.Save(sess); err != nil {
		return nil, err
	}

	log.Info("proxy is ready", "ip", sess.PublicIP, "port", sess.LocalPort)
	return sess, nil
}

// provision creates the cloud resources and fills their handles into
// 'sess' as they come into existence.
func (o *Orchestrator) provision(ctx context.Context, be Backend, sess *session.Session, arch backend.Arch, cidr string) error {
	image, err := be.FindLatestImage(ctx, arch)
	if err != nil {
		return err
	}

	if sess.SecurityGroupID, err = be.CreateSecurityGroup(ctx); err != nil {
		return err
	}
	if err := be.AuthorizeIngress(ctx, sess.SecurityGroupID, sshPort, cidr); err != nil {
		return err
	}

	name, pem, err := be.CreateKeyPair(ctx)
	if err != nil {
		return err
	}
	sess.KeyPairName = name
	if sess.KeyPath, err = o.store.WriteKey(name, pem); err != nil {
		return err
	}

	if sess.InstanceID, err = be.LaunchInstance(ctx, image, sess.InstanceType, sess.SecurityGroupID, sess.KeyPairName); err != nil {
		return err
	}
	if sess.PublicIP, err = be.WaitUntilRunning(ctx, sess.InstanceID); err != nil {
		return err
	}
	return nil
}

// connect brings up the tunnel and, unless skipped, the system proxy.
func (o *Orchestrator) connect(ctx context.Context, sess *session.Session, noSystemProxy bool) error {
	log := clog.FromContext(ctx)

	pid, err := o.tunnel.Start(ctx, sess.PublicIP, sess.KeyPath, sess.LocalPort, tunnel.DefaultUser)
	if err != nil {
		return err
	}
	sess.SetPID(pid)
	if err := o.tunnel.WaitReady(ctx, sess.LocalPort); err != nil {
		return err
	}

	switch {
	case noSystemProxy:
		log.Info("skipping system proxy configuration")
	case !o.proxy.Supported():
		log.Warn("system proxy configuration is not supported on this platform, configure applications to use the SOCKS proxy directly",
			"socks", fmt.Sprintf("localhost:%d", sess.LocalPort))
	default:
		prior, err := o.proxy.Enable(ctx, sess.LocalPort)
		if err != nil {
			return err
		}
		sess.SystemProxy = true
		sess.SystemProxyPrior = prior
	}
	return nil
}
