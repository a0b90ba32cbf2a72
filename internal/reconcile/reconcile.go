// Package reconcile reclaims resources that carry the region-proxy owner tag
// but belong to no live session, typically left behind by a crash or a
// failed forced stop.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/backend"
	"github.com/chainguard-dev/region-proxy/internal/errs"
	"github.com/chainguard-dev/region-proxy/internal/o11y"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Backend is the part of the backend client a sweep needs.
type Backend interface {
	Region() string
	FindTaggedResources(ctx context.Context) (backend.OrphanSet, error)
	TerminateInstance(ctx context.Context, id string) error
	WaitUntilTerminated(ctx context.Context, id string) error
	DeleteSecurityGroup(ctx context.Context, id string) error
	DeleteKeyPair(ctx context.Context, name string) error
}

var _ Backend = (*backend.Client)(nil)

// Factory returns the backend for a region.
type Factory func(ctx context.Context, region string) (Backend, error)

const defaultConcurrency = 4

// Report is the outcome of sweeping one region.
type Report struct {
	Region string
	// Found is what the owner tag query returned, minus excluded resources.
	Found   backend.OrphanSet
	Cleaned int
	Failed  int
	// Err is set when the region could not be queried at all; Found is
	// empty in that case.
	Err error
}

type Reconciler struct {
	backends    Factory
	concurrency int
	tracer      trace.Tracer
}

type Option func(*Reconciler)

// WithConcurrency bounds how many regions are swept at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func New(backends Factory, opts ...Option) *Reconciler {
	r := &Reconciler{
		backends:    backends,
		concurrency: defaultConcurrency,
		tracer:      otel.Tracer("github.com/chainguard-dev/region-proxy/internal/reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sweep reclaims owner-tagged resources in every region in 'regions',
// skipping the identifiers in 'exclude' (the live session's resources).
//
// Failures never stop the sweep: each one is logged and counted in its
// region's report. Reports are returned in the order of 'regions'.
func (r *Reconciler) Sweep(ctx context.Context, regions []string, exclude backend.OrphanSet) []Report {
	ctx, span := r.tracer.Start(ctx, "Sweep", trace.WithAttributes(attribute.StringSlice("regions", regions)))
	defer span.End()

	reports := make([]Report, len(regions))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, region := range regions {
		g.Go(func() error {
			reports[i] = r.sweepRegion(ctx, region, exclude)
			return nil
		})
	}
	_ = g.Wait()

	var cleaned, failed int
	for _, rep := range reports {
		cleaned += rep.Cleaned
		failed += rep.Failed
		if rep.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("cleaned", cleaned), attribute.Int("failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d resources not reclaimed", failed))
	}
	return reports
}

func (r *Reconciler) sweepRegion(ctx context.Context, region string, exclude backend.OrphanSet) (rep Report) {
	ctx, span := r.tracer.Start(ctx, "SweepRegion", trace.WithAttributes(attribute.String(o11y.AttrRegion, region)))
	defer func() {
		span.SetAttributes(attribute.Int("cleaned", rep.Cleaned), attribute.Int("failed", rep.Failed))
		if rep.Err != nil {
			span.RecordError(rep.Err)
			span.SetStatus(codes.Error, rep.Err.Error())
		}
		span.End()
	}()

	rep.Region = region
	log := clog.FromContext(ctx).With("region", region)
	ctx = clog.WithLogger(ctx, log)

	be, err := r.backends(ctx, region)
	if err != nil {
		rep.Err = err
		log.Warn("skipping region", "error", err)
		return rep
	}

	found, err := be.FindTaggedResources(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("listing tagged resources: %w", err)
		log.Warn("skipping region", "error", rep.Err)
		return rep
	}
	rep.Found = without(found, exclude)
	if rep.Found.Empty() {
		log.Debug("nothing to reclaim")
		return rep
	}
	log.Info("reclaiming orphaned resources",
		"instances", len(rep.Found.InstanceIDs),
		"security_groups", len(rep.Found.SecurityGroupIDs),
		"key_pairs", len(rep.Found.KeyPairNames),
	)

	count := func(kind, id string, err error) bool {
		if err != nil {
			rep.Failed++
			log.Warn("failed to reclaim resource", "kind", kind, "id", id, "error", err)
			return false
		}
		rep.Cleaned++
		log.Info("reclaimed resource", "kind", kind, "id", id)
		return true
	}

	// Groups cannot be deleted while an instance still references them, so
	// every instance is terminated first and awaited before groups go.
	var terminated []string
	for _, id := range rep.Found.InstanceIDs {
		if count("instance", id, ignoreGone(be.TerminateInstance(ctx, id))) {
			terminated = append(terminated, id)
		}
	}
	for _, id := range terminated {
		if err := be.WaitUntilTerminated(ctx, id); err != nil {
			log.Warn("instance termination not confirmed", "id", id, "error", err)
		}
	}
	for _, id := range rep.Found.SecurityGroupIDs {
		count("security_group", id, ignoreGone(be.DeleteSecurityGroup(ctx, id)))
	}
	for _, name := range rep.Found.KeyPairNames {
		count("key_pair", name, ignoreGone(be.DeleteKeyPair(ctx, name)))
	}
	return rep
}

// without drops every identifier in 'exclude' from 'set'.
func without(set, exclude backend.OrphanSet) backend.OrphanSet {
	keep := func(ids, drop []string) []string {
		return slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
			return slices.Contains(drop, id)
		})
	}
	return backend.OrphanSet{
		InstanceIDs:      keep(set.InstanceIDs, exclude.InstanceIDs),
		SecurityGroupIDs: keep(set.SecurityGroupIDs, exclude.SecurityGroupIDs),
		KeyPairNames:     keep(set.KeyPairNames, exclude.KeyPairNames),
	}
}

// ignoreGone treats a resource that disappeared between listing and
// deletion as reclaimed.
func ignoreGone(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}
