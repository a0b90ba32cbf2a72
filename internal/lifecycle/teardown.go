package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/region-proxy/internal/errs"
)

// Mode selects how a teardown plan reacts to a failing step.
type Mode int

const (
	// Strict aborts at the first failing step.
	Strict Mode = iota
	// BestEffort logs failing steps and carries on with the rest.
	BestEffort
)

func (m Mode) String() string {
	if m == BestEffort {
		return "best-effort"
	}
	return "strict"
}

type (
	plan struct {
		Steps []step
	}
	step struct {
		Name string
		Run  func(ctx context.Context) error
	}
)

// Add appends a step. Steps run in the order they were added.
func (p *plan) Add(name string, run func(ctx context.Context) error) {
	p.Steps = append(p.Steps, step{Name: name, Run: run})
}

// Run executes every step in order. A step failing with 'errs.ErrNotFound'
// found its resource already gone and counts as done.
//
// In 'Strict' mode the first failure is returned and later steps do not run.
// In 'BestEffort' mode every step runs and all failures are returned joined.
func (p *plan) Run(ctx context.Context, mode Mode) error {
	log := clog.FromContext(ctx).With("mode", mode)
	var failures error
	for _, s := range p.Steps {
		err := s.Run(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, errs.ErrNotFound):
			log.Info("resource already gone", "step", s.Name, "error", err)
			continue
		}

		err = fmt.Errorf("%s: %w", s.Name, err)
		if mode == Strict {
			return err
		}
		log.Warn("teardown step failed, continuing", "step", s.Name, "error", err)
		failures = errors.Join(failures, err)
	}
	return failures
}
