package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Selector runs the first tier that is available and succeeds.
type Selector struct {
	tiers []Evaluator
	force string
	log   *slog.Logger
}

// NewSelector probes tiers in the given order. A non-empty force restricts
// the run to the tier with that name.
func NewSelector(log *slog.Logger, force string, tiers ...Evaluator) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{tiers: tiers, force: force, log: log}
}

// DefaultTiers returns official, compatible and validator in that order.
func DefaultTiers(official OfficialConfig, log *slog.Logger) []Evaluator {
	return []Evaluator{NewOfficial(official, log), NewCompatible(log), NewValidator(log)}
}

func (s *Selector) Evaluate(ctx context.Context, in Input) (*Report, error) {
	var degraded []Degradation
	var errs []error
	ran := false
	for _, t := range s.tiers {
		if s.force != "" && t.Name() != s.force {
			continue
		}
		ran = true
		if err := t.Available(ctx, in); err != nil {
			s.log.Info("evaluator unavailable, trying next", "tier", t.Name(), "reason", err)
			degraded = append(degraded, Degradation{Tier: t.Name(), Reason: err.Error()})
			errs = append(errs, err)
			continue
		}
		rep, err := t.Evaluate(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("evaluator failed, degrading", "tier", t.Name(), "error", err)
			degraded = append(degraded, Degradation{Tier: t.Name(), Reason: err.Error()})
			errs = append(errs, err)
			continue
		}
		rep.Tier = t.Name()
		rep.Degraded = degraded
		s.log.Info("evaluation complete", "tier", rep.Tier,
			"ex_accuracy", rep.ExAccuracy, "lf_accuracy", rep.LfAccuracy, "total", rep.Total)
		return rep, nil
	}
	if !ran {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrUnavailable, s.force)
	}
	return nil, fmt.Errorf("%w: every tier failed: %w", ErrUnavailable, errors.Join(errs...))
}
