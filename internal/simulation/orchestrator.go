package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ukfire/firecalc/internal/allocation"
	"github.com/ukfire/firecalc/internal/domain"
	"github.com/ukfire/firecalc/internal/guardrails"
	"github.com/ukfire/firecalc/internal/history"
	"github.com/ukfire/firecalc/internal/tax"
)

// Orchestrator runs the full analysis across a set of allocation strategies:
// for each one, the optimal-age search followed by a full-size batch at the
// found age. Workers share the read-only return series and communicate only
// final results back; no partial state crosses an allocation boundary.
type Orchestrator struct {
	series *history.ReturnSeries
	rails  guardrails.Config
	taxes  *tax.BracketTable
	plan   domain.PlanInput
	cfg    Config
	log    zerolog.Logger
}

// NewOrchestrator validates the shared inputs once; per-allocation engines
// revalidate their own strategy.
func NewOrchestrator(series *history.ReturnSeries, rails guardrails.Config, taxes *tax.BracketTable,
	plan domain.PlanInput, cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: return series is required", domain.ErrInvalidConfig)
	}
	if taxes == nil {
		return nil, fmt.Errorf("%w: tax schedule is required", domain.ErrInvalidConfig)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := rails.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		series: series,
		rails:  rails,
		taxes:  taxes,
		plan:   plan,
		cfg:    cfg.withSeed(),
		log:    log.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// Analyze produces one SimulationResult per strategy, in input order. A
// failing allocation is recorded as a zero-success placeholder rather than
// aborting its siblings; this is the only boundary allowed to downgrade an
// error. Cancellation propagates to all outstanding work and the already
// finished results come back marked Incomplete alongside the context error.
func (o *Orchestrator) Analyze(ctx context.Context, strategies []allocation.Strategy) ([]domain.SimulationResult, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one allocation strategy is required", domain.ErrInvalidConfig)
	}

	results := make([]domain.SimulationResult, len(strategies))

	if o.cfg.Parallel {
		eg, egCtx := errgroup.WithContext(ctx)
		workers := runtime.GOMAXPROCS(0)
		if workers > len(strategies) {
			workers = len(strategies)
		}
		eg.SetLimit(workers)
		for i, strat := range strategies {
			i, strat := i, strat
			eg.Go(func() error {
				results[i] = o.analyzeOne(egCtx, i, strat)
				return nil
			})
		}
		// Workers never return errors; cancellation is observed below.
		_ = eg.Wait()
	} else {
		for i, strat := range strategies {
			results[i] = o.analyzeOne(ctx, i, strat)
		}
	}

	if err := ctx.Err(); err != nil {
		for i := range results {
			results[i].Incomplete = true
		}
		return results, err
	}
	return results, nil
}

// analyzeOne runs the search plus the confirming full batch for a single
// allocation and converts any failure into a placeholder result.
func (o *Orchestrator) analyzeOne(ctx context.Context, index int, strat allocation.Strategy) domain.SimulationResult {
	cfg := o.cfg
	// Give each allocation its own seed lane so parallel and sequential
	// runs of the same analysis produce identical results.
	cfg.Seed = o.cfg.Seed + int64(index)<<40

	engine, err := NewEngine(o.series, strat, o.rails, o.taxes, o.plan, cfg, o.log)
	if err != nil {
		return o.placeholder(strat, err)
	}

	age, err := engine.FindOptimalAge(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotAchievable) {
			o.log.Info().Str("allocation", strat.Name).Msg("target success rate not achievable at any age")
			return o.placeholder(strat, err)
		}
		return o.placeholder(strat, err)
	}

	result, err := engine.RunBatch(ctx, age)
	if err != nil {
		return o.placeholder(strat, err)
	}
	o.log.Info().
		Str("allocation", strat.Name).
		Int("retirementAge", age).
		Float64("successRate", result.SuccessRate).
		Msg("allocation analysis complete")
	return *result
}

// placeholder builds the zero-success result that stands in for a failed or
// unachievable allocation.
func (o *Orchestrator) placeholder(strat allocation.Strategy, cause error) domain.SimulationResult {
	if !errors.Is(cause, domain.ErrNotAchievable) {
		o.log.Warn().Err(cause).Str("allocation", strat.Name).Msg("allocation analysis failed; recording placeholder result")
	}
	return domain.SimulationResult{
		Allocation:    strat.Name,
		RetirementAge: domain.MaxRetirementAge,
		SuccessRate:   0,
		Achievable:    false,
		Incomplete:    errors.Is(cause, context.Canceled),
		FailureReason: cause.Error(),
	}
}
