// Package simulation runs historically-bootstrapped Monte Carlo retirement
// trajectories: an accumulation phase to the retirement age, then a
// decumulation phase with guard-railed, tax-grossed-up withdrawals through
// the terminal age.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/ukfire/firecalc/internal/allocation"
	"github.com/ukfire/firecalc/internal/domain"
	"github.com/ukfire/firecalc/internal/guardrails"
	"github.com/ukfire/firecalc/internal/history"
	"github.com/ukfire/firecalc/internal/tax"
)

// Engine simulates one allocation strategy against one plan. The return
// series, allocation, guard rails and tax schedule are read-only after
// construction, so one engine may serve many batches; per-batch state lives
// on the stack of each run.
type Engine struct {
	series *history.ReturnSeries
	alloc  allocation.Strategy
	rails  guardrails.Config
	taxes  *tax.BracketTable
	plan   domain.PlanInput
	cfg    Config
	log    zerolog.Logger
}

// NewEngine validates every input and builds an engine. Configuration and
// data errors surface here, before any simulation runs.
func NewEngine(series *history.ReturnSeries, alloc allocation.Strategy, rails guardrails.Config,
	taxes *tax.BracketTable, plan domain.PlanInput, cfg Config, log zerolog.Logger) (*Engine, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: return series is required", domain.ErrInvalidConfig)
	}
	if taxes == nil {
		return nil, fmt.Errorf("%w: tax schedule is required", domain.ErrInvalidConfig)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := alloc.Validate(); err != nil {
		return nil, err
	}
	if err := rails.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		series: series,
		alloc:  alloc,
		rails:  rails,
		taxes:  taxes,
		plan:   plan,
		cfg:    cfg.withSeed(),
		log:    log.With().Str("component", "simulation").Str("allocation", alloc.Name).Logger(),
	}, nil
}

// Allocation returns the strategy this engine simulates.
func (e *Engine) Allocation() allocation.Strategy { return e.alloc }

// grossNeeds precomputes the gross withdrawal required for each retirement
// year: the desired net income scaled by the spending phase in force at that
// age, less the state pension once in payment, grossed up through the tax
// schedule. Identical across all simulations of a batch.
func (e *Engine) grossNeeds(retirementAge int) []float64 {
	years := domain.TerminalAge - retirementAge
	nets := make([]float64, years)
	for yr := 0; yr < years; yr++ {
		age := retirementAge + yr
		net := e.plan.DesiredAnnualIncome*e.plan.SpendingMultiplierAt(age) - e.plan.StatePensionAt(age)
		if net < 0 {
			net = 0
		}
		nets[yr] = net
	}
	gross := make([]float64, years)
	e.taxes.GrossNeededBatch(nets, gross)
	return gross
}

// RunTrajectory simulates a single trajectory with the supplied random
// source. It is the scalar reference path; the batch path must be
// statistically equivalent to it. Returns success (terminal value above
// zero) and the full per-year trajectory.
func (e *Engine) RunTrajectory(rng *rand.Rand, retirementAge int) (bool, domain.Trajectory) {
	yearsToRetirement := retirementAge - e.plan.CurrentAge
	yearsInRetirement := domain.TerminalAge - retirementAge

	// Accumulation: contribution first, then the sampled return, with the
	// allocation's weights re-evaluated at each year's age.
	value := e.plan.CurrentSavings
	contribution := e.plan.MonthlySavings * 12
	for yr := 0; yr < yearsToRetirement; yr++ {
		idx := rng.Intn(e.series.Len())
		w := e.alloc.WeightsAt(e.plan.CurrentAge+yr, retirementAge)
		value += contribution
		value *= 1 + w.Return(e.series.EquityAt(idx), e.series.BondAt(idx))
	}

	gross := e.grossNeeds(retirementAge)
	initial := value
	buffer := e.plan.CashBufferYears * firstOrZero(gross)
	state := guardrails.NewState(firstOrZero(gross))

	trajectory := make(domain.Trajectory, yearsInRetirement+1)
	trajectory[0] = value

	for yr := 0; yr < yearsInRetirement; yr++ {
		current := trajectory[yr]
		w := e.alloc.WeightsAt(retirementAge+yr, retirementAge)
		idx := rng.Intn(e.series.Len())
		ret := w.Return(e.series.EquityAt(idx), e.series.BondAt(idx))
		if current > 0 {
			current *= 1 + ret
		}

		withdrawal, _ := e.rails.Step(&state, current, initial, gross[yr], ret, e.series.InflationAt(idx))
		if withdrawal < 0 {
			withdrawal = 0
		}
		// In down years the cash buffer covers spending before the
		// portfolio is touched; it is never replenished.
		if ret < 0 && buffer > 0 {
			fromBuffer := withdrawal
			if fromBuffer > buffer {
				fromBuffer = buffer
			}
			buffer -= fromBuffer
			withdrawal -= fromBuffer
		}

		next := current - withdrawal
		if next < 0 {
			next = 0
		}
		trajectory[yr+1] = next
	}

	return trajectory[yearsInRetirement] > 0, trajectory
}

// RunBatch runs the configured number of simulations at the given retirement
// age, with the simulation index as the vectorized dimension: year draws,
// returns and withdrawal adjustments are computed as whole-chunk slice
// operations, chunked at the configured batch size to cap peak memory.
// Percentile trajectories are computed per year across the full batch after
// all chunks complete.
func (e *Engine) RunBatch(ctx context.Context, retirementAge int) (*domain.SimulationResult, error) {
	return e.runBatchN(ctx, retirementAge, e.cfg.NumSimulations)
}

func (e *Engine) runBatchN(ctx context.Context, retirementAge, numSims int) (*domain.SimulationResult, error) {
	if retirementAge <= e.plan.CurrentAge || retirementAge >= domain.TerminalAge {
		return nil, fmt.Errorf("%w: retirement age %d outside (%d, %d)", domain.ErrInvalidConfig, retirementAge, e.plan.CurrentAge, domain.TerminalAge)
	}
	yearsInRetirement := domain.TerminalAge - retirementAge
	if est := e.cfg.MemoryEstimate(yearsInRetirement); est > e.cfg.MaxBatchBytes {
		return nil, fmt.Errorf("%w: estimated %d bytes exceeds ceiling %d; reduce batch size and retry", domain.ErrBatchTooLarge, est, e.cfg.MaxBatchBytes)
	}

	gross := e.grossNeeds(retirementAge)

	// valuesByYear[yr] holds every simulation's portfolio value in that
	// retirement year; kept whole-batch for the percentile pass.
	valuesByYear := make([][]float64, yearsInRetirement+1)
	for yr := range valuesByYear {
		valuesByYear[yr] = make([]float64, numSims)
	}
	successes := 0

	for chunkStart, chunkIdx := 0, 0; chunkStart < numSims; chunkStart, chunkIdx = chunkStart+e.cfg.BatchSize, chunkIdx+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := e.cfg.BatchSize
		if chunkStart+chunk > numSims {
			chunk = numSims - chunkStart
		}
		rng := rand.New(rand.NewSource(e.chunkSeed(retirementAge, chunkIdx)))
		s := e.runChunk(rng, retirementAge, gross, valuesByYear, chunkStart, chunk)
		successes += s
	}

	result := &domain.SimulationResult{
		Allocation:     e.alloc.Name,
		RetirementAge:  retirementAge,
		SuccessRate:    float64(successes) / float64(numSims),
		NumSimulations: numSims,
		MeanTrajectory: make([]float64, yearsInRetirement+1),
		Percentiles: domain.PercentileBands{
			P10: make([]float64, yearsInRetirement+1),
			P50: make([]float64, yearsInRetirement+1),
			P90: make([]float64, yearsInRetirement+1),
		},
		Achievable: true,
	}

	sorted := make([]float64, numSims)
	for yr, values := range valuesByYear {
		result.MeanTrajectory[yr] = stat.Mean(values, nil)
		copy(sorted, values)
		sort.Float64s(sorted)
		result.Percentiles.P10[yr] = stat.Quantile(0.10, stat.Empirical, sorted, nil)
		result.Percentiles.P50[yr] = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		result.Percentiles.P90[yr] = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	}
	result.MeanFinalValue = result.MeanTrajectory[yearsInRetirement]
	return result, nil
}

// runChunk simulates chunk trajectories, writing each year's values into the
// whole-batch matrix at offset, and returns the chunk's success count.
func (e *Engine) runChunk(rng *rand.Rand, retirementAge int, gross []float64, valuesByYear [][]float64, offset, chunk int) int {
	yearsToRetirement := retirementAge - e.plan.CurrentAge
	yearsInRetirement := domain.TerminalAge - retirementAge
	contribution := e.plan.MonthlySavings * 12
	baseGross := firstOrZero(gross)

	values := make([]float64, chunk)
	for i := range values {
		values[i] = e.plan.CurrentSavings
	}
	var indices []int

	// Accumulation, whole chunk per year.
	for yr := 0; yr < yearsToRetirement; yr++ {
		indices = e.series.SampleYears(rng, chunk, indices)
		w := e.alloc.WeightsAt(e.plan.CurrentAge+yr, retirementAge)
		for i, idx := range indices {
			values[i] = (values[i] + contribution) * (1 + w.Return(e.series.EquityAt(idx), e.series.BondAt(idx)))
		}
	}

	initial := make([]float64, chunk)
	copy(initial, values)
	buffers := make([]float64, chunk)
	states := make([]guardrails.State, chunk)
	for i := range states {
		buffers[i] = e.plan.CashBufferYears * baseGross
		states[i] = guardrails.NewState(baseGross)
	}
	for i := range values {
		valuesByYear[0][offset+i] = values[i]
	}

	// Decumulation, whole chunk per year: return first, then the
	// guard-railed withdrawal against the post-return value, floored at
	// zero. Zero is absorbing but still recorded through the terminal age.
	for yr := 0; yr < yearsInRetirement; yr++ {
		indices = e.series.SampleYears(rng, chunk, indices)
		w := e.alloc.WeightsAt(retirementAge+yr, retirementAge)
		for i, idx := range indices {
			current := values[i]
			ret := w.Return(e.series.EquityAt(idx), e.series.BondAt(idx))
			if current > 0 {
				current *= 1 + ret
			}

			withdrawal, _ := e.rails.Step(&states[i], current, initial[i], gross[yr], ret, e.series.InflationAt(idx))
			if withdrawal < 0 {
				withdrawal = 0
			}
			if ret < 0 && buffers[i] > 0 {
				fromBuffer := withdrawal
				if fromBuffer > buffers[i] {
					fromBuffer = buffers[i]
				}
				buffers[i] -= fromBuffer
				withdrawal -= fromBuffer
			}

			next := current - withdrawal
			if next < 0 {
				next = 0
			}
			values[i] = next
			valuesByYear[yr+1][offset+i] = next
		}
	}

	successes := 0
	for _, v := range values {
		if v > 0 {
			successes++
		}
	}
	return successes
}

// chunkSeed derives a stable per-chunk seed so chunking and retirement age
// never alias each other's random streams, keeping seeded runs reproducible.
func (e *Engine) chunkSeed(retirementAge, chunkIdx int) int64 {
	return e.cfg.Seed + int64(retirementAge)<<24 + int64(chunkIdx)
}

func firstOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}
