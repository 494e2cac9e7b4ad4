package simulation

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukfire/firecalc/internal/allocation"
	"github.com/ukfire/firecalc/internal/domain"
	"github.com/ukfire/firecalc/internal/guardrails"
	"github.com/ukfire/firecalc/internal/history"
	"github.com/ukfire/firecalc/internal/tax"
)

// constantSeries builds a series where every sampled year carries the same
// returns, making trajectories fully deterministic.
func constantSeries(t *testing.T, equity, bond, inflation float64) *history.ReturnSeries {
	t.Helper()
	e := make(map[int]float64)
	b := make(map[int]float64)
	inf := make(map[int]float64)
	for year := 1990; year < 2002; year++ {
		e[year] = equity
		b[year] = bond
		inf[year] = inflation
	}
	rs, err := history.NewReturnSeries(e, b, inf)
	require.NoError(t, err)
	return rs
}

// variedSeries builds a deterministic but non-constant series.
func variedSeries(t *testing.T) *history.ReturnSeries {
	t.Helper()
	e := make(map[int]float64)
	b := make(map[int]float64)
	inf := make(map[int]float64)
	for i := 0; i < 20; i++ {
		year := 1985 + i
		e[year] = float64((i*37)%13-5) / 40.0 // -12.5% .. +17.5%
		b[year] = float64((i*17)%7-2) / 50.0  // -4% .. +8%
		inf[year] = 0.02 + float64(i%4)*0.005
	}
	rs, err := history.NewReturnSeries(e, b, inf)
	require.NoError(t, err)
	return rs
}

func testPlan() domain.PlanInput {
	return domain.PlanInput{
		CurrentAge:          35,
		CurrentSavings:      50000,
		MonthlySavings:      1000,
		DesiredAnnualIncome: 30000,
		TargetSuccessRate:   0.90,
	}
}

func testConfig() Config {
	return Config{
		NumSimulations: 200,
		BatchSize:      50,
		Seed:           1,
	}
}

func fiftyFifty(t *testing.T) allocation.Strategy {
	t.Helper()
	s, err := allocation.NewFixed("50% Equities/50% Bonds", 0.5, 0.5, 0)
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, series *history.ReturnSeries, plan domain.PlanInput, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(series, fiftyFifty(t), guardrails.DefaultConfig(), tax.UK2024(), plan, cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestRunBatchShape(t *testing.T) {
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), testConfig())

	const retirementAge = 60
	result, err := e.RunBatch(context.Background(), retirementAge)
	require.NoError(t, err)

	years := domain.TerminalAge - retirementAge
	assert.Equal(t, retirementAge, result.RetirementAge)
	assert.Equal(t, 200, result.NumSimulations)
	assert.Len(t, result.MeanTrajectory, years+1)
	assert.Len(t, result.Percentiles.P10, years+1)
	assert.Len(t, result.Percentiles.P50, years+1)
	assert.Len(t, result.Percentiles.P90, years+1)
	assert.Equal(t, years, result.YearsInRetirement())
	assert.GreaterOrEqual(t, result.SuccessRate, 0.0)
	assert.LessOrEqual(t, result.SuccessRate, 1.0)

	for yr := 0; yr <= years; yr++ {
		assert.GreaterOrEqual(t, result.MeanTrajectory[yr], 0.0)
		assert.LessOrEqual(t, result.Percentiles.P10[yr], result.Percentiles.P50[yr])
		assert.LessOrEqual(t, result.Percentiles.P50[yr], result.Percentiles.P90[yr])
	}
	assert.Equal(t, result.MeanTrajectory[years], result.MeanFinalValue)
}

// With identical returns in every year the batch path must reproduce the
// scalar reference path exactly.
func TestRunBatchMatchesScalarReference(t *testing.T) {
	series := constantSeries(t, 0.05, 0.02, 0)
	e := newTestEngine(t, series, testPlan(), testConfig())

	const retirementAge = 62
	_, want := e.RunTrajectory(rand.New(rand.NewSource(7)), retirementAge)

	result, err := e.RunBatch(context.Background(), retirementAge)
	require.NoError(t, err)

	require.Len(t, result.MeanTrajectory, len(want))
	for yr := range want {
		assert.InDeltaf(t, want[yr], result.MeanTrajectory[yr], 1e-6, "year %d", yr)
		assert.InDeltaf(t, want[yr], result.Percentiles.P50[yr], 1e-6, "year %d median", yr)
	}
}

func TestDepletedPortfolioStaysAtZero(t *testing.T) {
	series := constantSeries(t, -0.30, -0.30, 0)
	plan := testPlan()
	plan.DesiredAnnualIncome = 60000
	e := newTestEngine(t, series, plan, testConfig())

	result, err := e.RunBatch(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.SuccessRate)
	assert.Equal(t, 0.0, result.MeanFinalValue)

	depleted := false
	for _, v := range result.Percentiles.P50 {
		if depleted {
			assert.Equal(t, 0.0, v, "zero is absorbing")
		}
		if v == 0 {
			depleted = true
		}
	}
	assert.True(t, depleted, "portfolio should run out under -30% returns")
}

func TestSeededRunsAreReproducible(t *testing.T) {
	series := variedSeries(t)
	a := newTestEngine(t, series, testPlan(), testConfig())
	b := newTestEngine(t, series, testPlan(), testConfig())

	ra, err := a.RunBatch(context.Background(), 58)
	require.NoError(t, err)
	rb, err := b.RunBatch(context.Background(), 58)
	require.NoError(t, err)

	assert.Equal(t, ra.SuccessRate, rb.SuccessRate)
	assert.Equal(t, ra.MeanTrajectory, rb.MeanTrajectory)
	assert.Equal(t, ra.Percentiles, rb.Percentiles)
}

func TestFindOptimalAge(t *testing.T) {
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), testConfig())
	ctx := context.Background()

	age, err := e.FindOptimalAge(ctx)
	require.NoError(t, err)
	assert.Greater(t, age, 35)
	assert.LessOrEqual(t, age, domain.MaxRetirementAge)

	atAge, err := e.RunBatch(ctx, age)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atAge.SuccessRate, 0.90)

	if age > 36 {
		before, err := e.RunBatch(ctx, age-1)
		require.NoError(t, err)
		assert.Less(t, before.SuccessRate, 0.90, "one year earlier must miss the target")
	}
}

func TestFindOptimalAgeLinearScanVerify(t *testing.T) {
	cfg := testConfig()
	cfg.LinearScanVerify = true
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), cfg)

	plain := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), testConfig())
	want, err := plain.FindOptimalAge(context.Background())
	require.NoError(t, err)

	got, err := e.FindOptimalAge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got, "deterministic monotone success rates: scan agrees with the search")
}

func TestFindOptimalAgeNotAchievable(t *testing.T) {
	series := constantSeries(t, -0.05, -0.05, 0)
	plan := testPlan()
	plan.DesiredAnnualIncome = 100000
	e := newTestEngine(t, series, plan, testConfig())

	_, err := e.FindOptimalAge(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotAchievable)
}

func TestRunBatchRejectsOutOfRangeAge(t *testing.T) {
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), testConfig())
	ctx := context.Background()

	_, err := e.RunBatch(ctx, 35)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = e.RunBatch(ctx, domain.TerminalAge)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRunBatchMemoryCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBatchBytes = 1024
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), cfg)

	_, err := e.RunBatch(context.Background(), 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)
}

func TestRunBatchHonoursCancellation(t *testing.T) {
	e := newTestEngine(t, constantSeries(t, 0.05, 0.02, 0), testPlan(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunBatch(ctx, 60)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatePensionReducesWithdrawals(t *testing.T) {
	series := constantSeries(t, 0.04, 0.02, 0)
	withPension := testPlan()
	withPension.StatePensionAge = 68
	withPension.StatePensionAnnual = 11500

	a := newTestEngine(t, series, testPlan(), testConfig())
	b := newTestEngine(t, series, withPension, testConfig())
	ctx := context.Background()

	plain, err := a.RunBatch(ctx, 60)
	require.NoError(t, err)
	pensioned, err := b.RunBatch(ctx, 60)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, pensioned.SuccessRate, plain.SuccessRate)
	assert.Greater(t, pensioned.MeanFinalValue, plain.MeanFinalValue,
		"pension income from age 68 leaves more in the portfolio")
}
