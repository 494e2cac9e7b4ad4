package simulation

import (
	"context"
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

func newTestOrchestrator(t *testing.T, plan domain.PlanInput, cfg Config) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(variedSeries(t), guardrails.DefaultConfig(), tax.UK2024(), plan, cfg, zerolog.Nop())
	require.NoError(t, err)
	return o
}

func twoStrategies(t *testing.T) []allocation.Strategy {
	t.Helper()
	a, err := allocation.NewFixed("50% Equities/50% Bonds", 0.5, 0.5, 0)
	require.NoError(t, err)
	b, err := allocation.NewFixed("100% Equities", 1, 0, 0)
	require.NoError(t, err)
	return []allocation.Strategy{a, b}
}

func TestAnalyzeRequiresStrategies(t *testing.T) {
	o := newTestOrchestrator(t, testPlan(), testConfig())
	_, err := o.Analyze(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestAnalyzeReturnsResultsInInputOrder(t *testing.T) {
	o := newTestOrchestrator(t, testPlan(), testConfig())
	strategies := twoStrategies(t)

	results, err := o.Analyze(context.Background(), strategies)
	require.NoError(t, err)
	require.Len(t, results, len(strategies))
	for i, s := range strategies {
		assert.Equal(t, s.Name, results[i].Allocation)
	}
}

// Parallel and sequential runs of a seeded analysis must be identical: each
// allocation draws from its own seed lane regardless of scheduling.
func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	strategies := twoStrategies(t)

	seqCfg := testConfig()
	sequential, err := newTestOrchestrator(t, testPlan(), seqCfg).Analyze(context.Background(), strategies)
	require.NoError(t, err)

	parCfg := testConfig()
	parCfg.Parallel = true
	parallel, err := newTestOrchestrator(t, testPlan(), parCfg).Analyze(context.Background(), strategies)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

// One unachievable allocation must not abort its siblings.
func TestAnalyzeIsolatesUnachievableAllocation(t *testing.T) {
	cash, err := allocation.NewFixed("100% Cash", 0, 0, 1)
	require.NoError(t, err)
	equities, err := allocation.NewFixed("100% Equities", 1, 0, 0)
	require.NoError(t, err)

	// Strong equity returns: the all-cash portfolio can never fund this
	// income by age 95, the all-equity one comfortably can.
	e := make(map[int]float64)
	b := make(map[int]float64)
	for i := 0; i < 15; i++ {
		e[1990+i] = 0.06 + float64(i%5-2)/100
		b[1990+i] = 0.01 + float64(i%3-1)/200
	}
	series, err := history.NewReturnSeries(e, b, nil)
	require.NoError(t, err)

	plan := testPlan()
	plan.DesiredAnnualIncome = 150000

	o, err := NewOrchestrator(series, guardrails.DefaultConfig(), tax.UK2024(), plan, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	results, err := o.Analyze(context.Background(), []allocation.Strategy{cash, equities})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Achievable)
	assert.Equal(t, 0.0, results[0].SuccessRate)
	assert.NotEmpty(t, results[0].FailureReason)

	assert.True(t, results[1].Achievable)
	assert.Empty(t, results[1].FailureReason)
}

func TestAnalyzeCancelledContext(t *testing.T) {
	o := newTestOrchestrator(t, testPlan(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := o.Analyze(ctx, twoStrategies(t))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Incomplete)
	}
}
