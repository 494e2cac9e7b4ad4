package domain

import "errors"

// Error taxonomy. Configuration and data errors fail fast at construction;
// ErrBatchTooLarge is retriable with a smaller batch size; only the
// orchestrator's per-allocation boundary may downgrade a failure to a
// placeholder result.
var (
	// ErrInvalidPlan marks a plan input rejected at construction.
	ErrInvalidPlan = errors.New("invalid plan input")

	// ErrInvalidConfig marks engine, guard-rails, allocation or tax
	// configuration rejected at construction.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInsufficientHistory is returned when the equity and bond series
	// share fewer overlapping years than the bootstrap sampler requires.
	ErrInsufficientHistory = errors.New("insufficient historical data")

	// ErrBatchTooLarge is returned when a simulation batch would exceed the
	// configured memory ceiling. Callers should reduce the batch size and
	// retry rather than abort the analysis.
	ErrBatchTooLarge = errors.New("simulation batch too large")

	// ErrNotAchievable is returned by the optimal-age search when no
	// retirement age in range meets the target success rate.
	ErrNotAchievable = errors.New("target success rate not achievable")
)
