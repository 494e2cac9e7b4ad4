package simulation

import (
	"fmt"
	"time"

	"github.com/ukfire/firecalc/internal/domain"
)

// Defaults for the simulation configuration.
const (
	DefaultNumSimulations = 10000
	DefaultBatchSize      = 1000
	DefaultMaxBatchBytes  = 1 << 30 // 1 GiB peak per analysis

	// searchSimulations caps the reduced batch the optimal-age binary
	// search runs at each probe, trading accuracy for latency.
	searchSimulations = 1000
)

// Config carries the engine knobs. Everything is validated at construction,
// not at use.
type Config struct {
	// NumSimulations is the trajectory count for a full analysis batch.
	NumSimulations int `yaml:"num_simulations"`
	// BatchSize bounds how many trajectories are simulated at once to cap
	// peak memory. Must not exceed NumSimulations.
	BatchSize int `yaml:"batch_size"`
	// Parallel runs one worker per allocation during orchestration.
	Parallel bool `yaml:"parallel"`
	// Seed makes a run exactly reproducible; 0 derives one from the clock.
	Seed int64 `yaml:"seed"`
	// MaxBatchBytes is the memory ceiling for a single analysis; exceeding
	// it yields ErrBatchTooLarge. 0 means DefaultMaxBatchBytes.
	MaxBatchBytes int64 `yaml:"max_batch_bytes"`
	// LinearScanVerify makes the optimal-age search confirm its answer by
	// scanning earlier ages linearly, guarding against non-monotonic
	// success rates. Intended for test suites; off by default.
	LinearScanVerify bool `yaml:"linear_scan_verify"`
}

// DefaultConfig returns the configuration the CLI ships with.
func DefaultConfig() Config {
	return Config{
		NumSimulations: DefaultNumSimulations,
		BatchSize:      DefaultBatchSize,
	}
}

// Validate fails fast on out-of-range knobs.
func (c Config) Validate() error {
	if c.NumSimulations <= 0 {
		return fmt.Errorf("%w: simulations per analysis must be positive, got %d", domain.ErrInvalidConfig, c.NumSimulations)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", domain.ErrInvalidConfig, c.BatchSize)
	}
	if c.BatchSize > c.NumSimulations {
		return fmt.Errorf("%w: batch size %d exceeds simulations per analysis %d", domain.ErrInvalidConfig, c.BatchSize, c.NumSimulations)
	}
	if c.MaxBatchBytes < 0 {
		return fmt.Errorf("%w: max batch bytes cannot be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// withSeed resolves a zero seed to a clock-derived one so results remain
// reproducible within a run even when no seed was requested.
func (c Config) withSeed() Config {
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	return c
}

// MemoryEstimate reports the estimated peak bytes a full batch needs for a
// given number of retirement years: the per-year value matrix kept for
// percentile computation plus one chunk's working slices.
func (c Config) MemoryEstimate(yearsInRetirement int) int64 {
	const f64 = 8
	years := int64(yearsInRetirement + 1)
	matrix := int64(c.NumSimulations) * years * f64
	// Per-chunk working set: values, cash buffers, rail states, sampled
	// indices and a handful of scalars per simulation.
	chunk := int64(c.BatchSize) * 8 * f64
	return matrix + chunk
}
