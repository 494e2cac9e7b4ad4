// Package guardrails implements dynamic withdrawal policies that shrink or
// grow retirement spending based on portfolio performance relative to its
// value at retirement.
package guardrails

import (
	"fmt"

	"github.com/ukfire/firecalc/internal/domain"
)

// StrategyKind selects the withdrawal policy variant.
type StrategyKind int

const (
	// GuardRails is the plain threshold policy: spending cuts below the
	// lower and severe rails, unadjusted otherwise.
	GuardRails StrategyKind = iota
	// GuytonKlinger adds ratcheting on sustained outperformance and
	// capital preservation in negative-return years.
	GuytonKlinger
	// Vanguard grows last year's withdrawal with inflation, capped by the
	// portfolio's performance factor.
	Vanguard
)

func (k StrategyKind) String() string {
	switch k {
	case GuardRails:
		return "guardrails"
	case GuytonKlinger:
		return "guyton-klinger"
	case Vanguard:
		return "vanguard"
	default:
		return "unknown"
	}
}

// ParseStrategy resolves a strategy tag from configuration.
func ParseStrategy(tag string) (StrategyKind, error) {
	switch tag {
	case "guardrails", "":
		return GuardRails, nil
	case "guyton-klinger":
		return GuytonKlinger, nil
	case "vanguard":
		return Vanguard, nil
	default:
		return GuardRails, fmt.Errorf("%w: unknown guard-rails strategy %q", domain.ErrInvalidConfig, tag)
	}
}

// Adjustment labels the state the policy was in for a simulated year.
type Adjustment string

const (
	Normal                 Adjustment = "normal"
	LowerReduction         Adjustment = "lower_reduction"
	SevereReduction        Adjustment = "severe_reduction"
	RatchetIncrease        Adjustment = "ratchet_increase"
	CapitalPreservation    Adjustment = "capital_preservation"
	VanguardNormal         Adjustment = "vanguard_normal"
	VanguardCappedIncrease Adjustment = "vanguard_capped_increase"
	VanguardCappedDecrease Adjustment = "vanguard_capped_decrease"
)

// Vanguard caps on the year-over-year spending change factor.
const (
	vanguardFloor   = 0.975
	vanguardCeiling = 1.05
)

// Config holds the policy thresholds. Thresholds and adjustments are
// fractions of the initial portfolio value and the base withdrawal
// respectively; all must lie in (0,1) and the severe rail must be deeper
// than the lower rail. Invalid values are rejected, never clamped.
type Config struct {
	Strategy StrategyKind

	UpperThreshold  float64
	LowerThreshold  float64
	SevereThreshold float64

	LowerAdjustment  float64
	SevereAdjustment float64

	RatchetEnabled   bool
	RatchetThreshold float64
	RatchetIncrease  float64
}

// DefaultConfig returns the thresholds the original analysis shipped with:
// rails at −15%/−25% with 10%/20% spending cuts and an upper rail at +20%.
func DefaultConfig() Config {
	return Config{
		Strategy:         GuardRails,
		UpperThreshold:   0.20,
		LowerThreshold:   0.15,
		SevereThreshold:  0.25,
		LowerAdjustment:  0.10,
		SevereAdjustment: 0.20,
	}
}

// Validate fails fast on inconsistent thresholds.
func (c Config) Validate() error {
	inUnit := func(name string, v float64) error {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%w: guard-rails %s must be in (0,1), got %g", domain.ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := inUnit("upper threshold", c.UpperThreshold); err != nil {
		return err
	}
	if err := inUnit("lower threshold", c.LowerThreshold); err != nil {
		return err
	}
	if err := inUnit("severe threshold", c.SevereThreshold); err != nil {
		return err
	}
	if err := inUnit("lower adjustment", c.LowerAdjustment); err != nil {
		return err
	}
	if err := inUnit("severe adjustment", c.SevereAdjustment); err != nil {
		return err
	}
	if c.SevereThreshold <= c.LowerThreshold {
		return fmt.Errorf("%w: severe threshold (%g) must exceed lower threshold (%g)", domain.ErrInvalidConfig, c.SevereThreshold, c.LowerThreshold)
	}
	if c.SevereAdjustment <= c.LowerAdjustment {
		return fmt.Errorf("%w: severe adjustment (%g) must exceed lower adjustment (%g)", domain.ErrInvalidConfig, c.SevereAdjustment, c.LowerAdjustment)
	}
	if c.RatchetEnabled {
		if err := inUnit("ratchet threshold", c.RatchetThreshold); err != nil {
			return err
		}
		if err := inUnit("ratchet increase", c.RatchetIncrease); err != nil {
			return err
		}
	}
	return nil
}

// State is the per-trajectory mutable policy state. Each trajectory owns its
// own State, reset at the start of the trajectory; the ratchet mutates it
// for the remainder of that trajectory only.
type State struct {
	// Ratchet is the cumulative Guyton-Klinger base scaling, starting at 1;
	// each triggered ratchet permanently multiplies it by (1+increase).
	Ratchet float64
	// PrevWithdrawal is last year's withdrawal (Vanguard).
	PrevWithdrawal float64
	// PrevRatio is last year's performance ratio (Vanguard), seeded at 1.
	PrevRatio float64
}

// NewState initialises the policy state for one trajectory. baseWithdrawal
// seeds the Vanguard variant's first-year withdrawal.
func NewState(baseWithdrawal float64) State {
	return State{
		Ratchet:        1.0,
		PrevWithdrawal: baseWithdrawal,
		PrevRatio:      1.0,
	}
}

// Step computes the withdrawal for one simulated year, given the portfolio's
// post-return value, its value at retirement, the year's base withdrawal,
// this year's portfolio return and the sampled inflation rate. It never
// clamps to zero; the simulation core owns the floor.
//
// At a ratio exactly on a rail the less severe band applies (comparisons
// are strict), so thresholds behave consistently at their boundary values.
func (c Config) Step(st *State, currentValue, initialValue, base, yearReturn, inflation float64) (float64, Adjustment) {
	if initialValue <= 0 {
		return base * st.Ratchet, Normal
	}
	ratio := currentValue / initialValue

	if c.Strategy == Vanguard {
		return c.stepVanguard(st, ratio, inflation)
	}

	base *= st.Ratchet

	if c.Strategy == GuytonKlinger {
		if c.RatchetEnabled && ratio >= 1+c.RatchetThreshold {
			st.Ratchet *= 1 + c.RatchetIncrease
			return base * (1 + c.RatchetIncrease), RatchetIncrease
		}
		if yearReturn < 0 {
			// Skip the inflation uplift after a down year. Withdrawals are
			// in real terms, so the base simply holds.
			return base, CapitalPreservation
		}
	}

	switch {
	case ratio < 1-c.SevereThreshold:
		return base * (1 - c.SevereAdjustment), SevereReduction
	case ratio < 1-c.LowerThreshold:
		return base * (1 - c.LowerAdjustment), LowerReduction
	default:
		return base, Normal
	}
}

func (c Config) stepVanguard(st *State, ratio, inflation float64) (float64, Adjustment) {
	factor := 1.0
	if st.PrevRatio > 0 {
		factor = ratio / st.PrevRatio
	}

	adj := VanguardNormal
	switch {
	case factor > vanguardCeiling:
		factor = vanguardCeiling
		adj = VanguardCappedIncrease
	case factor < vanguardFloor:
		factor = vanguardFloor
		adj = VanguardCappedDecrease
	}

	withdrawal := st.PrevWithdrawal * (1 + inflation) * factor
	st.PrevWithdrawal = withdrawal
	st.PrevRatio = ratio
	return withdrawal, adj
}
