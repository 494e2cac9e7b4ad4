// Package allocation maps (current age, retirement age) to portfolio asset
// weights. Strategies form a closed set so the per-year hot loop can switch
// on a tag instead of going through an interface.
package allocation

import (
	"fmt"
	"math"

	"github.com/ukfire/firecalc/internal/domain"
)

// Kind identifies an allocation strategy variant.
type Kind int

const (
	Fixed Kind = iota
	FallingGlide
	RisingGlide
	TargetDate
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case FallingGlide:
		return "falling_glide"
	case RisingGlide:
		return "rising_glide"
	case TargetDate:
		return "target_date"
	default:
		return "unknown"
	}
}

// Weight bounds of the glide paths.
const (
	fallingGlideStart = 0.90
	fallingGlideEnd   = 0.20
	risingGlideStart  = 0.30
	risingGlideEnd    = 0.70
	targetDateFloor   = 0.20
	targetDateCeiling = 0.90
)

// weightTolerance is how far weights may drift from summing to exactly 1.
const weightTolerance = 1e-3

// Ages over which every strategy must produce valid weights.
const (
	minAge = 18
	maxAge = domain.TerminalAge
)

// Weights is one year's split across asset classes. Cash carries a 0% real
// return by definition.
type Weights struct {
	Equity float64
	Bond   float64
	Cash   float64
}

// Sum returns the total of the three weights.
func (w Weights) Sum() float64 { return w.Equity + w.Bond + w.Cash }

// Strategy is a named allocation rule. Fixed strategies carry their weights;
// dynamic strategies derive them from age and retirement age each year.
type Strategy struct {
	Name    string
	Kind    Kind
	weights Weights // Fixed only
}

// NewFixed creates a fixed-weight strategy. The three weights must be
// explicit and sum to 1 within tolerance; nothing is clamped or inferred.
func NewFixed(name string, equity, bond, cash float64) (Strategy, error) {
	w := Weights{Equity: equity, Bond: bond, Cash: cash}
	if equity < 0 || bond < 0 || cash < 0 {
		return Strategy{}, fmt.Errorf("%w: allocation %q: weights cannot be negative", domain.ErrInvalidConfig, name)
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return Strategy{}, fmt.Errorf("%w: allocation %q: weights must sum to 1.0, got %.4f", domain.ErrInvalidConfig, name, w.Sum())
	}
	return Strategy{Name: name, Kind: Fixed, weights: w}, nil
}

// NewFallingGlide creates the pre-retirement de-risking glide path: equity
// falls from 90% toward 20%, pivoting at the retirement age.
func NewFallingGlide(name string) Strategy {
	return Strategy{Name: name, Kind: FallingGlide}
}

// NewRisingGlide creates the post-retirement rising glide path: equity
// starts at 30% at retirement and climbs to 70% through the terminal age.
func NewRisingGlide(name string) Strategy {
	return Strategy{Name: name, Kind: RisingGlide}
}

// NewTargetDate creates the "120 minus age" rule, with equity clamped to
// [20%, 90%].
func NewTargetDate(name string) Strategy {
	return Strategy{Name: name, Kind: TargetDate}
}

// WeightsAt returns the asset weights for the given age. Dynamic strategies
// must be re-evaluated every simulated year, not just once at retirement.
// The result always sums to 1 within tolerance for ages 18..100.
func (s Strategy) WeightsAt(age, retirementAge int) Weights {
	switch s.Kind {
	case Fixed:
		return s.weights
	case FallingGlide:
		// Linear from 90% at the minimum age down to 20% at retirement,
		// held at 20% afterwards.
		if age >= retirementAge {
			return equityRest(fallingGlideEnd)
		}
		span := float64(retirementAge - minAge)
		if span <= 0 {
			return equityRest(fallingGlideEnd)
		}
		progress := float64(age-minAge) / span
		eq := fallingGlideStart + (fallingGlideEnd-fallingGlideStart)*progress
		return equityRest(eq)
	case RisingGlide:
		// 30% until retirement, then linear up to 70% at the terminal age.
		if age <= retirementAge {
			return equityRest(risingGlideStart)
		}
		span := float64(maxAge - retirementAge)
		if span <= 0 {
			return equityRest(risingGlideEnd)
		}
		progress := float64(age-retirementAge) / span
		eq := risingGlideStart + (risingGlideEnd-risingGlideStart)*progress
		return equityRest(eq)
	case TargetDate:
		eq := float64(120-age) / 100.0
		if eq < targetDateFloor {
			eq = targetDateFloor
		}
		if eq > targetDateCeiling {
			eq = targetDateCeiling
		}
		return equityRest(eq)
	default:
		return Weights{}
	}
}

// Return composes one scalar portfolio return from the sampled asset
// returns: e*equity + b*bond + c*0.
func (w Weights) Return(equityReturn, bondReturn float64) float64 {
	return w.Equity*equityReturn + w.Bond*bondReturn
}

func equityRest(equity float64) Weights {
	return Weights{Equity: equity, Bond: 1 - equity}
}

// Validate checks that the strategy produces weights summing to 1 within
// tolerance for every age in range and every plausible retirement age.
func (s Strategy) Validate() error {
	for retirementAge := minAge + 1; retirementAge <= domain.MaxRetirementAge; retirementAge++ {
		for age := minAge; age <= maxAge; age++ {
			w := s.WeightsAt(age, retirementAge)
			if math.Abs(w.Sum()-1.0) > weightTolerance {
				return fmt.Errorf("%w: allocation %q: weights at age %d sum to %.4f", domain.ErrInvalidConfig, s.Name, age, w.Sum())
			}
		}
	}
	return nil
}
