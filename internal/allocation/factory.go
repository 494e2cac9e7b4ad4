package allocation

import (
	"fmt"

	"github.com/ukfire/firecalc/internal/domain"
)

// StandardSet returns the allocations the analysis runs by default: the six
// static equity/bond/cash mixes plus the three age-dependent strategies.
func StandardSet() []Strategy {
	mustFixed := func(name string, e, b, c float64) Strategy {
		s, err := NewFixed(name, e, b, c)
		if err != nil {
			panic(err) // static table, never invalid
		}
		return s
	}
	return []Strategy{
		mustFixed("100% Cash", 0.0, 0.0, 1.0),
		mustFixed("100% Bonds", 0.0, 1.0, 0.0),
		mustFixed("25% Equities/75% Bonds", 0.25, 0.75, 0.0),
		mustFixed("50% Equities/50% Bonds", 0.50, 0.50, 0.0),
		mustFixed("75% Equities/25% Bonds", 0.75, 0.25, 0.0),
		mustFixed("100% Equities", 1.0, 0.0, 0.0),
		NewFallingGlide("Falling Glide Path"),
		NewRisingGlide("Rising Glide Path"),
		NewTargetDate("120 Minus Age"),
	}
}

// CreateStrategy builds a dynamic strategy by kind name, or a fixed strategy
// when kind is "fixed" using the supplied weights.
func CreateStrategy(name, kind string, equity, bond, cash float64) (Strategy, error) {
	switch kind {
	case "fixed", "":
		return NewFixed(name, equity, bond, cash)
	case "falling_glide":
		return NewFallingGlide(name), nil
	case "rising_glide":
		return NewRisingGlide(name), nil
	case "target_date":
		return NewTargetDate(name), nil
	default:
		return Strategy{}, fmt.Errorf("%w: unknown allocation strategy kind %q", domain.ErrInvalidConfig, kind)
	}
}
