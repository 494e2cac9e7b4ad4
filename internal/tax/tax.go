// Package tax converts between gross and net retirement income under a
// progressive bracket schedule.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ukfire/firecalc/internal/domain"
)

// Bracket is one band of a progressive tax schedule. Upper is nil for the
// final, unbounded band.
type Bracket struct {
	Lower decimal.Decimal
	Upper *decimal.Decimal
	Rate  decimal.Decimal
}

// BracketTable is an ordered, contiguous progressive schedule.
type BracketTable struct {
	Brackets []Bracket

	// float64 mirrors of the schedule for the vectorized path.
	lowers []float64
	uppers []float64 // +Inf for the unbounded band
	rates  []float64
}

// grossUpTolerance is the gross-up convergence target, in pounds.
const grossUpTolerance = 1.0

// grossUpMaxIterations caps the batch solver to guarantee termination.
const grossUpMaxIterations = 10

// NewBracketTable validates and builds a schedule. Brackets must be
// contiguous, non-overlapping and strictly increasing, with the final upper
// bound unbounded.
func NewBracketTable(brackets []Bracket) (*BracketTable, error) {
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: tax schedule requires at least one bracket", domain.ErrInvalidConfig)
	}
	if !brackets[0].Lower.IsZero() {
		return nil, fmt.Errorf("%w: first tax bracket must start at 0, got %s", domain.ErrInvalidConfig, brackets[0].Lower)
	}
	for i, b := range brackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%w: tax bracket %d rate must be in [0,1), got %s", domain.ErrInvalidConfig, i, b.Rate)
		}
		last := i == len(brackets)-1
		if last {
			if b.Upper != nil {
				return nil, fmt.Errorf("%w: final tax bracket must be unbounded", domain.ErrInvalidConfig)
			}
			continue
		}
		if b.Upper == nil {
			return nil, fmt.Errorf("%w: tax bracket %d: only the final bracket may be unbounded", domain.ErrInvalidConfig, i)
		}
		if b.Upper.LessThanOrEqual(b.Lower) {
			return nil, fmt.Errorf("%w: tax bracket %d: upper bound %s must exceed lower bound %s", domain.ErrInvalidConfig, i, b.Upper, b.Lower)
		}
		if !brackets[i+1].Lower.Equal(*b.Upper) {
			return nil, fmt.Errorf("%w: tax brackets %d and %d are not contiguous (%s vs %s)", domain.ErrInvalidConfig, i, i+1, b.Upper, brackets[i+1].Lower)
		}
	}

	bt := &BracketTable{
		Brackets: brackets,
		lowers:   make([]float64, len(brackets)),
		uppers:   make([]float64, len(brackets)),
		rates:    make([]float64, len(brackets)),
	}
	for i, b := range brackets {
		bt.lowers[i], _ = b.Lower.Float64()
		if b.Upper != nil {
			bt.uppers[i], _ = b.Upper.Float64()
		} else {
			bt.uppers[i] = maxTaxableIncome
		}
		bt.rates[i], _ = b.Rate.Float64()
	}
	return bt, nil
}

// maxTaxableIncome stands in for the unbounded band's upper limit in the
// float mirror; incomes this analysis deals in sit far below it.
const maxTaxableIncome = 1e15

// UK2024 returns the 2024/25 UK income tax schedule: personal allowance to
// £12,570, basic rate 20% to £50,270, higher rate 40% to £125,140,
// additional rate 45% above.
func UK2024() *BracketTable {
	upper := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	bt, err := NewBracketTable([]Bracket{
		{Lower: decimal.Zero, Upper: upper(12570), Rate: decimal.Zero},
		{Lower: decimal.NewFromInt(12570), Upper: upper(50270), Rate: decimal.NewFromFloat(0.20)},
		{Lower: decimal.NewFromInt(50270), Upper: upper(125140), Rate: decimal.NewFromFloat(0.40)},
		{Lower: decimal.NewFromInt(125140), Upper: nil, Rate: decimal.NewFromFloat(0.45)},
	})
	if err != nil {
		panic(err) // static table, never invalid
	}
	return bt
}

// Tax computes the income tax due on a gross amount.
func (bt *BracketTable) Tax(gross decimal.Decimal) decimal.Decimal {
	if gross.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, b := range bt.Brackets {
		if gross.LessThanOrEqual(b.Lower) {
			break
		}
		top := gross
		if b.Upper != nil && b.Upper.LessThan(gross) {
			top = *b.Upper
		}
		inBracket := top.Sub(b.Lower)
		if inBracket.GreaterThan(decimal.Zero) {
			total = total.Add(inBracket.Mul(b.Rate))
		}
	}
	return total
}

// Net returns gross minus the tax due on it.
func (bt *BracketTable) Net(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(bt.Tax(gross))
}

// GrossNeeded inverts Net by bounded bisection: the gross income whose
// after-tax value matches the desired net within £1. There is no closed form
// for multi-bracket schedules.
func (bt *BracketTable) GrossNeeded(net decimal.Decimal) decimal.Decimal {
	if net.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	low := net
	high := net.Mul(decimal.NewFromInt(3))
	tolerance := decimal.NewFromFloat(grossUpTolerance)
	two := decimal.NewFromInt(2)

	for high.Sub(low).GreaterThan(tolerance) {
		mid := low.Add(high).Div(two)
		if bt.Net(mid).LessThan(net) {
			low = mid
		} else {
			high = mid
		}
	}
	return high
}
