package tax

import "math"

// The batch variants operate on whole slices with element-wise bracket
// clamps, keeping the simulation's hot path free of per-element branching
// and of decimal arithmetic.

// marginalRateStep is the fixed marginal-rate estimate used by the Newton
// iteration; convergence does not depend on it being exact.
const marginalRateStep = 0.25

// TaxBatch writes the tax due on each gross income into dst, which must have
// the same length as gross. For each bracket the taxable slice is
// clamp(gross − lower, 0, upper − lower), summed across brackets.
func (bt *BracketTable) TaxBatch(gross, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for b := range bt.lowers {
		lower, width, rate := bt.lowers[b], bt.uppers[b]-bt.lowers[b], bt.rates[b]
		if rate == 0 {
			continue
		}
		for i, g := range gross {
			taxable := g - lower
			if taxable <= 0 {
				continue
			}
			if taxable > width {
				taxable = width
			}
			dst[i] += taxable * rate
		}
	}
}

// GrossNeededBatch writes into dst the gross income required to yield each
// desired net income. Newton-style refinement with a fixed marginal-rate
// step, capped at grossUpMaxIterations to guarantee termination, converging
// to within £1 in practice after 3-4 iterations.
func (bt *BracketTable) GrossNeededBatch(net, dst []float64) {
	for i, n := range net {
		if n <= 0 {
			dst[i] = 0
			continue
		}
		dst[i] = n * 1.3
	}

	taxes := make([]float64, len(net))
	for iter := 0; iter < grossUpMaxIterations; iter++ {
		bt.TaxBatch(dst, taxes)
		converged := true
		for i := range dst {
			if net[i] <= 0 {
				continue
			}
			err := net[i] - (dst[i] - taxes[i])
			if math.Abs(err) >= grossUpTolerance {
				converged = false
			}
			dst[i] += err / (1 - marginalRateStep)
			if dst[i] < 0 {
				dst[i] = 0
			}
		}
		if converged {
			break
		}
	}
}

// GrossNeededScalar is the float64 single-value gross-up used where a whole
// batch shares one desired net income.
func (bt *BracketTable) GrossNeededScalar(net float64) float64 {
	in := [1]float64{net}
	out := [1]float64{}
	bt.GrossNeededBatch(in[:], out[:])
	return out[0]
}
