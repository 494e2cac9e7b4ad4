// Package history holds the immutable year-indexed store of real
// (inflation-adjusted) asset returns that the bootstrap sampler draws from.
package history

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ukfire/firecalc/internal/domain"
)

// MinOverlapYears is the minimum number of years the equity and bond series
// must share for bootstrap sampling to be meaningful.
const MinOverlapYears = 10

// ReturnSeries is an immutable store of historical real returns. It keeps
// the intersection of the equity and bond year sets as parallel arrays so a
// sampled index resolves every asset in constant time. Safe for concurrent
// use by virtue of immutability.
type ReturnSeries struct {
	years     []int
	equity    []float64
	bond      []float64
	inflation []float64
}

// SeriesStats summarises one asset's overlapping-year returns.
type SeriesStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int
}

// NewReturnSeries builds a store from year-indexed real equity and bond
// returns plus year-indexed inflation rates. Years missing from either
// return series are dropped; fewer than MinOverlapYears overlapping years is
// a data error. Inflation defaults to zero for years absent from the
// inflation map (the returns are already real).
func NewReturnSeries(equity, bond, inflation map[int]float64) (*ReturnSeries, error) {
	var years []int
	for year := range equity {
		if _, ok := bond[year]; ok {
			years = append(years, year)
		}
	}
	if len(years) < MinOverlapYears {
		return nil, fmt.Errorf("%w: need at least %d overlapping years of equity and bond returns, have %d",
			domain.ErrInsufficientHistory, MinOverlapYears, len(years))
	}
	sort.Ints(years)

	rs := &ReturnSeries{
		years:     years,
		equity:    make([]float64, len(years)),
		bond:      make([]float64, len(years)),
		inflation: make([]float64, len(years)),
	}
	for i, year := range years {
		rs.equity[i] = equity[year]
		rs.bond[i] = bond[year]
		rs.inflation[i] = inflation[year]
	}
	return rs, nil
}

// Len returns the number of overlapping years available for sampling.
func (rs *ReturnSeries) Len() int { return len(rs.years) }

// Years returns a copy of the overlapping years, ascending.
func (rs *ReturnSeries) Years() []int {
	out := make([]int, len(rs.years))
	copy(out, rs.years)
	return out
}

// SampleYears draws n year indices uniformly with replacement into dst,
// allocating when dst is too small. The returned slice has length n.
func (rs *ReturnSeries) SampleYears(rng *rand.Rand, n int, dst []int) []int {
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = rng.Intn(len(rs.years))
	}
	return dst
}

// EquityAt returns the real equity return for a sampled index.
func (rs *ReturnSeries) EquityAt(i int) float64 { return rs.equity[i] }

// BondAt returns the real bond return for a sampled index.
func (rs *ReturnSeries) BondAt(i int) float64 { return rs.bond[i] }

// InflationAt returns the inflation rate for a sampled index.
func (rs *ReturnSeries) InflationAt(i int) float64 { return rs.inflation[i] }

// EquityStats summarises the equity series over the overlapping years.
func (rs *ReturnSeries) EquityStats() SeriesStats { return summarise(rs.equity) }

// BondStats summarises the bond series over the overlapping years.
func (rs *ReturnSeries) BondStats() SeriesStats { return summarise(rs.bond) }

func summarise(values []float64) SeriesStats {
	s := SeriesStats{
		Mean:   stat.Mean(values, nil),
		StdDev: stat.StdDev(values, nil),
		Min:    values[0],
		Max:    values[0],
		Count:  len(values),
	}
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}
