package history

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukfire/firecalc/internal/domain"
)

func testMaps(years int) (map[int]float64, map[int]float64, map[int]float64) {
	equity := make(map[int]float64, years)
	bond := make(map[int]float64, years)
	inflation := make(map[int]float64, years)
	for i := 0; i < years; i++ {
		year := 1990 + i
		equity[year] = 0.05 + float64(i%7)*0.01
		bond[year] = 0.01 + float64(i%3)*0.005
		inflation[year] = 0.02
	}
	return equity, bond, inflation
}

func TestNewReturnSeriesRequiresOverlap(t *testing.T) {
	equity, bond, inflation := testMaps(12)

	// Shift the bond years so only 9 overlap.
	shifted := make(map[int]float64, len(bond))
	for year, r := range bond {
		shifted[year+3] = r
	}
	_, err := NewReturnSeries(equity, shifted, inflation)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, err = NewReturnSeries(equity, bond, inflation)
	assert.NoError(t, err)
}

func TestReturnSeriesKeepsOnlyOverlap(t *testing.T) {
	equity, bond, inflation := testMaps(15)
	equity[2050] = 0.08 // no bond data for this year
	bond[1890] = 0.03   // no equity data for this year

	rs, err := NewReturnSeries(equity, bond, inflation)
	require.NoError(t, err)
	assert.Equal(t, 15, rs.Len())

	years := rs.Years()
	assert.Equal(t, 1990, years[0])
	assert.Equal(t, 2004, years[len(years)-1])
}

func TestReturnSeriesMissingInflationDefaultsToZero(t *testing.T) {
	equity, bond, _ := testMaps(12)
	rs, err := NewReturnSeries(equity, bond, map[int]float64{})
	require.NoError(t, err)
	for i := 0; i < rs.Len(); i++ {
		assert.Equal(t, 0.0, rs.InflationAt(i))
	}
}

func TestSampleYears(t *testing.T) {
	equity, bond, inflation := testMaps(20)
	rs, err := NewReturnSeries(equity, bond, inflation)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	indices := rs.SampleYears(rng, 1000, nil)
	require.Len(t, indices, 1000)

	seen := make(map[int]int)
	for _, idx := range indices {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, rs.Len())
		seen[idx]++
	}
	assert.Greater(t, len(seen), 15, "sampling with replacement should reach most years")

	// Same seed, same draw.
	again := rs.SampleYears(rand.New(rand.NewSource(42)), 1000, nil)
	assert.Equal(t, indices, again)

	// A large enough dst is reused in place.
	dst := make([]int, 1000)
	out := rs.SampleYears(rng, 500, dst)
	assert.Len(t, out, 500)
	assert.Equal(t, &dst[0], &out[0])
}

func TestSeriesStats(t *testing.T) {
	equity := map[int]float64{}
	bond := map[int]float64{}
	for i := 0; i < 10; i++ {
		equity[2000+i] = 0.10
		bond[2000+i] = 0.02
	}
	rs, err := NewReturnSeries(equity, bond, nil)
	require.NoError(t, err)

	es := rs.EquityStats()
	assert.InDelta(t, 0.10, es.Mean, 1e-12)
	assert.InDelta(t, 0.0, es.StdDev, 1e-12)
	assert.Equal(t, 10, es.Count)
	assert.Equal(t, 0.10, es.Min)
	assert.Equal(t, 0.10, es.Max)

	bs := rs.BondStats()
	assert.InDelta(t, 0.02, bs.Mean, 1e-12)
}
