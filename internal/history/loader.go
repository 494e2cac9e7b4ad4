package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Loader reads historical market data from CSV files. Each file has a header
// row and year,value rows; equity and bond files carry nominal returns that
// are converted to real returns using the inflation file.
type Loader struct {
	DataPath string
}

// File names expected under DataPath.
const (
	equityFile    = "uk_equity_returns.csv"
	bondFile      = "uk_bond_returns.csv"
	inflationFile = "uk_inflation_rates.csv"
)

// Plausibility bounds for annual real returns. Values outside these are
// treated as data errors rather than silently kept.
const (
	minEquityReturn = -0.8
	maxEquityReturn = 2.0
	minBondReturn   = -0.5
	maxBondReturn   = 1.0
)

// NewLoader creates a loader rooted at the given data directory.
func NewLoader(dataPath string) *Loader {
	return &Loader{DataPath: dataPath}
}

// Load reads all three files and constructs the return series store.
func (l *Loader) Load() (*ReturnSeries, error) {
	inflation, err := l.loadCSV(inflationFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load inflation rates: %w", err)
	}

	equityNominal, err := l.loadCSV(equityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load equity returns: %w", err)
	}
	bondNominal, err := l.loadCSV(bondFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load bond returns: %w", err)
	}

	equity := toRealReturns(equityNominal, inflation)
	bond := toRealReturns(bondNominal, inflation)

	if err := checkBounds("equity", equity, minEquityReturn, maxEquityReturn); err != nil {
		return nil, err
	}
	if err := checkBounds("bond", bond, minBondReturn, maxBondReturn); err != nil {
		return nil, err
	}

	return NewReturnSeries(equity, bond, inflation)
}

// toRealReturns converts nominal returns to real using (1+r)/(1+i) − 1.
// Years without inflation data are treated as zero inflation.
func toRealReturns(nominal, inflation map[int]float64) map[int]float64 {
	real := make(map[int]float64, len(nominal))
	for year, r := range nominal {
		i := inflation[year]
		real[year] = (1+r)/(1+i) - 1
	}
	return real
}

func checkBounds(name string, returns map[int]float64, min, max float64) error {
	for year, r := range returns {
		if r < min || r > max {
			return fmt.Errorf("implausible %s return %.4f for year %d (expected %.1f..%.1f)", name, r, year, min, max)
		}
	}
	return nil
}

// loadCSV reads a year,value CSV file into a map. Malformed rows are
// skipped, matching how the data files carry occasional annotations.
func (l *Loader) loadCSV(name string) (map[int]float64, error) {
	path := filepath.Join(l.DataPath, name)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("invalid CSV format in %s: expected at least 2 columns", path)
	}

	values := make(map[int]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data row in %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}
		year, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		values[year] = value
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no valid data points found in %s", path)
	}
	return values, nil
}
