// Package output renders completed analyses for the CLI: a styled console
// summary, machine-readable CSV and JSON, and per-allocation trajectory
// exports.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ukfire/firecalc/internal/domain"
)

// Report bundles everything a formatter needs to render an analysis.
type Report struct {
	Plan        domain.PlanInput          `json:"plan"`
	Results     []domain.SimulationResult `json:"results"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Formatter renders a report in one output format.
type Formatter interface {
	Name() string
	Format(report *Report) ([]byte, error)
}

// NewFormatter creates a formatter based on the format name.
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "console", "":
		return ConsoleFormatter{}, nil
	case "csv":
		return CSVFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatCurrency formats an amount in pounds with thousands separators.
func FormatCurrency(amount float64) string {
	s := decimal.NewFromFloat(amount).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-£" + b.String()
	}
	return "£" + b.String()
}

// FormatPercent formats a rate in [0, 1] as a percentage.
func FormatPercent(rate float64) string {
	return decimal.NewFromFloat(rate * 100).StringFixed(1) + "%"
}
