package output

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6"))
	achievableStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
	shortfallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// ConsoleFormatter renders the analysis summary as a styled table, one row
// per allocation, ordered by earliest achievable retirement age.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, titleStyle.Render("RETIREMENT FEASIBILITY ANALYSIS"))
	fmt.Fprintf(&buf, "Current age %d, savings %s, contributing %s/month, target income %s/year net\n",
		report.Plan.CurrentAge,
		FormatCurrency(report.Plan.CurrentSavings),
		FormatCurrency(report.Plan.MonthlySavings),
		FormatCurrency(report.Plan.DesiredAnnualIncome))
	fmt.Fprintf(&buf, "Target success rate: %s\n\n", FormatPercent(report.Plan.TargetSuccessRate))

	results := toRows(report)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Achievable != results[j].Achievable {
			return results[i].Achievable
		}
		return results[i].RetirementAge < results[j].RetirementAge
	})

	fmt.Fprintln(&buf, headerStyle.Render(fmt.Sprintf("%-24s %12s %12s %16s", "ALLOCATION", "RETIRE AT", "SUCCESS", "MEDIAN FINAL")))
	for _, r := range results {
		line := fmt.Sprintf("%-24s %12s %12s %16s", r.Allocation, r.AgeLabel, r.SuccessLabel, r.FinalLabel)
		switch {
		case r.Achievable:
			fmt.Fprintln(&buf, achievableStyle.Render(line))
		case r.Incomplete:
			fmt.Fprintln(&buf, mutedStyle.Render(line+"  (incomplete)"))
		default:
			fmt.Fprintln(&buf, shortfallStyle.Render(line))
		}
	}

	if best := bestResult(results); best != nil {
		fmt.Fprintln(&buf)
		fmt.Fprintf(&buf, "Earliest viable retirement: age %d with the %s allocation (%s success over %d simulations)\n",
			best.RetirementAge, best.Allocation, best.SuccessLabel, best.NumSimulations)
	} else {
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, shortfallStyle.Render("No allocation reaches the target success rate by age 95."))
	}
	return buf.Bytes(), nil
}

// consoleRow is one pre-formatted summary table row.
type consoleRow struct {
	Allocation     string
	RetirementAge  int
	NumSimulations int
	Achievable     bool
	Incomplete     bool
	AgeLabel       string
	SuccessLabel   string
	FinalLabel     string
}

func toRows(report *Report) []consoleRow {
	rows := make([]consoleRow, len(report.Results))
	for i, res := range report.Results {
		row := consoleRow{
			Allocation:     res.Allocation,
			RetirementAge:  res.RetirementAge,
			NumSimulations: res.NumSimulations,
			Achievable:     res.Achievable,
			Incomplete:     res.Incomplete,
			AgeLabel:       fmt.Sprintf("%d", res.RetirementAge),
			SuccessLabel:   FormatPercent(res.SuccessRate),
		}
		if n := len(res.Percentiles.P50); n > 0 {
			row.FinalLabel = FormatCurrency(res.Percentiles.P50[n-1])
		} else {
			row.FinalLabel = "-"
			row.AgeLabel = "-"
		}
		rows[i] = row
	}
	return rows
}

func bestResult(results []consoleRow) *consoleRow {
	for i := range results {
		if results[i].Achievable {
			return &results[i]
		}
	}
	return nil
}
