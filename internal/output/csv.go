package output

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
)

// CSVFormatter implements the simple summary CSV output, one row per
// allocation in input order.
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(report *Report) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Allocation", "RetirementAge", "SuccessRate", "NumSimulations", "MeanFinalValue", "Achievable", "FailureReason"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, res := range report.Results {
		row := []string{
			res.Allocation,
			strconv.Itoa(res.RetirementAge),
			strconv.FormatFloat(res.SuccessRate, 'f', 4, 64),
			strconv.Itoa(res.NumSimulations),
			strconv.FormatFloat(res.MeanFinalValue, 'f', 2, 64),
			strconv.FormatBool(res.Achievable),
			res.FailureReason,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTrajectories writes one allocation's mean and percentile trajectories
// as a year-by-year CSV, suitable for plotting.
func WriteTrajectories(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)
	header := []string{"Allocation", "RetirementYear", "Age", "Mean", "P10", "P50", "P90"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, res := range report.Results {
		for yr := range res.MeanTrajectory {
			row := []string{
				res.Allocation,
				strconv.Itoa(yr),
				strconv.Itoa(res.RetirementAge + yr),
				strconv.FormatFloat(res.MeanTrajectory[yr], 'f', 2, 64),
				strconv.FormatFloat(res.Percentiles.P10[yr], 'f', 2, 64),
				strconv.FormatFloat(res.Percentiles.P50[yr], 'f', 2, 64),
				strconv.FormatFloat(res.Percentiles.P90[yr], 'f', 2, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
