package domain

// Trajectory is one simulation's portfolio value per year in retirement.
// Index 0 is the value at retirement; length is TerminalAge−retirementAge+1.
// Zero is absorbing: once a value hits zero it stays zero.
type Trajectory []float64

// PercentileBands holds per-year percentile trajectories across a batch.
type PercentileBands struct {
	P10 []float64 `json:"p10"`
	P50 []float64 `json:"p50"`
	P90 []float64 `json:"p90"`
}

// SimulationResult is the outcome of a full simulation batch for one
// allocation at one retirement age. Created fresh per batch and owned by the
// caller that requested it.
type SimulationResult struct {
	Allocation     string          `json:"allocation"`
	RetirementAge  int             `json:"retirementAge"`
	SuccessRate    float64         `json:"successRate"`
	NumSimulations int             `json:"numSimulations"`
	MeanTrajectory []float64       `json:"meanTrajectory"`
	Percentiles    PercentileBands `json:"percentiles"`
	MeanFinalValue float64         `json:"meanFinalValue"`

	// Achievable is false when no retirement age in range met the target;
	// the result is then a placeholder at MaxRetirementAge.
	Achievable bool `json:"achievable"`

	// Incomplete marks a result produced by a cancelled run.
	Incomplete bool `json:"incomplete,omitempty"`

	// FailureReason is set only by the orchestrator's per-allocation
	// isolation boundary.
	FailureReason string `json:"failureReason,omitempty"`
}

// YearsInRetirement returns the number of simulated retirement years
// (trajectory length minus the value at retirement itself).
func (r *SimulationResult) YearsInRetirement() int {
	if len(r.MeanTrajectory) == 0 {
		return 0
	}
	return len(r.MeanTrajectory) - 1
}
