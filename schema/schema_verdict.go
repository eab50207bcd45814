package schema

// MetricResult is the detector's outcome for one named measurement.
type MetricResult struct {
	Name          string        `json:"name"`
	Unit          string        `json:"unit"`
	Status        VerdictStatus `json:"status"`
	Current       float64       `json:"current"`
	Baseline      float64       `json:"baseline,omitempty"`
	Delta         float64       `json:"delta,omitempty"` // signed so that positive means worse
	BaselineRuns  int           `json:"baseline_runs"`
	Reason        string        `json:"reason,omitempty"`
	Aggregation   Aggregation   `json:"aggregation"`
	ThresholdPct  float64       `json:"threshold_pct"`
	DirectionUsed Direction     `json:"direction"`
}

// SkippedRecord is a historical record excluded from the baseline.
type SkippedRecord struct {
	Hash   string `json:"hash"`
	Reason string `json:"reason"`
}

// Verdict is the terminal output of one regression evaluation.
type Verdict struct {
	Suite        string          `json:"suite"`
	Commit       string          `json:"commit"`
	Status       VerdictStatus   `json:"status"`
	Metrics      []MetricResult  `json:"metrics"`
	WindowSize   int             `json:"window_size"`
	BaselineRuns int             `json:"baseline_runs"`
	Skipped      []SkippedRecord `json:"skipped,omitempty"`
	Retention    string          `json:"retention"`
}

// Flagged returns the metrics that exceeded the threshold.
func (v Verdict) Flagged() []MetricResult {
	return v.filter(FlaggedStatus)
}

// Inconclusive returns the metrics that could not be evaluated.
func (v Verdict) Inconclusive() []MetricResult {
	return v.filter(InconclusiveStatus)
}

func (v Verdict) filter(status VerdictStatus) []MetricResult {
	var out []MetricResult
	for _, m := range v.Metrics {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

// ExitCode maps the verdict onto the documented exit codes.
func (v Verdict) ExitCode(inconclusiveBlocking bool) int {
	switch v.Status {
	case FlaggedStatus:
		return ExitFlagged
	case InconclusiveStatus:
		if inconclusiveBlocking {
			return ExitInconclusive
		}
		return ExitPass
	default:
		return ExitPass
	}
}

// Report is what the ingestion gateway hands back to the CI job.
type Report struct {
	Verdict       Verdict `json:"verdict"`
	Record        Record  `json:"record"`
	HistoryLength int     `json:"history_length"`
	Duplicate     bool    `json:"duplicate"`
	Overwritten   bool    `json:"overwritten"`
}

// RawBenchmark is one parsed entry of a run's output before reduction.
// Repetitions of the same name are merged into Samples in arrival order.
type RawBenchmark struct {
	Name    string
	Unit    string
	Extra   string
	Range   string
	Samples []float64
	// Repeated is true when the value came from more than one repetition or an explicit samples array.
	Repeated bool
}
