package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// ErrInvalidTransition is returned when an Evaluation step runs out of order.
var ErrInvalidTransition = errors.New("invalid detector state transition")

// DetectorPolicy is the subset of a suite policy the detector needs.
type DetectorPolicy struct {
	WindowSize         int
	BaselinePercentile float64
	ThresholdPct       float64
	MinBaseline        int
	Retention          schema.RetentionPolicy
}

// DetectorPolicyFor extracts the detector settings of a suite policy.
func DetectorPolicyFor(p contract.SuitePolicy) DetectorPolicy {
	return DetectorPolicy{
		WindowSize:         p.WindowSize,
		BaselinePercentile: p.BaselinePercentile,
		ThresholdPct:       p.ThresholdPct,
		MinBaseline:        p.MinBaseline,
		Retention:          p.Retention,
	}
}

// Validate checks the policy bounds.
func (p DetectorPolicy) Validate() error {
	switch {
	case p.WindowSize < 1:
		return fmt.Errorf("window size must be at least 1, got %d", p.WindowSize)
	case p.ThresholdPct < 0:
		return fmt.Errorf("threshold must be non-negative, got %v", p.ThresholdPct)
	case p.MinBaseline < 1:
		return fmt.Errorf("min-baseline must be at least 1, got %d", p.MinBaseline)
	}
	return ReducerPolicy{Percentile: p.BaselinePercentile}.Validate()
}

// Detector compares a record against its suite's recent history.
type Detector struct {
	policy DetectorPolicy
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewDetector creates a detector. A nil logger discards output.
func NewDetector(policy DetectorPolicy, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = contract.DiscardLogger()
	}
	return &Detector{policy: policy, log: log.WithField("component", "detector"), now: time.Now}
}

// Evaluate runs one full evaluation of current against history.
// History may contain current itself; it is excluded from the baseline.
func (d *Detector) Evaluate(suite string, current schema.Record, history []schema.Record) (schema.Verdict, error) {
	ev, err := d.NewEvaluation(suite, current)
	if err != nil {
		return schema.Verdict{}, err
	}
	if err := ev.ComputeBaseline(history); err != nil {
		return schema.Verdict{}, err
	}
	if err := ev.Compare(); err != nil {
		return schema.Verdict{}, err
	}
	return ev.Result()
}

// NewEvaluation starts an evaluation in the Pending state.
func (d *Detector) NewEvaluation(suite string, current schema.Record) (*Evaluation, error) {
	if err := d.policy.Validate(); err != nil {
		return nil, err
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}
	direction, _ := current.Tool.Direction()
	return &Evaluation{
		state:     schema.PendingState,
		suite:     suite,
		current:   current,
		direction: direction,
		policy:    d.policy,
		now:       d.now(),
		log:       d.log.WithFields(logrus.Fields{"suite": suite, "commit": schema.ShortHash(current.Hash())}),
	}, nil
}

// Evaluation is a single pass of the detector state machine:
// Pending -> ComputingBaseline -> Comparing -> Done.
type Evaluation struct {
	state     schema.EvaluationState
	suite     string
	current   schema.Record
	direction schema.Direction
	policy    DetectorPolicy
	now       time.Time
	log       logrus.FieldLogger

	contributing int
	baselines    map[string][]float64
	skipped      []schema.SkippedRecord
	metrics      []schema.MetricResult
	status       schema.VerdictStatus
}

// State returns the current state.
func (e *Evaluation) State() schema.EvaluationState {
	return e.state
}

func (e *Evaluation) transition(from, to schema.EvaluationState) error {
	if e.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.state, to)
	}
	e.state = to
	return nil
}

// ComputeBaseline selects the baseline window from history: retention first,
// then the last WindowSize records in append order other than the current one.
// Records in the window that fail validation are skipped and logged.
func (e *Evaluation) ComputeBaseline(history []schema.Record) error {
	if err := e.transition(schema.PendingState, schema.ComputingBaselineState); err != nil {
		return err
	}

	retained := e.policy.Retention.Apply(history, e.now)
	candidates := make([]schema.Record, 0, len(retained))
	for _, r := range retained {
		if r.DecodeError() == nil && r.Hash() == e.current.Hash() {
			continue
		}
		candidates = append(candidates, r)
	}
	window := candidates[max(0, len(candidates)-e.policy.WindowSize):]

	e.baselines = make(map[string][]float64)
	for _, r := range window {
		if err := r.Validate(); err != nil {
			e.log.WithError(err).WithField("record", schema.ShortHash(r.Hash())).Warn("skipping invalid history record")
			e.skipped = append(e.skipped, schema.SkippedRecord{Hash: r.Hash(), Reason: err.Error()})
			continue
		}
		e.contributing++
		for _, m := range r.Benches {
			e.baselines[m.Name] = append(e.baselines[m.Name], m.Value)
		}
	}

	e.log.WithFields(logrus.Fields{
		"history":      len(history),
		"retained":     len(retained),
		"window":       len(window),
		"contributing": e.contributing,
		"skipped":      len(e.skipped),
	}).Debug("baseline computed")
	return nil
}

// Compare judges every measurement of the current record against its baseline.
func (e *Evaluation) Compare() error {
	if err := e.transition(schema.ComputingBaselineState, schema.ComparingState); err != nil {
		return err
	}

	flagged, inconclusive := 0, 0
	for _, m := range e.current.Benches {
		res := e.compareMetric(m)
		switch res.Status {
		case schema.FlaggedStatus:
			flagged++
			e.log.WithFields(logrus.Fields{
				"metric":   res.Name,
				"baseline": res.Baseline,
				"current":  res.Current,
				"delta":    schema.FormatDelta(res.Delta, 2),
			}).Info("regression flagged")
		case schema.InconclusiveStatus:
			inconclusive++
		}
		e.metrics = append(e.metrics, res)
	}

	switch {
	case flagged > 0:
		e.status = schema.FlaggedStatus
	case inconclusive > 0:
		e.status = schema.InconclusiveStatus
	default:
		e.status = schema.PassStatus
	}
	return e.transition(schema.ComparingState, schema.DoneState)
}

func (e *Evaluation) compareMetric(m schema.Measurement) schema.MetricResult {
	values := e.baselines[m.Name]
	res := schema.MetricResult{
		Name:          m.Name,
		Unit:          m.Unit,
		Current:       m.Value,
		BaselineRuns:  len(values),
		Aggregation:   m.Aggregation(),
		ThresholdPct:  e.policy.ThresholdPct,
		DirectionUsed: e.direction,
	}

	if len(values) == 0 {
		res.Status = schema.InconclusiveStatus
		res.Reason = "no baseline"
		return res
	}
	if len(values) < e.policy.MinBaseline {
		res.Status = schema.InconclusiveStatus
		res.Reason = fmt.Sprintf("only %d baseline runs, need %d", len(values), e.policy.MinBaseline)
		return res
	}
	baseline, err := Reduce(values, ReducerPolicy{WarmUp: 0, Percentile: e.policy.BaselinePercentile})
	if err != nil {
		res.Status = schema.InconclusiveStatus
		res.Reason = err.Error()
		return res
	}
	res.Baseline = baseline
	if baseline == 0 {
		res.Status = schema.InconclusiveStatus
		res.Reason = "baseline is zero"
		return res
	}

	delta := (m.Value - baseline) / baseline
	if e.direction == schema.LargerIsBetter {
		delta = -delta
	}
	res.Delta = delta
	if delta > e.policy.ThresholdPct/100 {
		res.Status = schema.FlaggedStatus
		res.Reason = fmt.Sprintf("%s worse than baseline", schema.FormatDelta(delta, 2))
	} else {
		res.Status = schema.PassStatus
	}
	return res
}

// Result returns the verdict of a finished evaluation.
func (e *Evaluation) Result() (schema.Verdict, error) {
	if e.state != schema.DoneState {
		return schema.Verdict{}, fmt.Errorf("%w: result requested in state %s", ErrInvalidTransition, e.state)
	}
	return schema.Verdict{
		Suite:        e.suite,
		Commit:       e.current.Hash(),
		Status:       e.status,
		Metrics:      e.metrics,
		WindowSize:   e.policy.WindowSize,
		BaselineRuns: e.contributing,
		Skipped:      e.skipped,
		Retention:    e.policy.Retention.String(),
	}, nil
}
