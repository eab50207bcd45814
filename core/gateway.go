package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/internal/runparse"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// ReportRequest is one CI run handed to the gateway.
type ReportRequest struct {
	Suite  string
	Output []byte // raw run output
	Commit schema.CommitIdentity
	Policy contract.SuitePolicy
	Force  bool // overwrite the stored record of an already reported commit
}

// Gateway is the ingestion and evaluation entry point used by CI.
type Gateway struct {
	store  contract.HistoryStore
	parser contract.RunParser // nil selects a parser from the suite's tool
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewGateway creates a gateway over store.
func NewGateway(store contract.HistoryStore, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = contract.DiscardLogger()
	}
	return &Gateway{store: store, log: log, now: time.Now}
}

// WithParser overrides the run output parser.
func (g *Gateway) WithParser(p contract.RunParser) *Gateway {
	g.parser = p
	return g
}

// Report parses and stores a run, then evaluates it against the suite's history.
// Re-reporting a stored commit evaluates the stored record again without
// appending, unless Force asks for the record to be replaced.
func (g *Gateway) Report(ctx context.Context, req ReportRequest) (schema.Report, error) {
	log := g.log.WithFields(logrus.Fields{"component": "gateway", "suite": req.Suite})
	if err := contract.ValidateSuiteName(req.Suite); err != nil {
		return schema.Report{}, err
	}

	rec, err := g.BuildRecord(req)
	if err != nil {
		return schema.Report{}, err
	}

	var report schema.Report
	err = g.store.Append(ctx, req.Suite, rec)
	switch {
	case err == nil:
		log.WithField("commit", schema.ShortHash(rec.Hash())).Debug("record appended")
	case errors.Is(err, schema.ErrDuplicateCommit) && req.Force:
		if err := g.store.Replace(ctx, req.Suite, rec); err != nil {
			return schema.Report{}, err
		}
		report.Overwritten = true
		log.WithField("commit", schema.ShortHash(rec.Hash())).Warn("stored record overwritten")
	case errors.Is(err, schema.ErrDuplicateCommit):
		report.Duplicate = true
		log.WithField("commit", schema.ShortHash(rec.Hash())).Info("commit already reported, evaluating stored record")
	default:
		return schema.Report{}, err
	}

	history, err := g.store.Load(ctx, req.Suite)
	if err != nil {
		return schema.Report{}, err
	}
	current, upTo := rec, history
	if i := findRecord(history, rec.Hash()); i >= 0 {
		current, upTo = history[i], history[:i+1]
	}

	verdict, err := g.detectorFor(req.Policy, current).Evaluate(req.Suite, current, upTo)
	if err != nil {
		return schema.Report{}, err
	}
	report.Verdict = verdict
	report.Record = current
	report.HistoryLength = len(history)
	return report, nil
}

// Evaluate re-evaluates a stored record without appending anything.
// An empty hash selects the latest decodable record of the suite.
// The baseline only uses records appended before it.
func (g *Gateway) Evaluate(ctx context.Context, suite, hash string, policy contract.SuitePolicy) (schema.Report, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return schema.Report{}, err
	}
	history, err := g.store.Load(ctx, suite)
	if err != nil {
		return schema.Report{}, err
	}

	i := -1
	if hash == "" {
		for j := len(history) - 1; j >= 0; j-- {
			if history[j].DecodeError() == nil {
				i = j
				break
			}
		}
	} else {
		i = findRecord(history, hash)
	}
	if i < 0 {
		if hash == "" {
			return schema.Report{}, fmt.Errorf("%w: suite %q has no records", schema.ErrCommitNotFound, suite)
		}
		return schema.Report{}, fmt.Errorf("%w: %s", schema.ErrCommitNotFound, hash)
	}

	verdict, err := g.detectorFor(policy, history[i]).Evaluate(suite, history[i], history[:i+1])
	if err != nil {
		return schema.Report{}, err
	}
	return schema.Report{Verdict: verdict, Record: history[i], HistoryLength: len(history)}, nil
}

// detectorFor measures retention ages from the run under evaluation, so an
// old record is judged against the history that was retained when it ran.
func (g *Gateway) detectorFor(policy contract.SuitePolicy, current schema.Record) *Detector {
	d := NewDetector(DetectorPolicyFor(policy), g.log)
	d.now = current.RunTime
	return d
}

// BuildRecord parses the run output and reduces repeated samples into a
// validated record for the request's commit.
func (g *Gateway) BuildRecord(req ReportRequest) (schema.Record, error) {
	parser := g.parser
	if parser == nil {
		parser = runparse.ForTool(req.Policy.Tool)
	}
	raws, err := parser.Parse(req.Output)
	if err != nil {
		if schema.IsValidationError(err) {
			return schema.Record{}, err
		}
		return schema.Record{}, &schema.ValidationError{Field: "run output", Err: err}
	}

	benches, err := reduceBenchmarks(raws, ReducerPolicy{WarmUp: req.Policy.WarmUp, Percentile: req.Policy.Percentile})
	if err != nil {
		return schema.Record{}, err
	}
	rec := schema.NewRecord(req.Commit, g.now(), req.Policy.Tool, benches)
	if err := rec.Validate(); err != nil {
		return schema.Record{}, err
	}
	return rec, nil
}

// reduceBenchmarks turns parsed entries into measurements. Only entries with
// repetitions are reduced; a single pre-aggregated value keeps its own label.
func reduceBenchmarks(raws []schema.RawBenchmark, policy ReducerPolicy) ([]schema.Measurement, error) {
	benches := make([]schema.Measurement, 0, len(raws))
	for _, raw := range raws {
		m := schema.Measurement{Name: raw.Name, Unit: raw.Unit, Extra: raw.Extra, Range: raw.Range}
		switch {
		case raw.Repeated:
			v, err := Reduce(raw.Samples, policy)
			if err != nil {
				return nil, &schema.ValidationError{Field: fmt.Sprintf("benches[%q].samples", raw.Name), Err: err}
			}
			m.Value = v
			m.Extra = schema.PercentileAggregation(policy.Percentile)
			m.Samples = raw.Samples
		case len(raw.Samples) == 1:
			m.Value = raw.Samples[0]
		default:
			return nil, &schema.ValidationError{Field: fmt.Sprintf("benches[%q].value", raw.Name), Err: schema.ErrNonNumericValue}
		}
		benches = append(benches, m)
	}
	return benches, nil
}

func findRecord(records []schema.Record, hash string) int {
	for i, r := range records {
		if r.DecodeError() == nil && r.Hash() == hash {
			return i
		}
	}
	return -1
}

// ExitCode maps the outcome of a report or evaluation onto the documented exit codes.
func ExitCode(report schema.Report, err error, inconclusiveBlocking bool) int {
	if err != nil {
		return schema.ExitError
	}
	return report.Verdict.ExitCode(inconclusiveBlocking)
}
