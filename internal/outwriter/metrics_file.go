package outwriter

import (
	"fmt"

	"github.com/huangsam/benchtrail/schema"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "benchtrail"

// verdictStatuses are exported as a one-hot gauge so alerts can match a single status.
var verdictStatuses = []schema.VerdictStatus{schema.PassStatus, schema.FlaggedStatus, schema.InconclusiveStatus}

// reportCollectors holds the gauges describing one report.
type reportCollectors struct {
	verdict      *prometheus.GaugeVec
	current      *prometheus.GaugeVec
	baseline     *prometheus.GaugeVec
	delta        *prometheus.GaugeVec
	baselineRuns *prometheus.GaugeVec
	history      *prometheus.GaugeVec
}

func newReportCollectors() *reportCollectors {
	return &reportCollectors{
		verdict: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "verdict",
			Name:      "status",
			Help:      "1 for the status of the latest verdict of a suite, 0 otherwise.",
		}, []string{"suite", "commit", "status"}),
		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "benchmark",
			Name:      "current_value",
			Help:      "Value of the benchmark in the evaluated run.",
		}, []string{"suite", "benchmark", "unit"}),
		baseline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "benchmark",
			Name:      "baseline_value",
			Help:      "Baseline the benchmark was compared against.",
		}, []string{"suite", "benchmark", "unit"}),
		delta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "benchmark",
			Name:      "delta_ratio",
			Help:      "Relative change against the baseline; positive is worse.",
		}, []string{"suite", "benchmark"}),
		baselineRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "benchmark",
			Name:      "baseline_runs",
			Help:      "Number of historical runs in the baseline.",
		}, []string{"suite", "benchmark"}),
		history: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "runs",
			Help:      "Number of stored runs of the suite.",
		}, []string{"suite"}),
	}
}

func (c *reportCollectors) register(reg *prometheus.Registry) error {
	for _, col := range []prometheus.Collector{c.verdict, c.current, c.baseline, c.delta, c.baselineRuns, c.history} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *reportCollectors) observe(report schema.Report) {
	v := report.Verdict
	for _, status := range verdictStatuses {
		value := 0.0
		if v.Status == status {
			value = 1
		}
		c.verdict.WithLabelValues(v.Suite, v.Commit, string(status)).Set(value)
	}
	for _, m := range v.Metrics {
		c.current.WithLabelValues(v.Suite, m.Name, m.Unit).Set(m.Current)
		c.baselineRuns.WithLabelValues(v.Suite, m.Name).Set(float64(m.BaselineRuns))
		if m.BaselineRuns == 0 || m.Baseline == 0 {
			continue
		}
		c.baseline.WithLabelValues(v.Suite, m.Name, m.Unit).Set(m.Baseline)
		c.delta.WithLabelValues(v.Suite, m.Name).Set(m.Delta)
	}
	c.history.WithLabelValues(v.Suite).Set(float64(report.HistoryLength))
}

// BuildMetricsRegistry returns a dedicated registry holding the gauges of one report.
func BuildMetricsRegistry(report schema.Report) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	collectors := newReportCollectors()
	if err := collectors.register(reg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	collectors.observe(report)
	return reg, nil
}

// WriteMetricsFile writes the report in the Prometheus text format, for the
// node exporter textfile collector or a pushgateway sidecar.
func WriteMetricsFile(path string, report schema.Report) error {
	reg, err := BuildMetricsRegistry(report)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}
