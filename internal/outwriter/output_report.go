package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintReport outputs a report, dispatching based on the output format configured.
func PrintReport(report schema.Report, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, fmtDelta := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportJSON(w, report, cfg.Policy.InconclusiveBlocking)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportCSV(w, report, fmtFloat)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportTable(w, report, cfg, fmtFloat, fmtDelta, duration)
		}, "Wrote table")
	}
	return nil
}

// writeReportTable generates and writes the human-readable verdict table.
func writeReportTable(w io.Writer, report schema.Report, cfg *contract.Config, fmtFloat, fmtDelta func(float64) string, duration time.Duration) error {
	v := report.Verdict
	maxName := getMaxTableNameWidth(cfg)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Benchmark", "Status", "Current", "Baseline", "Delta", "Runs", "Unit"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, m := range v.Metrics {
		baseline, delta := "-", "-"
		if m.BaselineRuns > 0 && m.Baseline != 0 {
			baseline = fmtFloat(m.Baseline)
			delta = fmtDelta(m.Delta)
		}
		data = append(data, []string{
			contract.TruncateName(m.Name, maxName),
			contract.GetColorLabel(m.Status),
			fmtFloat(m.Current),
			baseline,
			delta,
			strconv.Itoa(m.BaselineRuns),
			m.Unit,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Suite %s at %s: %s (threshold %s%%, window %d, %d baseline runs)\n",
		v.Suite, schema.ShortHash(v.Commit), contract.GetColorLabel(v.Status),
		fmtFloat(thresholdOf(v)), v.WindowSize, v.BaselineRuns); err != nil {
		return err
	}
	for _, m := range v.Metrics {
		if m.Status == schema.PassStatus || m.Reason == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s: %s\n", m.Name, m.Reason); err != nil {
			return err
		}
	}
	for _, s := range v.Skipped {
		if _, err := fmt.Fprintf(w, "  skipped %s: %s\n", displayHash(s.Hash), s.Reason); err != nil {
			return err
		}
	}

	switch {
	case report.Overwritten:
		if _, err := fmt.Fprintf(w, "Overwrote stored run for %s.\n", schema.ShortHash(report.Record.Hash())); err != nil {
			return err
		}
	case report.Duplicate:
		if _, err := fmt.Fprintf(w, "Run for %s was already stored; history unchanged.\n", schema.ShortHash(report.Record.Hash())); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Evaluated in %v against %d stored runs. History backend: %s. Retention: %s\n",
		duration, report.HistoryLength, cfg.HistoryBackend, v.Retention)
	return err
}

// writeReportCSV writes one row per metric.
func writeReportCSV(w io.Writer, report schema.Report, fmtFloat func(float64) string) error {
	header := []string{
		"suite",
		"commit",
		"benchmark",
		"unit",
		"status",
		"current",
		"baseline",
		"delta_pct",
		"baseline_runs",
		"threshold_pct",
		"direction",
		"aggregation",
		"reason",
	}
	v := report.Verdict
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range v.Metrics {
			rec := []string{
				v.Suite,
				v.Commit,
				m.Name,
				m.Unit,
				contract.GetPlainLabel(m.Status),
				fmtFloat(m.Current),
				fmtFloat(m.Baseline),
				fmtFloat(m.Delta * 100),
				strconv.Itoa(m.BaselineRuns),
				fmtFloat(m.ThresholdPct),
				string(m.DirectionUsed),
				m.Aggregation.String(),
				m.Reason,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeReportJSON writes the report with its label and exit code added.
func writeReportJSON(w io.Writer, report schema.Report, inconclusiveBlocking bool) error {
	type JSONReport struct {
		Label    string `json:"label"`
		ExitCode int    `json:"exit_code"`
		schema.Report
	}
	return writeJSON(w, JSONReport{
		Label:    contract.GetPlainLabel(report.Verdict.Status),
		ExitCode: report.Verdict.ExitCode(inconclusiveBlocking),
		Report:   report,
	})
}

// thresholdOf returns the threshold the verdict was computed with.
func thresholdOf(v schema.Verdict) float64 {
	for _, m := range v.Metrics {
		if m.ThresholdPct != 0 {
			return m.ThresholdPct
		}
	}
	return 0
}

func displayHash(hash string) string {
	if hash == "" {
		return "(unreadable)"
	}
	return schema.ShortHash(hash)
}
