package iostore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/internal/parquet"
)

// ExecuteHistoryExport writes every record of the selected suites (all suites
// when none are given) to <outputFile>.runs.parquet and <outputFile>.measurements.parquet.
func ExecuteHistoryExport(ctx context.Context, store contract.HistoryStore, outputFile string, suites []string, out io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	if len(suites) == 0 {
		names, err := store.Suites(ctx)
		if err != nil {
			return fmt.Errorf("failed to list suites: %w", err)
		}
		suites = names
	}
	if len(suites) == 0 {
		return errors.New("no benchmark history found to export")
	}

	var (
		runs []parquet.BenchmarkRun
		rows []parquet.MeasurementRow
	)
	for _, suite := range suites {
		records, err := store.Load(ctx, suite)
		if err != nil {
			return fmt.Errorf("failed to load suite %q: %w", suite, err)
		}
		r, m := parquet.ConvertRecords(suite, records)
		runs = append(runs, r...)
		rows = append(rows, m...)
	}

	_, _ = fmt.Fprintf(out, "Exporting %d suites...\n", len(suites))

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteBenchmarkRunsParquet(runs, runsFile); err != nil {
		return fmt.Errorf("failed to write benchmark runs: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d runs to: %s\n", len(runs), runsFile)

	measurementsFile := outputFile + ".measurements.parquet"
	if err := parquet.WriteMeasurementsParquet(rows, measurementsFile); err != nil {
		return fmt.Errorf("failed to write measurements: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d measurements to: %s\n", len(rows), measurementsFile)
	return nil
}
