// Package parquet exports benchmark history to Parquet files using
// github.com/parquet-go/parquet-go so it can be analyzed outside benchtrail.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/benchtrail/schema"
	"github.com/parquet-go/parquet-go"
)

// BenchmarkRun is one stored record of a suite.
type BenchmarkRun struct {
	// Suite names the series the record belongs to
	Suite string `parquet:"suite,snappy"`

	// Position is the 1-based append position within the suite
	Position int32 `parquet:"position,snappy"`

	// CommitHash is the commit that triggered the run
	CommitHash string `parquet:"commit_hash,snappy"`

	// CommitTime is the commit timestamp (nullable when unparseable)
	CommitTime *time.Time `parquet:"commit_time,optional,snappy"`

	// RunTime is when the benchmark executed
	RunTime time.Time `parquet:"run_time,snappy"`

	// Author is the commit author as "Name <email>"
	Author string `parquet:"author,snappy"`

	// Tool is the tool identifier that decides comparison direction
	Tool string `parquet:"tool,snappy"`

	// MeasurementCount is the number of measurements in the run
	MeasurementCount int32 `parquet:"measurement_count,snappy"`

	// DecodeError is set for stored entries that could not be decoded (nullable)
	DecodeError *string `parquet:"decode_error,optional,snappy"`
}

// MeasurementRow is one named measurement of a stored run.
type MeasurementRow struct {
	Suite       string    `parquet:"suite,snappy"`
	CommitHash  string    `parquet:"commit_hash,snappy"`
	RunTime     time.Time `parquet:"run_time,snappy"`
	Name        string    `parquet:"name,snappy"`
	Value       float64   `parquet:"value,snappy"`
	Unit        string    `parquet:"unit,snappy"`
	Extra       string    `parquet:"extra,snappy"`
	Aggregation string    `parquet:"aggregation,snappy"`
	SampleCount int32     `parquet:"sample_count,snappy"`
}

// writeRows writes rows of any struct type to outputPath.
// The schema is derived from the struct tags.
func writeRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteBenchmarkRunsParquet writes a slice of BenchmarkRun structs to a Parquet file.
func WriteBenchmarkRunsParquet(data []BenchmarkRun, outputPath string) error {
	return writeRows(data, outputPath)
}

// WriteMeasurementsParquet writes a slice of MeasurementRow structs to a Parquet file.
func WriteMeasurementsParquet(data []MeasurementRow, outputPath string) error {
	return writeRows(data, outputPath)
}

// ConvertRecords flattens a suite's records into run and measurement rows.
// Undecodable records produce a run row with DecodeError set and no measurements.
func ConvertRecords(suite string, records []schema.Record) ([]BenchmarkRun, []MeasurementRow) {
	runs := make([]BenchmarkRun, 0, len(records))
	var rows []MeasurementRow
	for i, rec := range records {
		run := BenchmarkRun{
			Suite:    suite,
			Position: int32(i + 1),
		}
		if err := rec.DecodeError(); err != nil {
			msg := err.Error()
			run.DecodeError = &msg
			runs = append(runs, run)
			continue
		}
		run.CommitHash = rec.Hash()
		run.RunTime = rec.RunTime().UTC()
		run.Author = schema.FormatIdentity(rec.Commit.Author)
		run.Tool = string(rec.Tool)
		run.MeasurementCount = int32(len(rec.Benches))
		if t, err := rec.Commit.Time(); err == nil {
			utc := t.UTC()
			run.CommitTime = &utc
		}
		runs = append(runs, run)

		for _, m := range rec.Benches {
			rows = append(rows, MeasurementRow{
				Suite:       suite,
				CommitHash:  rec.Hash(),
				RunTime:     run.RunTime,
				Name:        m.Name,
				Value:       m.Value,
				Unit:        m.Unit,
				Extra:       m.Extra,
				Aggregation: m.Aggregation().String(),
				SampleCount: int32(len(m.Samples)),
			})
		}
	}
	return runs, rows
}
