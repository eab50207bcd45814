// Package outwriter renders verdicts, history and store status.
package outwriter

import (
	"os"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

var _ contract.ResultWriter = &OutWriter{} // Compile-time check

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteReport prints the outcome of a report or evaluate command.
func (ow *OutWriter) WriteReport(report schema.Report, cfg *contract.Config, duration time.Duration) error {
	return PrintReport(report, cfg, duration)
}

// WriteHistory prints the stored records of one suite.
func (ow *OutWriter) WriteHistory(suite string, records []schema.Record, cfg *contract.Config) error {
	return PrintHistory(suite, records, cfg)
}

// WriteStatus prints the status of the history store.
func (ow *OutWriter) WriteStatus(status schema.HistoryStatus, cfg *contract.Config) error {
	return PrintStatus(status, cfg)
}

// WriteMetricsFile exports the verdict as a Prometheus textfile.
func (ow *OutWriter) WriteMetricsFile(path string, report schema.Report) error {
	return WriteMetricsFile(path, report)
}

// getMaxTableNameWidth calculates the maximum width for benchmark names in
// table output based on terminal width.
func getMaxTableNameWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // CI logs and pipes
		} else {
			termWidth = detected
		}
	}

	// Status + Current + Baseline + Delta + Runs with borders/padding
	available := termWidth - 70
	if available < 20 {
		return 20
	}
	if available > 80 {
		return 80
	}
	return available
}
