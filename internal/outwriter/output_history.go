package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintHistory outputs the records of a suite in append order.
func PrintHistory(suite string, records []schema.Record, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHistoryJSON(w, suite, records)
		}, "Wrote JSON")
	case schema.CSVOut:
		fmtFloat, _ := createFormatters(cfg.Precision)
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHistoryCSV(w, suite, records, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHistoryTable(w, suite, records)
		}, "Wrote table")
	}
}

func writeHistoryTable(w io.Writer, suite string, records []schema.Record) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Commit", "Run Time", "Author", "Tool", "Benches"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	malformed := 0
	for i, r := range records {
		if err := r.DecodeError(); err != nil {
			malformed++
			data = append(data, []string{strconv.Itoa(i + 1), "-", "-", "-", "-", contract.SkippedColor.Sprint("unreadable")})
			continue
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			schema.ShortHash(r.Hash()),
			formatRunTime(r.RunTime()),
			schema.AuthorLabel(r.Commit.Author),
			string(r.Tool),
			strconv.Itoa(len(r.Benches)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Suite %s: %d runs (%d unreadable)\n", suite, len(records), malformed)
	return err
}

// writeHistoryCSV flattens the history into one row per measurement.
func writeHistoryCSV(w io.Writer, suite string, records []schema.Record, fmtFloat func(float64) string) error {
	header := []string{"suite", "position", "commit", "run_time", "author", "tool", "benchmark", "value", "unit", "extra"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, r := range records {
			if r.DecodeError() != nil {
				continue
			}
			for _, m := range r.Benches {
				rec := []string{
					suite,
					strconv.Itoa(i + 1),
					r.Hash(),
					formatRunTime(r.RunTime()),
					r.Commit.Author.Name,
					string(r.Tool),
					m.Name,
					fmtFloat(m.Value),
					m.Unit,
					m.Extra,
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeHistoryJSON(w io.Writer, suite string, records []schema.Record) error {
	type JSONHistory struct {
		Suite   string          `json:"suite"`
		Records []schema.Record `json:"records"`
	}
	if records == nil {
		records = []schema.Record{}
	}
	return writeJSON(w, JSONHistory{Suite: suite, Records: records})
}

// PrintStatus outputs a summary of every suite in the history store.
func PrintStatus(status schema.HistoryStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatusCSV(w, status)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatusText(w, status)
		}, "Wrote status")
	}
}

func writeStatusText(w io.Writer, status schema.HistoryStatus) error {
	connected := "no"
	if status.Connected {
		connected = "yes"
	}
	if _, err := fmt.Fprintf(w, "Backend:   %s\nLocation:  %s\nConnected: %s\n", status.Backend, status.Location, connected); err != nil {
		return err
	}
	if len(status.Suites) == 0 {
		_, err := fmt.Fprintln(w, "No suites recorded yet.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Suite", "Runs", "Unreadable", "Metrics", "First Run", "Last Run", "Last Commit"})
	var data [][]string
	for _, s := range status.Suites {
		data = append(data, []string{
			s.Name,
			strconv.Itoa(s.Records),
			strconv.Itoa(s.Malformed),
			strconv.Itoa(s.Metrics),
			formatRunTime(s.FirstRun),
			formatRunTime(s.LastRun),
			schema.ShortHash(s.LastCommit),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Total: %d runs across %d suites\n", status.TotalRecords(), len(status.Suites))
	return err
}

func writeStatusCSV(w io.Writer, status schema.HistoryStatus) error {
	header := []string{"backend", "location", "suite", "records", "malformed", "metrics", "first_run", "last_run", "last_commit"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range status.Suites {
			rec := []string{
				status.Backend,
				status.Location,
				s.Name,
				strconv.Itoa(s.Records),
				strconv.Itoa(s.Malformed),
				strconv.Itoa(s.Metrics),
				formatRunTime(s.FirstRun),
				formatRunTime(s.LastRun),
				s.LastCommit,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
