package runparse

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
)

// GoBenchParser reads `go test -bench` text output. Each value/unit pair on a
// result line becomes a benchmark; extra units are named "<bench> - <unit>".
// Running with -count=N yields N samples per name.
type GoBenchParser struct{}

var _ contract.RunParser = GoBenchParser{} // Compile-time check

// BenchmarkName-8   1000000   1000 ns/op   100 B/op   10 allocs/op
var benchLineRe = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+(\d+)\s+(.+)$`)

// Parse implements the RunParser interface.
func (GoBenchParser) Parse(raw []byte) ([]schema.RawBenchmark, error) {
	c := newCollector()
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		matches := benchLineRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if matches == nil {
			continue
		}
		name := matches[1]
		fields := strings.Fields(matches[3])
		if len(fields)%2 != 0 {
			return nil, &schema.ValidationError{
				Field: fmt.Sprintf("line %d", lineNo),
				Err:   fmt.Errorf("%w: unpaired value/unit in %q", schema.ErrMalformedRecord, matches[0]),
			}
		}
		extra := matches[2] + " times"
		for i := 0; i < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, &schema.ValidationError{
					Field: fmt.Sprintf("line %d", lineNo),
					Err:   fmt.Errorf("%w: %s", schema.ErrNonNumericValue, fields[i]),
				}
			}
			unit := fields[i+1]
			metric := name
			if i > 0 {
				metric = name + " - " + unit
			}
			if err := c.add(metric, unit, extra, "", v); err != nil {
				return nil, &schema.ValidationError{Field: fmt.Sprintf("line %d", lineNo), Err: err}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading go test output: %w", err)
	}
	return c.result()
}
