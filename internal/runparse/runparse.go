// Package runparse turns raw benchmark runner output into named sample sets.
package runparse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
)

// ErrEmptyOutput is returned when the run output holds no benchmark entries.
var ErrEmptyOutput = errors.New("run output contains no benchmarks")

// collector merges repeated names into one sample set, keeping first-seen order.
type collector struct {
	order []string
	byKey map[string]*schema.RawBenchmark
}

func newCollector() *collector {
	return &collector{byKey: make(map[string]*schema.RawBenchmark)}
}

// add records one observation. Units must agree across repetitions of a name.
func (c *collector) add(name, unit, extra, rng string, samples ...float64) error {
	b, ok := c.byKey[name]
	if !ok {
		c.order = append(c.order, name)
		c.byKey[name] = &schema.RawBenchmark{
			Name:     name,
			Unit:     unit,
			Extra:    extra,
			Range:    rng,
			Samples:  append([]float64(nil), samples...),
			Repeated: len(samples) > 1,
		}
		return nil
	}
	if b.Unit != unit {
		return fmt.Errorf("benchmark %q reported with units %q and %q", name, b.Unit, unit)
	}
	b.Samples = append(b.Samples, samples...)
	b.Repeated = true
	return nil
}

func (c *collector) result() ([]schema.RawBenchmark, error) {
	if len(c.order) == 0 {
		return nil, ErrEmptyOutput
	}
	out := make([]schema.RawBenchmark, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.byKey[name])
	}
	return out, nil
}

// AutoParser picks the JSON parser for documents starting with '[' and the
// go test parser otherwise.
type AutoParser struct{}

var _ contract.RunParser = AutoParser{} // Compile-time check

// Parse implements the RunParser interface.
func (AutoParser) Parse(raw []byte) ([]schema.RawBenchmark, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyOutput
	}
	if trimmed[0] == '[' {
		return JSONParser{}.Parse(trimmed)
	}
	return GoBenchParser{}.Parse(trimmed)
}

// ForTool returns the parser matching a tool's native output.
func ForTool(tool schema.Tool) contract.RunParser {
	if tool == schema.GoTool {
		return AutoParser{}
	}
	return JSONParser{}
}
