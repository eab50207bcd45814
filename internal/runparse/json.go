package runparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
)

// JSONParser reads the "custom" benchmark format: a JSON array of
// {name, unit, value, extra?, range?, samples?} entries.
type JSONParser struct{}

var _ contract.RunParser = JSONParser{} // Compile-time check

type jsonEntry struct {
	Name    string          `json:"name"`
	Unit    string          `json:"unit"`
	Value   json.RawMessage `json:"value"`
	Extra   string          `json:"extra"`
	Range   string          `json:"range"`
	Samples []float64       `json:"samples"`
}

// Parse implements the RunParser interface.
func (JSONParser) Parse(raw []byte) ([]schema.RawBenchmark, error) {
	var entries []jsonEntry
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&entries); err != nil {
		return nil, &schema.ValidationError{Field: "run output", Err: fmt.Errorf("%w: %v", schema.ErrMalformedRecord, err)}
	}

	c := newCollector()
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, &schema.ValidationError{Field: fmt.Sprintf("run output[%d].name", i), Err: schema.ErrEmptyMeasurementName}
		}
		samples, err := entrySamples(e)
		if err != nil {
			return nil, &schema.ValidationError{Field: fmt.Sprintf("run output[%q].value", name), Err: err}
		}
		if err := c.add(name, e.Unit, e.Extra, e.Range, samples...); err != nil {
			return nil, &schema.ValidationError{Field: fmt.Sprintf("run output[%q].unit", name), Err: err}
		}
	}
	return c.result()
}

// entrySamples prefers an explicit samples array over the single value.
func entrySamples(e jsonEntry) ([]float64, error) {
	if len(e.Samples) > 0 {
		for _, s := range e.Samples {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, schema.ErrNonFiniteValue
			}
			if s < 0 {
				return nil, fmt.Errorf("%w: sample %v", schema.ErrNegativeValue, s)
			}
		}
		return e.Samples, nil
	}
	trimmed := bytes.TrimSpace(e.Value)
	if len(trimmed) == 0 || trimmed[0] == '"' || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", schema.ErrNonNumericValue, trimmed)
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("%w: %s", schema.ErrNonNumericValue, trimmed)
	}
	return []float64{v}, nil
}
