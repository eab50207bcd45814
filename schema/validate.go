package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate reports every violated field of the record as a *ValidationError,
// joined with errors.Join. A nil result means the record is safe to persist.
func (r Record) Validate() error {
	if r.decodeErr != nil {
		return &ValidationError{Field: "record", Err: fmt.Errorf("%w: %v", ErrMalformedRecord, r.decodeErr)}
	}

	var errs []error
	add := func(field string, err error) {
		errs = append(errs, &ValidationError{Field: field, Err: err})
	}

	if strings.TrimSpace(r.Commit.Hash) == "" {
		add("commit.id", ErrMissingCommitHash)
	}
	if _, err := r.Commit.Time(); err != nil {
		add("commit.timestamp", fmt.Errorf("%w: %q", ErrInvalidCommitTimestamp, r.Commit.Timestamp))
	}
	if r.Date <= 0 {
		add("date", ErrInvalidRunDate)
	}
	if !r.Tool.Valid() {
		add("tool", fmt.Errorf("%w: %q", ErrUnknownTool, r.Tool))
	}
	if len(r.Benches) == 0 {
		add("benches", ErrNoMeasurements)
	}

	seen := make(map[string]struct{}, len(r.Benches))
	for i, m := range r.Benches {
		field := fmt.Sprintf("benches[%d]", i)
		if m.Name != "" {
			field = fmt.Sprintf("benches[%q]", m.Name)
		}
		if strings.TrimSpace(m.Name) == "" {
			add(field+".name", ErrEmptyMeasurementName)
		} else if _, dup := seen[m.Name]; dup {
			add(field+".name", ErrDuplicateMeasurement)
		}
		seen[m.Name] = struct{}{}
		if err := m.validateValue(); err != nil {
			add(field+".value", err)
		}
		for j, v := range m.Samples {
			if err := checkNumber(v); err != nil {
				add(fmt.Sprintf("%s.samples[%d]", field, j), err)
			}
		}
	}

	return errors.Join(errs...)
}

func (m Measurement) validateValue() error {
	if m.valueErr != nil {
		return m.valueErr
	}
	return checkNumber(m.Value)
}

// checkNumber rejects values no benchmark can produce.
func checkNumber(v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return ErrNonFiniteValue
	case v < 0:
		return fmt.Errorf("%w: %v", ErrNegativeValue, v)
	}
	return nil
}
