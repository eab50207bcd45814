package core

import (
	"fmt"
	"math"
	"slices"

	"github.com/huangsam/benchtrail/schema"
)

// ReducerPolicy controls how repeated samples collapse into one value.
type ReducerPolicy struct {
	WarmUp     int     // leading samples to discard
	Percentile float64 // nearest-rank percentile in (0, 100]
}

// DefaultReducerPolicy drops one warm-up run and reports P90.
var DefaultReducerPolicy = ReducerPolicy{WarmUp: 1, Percentile: 90}

// Validate checks the policy bounds.
func (p ReducerPolicy) Validate() error {
	if p.WarmUp < 0 {
		return fmt.Errorf("warm-up must be non-negative, got %d", p.WarmUp)
	}
	if p.Percentile <= 0 || p.Percentile > 100 || math.IsNaN(p.Percentile) {
		return fmt.Errorf("percentile must be in (0, 100], got %v", p.Percentile)
	}
	return nil
}

// Reduce drops the first WarmUp samples in arrival order and returns the
// nearest-rank percentile of the rest. With nothing left it fails closed.
func Reduce(samples []float64, policy ReducerPolicy) (float64, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}
	if policy.WarmUp >= len(samples) {
		return 0, fmt.Errorf("%w: %d samples, %d warm-up", schema.ErrInsufficientData, len(samples), policy.WarmUp)
	}
	return Percentile(samples[policy.WarmUp:], policy.Percentile)
}

// Percentile returns the nearest-rank percentile: sorted[ceil(p*n/100)-1].
// The input slice is not modified.
func Percentile(values []float64, p float64) (float64, error) {
	n := len(values)
	if n == 0 {
		return 0, fmt.Errorf("%w: no values", schema.ErrInsufficientData)
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := int(math.Ceil(p * float64(n) / 100))
	rank = max(1, min(rank, n))
	return sorted[rank-1], nil
}
