package schema

import (
	"fmt"
	"time"
)

// RetentionPolicyVersion is bumped whenever the meaning of RetentionPolicy changes.
const RetentionPolicyVersion = 1

// RetentionPolicy bounds the working set of a suite's history. It is applied
// at read time by the detector; Prune applies it destructively on request.
// Zero fields mean "no bound".
type RetentionPolicy struct {
	Version int           `json:"version"`
	MaxRuns int           `json:"max_runs"`
	MaxAge  time.Duration `json:"max_age"`
}

// IsZero reports whether the policy keeps everything.
func (p RetentionPolicy) IsZero() bool {
	return p.MaxRuns <= 0 && p.MaxAge <= 0
}

// String implements fmt.Stringer.
func (p RetentionPolicy) String() string {
	if p.IsZero() {
		return "keep all"
	}
	s := fmt.Sprintf("v%d", p.Version)
	if p.MaxRuns > 0 {
		s += fmt.Sprintf(" last %d runs", p.MaxRuns)
	}
	if p.MaxAge > 0 {
		s += fmt.Sprintf(" within %s", p.MaxAge)
	}
	return s
}

// Apply returns the records kept by the policy, preserving append order.
func (p RetentionPolicy) Apply(records []Record, now time.Time) []Record {
	mask := p.Keep(records, now)
	kept := make([]Record, 0, len(records))
	for i, r := range records {
		if mask[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

// Keep reports, per record, whether the policy keeps it.
// Age is measured on the run date; undecodable records are only subject to MaxRuns.
func (p RetentionPolicy) Keep(records []Record, now time.Time) []bool {
	mask := make([]bool, len(records))
	remaining := 0
	var cutoff int64
	if p.MaxAge > 0 {
		cutoff = now.Add(-p.MaxAge).UnixMilli()
	}
	for i, r := range records {
		if p.MaxAge > 0 && r.decodeErr == nil && r.Date < cutoff {
			continue
		}
		mask[i] = true
		remaining++
	}
	if p.MaxRuns > 0 {
		for i := 0; i < len(mask) && remaining > p.MaxRuns; i++ {
			if mask[i] {
				mask[i] = false
				remaining--
			}
		}
	}
	return mask
}
