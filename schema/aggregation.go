package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Aggregation is the closed set of summary methods a measurement's "extra"
// label can name. Labels outside the set parse to UnknownAggregation; the raw
// label stays on the Measurement so nothing is lost on rewrite.
type Aggregation string

// Known aggregation kinds.
const (
	NoAggregation      Aggregation = "none"
	MeanAggregation    Aggregation = "mean"
	MedianAggregation  Aggregation = "median"
	MinAggregation     Aggregation = "min"
	MaxAggregation     Aggregation = "max"
	P50Aggregation     Aggregation = "p50"
	P75Aggregation     Aggregation = "p75"
	P90Aggregation     Aggregation = "p90"
	P95Aggregation     Aggregation = "p95"
	P99Aggregation     Aggregation = "p99"
	UnknownAggregation Aggregation = "unknown"
)

var percentileAggregations = map[float64]Aggregation{
	50: P50Aggregation,
	75: P75Aggregation,
	90: P90Aggregation,
	95: P95Aggregation,
	99: P99Aggregation,
}

// Accepts "p90", "P90", "90th percentile", "percentile 90", "90%".
var (
	shortPercentileRe = regexp.MustCompile(`^p(\d{1,2}(?:\.\d+)?)$`)
	longPercentileRe  = regexp.MustCompile(`^(\d{1,2}(?:\.\d+)?)(?:st|nd|rd|th)?\s*(?:percentile|%)$`)
	prefixPercentile  = regexp.MustCompile(`^percentile\s+(\d{1,2}(?:\.\d+)?)$`)
)

// ParseAggregation maps a free-form extra label onto the closed enumeration.
func ParseAggregation(label string) Aggregation {
	s := strings.ToLower(strings.TrimSpace(label))
	switch s {
	case "":
		return NoAggregation
	case "mean", "avg", "average":
		return MeanAggregation
	case "median":
		return MedianAggregation
	case "min", "minimum":
		return MinAggregation
	case "max", "maximum":
		return MaxAggregation
	}
	for _, re := range []*regexp.Regexp{shortPercentileRe, longPercentileRe, prefixPercentile} {
		if m := re.FindStringSubmatch(s); m != nil {
			p, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return UnknownAggregation
			}
			if agg, ok := percentileAggregations[p]; ok {
				return agg
			}
			return UnknownAggregation
		}
	}
	return UnknownAggregation
}

// PercentileAggregation returns the label used when the reducer computed the
// given percentile itself.
func PercentileAggregation(p float64) string {
	if agg, ok := percentileAggregations[p]; ok {
		return string(agg)
	}
	return "p" + strconv.FormatFloat(p, 'f', -1, 64)
}

// Percentile returns the percentile an aggregation stands for, if any.
func (a Aggregation) Percentile() (float64, bool) {
	switch a {
	case MedianAggregation:
		return 50, true
	case MinAggregation:
		return 0, true
	case MaxAggregation:
		return 100, true
	}
	for p, agg := range percentileAggregations {
		if agg == a {
			return p, true
		}
	}
	return 0, false
}

// String implements fmt.Stringer.
func (a Aggregation) String() string {
	if a == "" {
		return string(NoAggregation)
	}
	return string(a)
}

// Describe returns a human readable form of a raw extra label.
func Describe(label string) string {
	agg := ParseAggregation(label)
	if agg == UnknownAggregation {
		return fmt.Sprintf("%s (%q)", agg, label)
	}
	return agg.String()
}
