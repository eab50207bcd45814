package core

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func measure(name string, value float64) schema.Measurement {
	return schema.Measurement{Name: name, Value: value, Unit: "ms"}
}

// benchRecord builds a valid record run n hours after testEpoch.
func benchRecord(hash string, n int, tool schema.Tool, benches ...schema.Measurement) schema.Record {
	at := testEpoch.Add(time.Duration(n) * time.Hour)
	return schema.NewRecord(schema.CommitIdentity{
		Hash:      hash,
		Author:    schema.Identity{Name: "Grace", Email: "grace@example.com"},
		Committer: schema.Identity{Name: "Grace", Email: "grace@example.com"},
		Timestamp: at.Format(time.RFC3339),
		URL:       "https://example.com/commit/" + hash,
	}, at, tool, benches)
}

// flatHistory returns n records with the same value for "latency".
func flatHistory(n int, value float64) []schema.Record {
	out := make([]schema.Record, n)
	for i := range n {
		out[i] = benchRecord(fmt.Sprintf("h%02d", i), i, schema.CustomSmallerIsBetterTool, measure("latency", value))
	}
	return out
}

// decodeRecord goes through JSON so records carry lenient-decoding state.
func decodeRecord(t *testing.T, raw string) schema.Record {
	t.Helper()
	var r schema.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

func defaultDetectorPolicy() DetectorPolicy {
	return DetectorPolicy{WindowSize: 20, BaselinePercentile: 50, ThresholdPct: 10, MinBaseline: 3}
}
