package outwriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetricsFile_Gauges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdict.prom")
	require.NoError(t, WriteMetricsFile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `benchtrail_verdict_status{commit="0123456789abcdef",status="flagged",suite="parser"} 1`)
	assert.Contains(t, text, `benchtrail_verdict_status{commit="0123456789abcdef",status="pass",suite="parser"} 0`)
	assert.Contains(t, text, `benchtrail_benchmark_delta_ratio{benchmark="BenchmarkParse",suite="parser"} 0.2`)
	assert.Contains(t, text, `benchtrail_history_runs{suite="parser"} 6`)

	// Metrics without a baseline only report their current value.
	assert.Contains(t, text, `benchtrail_benchmark_current_value{benchmark="BenchmarkEncode",suite="parser",unit="ns/op"} 50`)
	assert.NotContains(t, text, `benchtrail_benchmark_baseline_value{benchmark="BenchmarkEncode"`)
}

func TestWriteMetricsFile_BadPath(t *testing.T) {
	err := WriteMetricsFile(filepath.Join(t.TempDir(), "missing", "verdict.prom"), sampleReport())
	assert.Error(t, err)
}
