package contract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		status   schema.VerdictStatus
		expected string
	}{
		{schema.PassStatus, "PASS"},
		{schema.FlaggedStatus, "FLAGGED"},
		{schema.InconclusiveStatus, "INCONCLUSIVE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.status))
			assert.Contains(t, GetColorLabel(tt.status), tt.expected)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		f, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, f)
	})

	t.Run("path creates file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "verdict.json")
		f, err := SelectOutputFile(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		assert.Equal(t, path, f.Name())
	})

	t.Run("missing directory fails", func(t *testing.T) {
		_, err := SelectOutputFile(filepath.Join(t.TempDir(), "nope", "verdict.json"))
		assert.Error(t, err)
	})
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "startup", TruncateName("startup", 10))
	assert.Equal(t, "start...", TruncateName("startup-cold-cache", 8))
	assert.Equal(t, "startup", TruncateName("startup", 3))
	assert.Equal(t, "日本...", TruncateName("日本語のベンチ", 5))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1", " true "} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestValidateSuiteName(t *testing.T) {
	assert.NoError(t, ValidateSuiteName("startup-linux"))
	assert.ErrorIs(t, ValidateSuiteName("  "), schema.ErrEmptySuite)
	assert.Error(t, ValidateSuiteName("a\nb"))
}

func TestGetHistoryDBFilePath(t *testing.T) {
	path := GetHistoryDBFilePath()
	assert.True(t, strings.HasSuffix(path, ".benchtrail_history.db"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	logger.WithField("component", "detector").Info("window selected")
	assert.Contains(t, buf.String(), `"component":"detector"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)

	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)

	logger, err = newLogger(&buf, "", "")
	require.NoError(t, err)
	assert.Equal(t, "warning", logger.GetLevel().String())
}
