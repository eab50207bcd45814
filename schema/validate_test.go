package schema

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr error
		field   string
	}{
		{
			name:   "valid record",
			mutate: func(_ *Record) {},
		},
		{
			name:    "missing commit hash",
			mutate:  func(r *Record) { r.Commit.Hash = " " },
			wantErr: ErrMissingCommitHash,
			field:   "commit.id",
		},
		{
			name:    "unparseable commit timestamp",
			mutate:  func(r *Record) { r.Commit.Timestamp = "last tuesday" },
			wantErr: ErrInvalidCommitTimestamp,
			field:   "commit.timestamp",
		},
		{
			name:    "zero run date",
			mutate:  func(r *Record) { r.Date = 0 },
			wantErr: ErrInvalidRunDate,
			field:   "date",
		},
		{
			name:    "unknown tool",
			mutate:  func(r *Record) { r.Tool = "stopwatch" },
			wantErr: ErrUnknownTool,
			field:   "tool",
		},
		{
			name:    "no measurements",
			mutate:  func(r *Record) { r.Benches = nil },
			wantErr: ErrNoMeasurements,
			field:   "benches",
		},
		{
			name:    "empty measurement name",
			mutate:  func(r *Record) { r.Benches[0].Name = "" },
			wantErr: ErrEmptyMeasurementName,
			field:   "benches[0].name",
		},
		{
			name:    "duplicate measurement name",
			mutate:  func(r *Record) { r.Benches[1].Name = r.Benches[0].Name },
			wantErr: ErrDuplicateMeasurement,
			field:   `benches["startup"].name`,
		},
		{
			name:    "negative value",
			mutate:  func(r *Record) { r.Benches[0].Value = -1 },
			wantErr: ErrNegativeValue,
			field:   `benches["startup"].value`,
		},
		{
			name:    "NaN value",
			mutate:  func(r *Record) { r.Benches[0].Value = math.NaN() },
			wantErr: ErrNonFiniteValue,
			field:   `benches["startup"].value`,
		},
		{
			name:    "infinite value",
			mutate:  func(r *Record) { r.Benches[1].Value = math.Inf(1) },
			wantErr: ErrNonFiniteValue,
			field:   `benches["query"].value`,
		},
		{
			name:    "negative sample behind a valid value",
			mutate:  func(r *Record) { r.Benches[0].Samples = []float64{-5, 1, 2} },
			wantErr: ErrNegativeValue,
			field:   `benches["startup"].samples[0]`,
		},
		{
			name:    "NaN sample",
			mutate:  func(r *Record) { r.Benches[1].Samples = []float64{1, math.NaN()} },
			wantErr: ErrNonFiniteValue,
			field:   `benches["query"].samples[1]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestRecord_ValidateReportsEveryField(t *testing.T) {
	rec := validRecord()
	rec.Commit.Hash = ""
	rec.Benches[0].Value = -3

	err := rec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCommitHash)
	assert.ErrorIs(t, err, ErrNegativeValue)
}
