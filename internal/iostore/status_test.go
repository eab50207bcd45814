package iostore

import (
	"errors"
	"testing"
	"time"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeSuite(t *testing.T) {
	records := []schema.Record{
		testRecord("c1", 2, 10),
		schema.MalformedRecord([]byte("{"), errors.New("truncated")),
		testRecord("c2", 0, 11),
	}
	st := summarizeSuite("api", records)

	assert.Equal(t, "api", st.Name)
	assert.Equal(t, 3, st.Records)
	assert.Equal(t, 1, st.Malformed)
	assert.Equal(t, 1, st.Metrics)
	assert.Equal(t, baseRunTime, st.FirstRun.UTC())
	assert.Equal(t, baseRunTime.Add(2*time.Hour), st.LastRun.UTC())
	assert.Equal(t, "c2", st.LastCommit)
}
