package iostore

import (
	"fmt"
	"time"

	"github.com/huangsam/benchtrail/schema"
)

var baseRunTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testRecord builds a valid record whose run happened n hours after baseRunTime.
func testRecord(hash string, n int, value float64) schema.Record {
	return schema.NewRecord(schema.CommitIdentity{
		Hash:      hash,
		Author:    schema.Identity{Name: "Ada", Email: "ada@example.com"},
		Committer: schema.Identity{Name: "Ada", Email: "ada@example.com"},
		Timestamp: baseRunTime.Add(time.Duration(n) * time.Hour).Format(time.RFC3339),
		URL:       "https://example.com/commit/" + hash,
	}, baseRunTime.Add(time.Duration(n)*time.Hour), schema.CustomSmallerIsBetterTool, []schema.Measurement{
		{Name: "startup", Value: value, Unit: "ms", Extra: "p90"},
	})
}

func hashes(records []schema.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Hash()
	}
	return out
}

func seqHash(i int) string {
	return fmt.Sprintf("c%03d", i)
}
