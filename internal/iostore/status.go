package iostore

import "github.com/huangsam/benchtrail/schema"

// summarizeSuite builds the status line of one suite from its records.
func summarizeSuite(name string, records []schema.Record) schema.SuiteStatus {
	st := schema.SuiteStatus{Name: name, Records: len(records)}
	metrics := map[string]struct{}{}
	for _, r := range records {
		if r.Validate() != nil {
			st.Malformed++
		}
		if r.DecodeError() != nil {
			continue
		}
		for _, m := range r.Benches {
			metrics[m.Name] = struct{}{}
		}
		if r.Date > 0 {
			t := r.RunTime()
			if st.FirstRun.IsZero() || t.Before(st.FirstRun) {
				st.FirstRun = t
			}
			if t.After(st.LastRun) {
				st.LastRun = t
			}
		}
		st.LastCommit = r.Hash()
	}
	st.Metrics = len(metrics)
	return st
}
