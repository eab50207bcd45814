package schema

import "time"

// SuiteStatus summarizes the stored history of one suite.
type SuiteStatus struct {
	Name       string    `json:"name"`
	Records    int       `json:"records"`
	Malformed  int       `json:"malformed"`
	Metrics    int       `json:"metrics"`
	FirstRun   time.Time `json:"first_run"`
	LastRun    time.Time `json:"last_run"`
	LastCommit string    `json:"last_commit"`
}

// HistoryStatus represents the status of the history store.
type HistoryStatus struct {
	Backend   string        `json:"backend"`
	Location  string        `json:"location"`
	Connected bool          `json:"connected"`
	Suites    []SuiteStatus `json:"suites"`
}

// TotalRecords returns the number of records across all suites.
func (s HistoryStatus) TotalRecords() int {
	total := 0
	for _, suite := range s.Suites {
		total += suite.Records
	}
	return total
}
