package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// StoreBackend represents the persistence backend for benchmark history.
	StoreBackend string

	// VerdictStatus represents the outcome of evaluating a run or a single metric.
	VerdictStatus string

	// EvaluationState represents a step of the regression detector state machine.
	EvaluationState string

	// Direction represents which way a measurement is expected to move when it improves.
	Direction string
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All history backends supported.
const (
	FileBackend       StoreBackend = "file" // default
	SQLiteBackend     StoreBackend = "sqlite"
	MySQLBackend      StoreBackend = "mysql"
	PostgreSQLBackend StoreBackend = "postgresql"
	NoneBackend       StoreBackend = "none"
)

// Verdict outcomes. Inconclusive is never an alias for Pass.
const (
	PassStatus         VerdictStatus = "pass"
	FlaggedStatus      VerdictStatus = "flagged"
	InconclusiveStatus VerdictStatus = "inconclusive"
)

// Regression detector states.
const (
	PendingState           EvaluationState = "pending"
	ComputingBaselineState EvaluationState = "computing_baseline"
	ComparingState         EvaluationState = "comparing"
	DoneState              EvaluationState = "done"
)

// Comparison directions.
const (
	SmallerIsBetter Direction = "smaller"
	LargerIsBetter  Direction = "larger"
)

// Exit codes of the report and evaluate commands. CI configuration depends on these.
const (
	ExitPass         = 0
	ExitFlagged      = 1
	ExitInconclusive = 2
	ExitError        = 3
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidStoreBackends lists all valid history backends.
var ValidStoreBackends = map[StoreBackend]struct{}{
	FileBackend:       {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// IsSQL reports whether the backend is served by database/sql.
func (b StoreBackend) IsSQL() bool {
	return b == SQLiteBackend || b == MySQLBackend || b == PostgreSQLBackend
}
