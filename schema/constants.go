package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and history.
	DatabaseBackend string

	// ErrorKind classifies why a commit could not be scored by the oracle.
	ErrorKind string

	// OracleBackend selects the implementation used to score commits.
	OracleBackend string

	// RunMode identifies which workflow produced a run.
	RunMode string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Error kinds recorded in flags and in the failure ledger.
const (
	NoError              ErrorKind = ""
	TimeoutError         ErrorKind = "TIMEOUT"
	RateLimitError       ErrorKind = "429_RATE_LIMIT"
	MalformedOutputError ErrorKind = "JSON_ERROR"
	OracleError          ErrorKind = "OTHER"
	IncompleteError      ErrorKind = "INCOMPLETE_RESPONSE"
)

// Oracle backends supported.
const (
	AgentOracle  OracleBackend = "agent" // default
	OpenAIOracle OracleBackend = "openai"
)

// Run modes recorded in logs and the history store.
const (
	AnalyzeMode   RunMode = "analyze"
	RepairMode    RunMode = "repair"
	CompaniesMode RunMode = "chinese_companies"
)

// Category and flag markers shared by the scorer and the reports.
const (
	FailedCategory  = "FAILED"
	UnknownCategory = "UNKNOWN"
	AgentErrorFlag  = "AGENT_ERROR"
	TierMismatch    = "TIER_MISMATCH"
	UnknownPrefix   = "unknown"
	UnknownCompany  = "Unknown"
	DefaultTier     = 4
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidOracleBackends lists all valid oracle backends.
var ValidOracleBackends = map[OracleBackend]struct{}{
	AgentOracle:  {},
	OpenAIOracle: {},
}

// AllErrorKinds lists every failure kind in a stable order.
var AllErrorKinds = []ErrorKind{TimeoutError, RateLimitError, MalformedOutputError, OracleError, IncompleteError}

// Flag returns the AGENT_ERROR_<kind> marker attached to a failed commit.
func (k ErrorKind) Flag() string {
	return AgentErrorFlag + "_" + string(k)
}

// Failed reports whether the kind denotes a failure.
func (k ErrorKind) Failed() bool {
	return k != NoError
}
