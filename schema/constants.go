// Package schema holds the data types shared across the harvest pipeline.
package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string

	// PathPolicyMode selects which extraction path policy applies.
	PathPolicyMode string

	// Stage names the pipeline step a repository was in.
	Stage string
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

// All path policy modes supported.
const (
	AutoPathPolicy  PathPolicyMode = "auto" // default, derived from the host OS
	ShortPathPolicy PathPolicyMode = "short"
	LongPathPolicy  PathPolicyMode = "long"
)

// Pipeline stages in processing order.
const (
	DiscoverStage  Stage = "discover"
	AcquireStage   Stage = "acquire"
	ExtractStage   Stage = "extract"
	AnalyzeStage   Stage = "analyze"
	AggregateStage Stage = "aggregate"
	PersistStage   Stage = "persist"
	DoneStage      Stage = "done"
)

// UnknownLanguage is recorded when the search API reports no primary language.
const UnknownLanguage = "Unknown"

// Branches tried when downloading a repository archive, in order.
const (
	DefaultBranch  = "main"
	FallbackBranch = "master"
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

// ValidPathPolicies lists all valid path policy modes.
var ValidPathPolicies = map[PathPolicyMode]struct{}{
	AutoPathPolicy:  {},
	ShortPathPolicy: {},
	LongPathPolicy:  {},
}

// Sibling artifacts of a repository work directory under the scratch area.
const (
	ArchiveSuffix        = ".zip"
	StagingSuffix        = ".unpack"
	AnalysisOutputSuffix = ".ck"
)

// ArtifactSuffixes lists every sibling artifact a repository may leave behind.
var ArtifactSuffixes = []string{ArchiveSuffix, StagingSuffix, AnalysisOutputSuffix}
