// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/repoharvest/schema"
)

// Discoverer produces the ordered list of repositories to process.
// A non-nil error alongside a non-empty slice means discovery stopped early
// and the slice holds everything collected before the fault.
type Discoverer interface {
	Discover(ctx context.Context, limit int) ([]schema.RepositoryDescriptor, error)
}

// Acquirer downloads and materializes a repository's source tree under the scratch area.
type Acquirer interface {
	Acquire(ctx context.Context, repo schema.RepositoryDescriptor, localID string) (schema.SourceTree, error)
}

// AnalysisRunner invokes the external static-analysis tool on a source tree.
// It returns the directory holding the tool's tabular output.
// This allows the core pipeline to be tested without a JVM.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, sourceDir string) (string, error)
}

// Aggregator reduces the analysis tool's output into repository-level metrics.
// Missing or malformed output yields zero metrics, never an error.
type Aggregator interface {
	Aggregate(outputDir string) schema.QualityMetrics
}

// RecordSink is the durable results table.
type RecordSink interface {
	// Reset removes any table left over from a previous run
	Reset() error

	// Append durably writes one record
	Append(record schema.CombinedRecord) error

	// Path returns where the table lives
	Path() string
}

// Reaper removes temporary storage.
type Reaper interface {
	ReleaseRepository(dir string)
	ReleaseAll()
}

// StoreManager defines the interface for managing the database-backed stores.
// This allows the storage layer to be mocked for testing.
type StoreManager interface {
	GetDiscoveryStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking pipeline runs and their repository results.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(startTime time.Time, configParams map[string]any) (int64, error)

	// RecordRepository stores the metrics of one successfully analyzed repository
	RecordRepository(runID int64, analysisTime time.Time, record schema.CombinedRecord) error

	// RecordFailure stores why a repository produced no record
	RecordFailure(runID int64, failedAt time.Time, repo schema.RepositoryDescriptor, stage schema.Stage, reason string) error

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, discovered, analyzed int, interrupted bool) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStoreStatus, error)

	// GetAllRuns returns every stored run ordered by ID
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllRepositoryMetrics returns every stored repository record
	GetAllRepositoryMetrics() ([]schema.RepositoryMetricsRecord, error)

	// GetAllFailures returns every stored failure
	GetAllFailures() ([]schema.RepositoryFailureRecord, error)

	// Close closes the underlying connection
	Close() error
}
