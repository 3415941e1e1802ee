package schema

import "time"

// CacheStatus represents the status of the discovery cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStoreStatus represents the status of the run tracking store.
type RunStoreStatus struct {
	Backend                 string           `json:"backend"`
	Connected               bool             `json:"connected"`
	TotalRuns               int              `json:"total_runs"`
	LastRunID               int64            `json:"last_run_id"`
	LastRunTime             time.Time        `json:"last_run_time"`
	OldestRunTime           time.Time        `json:"oldest_run_time"`
	TotalRepositoriesStored int              `json:"total_repositories_stored"`
	TableSizes              map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the harvest_runs table.
type RunRecord struct {
	RunID                  int64
	StartTime              time.Time
	EndTime                *time.Time
	RunDurationMs          *int32
	RepositoriesDiscovered int32
	RepositoriesAnalyzed   int32
	Interrupted            bool
	ConfigParams           *string
}

// RepositoryMetricsRecord represents a row from the harvest_repository_metrics table.
type RepositoryMetricsRecord struct {
	RunID        int64
	AnalysisTime time.Time
	CombinedRecord
}

// RepositoryFailureRecord represents a row from the harvest_repository_failures table.
type RepositoryFailureRecord struct {
	RunID    int64
	Owner    string
	Name     string
	URL      string
	Stage    Stage
	Reason   string
	FailedAt time.Time
}
