package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// Table names for run tracking.
const (
	runsTable     = "harvest_runs"
	metricsTable  = "harvest_repository_metrics"
	failuresTable = "harvest_repository_failures"
)

// RunTables lists every run-tracking table in creation order.
var RunTables = []string{runsTable, metricsTable, failuresTable}

// columnKind is the portable type of a tracked column.
type columnKind int

const (
	kindID columnKind = iota
	kindRef
	kindURL
	kindText
	kindInt
	kindFloat
	kindTime
	kindBool
)

type column struct {
	name     string
	kind     columnKind
	required bool
}

// tableDef describes one run-tracking table.
type tableDef struct {
	name       string
	columns    []column
	primaryKey []string
}

// descriptorKinds types the columns shared with the results table.
var descriptorKinds = map[string]columnKind{
	"name":             kindText,
	"owner":            kindText,
	"url":              kindURL,
	"description":      kindText,
	"stars":            kindInt,
	"age_days":         kindInt,
	"primary_language": kindText,
	"total_releases":   kindInt,
	"created_at":       kindTime,
	"total_classes":    kindInt,
	"total_methods":    kindInt,
	"total_fields":     kindInt,
	"total_variables":  kindInt,
}

func runTableDefs() []tableDef {
	metricCols := []column{{"run_id", kindRef, true}, {"analysis_time", kindTime, true}}
	for _, name := range schema.RecordColumns {
		kind, ok := descriptorKinds[name]
		if !ok {
			kind = kindFloat
		}
		metricCols = append(metricCols, column{name, kind, name == "url"})
	}

	return []tableDef{
		{
			name: runsTable,
			columns: []column{
				{"run_id", kindID, true},
				{"start_time", kindTime, true},
				{"end_time", kindTime, false},
				{"run_duration_ms", kindInt, false},
				{"repositories_discovered", kindInt, true},
				{"repositories_analyzed", kindInt, true},
				{"interrupted", kindBool, true},
				{"config_params", kindText, false},
			},
		},
		{
			name:       metricsTable,
			columns:    metricCols,
			primaryKey: []string{"run_id", "url"},
		},
		{
			name: failuresTable,
			columns: []column{
				{"run_id", kindRef, true},
				{"owner", kindText, true},
				{"name", kindText, true},
				{"url", kindURL, true},
				{"stage", kindText, true},
				{"reason", kindText, false},
				{"failed_at", kindTime, true},
			},
			primaryKey: []string{"run_id", "url"},
		},
	}
}

// columnType returns the backend-specific SQL type.
func columnType(kind columnKind, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return [...]string{"BIGINT AUTO_INCREMENT PRIMARY KEY", "BIGINT", "VARCHAR(512)", "TEXT", "INT", "DOUBLE", "DATETIME(6)", "BOOLEAN"}[kind]
	case schema.PostgreSQLBackend:
		return [...]string{"BIGSERIAL PRIMARY KEY", "BIGINT", "TEXT", "TEXT", "INT", "DOUBLE PRECISION", "TIMESTAMPTZ", "BOOLEAN"}[kind]
	default: // SQLite
		return [...]string{"INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER", "TEXT", "TEXT", "INTEGER", "REAL", "TEXT", "INTEGER"}[kind]
	}
}

// createTableQuery renders the CREATE TABLE statement of def for backend.
func createTableQuery(def tableDef, backend schema.DatabaseBackend) string {
	lines := make([]string, 0, len(def.columns)+1)
	for _, col := range def.columns {
		line := col.name + " " + columnType(col.kind, backend)
		if col.required && col.kind != kindID {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	if len(def.primaryKey) > 0 {
		lines = append(lines, "PRIMARY KEY ("+strings.Join(def.primaryKey, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n);", quoteTableName(def.name, backend), strings.Join(lines, ",\n\t"))
}

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDatabase(backend, connStr, GetRunDBFilePath())
	if err != nil {
		return nil, err
	}

	for _, def := range runTableDefs() {
		if _, err := db.Exec(createTableQuery(def, backend)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create table %s: %w", def.name, err)
		}
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

func (rs *RunStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

func (rs *RunStoreImpl) table(name string) string {
	return quoteTableName(name, rs.backend)
}

// boolValue stores booleans as integers where the backend has no native type.
func (rs *RunStoreImpl) boolValue(b bool) any {
	if rs.backend == schema.PostgreSQLBackend {
		return b
	}
	if b {
		return 1
	}
	return 0
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.disabled() {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (start_time, repositories_discovered, repositories_analyzed, interrupted, config_params) VALUES (%s)`,
		rs.table(runsTable), placeholders(rs.backend, 5))
	args := []any{formatTime(startTime, rs.backend), 0, 0, rs.boolValue(false), string(configJSON)}

	var runID int64
	if rs.backend == schema.PostgreSQLBackend {
		err = rs.db.QueryRow(query+" RETURNING run_id", args...).Scan(&runID)
	} else {
		var result sql.Result
		if result, err = rs.db.Exec(query, args...); err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, discovered, analyzed int, interrupted bool) error {
	if rs.disabled() {
		return nil
	}

	start := timeScanner{backend: rs.backend}
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, rs.table(runsTable), placeholders(rs.backend, 1))
	if err := rs.db.QueryRow(query, runID).Scan(start.dest()); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	startTime, err := start.value()
	if err != nil {
		return err
	}

	var durationMs int64
	if startTime != nil {
		durationMs = endTime.Sub(*startTime).Milliseconds()
	}

	p := strings.Split(placeholders(rs.backend, 6), ", ")
	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, repositories_discovered = %s, repositories_analyzed = %s, interrupted = %s WHERE run_id = %s`,
		rs.table(runsTable), p[0], p[1], p[2], p[3], p[4], p[5])
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, discovered, analyzed, rs.boolValue(interrupted), runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RecordRepository stores the metrics of one analyzed repository.
func (rs *RunStoreImpl) RecordRepository(runID int64, analysisTime time.Time, record schema.CombinedRecord) error {
	if rs.disabled() {
		return nil
	}

	columns := append([]string{"run_id", "analysis_time"}, schema.RecordColumns...)
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		rs.table(metricsTable), strings.Join(columns, ", "), placeholders(rs.backend, len(columns)))

	args := append([]any{runID, formatTime(analysisTime, rs.backend)}, rs.recordValues(record)...)
	if _, err := rs.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert repository metrics: %w", err)
	}
	return nil
}

// recordValues returns the record's values in RecordColumns order.
func (rs *RunStoreImpl) recordValues(r schema.CombinedRecord) []any {
	var created any
	if !r.CreatedAt.IsZero() {
		created = formatTime(r.CreatedAt, rs.backend)
	}
	return []any{
		r.Name, r.Owner, r.URL, r.Description, r.Stars, r.AgeDays, r.PrimaryLanguage, r.TotalReleases, created,
		r.TotalClasses, r.TotalMethods, r.TotalFields, r.TotalVariables,
		r.AvgWMC, r.CBO, r.LCOM, r.DIT, r.AvgNOC, r.AvgRFC, r.LOC, r.AvgCC,
	}
}

// RecordFailure stores why a repository produced no record.
func (rs *RunStoreImpl) RecordFailure(runID int64, failedAt time.Time, repo schema.RepositoryDescriptor, stage schema.Stage, reason string) error {
	if rs.disabled() {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (run_id, owner, name, url, stage, reason, failed_at) VALUES (%s)`,
		rs.table(failuresTable), placeholders(rs.backend, 7))
	if _, err := rs.db.Exec(query, runID, repo.Owner, repo.Name, repo.URL, string(stage), reason, formatTime(failedAt, rs.backend)); err != nil {
		return fmt.Errorf("failed to insert repository failure: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStoreStatus, error) {
	status := schema.RunStoreStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}

	for _, table := range RunTables {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalRuns = int(status.TableSizes[runsTable])
	status.TotalRepositoriesStored = int(status.TableSizes[metricsTable])
	if status.TotalRuns == 0 {
		return status, nil
	}

	last := timeScanner{backend: rs.backend}
	lastQuery := fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", rs.table(runsTable))
	if err := rs.db.QueryRow(lastQuery).Scan(&status.LastRunID, last.dest()); err != nil {
		return status, fmt.Errorf("failed to get last run info: %w", err)
	}
	if t, err := last.value(); err != nil {
		return status, err
	} else if t != nil {
		status.LastRunTime = *t
	}

	oldest := timeScanner{backend: rs.backend}
	oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", rs.table(runsTable))
	if err := rs.db.QueryRow(oldestQuery).Scan(oldest.dest()); err != nil {
		return status, fmt.Errorf("failed to get oldest run time: %w", err)
	}
	if t, err := oldest.value(); err != nil {
		return status, err
	} else if t != nil {
		status.OldestRunTime = *t
	}
	return status, nil
}

// GetAllRuns retrieves all runs ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, repositories_discovered,
		repositories_analyzed, interrupted, config_params FROM %s ORDER BY run_id`, rs.table(runsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		start := timeScanner{backend: rs.backend}
		end := timeScanner{backend: rs.backend}
		if err := rows.Scan(&record.RunID, start.dest(), end.dest(), &record.RunDurationMs,
			&record.RepositoriesDiscovered, &record.RepositoriesAnalyzed, &record.Interrupted, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		startTime, err := start.value()
		if err != nil {
			return nil, err
		}
		if startTime != nil {
			record.StartTime = *startTime
		}
		if record.EndTime, err = end.value(); err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllRepositoryMetrics retrieves every stored repository record.
func (rs *RunStoreImpl) GetAllRepositoryMetrics() ([]schema.RepositoryMetricsRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	columns := append([]string{"run_id", "analysis_time"}, schema.RecordColumns...)
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY run_id, stars DESC, url`, strings.Join(columns, ", "), rs.table(metricsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RepositoryMetricsRecord
	for rows.Next() {
		var record schema.RepositoryMetricsRecord
		analyzed := timeScanner{backend: rs.backend}
		created := timeScanner{backend: rs.backend}
		var description sql.NullString
		r := &record.CombinedRecord
		dests := []any{
			&record.RunID, analyzed.dest(),
			&r.Name, &r.Owner, &r.URL, &description, &r.Stars, &r.AgeDays, &r.PrimaryLanguage, &r.TotalReleases, created.dest(),
			&r.TotalClasses, &r.TotalMethods, &r.TotalFields, &r.TotalVariables,
			&r.AvgWMC, &r.CBO, &r.LCOM, &r.DIT, &r.AvgNOC, &r.AvgRFC, &r.LOC, &r.AvgCC,
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan repository metrics: %w", err)
		}
		r.Description = description.String
		if t, err := analyzed.value(); err != nil {
			return nil, err
		} else if t != nil {
			record.AnalysisTime = *t
		}
		if t, err := created.value(); err != nil {
			return nil, err
		} else if t != nil {
			r.CreatedAt = *t
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repository metrics: %w", err)
	}
	return results, nil
}

// GetAllFailures retrieves every stored failure.
func (rs *RunStoreImpl) GetAllFailures() ([]schema.RepositoryFailureRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, owner, name, url, stage, reason, failed_at FROM %s ORDER BY run_id, url`, rs.table(failuresTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RepositoryFailureRecord
	for rows.Next() {
		var record schema.RepositoryFailureRecord
		var stage string
		var reason sql.NullString
		failed := timeScanner{backend: rs.backend}
		if err := rows.Scan(&record.RunID, &record.Owner, &record.Name, &record.URL, &stage, &reason, failed.dest()); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		record.Stage = schema.Stage(stage)
		record.Reason = reason.String
		if t, err := failed.value(); err != nil {
			return nil, err
		} else if t != nil {
			record.FailedAt = *t
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failures: %w", err)
	}
	return results, nil
}
