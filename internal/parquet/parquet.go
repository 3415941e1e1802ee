// Package parquet provides data structures and functions for exporting harvest
// data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single harvest run with metadata.
// This struct maps to the harvest_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the run began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	RepositoriesDiscovered int32 `parquet:"repositories_discovered,snappy"`
	RepositoriesAnalyzed   int32 `parquet:"repositories_analyzed,snappy"`
	Interrupted            bool  `parquet:"interrupted,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Repository is one discovered repository.
type Repository struct {
	Name            string    `parquet:"name,snappy"`
	Owner           string    `parquet:"owner,snappy"`
	URL             string    `parquet:"url,snappy"`
	Description     string    `parquet:"description,snappy"`
	Stars           int32     `parquet:"stars,snappy"`
	AgeDays         int32     `parquet:"age_days,snappy"`
	PrimaryLanguage string    `parquet:"primary_language,snappy"`
	TotalReleases   int32     `parquet:"total_releases,snappy"`
	CreatedAt       time.Time `parquet:"created_at,snappy"`
}

// RepositoryMetrics is one analyzed repository of a run.
// This struct maps to the harvest_repository_metrics database table.
type RepositoryMetrics struct {
	RunID        int64     `parquet:"run_id,snappy"`
	AnalysisTime time.Time `parquet:"analysis_time,snappy"`

	Name            string    `parquet:"name,snappy"`
	Owner           string    `parquet:"owner,snappy"`
	URL             string    `parquet:"url,snappy"`
	Description     string    `parquet:"description,snappy"`
	Stars           int32     `parquet:"stars,snappy"`
	AgeDays         int32     `parquet:"age_days,snappy"`
	PrimaryLanguage string    `parquet:"primary_language,snappy"`
	TotalReleases   int32     `parquet:"total_releases,snappy"`
	CreatedAt       time.Time `parquet:"created_at,snappy"`

	TotalClasses   int32   `parquet:"total_classes,snappy"`
	TotalMethods   int32   `parquet:"total_methods,snappy"`
	TotalFields    int32   `parquet:"total_fields,snappy"`
	TotalVariables int32   `parquet:"total_variables,snappy"`
	AvgWMC         float64 `parquet:"avg_wmc,snappy"`
	CBO            float64 `parquet:"cbo,snappy"`
	LCOM           float64 `parquet:"lcom,snappy"`
	DIT            float64 `parquet:"dit,snappy"`
	AvgNOC         float64 `parquet:"avg_noc,snappy"`
	AvgRFC         float64 `parquet:"avg_rfc,snappy"`
	LOC            float64 `parquet:"loc,snappy"`
	AvgCC          float64 `parquet:"avg_cc,snappy"`
}

// Failure is one repository that produced no record.
// This struct maps to the harvest_repository_failures database table.
type Failure struct {
	RunID    int64     `parquet:"run_id,snappy"`
	Owner    string    `parquet:"owner,snappy"`
	Name     string    `parquet:"name,snappy"`
	URL      string    `parquet:"url,snappy"`
	Stage    string    `parquet:"stage,snappy"`
	Reason   string    `parquet:"reason,snappy"`
	FailedAt time.Time `parquet:"failed_at,snappy"`
}

// Write encodes rows as a Parquet stream.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile writes rows to a new Parquet file at outputPath.
func WriteFile[T any](rows []T, outputPath string) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(file, rows)
}

// ConvertRunRecords converts database run records to Parquet rows.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, r := range records {
		result[i] = Run{
			RunID:                  r.RunID,
			StartTime:              r.StartTime,
			EndTime:                r.EndTime,
			RunDurationMs:          r.RunDurationMs,
			RepositoriesDiscovered: r.RepositoriesDiscovered,
			RepositoriesAnalyzed:   r.RepositoriesAnalyzed,
			Interrupted:            r.Interrupted,
			ConfigParams:           r.ConfigParams,
		}
	}
	return result
}

// ConvertDescriptors converts discovered repositories to Parquet rows.
func ConvertDescriptors(repos []schema.RepositoryDescriptor) []Repository {
	result := make([]Repository, len(repos))
	for i, r := range repos {
		result[i] = convertDescriptor(r)
	}
	return result
}

func convertDescriptor(r schema.RepositoryDescriptor) Repository {
	return Repository{
		Name:            r.Name,
		Owner:           r.Owner,
		URL:             r.URL,
		Description:     r.Description,
		Stars:           int32(r.Stars),
		AgeDays:         int32(r.AgeDays),
		PrimaryLanguage: r.PrimaryLanguage,
		TotalReleases:   int32(r.TotalReleases),
		CreatedAt:       r.CreatedAt,
	}
}

// ConvertRepositoryMetricsRecords converts database repository records to Parquet rows.
func ConvertRepositoryMetricsRecords(records []schema.RepositoryMetricsRecord) []RepositoryMetrics {
	result := make([]RepositoryMetrics, len(records))
	for i, r := range records {
		d := convertDescriptor(r.RepositoryDescriptor)
		result[i] = RepositoryMetrics{
			RunID:           r.RunID,
			AnalysisTime:    r.AnalysisTime,
			Name:            d.Name,
			Owner:           d.Owner,
			URL:             d.URL,
			Description:     d.Description,
			Stars:           d.Stars,
			AgeDays:         d.AgeDays,
			PrimaryLanguage: d.PrimaryLanguage,
			TotalReleases:   d.TotalReleases,
			CreatedAt:       d.CreatedAt,
			TotalClasses:    int32(r.TotalClasses),
			TotalMethods:    int32(r.TotalMethods),
			TotalFields:     int32(r.TotalFields),
			TotalVariables:  int32(r.TotalVariables),
			AvgWMC:          r.AvgWMC,
			CBO:             r.CBO,
			LCOM:            r.LCOM,
			DIT:             r.DIT,
			AvgNOC:          r.AvgNOC,
			AvgRFC:          r.AvgRFC,
			LOC:             r.LOC,
			AvgCC:           r.AvgCC,
		}
	}
	return result
}

// ConvertFailureRecords converts database failure records to Parquet rows.
func ConvertFailureRecords(records []schema.RepositoryFailureRecord) []Failure {
	result := make([]Failure, len(records))
	for i, r := range records {
		result[i] = Failure{
			RunID:    r.RunID,
			Owner:    r.Owner,
			Name:     r.Name,
			URL:      r.URL,
			Stage:    string(r.Stage),
			Reason:   r.Reason,
			FailedAt: r.FailedAt,
		}
	}
	return result
}
