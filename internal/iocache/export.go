package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/parquet"
)

// ExecuteRunExport exports the run store to Parquet files prefixed by outputFile.
func ExecuteRunExport(store contract.RunStore, outputFile string, out io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is not enabled. Set --run-backend to export run data")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run store status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(out, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(out, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(out, "Total repository records: %d\n", status.TotalRepositoriesStored)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	metrics, err := store.GetAllRepositoryMetrics()
	if err != nil {
		return fmt.Errorf("failed to retrieve repository metrics: %w", err)
	}
	failures, err := store.GetAllFailures()
	if err != nil {
		return fmt.Errorf("failed to retrieve failures: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteFile(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d runs to: %s\n", len(runs), runsFile)

	metricsFile := outputFile + ".repository_metrics.parquet"
	if err := parquet.WriteFile(parquet.ConvertRepositoryMetricsRecords(metrics), metricsFile); err != nil {
		return fmt.Errorf("failed to write repository metrics: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d repository records to: %s\n", len(metrics), metricsFile)

	failuresFile := outputFile + ".failures.parquet"
	if err := parquet.WriteFile(parquet.ConvertFailureRecords(failures), failuresFile); err != nil {
		return fmt.Errorf("failed to write failures: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d failures to: %s\n", len(failures), failuresFile)
	return nil
}
