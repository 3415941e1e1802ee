package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/iocache"
	"github.com/huangsam/repoharvest/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadRunBackend reads and validates the run store settings.
// An empty backend is treated as NoneBackend.
func loadRunBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.DatabaseBackend(viper.GetString("run-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// sqliteFilePath returns the SQLite file a connection string points at.
func sqliteFilePath(connStr, defaultPath string) string {
	if connStr != "" {
		return connStr
	}
	return defaultPath
}

// runsSetup loads minimal configuration needed for run store operations.
// This is used by commands that need run data without full shared setup.
func runsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := loadRunBackend()
	if err != nil {
		return err
	}

	// No discovery cache for run commands
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// runsMigrateSetup loads configuration for migrations without opening the store,
// so migrations can run against a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := loadRunBackend()
	if err != nil {
		return err
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsCmd focused on run history management.
//
// Note: Runs subcommands use minimal initialization (runsSetup) instead of
// the full sharedSetup used by the harvest commands. This avoids token and
// scratch validation for simple storage operations.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage tracked harvest runs and exports",
	Long: `Manage the history of harvest runs.

When --run-backend is set, every run stores:
- Run metadata (start and end time, configuration, interruption)
- Metrics of every analyzed repository
- The stage and reason of every skipped repository

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  repoharvest runs status --run-backend sqlite

  # Export for analysis in pandas/DuckDB
  repoharvest runs export --run-backend sqlite --output-file harvest`,
}

// runsStatusCmd shows run store status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show the backend, connection state, number of runs, the latest and oldest
run times, the number of stored repository records and the table sizes.

Examples:
  repoharvest runs status --run-backend sqlite`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsClearCmd clears the run data.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked run data",
	Long: `Delete all stored runs, repository metrics and failures.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the run tables

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  repoharvest runs export --run-backend sqlite --output-file backup
  repoharvest runs clear --run-backend sqlite`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(cfg.RunBackend, sqliteFilePath(cfg.RunDBConnect, iocache.GetRunDBFilePath()), cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsExportCmd exports run data to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked runs to Parquet for BI tools and analytics",
	Long: `Export all stored run data to Parquet files.

Writes three files next to the --output-file prefix:
- <prefix>.runs.parquet
- <prefix>.repository_metrics.parquet
- <prefix>.failures.parquet

Requires: --output-file parameter

Examples:
  repoharvest runs export --run-backend sqlite --output-file harvest
  duckdb -c "SELECT * FROM read_parquet('harvest.repository_metrics.parquet') LIMIT 10"`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteRunExport(iocache.Manager.GetRunStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  repoharvest runs migrate --run-backend sqlite

  # Rollback everything
  repoharvest runs migrate --run-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(cfg.RunBackend, cfg.RunDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
