// Package cmd defines the command-line interface for repoharvest.
package cmd

import (
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Bind all persistent flags of rootCmd to Viper
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file")
	flags.String("profile", "", "Enable profiling and write profiles to files with this prefix")

	// Discovery
	flags.String("token", "", "GitHub API token (prefer the GITHUB_TOKEN env variable)")
	flags.String("env-file", contract.DefaultEnvFile, "Key=value file consulted for GITHUB_TOKEN")
	flags.String("api-url", contract.DefaultAPIURL, "GraphQL endpoint of the search API")
	flags.String("language", contract.DefaultLanguage, "Primary language of the repositories to harvest")
	flags.Int("min-stars", contract.DefaultMinStars, "Only consider repositories with more stars than this")
	flags.IntP("limit", "l", contract.DefaultLimit, "Maximum number of repositories to discover")
	flags.Int("page-size", contract.DefaultPageSize, "Repositories requested per search page")
	flags.String("page-delay", contract.DefaultPageDelay, "Pause between search pages")
	flags.String("request-timeout", contract.DefaultRequestTimeout, "Timeout of a single search request")

	// Acquisition and extraction
	flags.String("scratch-dir", "", "Scratch area for archives and extracted sources (default derived from the host)")
	flags.String("path-policy", string(schema.AutoPathPolicy), "Extraction path policy: auto or short or long")
	flags.String("download-timeout", contract.DefaultDownloadTimeout, "Timeout of a single archive download")
	flags.String("max-archive-size", contract.DefaultMaxArchiveSize, "Largest archive that will be downloaded (e.g. 500MB, 2GB)")

	// Analysis
	flags.String("java-bin", contract.DefaultJavaBin, "Java runtime used to launch the analyzer")
	flags.String("ck-jar", contract.DefaultCKJar, "Path to the CK analyzer jar")
	flags.String("analysis-timeout", contract.DefaultAnalysisTimeout, "Timeout of one analyzer invocation")

	// Output
	flags.String("table", contract.DefaultTablePath, "Path of the CSV results table")
	flags.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	flags.String("output-file", "", "Optional path to write output to")
	flags.Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	flags.Int("width", 0, "Terminal width override (0 = auto-detect)")
	flags.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	flags.String("progress", "yes", "Show download progress bars on a terminal (yes/no/true/false/1/0)")
	flags.String("log-level", "info", "Log level: debug or info or warn or error")
	flags.String("log-format", contract.LogFormatText, "Log format: text or json")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile after a run")

	// Storage
	flags.String("cache-backend", string(schema.SQLiteBackend), "Discovery cache backend: sqlite or mysql or postgresql or none")
	flags.String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	flags.String("discovery-ttl", contract.DefaultDiscoveryTTL, "How long a cached discovery stays fresh (0 = forever)")
	flags.Bool("refresh", false, "Ignore cached discoveries and query the API again")
	flags.String("run-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	flags.String("run-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	if err := viper.BindPFlags(flags); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
