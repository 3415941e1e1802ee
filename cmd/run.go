package cmd

import (
	"github.com/huangsam/repoharvest/core"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/spf13/cobra"
)

// runCmd executes the full harvest pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover, download, analyze and record repositories.",
	Long: `Run the whole harvest pipeline.

Repositories are discovered in descending star order and processed one at a
time: the default-branch archive is downloaded (main, then master), the
sources are extracted into the scratch area, the CK analyzer measures every
class, and one row of metadata plus summed metrics is appended to the results
table. A repository that fails at any stage is skipped without leaving a row
or files behind. The results table is recreated at the start of every run.

Requires a Java runtime and the CK jar (see --java-bin and --ck-jar).

Examples:
  # Harvest the 50 most starred Java repositories
  repoharvest run --limit 50

  # Track runs in SQLite and write a Prometheus textfile
  repoharvest run --run-backend sqlite --metrics-file harvest.prom

  # Keep the results table somewhere else
  repoharvest run --table data/results.csv --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRun(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot run harvest", err)
		}
	},
}

// discoverCmd lists repositories without analyzing them.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the repositories a run would process.",
	Long: `Query the search API and report the matching repositories with summary
statistics of their stars, ages and releases. Nothing is downloaded.

Results are cached in the discovery cache (see --cache-backend) and reused
until --discovery-ttl expires. Use --refresh to bypass the cache.

Examples:
  # Preview the next run
  repoharvest discover --limit 20

  # Save repository metadata as CSV
  repoharvest discover --limit 500 --output csv --output-file repos.csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteDiscover(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot discover repositories", err)
		}
	},
}

// mergeCmd combines two results tables.
var mergeCmd = &cobra.Command{
	Use:   "merge <first.csv> <second.csv>",
	Short: "Merge two results tables, dropping duplicate repositories.",
	Long: `Combine two results tables into one. Repositories are matched by URL and
the row from the first table wins. The merged table is sorted by stars.

Requires: --output-file parameter

Examples:
  repoharvest merge monday.csv tuesday.csv --output-file combined.csv`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteMerge(rootCtx, cfg, args[0], args[1]); err != nil {
			contract.LogFatal("Cannot merge tables", err)
		}
	},
}
