package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/parquet"
	"github.com/huangsam/repoharvest/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// discoveryJSON is the JSON document written by the discover command.
type discoveryJSON struct {
	Summary      schema.DiscoverySummary       `json:"summary"`
	Repositories []schema.RepositoryDescriptor `json:"repositories"`
}

// WriteDiscoveryResults outputs discovered repositories, dispatching based on the output format configured.
// The CSV form has the same columns as the descriptor part of the results table.
func WriteDiscoveryResults(repos []schema.RepositoryDescriptor, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	stats := schema.SummarizeRepositories(repos)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, discoveryJSON{Summary: stats, Repositories: repos})
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDiscoveryCSV(w, repos)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := parquet.WriteFile(parquet.ConvertDescriptors(repos), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDiscoveryTable(w, repos, stats, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
	return nil
}

// writeDiscoveryCSV writes descriptors in results-table column order.
func writeDiscoveryCSV(w io.Writer, repos []schema.RepositoryDescriptor) error {
	return writeCSVWithHeader(w, schema.DescriptorColumns, func(cw *csv.Writer) error {
		for _, r := range repos {
			if err := cw.Write(r.Row()); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeDiscoveryTable writes the repository listing followed by summary statistics.
func writeDiscoveryTable(w io.Writer, repos []schema.RepositoryDescriptor, stats schema.DiscoverySummary, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Repository", "Stars", "Age (days)", "Releases", "Language"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg, 50)
	var data [][]string
	for i, r := range repos {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.Truncate(r.FullName(), nameWidth),
			humanize.Comma(int64(r.Stars)),
			fmt.Sprintf(intFmt, r.AgeDays),
			fmt.Sprintf(intFmt, r.TotalReleases),
			r.PrimaryLanguage,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if err := writeStatsTable(w, stats, fmtFloat); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Discovered %d repositories in %v (query: %s)\n", stats.Count, duration.Round(time.Millisecond), cfg.SearchQuery()); err != nil {
		return err
	}
	return nil
}

// writeStatsTable renders median, mean, min and max per numeric column.
func writeStatsTable(w io.Writer, stats schema.DiscoverySummary, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Statistic", "Median", "Mean", "Min", "Max"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	rows := []struct {
		label string
		s     schema.StatSummary
	}{
		{"Age (days)", stats.AgeDays},
		{"Stars", stats.Stars},
		{"Releases", stats.Releases},
	}
	var data [][]string
	for _, r := range rows {
		data = append(data, []string{r.label, fmtFloat(r.s.Median), fmtFloat(r.s.Mean), fmtFloat(r.s.Min), fmtFloat(r.s.Max)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
