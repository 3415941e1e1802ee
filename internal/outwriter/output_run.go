package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/parquet"
	"github.com/huangsam/repoharvest/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// runHeader is the CSV header of the run summary.
var runHeader = []string{
	"local_id",
	"owner",
	"name",
	"url",
	"stars",
	"result",
	"stage",
	"branch",
	"error",
	"total_classes",
	"cbo_per_class",
	"loc",
	"avg_cc",
	"duration_ms",
}

// WriteRunSummary outputs the run summary, dispatching based on the output format configured.
func WriteRunSummary(summary schema.RunSummary, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunCSV(w, summary, fmtFloat, intFmt)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := parquet.WriteFile(parquet.ConvertRepositoryMetricsRecords(succeededRecords(summary, time.Now())), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunTable(w, summary, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
	return nil
}

// succeededRecords returns the rows the run persisted.
func succeededRecords(summary schema.RunSummary, analyzedAt time.Time) []schema.RepositoryMetricsRecord {
	var records []schema.RepositoryMetricsRecord
	for _, o := range summary.Outcomes {
		if !o.Succeeded() {
			continue
		}
		records = append(records, schema.RepositoryMetricsRecord{
			RunID:          summary.RunID,
			AnalysisTime:   analyzedAt,
			CombinedRecord: schema.CombinedRecord{RepositoryDescriptor: o.Repository, QualityMetrics: o.Metrics},
		})
	}
	return records
}

// writeRunTable generates and writes the human-readable table.
func writeRunTable(w io.Writer, summary schema.RunSummary, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Repository", "Result", "Classes", "CBO/Class", "LOC", "Time"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg, 70)
	var data [][]string
	for i, o := range summary.Outcomes {
		row := []string{
			strconv.Itoa(i + 1),
			contract.Truncate(o.Repository.FullName(), nameWidth),
			contract.GetColorLabel(o),
		}
		if o.Succeeded() {
			row = append(row,
				fmt.Sprintf(intFmt, o.Metrics.TotalClasses),
				fmtFloat(o.Metrics.MeanCBO()),
				fmtFloat(o.Metrics.LOC),
			)
		} else {
			row = append(row, "-", "-", "-")
		}
		row = append(row, o.Duration.Round(time.Millisecond).String())
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Analyzed %d of %d discovered repositories (%d skipped)\n", summary.Succeeded, summary.Discovered, summary.Failed); err != nil {
		return err
	}
	if summary.Interrupted {
		if _, err := fmt.Fprintln(w, contract.InterruptedColor.Sprint("Run interrupted before all repositories were processed")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Results table: %s\n", summary.TablePath); err != nil {
		return err
	}
	runStore := "disabled"
	if summary.RunID >= 0 {
		runStore = fmt.Sprintf("%s (run %d)", cfg.RunBackend, summary.RunID)
	}
	if _, err := fmt.Fprintf(w, "Run completed in %v. Run store: %s\n", duration.Round(time.Millisecond), runStore); err != nil {
		return err
	}
	return nil
}

// writeRunCSV writes one line per processed repository.
func writeRunCSV(w io.Writer, summary schema.RunSummary, fmtFloat func(float64) string, intFmt string) error {
	return writeCSVWithHeader(w, runHeader, func(cw *csv.Writer) error {
		for _, o := range summary.Outcomes {
			rec := []string{
				o.LocalID,
				o.Repository.Owner,
				o.Repository.Name,
				o.Repository.URL,
				fmt.Sprintf(intFmt, o.Repository.Stars),
				contract.GetPlainLabel(o),
				string(o.Stage),
				o.Branch,
				o.Error,
				fmt.Sprintf(intFmt, o.Metrics.TotalClasses),
				fmtFloat(o.Metrics.MeanCBO()),
				fmtFloat(o.Metrics.LOC),
				fmtFloat(o.Metrics.AvgCC),
				strconv.FormatInt(o.Duration.Milliseconds(), 10),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
