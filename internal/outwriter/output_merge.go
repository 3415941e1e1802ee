package outwriter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteMergeSummary prints merge statistics to stdout.
// The merged table itself is written by the caller.
func WriteMergeSummary(summary schema.MergeSummary, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile("", func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON")
	}
	return writeWithFile("", func(w io.Writer) error {
		return writeMergeTable(w, summary, cfg, duration)
	}, "Wrote table")
}

// writeMergeTable writes the counts and the most starred repositories of the merge.
func writeMergeTable(w io.Writer, summary schema.MergeSummary, cfg *contract.Config, duration time.Duration) error {
	counts := tablewriter.NewWriter(w)
	counts.Header([]string{"Metric", "Value"})
	counts.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	data := [][]string{
		{"First table", strconv.Itoa(summary.FirstCount)},
		{"Second table", strconv.Itoa(summary.SecondCount)},
		{"Combined", strconv.Itoa(summary.Combined)},
		{"Unique", strconv.Itoa(summary.Unique)},
		{"Overlap", strconv.Itoa(summary.Overlap)},
		{"Added from second", strconv.Itoa(summary.AddedFromSecond)},
	}
	if err := counts.Bulk(data); err != nil {
		return err
	}
	if err := counts.Render(); err != nil {
		return err
	}

	if len(summary.Top) > 0 {
		top := tablewriter.NewWriter(w)
		top.Header([]string{"#", "Repository", "Stars", "Classes"})
		top.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})
		nameWidth := getMaxTableNameWidth(cfg, 30)
		var rows [][]string
		for i, r := range summary.Top {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				contract.Truncate(r.FullName(), nameWidth),
				humanize.Comma(int64(r.Stars)),
				strconv.Itoa(r.TotalClasses),
			})
		}
		if err := top.Bulk(rows); err != nil {
			return err
		}
		if err := top.Render(); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "Merged %d repositories into %s in %v\n", summary.Unique, summary.OutputPath, duration.Round(time.Millisecond)); err != nil {
		return err
	}
	return nil
}
