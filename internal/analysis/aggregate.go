package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// Tables written by the CK tool.
const (
	ClassTable    = "class.csv"
	MethodTable   = "method.csv"
	FieldTable    = "field.csv"
	VariableTable = "variable.csv"
)

// GeneratedTables lists every file the tool may leave in its output directory.
var GeneratedTables = []string{ClassTable, MethodTable, FieldTable, VariableTable}

// requiredClassColumns must all be present for class.csv to count.
var requiredClassColumns = []string{"cbo", "lcom", "dit", "loc"}

// CSVAggregator reduces CK tables into QualityMetrics.
type CSVAggregator struct {
	Logger *slog.Logger
}

var _ contract.Aggregator = &CSVAggregator{}

// Aggregate sums the class table in outputDir and deletes the generated files.
// An absent or malformed class table yields zero metrics.
func (a *CSVAggregator) Aggregate(outputDir string) schema.QualityMetrics {
	logger := contract.LoggerOrDiscard(a.Logger)
	defer removeOutput(outputDir)

	metrics, err := aggregateClassTable(filepath.Join(outputDir, ClassTable))
	if err != nil {
		logger.Warn("unusable class table, recording zero metrics", "dir", outputDir, "error", err)
		return schema.QualityMetrics{}
	}
	cc, err := averageColumn(filepath.Join(outputDir, MethodTable), "wmc")
	if err != nil {
		logger.Debug("unusable method table, recording zero avg_cc", "dir", outputDir, "error", err)
	} else {
		metrics.AvgCC = cc
	}
	return metrics
}

func aggregateClassTable(path string) (schema.QualityMetrics, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return schema.QualityMetrics{}, err
	}
	for _, col := range requiredClassColumns {
		if _, ok := header[col]; !ok {
			return schema.QualityMetrics{}, fmt.Errorf("missing column %q", col)
		}
	}

	var m schema.QualityMetrics
	var wmc, noc, rfc float64
	for i, row := range rows {
		v := rowValues{header: header, row: row}
		m.CBO += v.float("cbo")
		m.LCOM += v.float("lcom")
		m.DIT += v.float("dit")
		m.LOC += v.float("loc")
		m.TotalMethods += int(v.float("totalMethodsQty"))
		m.TotalFields += int(v.float("totalFieldsQty"))
		m.TotalVariables += int(v.float("variablesQty"))
		wmc += v.float("wmc")
		noc += v.float("noc")
		rfc += v.float("rfc")
		if v.err != nil {
			return schema.QualityMetrics{}, fmt.Errorf("row %d: %w", i+2, v.err)
		}
	}

	m.TotalClasses = len(rows)
	if m.TotalClasses > 0 {
		n := float64(m.TotalClasses)
		m.AvgWMC = wmc / n
		m.AvgNOC = noc / n
		m.AvgRFC = rfc / n
	}
	return m, nil
}

func averageColumn(path, column string) (float64, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return 0, err
	}
	if _, ok := header[column]; !ok {
		return 0, fmt.Errorf("missing column %q", column)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, row := range rows {
		v := rowValues{header: header, row: row}
		sum += v.float(column)
		if v.err != nil {
			return 0, v.err
		}
	}
	return sum / float64(len(rows)), nil
}

// readTable reads a CSV file into a column index and its data rows.
func readTable(path string) (map[string]int, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty table")
	}
	if err != nil {
		return nil, nil, err
	}
	header := make(map[string]int, len(head))
	for i, col := range head {
		header[strings.TrimSpace(col)] = i
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

// rowValues reads numeric cells by column name, remembering the first failure.
// Absent columns read as zero.
type rowValues struct {
	header map[string]int
	row    []string
	err    error
}

func (v *rowValues) float(column string) float64 {
	idx, ok := v.header[column]
	if !ok || v.err != nil {
		return 0
	}
	cell := strings.TrimSpace(v.row[idx])
	if cell == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		v.err = fmt.Errorf("column %s: %w", column, err)
		return 0
	}
	return f
}

func removeOutput(dir string) {
	for _, name := range GeneratedTables {
		_ = os.Remove(filepath.Join(dir, name))
	}
	_ = os.RemoveAll(dir)
}
