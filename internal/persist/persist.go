// Package persist keeps the append-only results table.
package persist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// CSVTable appends one row per analyzed repository to a CSV file.
type CSVTable struct {
	path string
}

var _ contract.RecordSink = &CSVTable{}

// NewCSVTable creates a table handle for path. Nothing is written until Append.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

// Path returns the table location.
func (t *CSVTable) Path() string {
	return t.path
}

// Reset deletes a table left by a previous run.
func (t *CSVTable) Reset() error {
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous table: %w", err)
	}
	return nil
}

// Append writes record, adding the header when the file is new or empty.
// The row is flushed and synced before returning.
func (t *CSVTable) Append(record schema.CombinedRecord) (err error) {
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create table dir: %w", err)
		}
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open table: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close table: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat table: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(schema.RecordColumns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(record.Row()); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync table: %w", err)
	}
	return nil
}

// ReadTable reads every record of a table written by CSVTable or by the discover command.
// Columns are located by header name, so descriptor-only tables load with zero metrics.
func ReadTable(path string) ([]schema.CombinedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeTable(f)
}

// DecodeTable reads records from r.
func DecodeTable(r io.Reader) ([]schema.CombinedRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []schema.CombinedRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Contains(header, "url") {
		return nil, fmt.Errorf("table header has no url column")
	}

	records := []schema.CombinedRecord{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := schema.ParseRecord(header, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteTable replaces path with a table holding records.
func WriteTable(path string, records []schema.CombinedRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return EncodeTable(f, schema.RecordColumns, records)
}

// EncodeTable writes header and the records' cells for those columns.
// header must be RecordColumns or a prefix of it, such as DescriptorColumns.
func EncodeTable(w io.Writer, header []string, records []schema.CombinedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	full := len(header) == len(schema.RecordColumns)
	for _, rec := range records {
		row := rec.Row()
		if !full {
			row = row[:len(header)]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
