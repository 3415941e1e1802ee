package schema

import (
	"fmt"
	"strconv"
	"time"
)

// RecordSchemaVersion is bumped whenever RecordColumns changes.
const RecordSchemaVersion = 1

// RepositoryDescriptor is the metadata reported by the search API for one repository.
type RepositoryDescriptor struct {
	Name            string    `json:"name"`
	Owner           string    `json:"owner"`
	URL             string    `json:"url"`
	Description     string    `json:"description"`
	Stars           int       `json:"stars"`
	AgeDays         int       `json:"age_days"`
	PrimaryLanguage string    `json:"primary_language"`
	TotalReleases   int       `json:"total_releases"`
	CreatedAt       time.Time `json:"created_at"`
}

// FullName returns the owner/name slug.
func (r RepositoryDescriptor) FullName() string {
	return r.Owner + "/" + r.Name
}

// QualityMetrics holds class-level metrics summed over all classes of a repository.
// CBO, LCOM, DIT and LOC are sums; TotalClasses is the number of rows they were summed over.
type QualityMetrics struct {
	TotalClasses   int     `json:"total_classes"`
	TotalMethods   int     `json:"total_methods"`
	TotalFields    int     `json:"total_fields"`
	TotalVariables int     `json:"total_variables"`
	AvgWMC         float64 `json:"avg_wmc"`
	CBO            float64 `json:"cbo"`
	LCOM           float64 `json:"lcom"`
	DIT            float64 `json:"dit"`
	AvgNOC         float64 `json:"avg_noc"`
	AvgRFC         float64 `json:"avg_rfc"`
	LOC            float64 `json:"loc"`
	AvgCC          float64 `json:"avg_cc"`
}

func (m QualityMetrics) perClass(sum float64) float64 {
	if m.TotalClasses == 0 {
		return 0
	}
	return sum / float64(m.TotalClasses)
}

// MeanCBO returns coupling between objects per class.
func (m QualityMetrics) MeanCBO() float64 { return m.perClass(m.CBO) }

// MeanLCOM returns lack of cohesion per class.
func (m QualityMetrics) MeanLCOM() float64 { return m.perClass(m.LCOM) }

// MeanDIT returns depth of inheritance per class.
func (m QualityMetrics) MeanDIT() float64 { return m.perClass(m.DIT) }

// MeanLOC returns lines of code per class.
func (m QualityMetrics) MeanLOC() float64 { return m.perClass(m.LOC) }

// CombinedRecord is one row of the results table.
type CombinedRecord struct {
	RepositoryDescriptor
	QualityMetrics
}

// DescriptorColumns are the repository metadata columns, in table order.
var DescriptorColumns = []string{
	"name",
	"owner",
	"url",
	"description",
	"stars",
	"age_days",
	"primary_language",
	"total_releases",
	"created_at",
}

// MetricColumns are the analysis columns, in table order.
var MetricColumns = []string{
	"total_classes",
	"total_methods",
	"total_fields",
	"total_variables",
	"avg_wmc",
	"cbo",
	"lcom",
	"dit",
	"avg_noc",
	"avg_rfc",
	"loc",
	"avg_cc",
}

// RecordColumns is the full header of the results table.
var RecordColumns = append(append([]string{}, DescriptorColumns...), MetricColumns...)

// FormatFloat renders a metric without trailing zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row returns the descriptor cells in DescriptorColumns order.
func (r RepositoryDescriptor) Row() []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.Name,
		r.Owner,
		r.URL,
		r.Description,
		strconv.Itoa(r.Stars),
		strconv.Itoa(r.AgeDays),
		r.PrimaryLanguage,
		strconv.Itoa(r.TotalReleases),
		created,
	}
}

// Row returns the metric cells in MetricColumns order.
func (m QualityMetrics) Row() []string {
	return []string{
		strconv.Itoa(m.TotalClasses),
		strconv.Itoa(m.TotalMethods),
		strconv.Itoa(m.TotalFields),
		strconv.Itoa(m.TotalVariables),
		FormatFloat(m.AvgWMC),
		FormatFloat(m.CBO),
		FormatFloat(m.LCOM),
		FormatFloat(m.DIT),
		FormatFloat(m.AvgNOC),
		FormatFloat(m.AvgRFC),
		FormatFloat(m.LOC),
		FormatFloat(m.AvgCC),
	}
}

// Row returns all cells in RecordColumns order.
func (c CombinedRecord) Row() []string {
	return append(c.RepositoryDescriptor.Row(), c.QualityMetrics.Row()...)
}

// ParseRecord builds a record from a table row, using header to locate columns.
// Columns missing from the header are left at their zero value.
func ParseRecord(header, row []string) (CombinedRecord, error) {
	if len(header) != len(row) {
		return CombinedRecord{}, fmt.Errorf("row has %d cells, header has %d", len(row), len(header))
	}
	var rec CombinedRecord
	for i, col := range header {
		if err := rec.setColumn(col, row[i]); err != nil {
			return CombinedRecord{}, fmt.Errorf("column %s: %w", col, err)
		}
	}
	return rec, nil
}

func (c *CombinedRecord) setColumn(col, val string) error {
	var err error
	switch col {
	case "name":
		c.Name = val
	case "owner":
		c.Owner = val
	case "url":
		c.URL = val
	case "description":
		c.Description = val
	case "stars":
		c.Stars, err = atoiOrZero(val)
	case "age_days":
		c.AgeDays, err = atoiOrZero(val)
	case "primary_language":
		c.PrimaryLanguage = val
	case "total_releases":
		c.TotalReleases, err = atoiOrZero(val)
	case "created_at":
		if val != "" {
			c.CreatedAt, err = time.Parse(time.RFC3339, val)
		}
	case "total_classes":
		c.TotalClasses, err = atoiOrZero(val)
	case "total_methods":
		c.TotalMethods, err = atoiOrZero(val)
	case "total_fields":
		c.TotalFields, err = atoiOrZero(val)
	case "total_variables":
		c.TotalVariables, err = atoiOrZero(val)
	case "avg_wmc":
		c.AvgWMC, err = floatOrZero(val)
	case "cbo":
		c.CBO, err = floatOrZero(val)
	case "lcom":
		c.LCOM, err = floatOrZero(val)
	case "dit":
		c.DIT, err = floatOrZero(val)
	case "avg_noc":
		c.AvgNOC, err = floatOrZero(val)
	case "avg_rfc":
		c.AvgRFC, err = floatOrZero(val)
	case "loc":
		c.LOC, err = floatOrZero(val)
	case "avg_cc":
		c.AvgCC, err = floatOrZero(val)
	}
	return err
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func floatOrZero(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
