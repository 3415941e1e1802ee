package schema

import (
	"math"
	"slices"
	"time"
)

// SourceTree is a materialized repository checkout under the scratch area.
type SourceTree struct {
	Dir          string `json:"dir"`
	Branch       string `json:"branch"`
	ArchiveBytes int64  `json:"archive_bytes"`
	Extracted    int    `json:"extracted"`
	Skipped      int    `json:"skipped"`
}

// RepositoryOutcome describes what happened to one repository during a run.
type RepositoryOutcome struct {
	Repository RepositoryDescriptor `json:"repository"`
	LocalID    string               `json:"local_id"`
	Stage      Stage                `json:"stage"` // DoneStage on success, otherwise where it failed
	Err        error                `json:"-"`
	Error      string               `json:"error,omitempty"`
	Branch     string               `json:"branch,omitempty"`
	Duration   time.Duration        `json:"duration"`
	Metrics    QualityMetrics       `json:"metrics"`
}

// Succeeded reports whether a row was persisted for the repository.
func (o RepositoryOutcome) Succeeded() bool {
	return o.Err == nil && o.Stage == DoneStage
}

// RunSummary is the result of one pipeline run.
type RunSummary struct {
	RunID       int64               `json:"run_id"`
	Discovered  int                 `json:"discovered"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	Interrupted bool                `json:"interrupted"`
	Duration    time.Duration       `json:"duration"`
	TablePath   string              `json:"table_path"`
	Outcomes    []RepositoryOutcome `json:"outcomes"`
}

// StatSummary holds descriptive statistics for one numeric column.
type StatSummary struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// DiscoverySummary describes a set of discovered repositories.
type DiscoverySummary struct {
	Count    int         `json:"count"`
	AgeDays  StatSummary `json:"age_days"`
	Stars    StatSummary `json:"stars"`
	Releases StatSummary `json:"releases"`
}

// Summarize computes median, mean, min and max of values.
// An empty input yields the zero summary.
func Summarize(values []float64) StatSummary {
	if len(values) == 0 {
		return StatSummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return StatSummary{
		Median: median,
		Mean:   math.Round(sum/float64(n)*100) / 100,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// SummarizeRepositories builds a DiscoverySummary from descriptors.
func SummarizeRepositories(repos []RepositoryDescriptor) DiscoverySummary {
	ages := make([]float64, len(repos))
	stars := make([]float64, len(repos))
	releases := make([]float64, len(repos))
	for i, r := range repos {
		ages[i] = float64(r.AgeDays)
		stars[i] = float64(r.Stars)
		releases[i] = float64(r.TotalReleases)
	}
	return DiscoverySummary{
		Count:    len(repos),
		AgeDays:  Summarize(ages),
		Stars:    Summarize(stars),
		Releases: Summarize(releases),
	}
}

// MergeSummary describes the result of merging two results tables.
type MergeSummary struct {
	FirstCount      int              `json:"first_count"`
	SecondCount     int              `json:"second_count"`
	Combined        int              `json:"combined"`
	Unique          int              `json:"unique"`
	Overlap         int              `json:"overlap"`
	AddedFromSecond int              `json:"added_from_second"`
	Top             []CombinedRecord `json:"top"`
	OutputPath      string           `json:"output_path"`
}
