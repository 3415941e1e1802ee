package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[T](file)
	defer func() { _ = reader.Close() }()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestStructTags(t *testing.T) {
	tests := []struct {
		name     string
		model    any
		expected []string
	}{
		{"run", new(Run), []string{"run_id", "start_time", "end_time", "run_duration_ms", "repositories_discovered", "repositories_analyzed", "interrupted", "config_params"}},
		{"repository", new(Repository), schema.DescriptorColumns},
		{"metrics", new(RepositoryMetrics), append([]string{"run_id", "analysis_time"}, schema.RecordColumns...)},
		{"failure", new(Failure), []string{"run_id", "owner", "name", "url", "stage", "reason", "failed_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.model)
			for _, col := range tt.expected {
				_, ok := s.Lookup(col)
				assert.True(t, ok, "column %s should exist", col)
			}
		})
	}
}

func TestWriteFile_Runs(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	duration := int32(5_400_000)
	params := `{"language":"java"}`

	records := []schema.RunRecord{
		{RunID: 1, StartTime: start, EndTime: &end, RunDurationMs: &duration, RepositoriesDiscovered: 10, RepositoriesAnalyzed: 8, ConfigParams: &params},
		{RunID: 2, StartTime: end, RepositoriesDiscovered: 3, Interrupted: true},
	}
	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteFile(ConvertRunRecords(records), path))

	rows := readAll[Run](t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].RunID)
	require.NotNil(t, rows[0].EndTime)
	assert.WithinDuration(t, end, *rows[0].EndTime, time.Millisecond)
	require.NotNil(t, rows[0].RunDurationMs)
	assert.Equal(t, duration, *rows[0].RunDurationMs)
	assert.Nil(t, rows[1].EndTime)
	assert.Nil(t, rows[1].ConfigParams)
	assert.True(t, rows[1].Interrupted)
}

func TestWriteFile_RepositoryMetrics(t *testing.T) {
	records := []schema.RepositoryMetricsRecord{{
		RunID:        4,
		AnalysisTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		CombinedRecord: schema.CombinedRecord{
			RepositoryDescriptor: schema.RepositoryDescriptor{Name: "commons-lang", Owner: "apache", URL: "https://github.com/apache/commons-lang", Stars: 2500},
			QualityMetrics:       schema.QualityMetrics{TotalClasses: 3, CBO: 6, AvgCC: 1.5},
		},
	}}
	path := filepath.Join(t.TempDir(), "metrics.parquet")
	require.NoError(t, WriteFile(ConvertRepositoryMetricsRecords(records), path))

	rows := readAll[RepositoryMetrics](t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "apache", rows[0].Owner)
	assert.Equal(t, int32(2500), rows[0].Stars)
	assert.Equal(t, int32(3), rows[0].TotalClasses)
	assert.InDelta(t, 6.0, rows[0].CBO, 1e-9)
	assert.InDelta(t, 1.5, rows[0].AvgCC, 1e-9)
}

func TestWriteFile_FailuresAndDescriptors(t *testing.T) {
	dir := t.TempDir()
	failures := []schema.RepositoryFailureRecord{{RunID: 1, Owner: "a", Name: "b", URL: "u", Stage: schema.AnalyzeStage, Reason: "timeout"}}
	require.NoError(t, WriteFile(ConvertFailureRecords(failures), filepath.Join(dir, "f.parquet")))
	gotFailures := readAll[Failure](t, filepath.Join(dir, "f.parquet"))
	require.Len(t, gotFailures, 1)
	assert.Equal(t, "analyze", gotFailures[0].Stage)

	repos := []schema.RepositoryDescriptor{{Name: "guava", Owner: "google", URL: "https://github.com/google/guava", Stars: 50000, PrimaryLanguage: "Java"}}
	require.NoError(t, WriteFile(ConvertDescriptors(repos), filepath.Join(dir, "d.parquet")))
	gotRepos := readAll[Repository](t, filepath.Join(dir, "d.parquet"))
	require.Len(t, gotRepos, 1)
	assert.Equal(t, "guava", gotRepos[0].Name)
	assert.Equal(t, int32(50000), gotRepos[0].Stars)
}

func TestWriteFile_EmptyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteFile([]Run{}, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Empty(t, readAll[Run](t, path))
}

func TestWriteFile_InvalidPath(t *testing.T) {
	err := WriteFile([]Run{{RunID: 1}}, filepath.Join(t.TempDir(), "missing", "runs.parquet"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}
