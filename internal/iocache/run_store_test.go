package iocache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*RunStoreImpl)
}

func sampleRecord(name string, stars int) schema.CombinedRecord {
	return schema.CombinedRecord{
		RepositoryDescriptor: schema.RepositoryDescriptor{
			Name:            name,
			Owner:           "apache",
			URL:             "https://github.com/apache/" + name,
			Description:     "a library",
			Stars:           stars,
			AgeDays:         4000,
			PrimaryLanguage: "Java",
			TotalReleases:   12,
			CreatedAt:       time.Date(2014, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		QualityMetrics: schema.QualityMetrics{
			TotalClasses: 10,
			TotalMethods: 80,
			AvgWMC:       4.5,
			CBO:          31,
			LCOM:         12,
			DIT:          14,
			LOC:          2400,
			AvgCC:        1.75,
		},
	}
}

func TestRunStore_NoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	id, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, store.RecordRepository(id, time.Now(), sampleRecord("x", 1)))
	assert.NoError(t, store.RecordFailure(id, time.Now(), schema.RepositoryDescriptor{}, schema.AcquireStage, "boom"))
	assert.NoError(t, store.EndRun(id, time.Now(), 1, 0, false))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestRunStore_Lifecycle(t *testing.T) {
	store := newSQLiteRunStore(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	runID, err := store.BeginRun(start, map[string]any{"language": "java", "limit": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), runID)

	require.NoError(t, store.RecordRepository(runID, start.Add(time.Minute), sampleRecord("commons-lang", 2500)))
	require.NoError(t, store.RecordRepository(runID, start.Add(2*time.Minute), sampleRecord("kafka", 27000)))
	failed := sampleRecord("hadoop", 14000).RepositoryDescriptor
	require.NoError(t, store.RecordFailure(runID, start.Add(3*time.Minute), failed, schema.AnalyzeStage, "analysis timed out"))
	require.NoError(t, store.EndRun(runID, start.Add(90*time.Second), 3, 2, true))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.True(t, run.StartTime.Equal(start))
	require.NotNil(t, run.EndTime)
	assert.True(t, run.EndTime.Equal(start.Add(90*time.Second)))
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int32(90_000), *run.RunDurationMs)
	assert.Equal(t, int32(3), run.RepositoriesDiscovered)
	assert.Equal(t, int32(2), run.RepositoriesAnalyzed)
	assert.True(t, run.Interrupted)
	require.NotNil(t, run.ConfigParams)
	assert.JSONEq(t, `{"language":"java","limit":3}`, *run.ConfigParams)

	metrics, err := store.GetAllRepositoryMetrics()
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, "kafka", metrics[0].Name, "ordered by stars descending")
	assert.Equal(t, "commons-lang", metrics[1].Name)
	assert.Equal(t, sampleRecord("commons-lang", 2500), metrics[1].CombinedRecord)
	assert.True(t, metrics[1].AnalysisTime.Equal(start.Add(time.Minute)))

	failures, err := store.GetAllFailures()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "hadoop", failures[0].Name)
	assert.Equal(t, schema.AnalyzeStage, failures[0].Stage)
	assert.Equal(t, "analysis timed out", failures[0].Reason)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, 2, status.TotalRepositoriesStored)
	assert.Equal(t, runID, status.LastRunID)
	assert.True(t, status.LastRunTime.Equal(start))
	assert.Equal(t, map[string]int64{runsTable: 1, metricsTable: 2, failuresTable: 1}, status.TableSizes)
}

func TestRunStore_OpenRunHasNoEnd(t *testing.T) {
	store := newSQLiteRunStore(t)

	_, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].EndTime)
	assert.Nil(t, runs[0].RunDurationMs)
	assert.False(t, runs[0].Interrupted)
}

func TestRunStore_EndUnknownRun(t *testing.T) {
	store := newSQLiteRunStore(t)
	err := store.EndRun(42, time.Now(), 0, 0, false)
	assert.ErrorContains(t, err, "run 42")
}

func TestRunStore_DuplicateRepositoryInRun(t *testing.T) {
	store := newSQLiteRunStore(t)
	runID, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordRepository(runID, time.Now(), sampleRecord("guava", 1)))
	assert.Error(t, store.RecordRepository(runID, time.Now(), sampleRecord("guava", 1)))
}

func TestRunStore_EmptyStatus(t *testing.T) {
	store := newSQLiteRunStore(t)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalRuns)
	assert.True(t, status.LastRunTime.IsZero())
	assert.Len(t, status.TableSizes, len(RunTables))
}

func TestBoolValue(t *testing.T) {
	assert.Equal(t, 1, (&RunStoreImpl{backend: schema.SQLiteBackend}).boolValue(true))
	assert.Equal(t, 0, (&RunStoreImpl{backend: schema.MySQLBackend}).boolValue(false))
	assert.Equal(t, true, (&RunStoreImpl{backend: schema.PostgreSQLBackend}).boolValue(true))
}
