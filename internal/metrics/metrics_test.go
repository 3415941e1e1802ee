package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/repoharvest/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Discovered(2)
	r.Succeeded()
	r.Failed(schema.AnalyzeStage)
	r.ArchiveBytes(2048)
	r.ObserveStage(schema.AcquireStage, 1500*time.Millisecond)
	r.RunFinished(3*time.Second, true)

	assert.InDelta(t, 2.0, testutil.ToFloat64(r.discovered), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.succeeded), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("analyze")), 1e-9)
	assert.InDelta(t, 2048.0, testutil.ToFloat64(r.archiveBytes), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.interrupted), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))

	expected := `
# HELP repoharvest_repository_failures_total Repositories skipped, by failing stage
# TYPE repoharvest_repository_failures_total counter
repoharvest_repository_failures_total{stage="analyze"} 1
`
	require.NoError(t, testutil.CollectAndCompare(r.failures, strings.NewReader(expected)))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Discovered(1)
	r.Succeeded()
	r.Failed(schema.PersistStage)
	r.ArchiveBytes(1)
	r.ObserveStage(schema.AnalyzeStage, time.Second)
	r.RunFinished(time.Second, false)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile("ignored.prom"))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Succeeded()
	path := filepath.Join(t.TempDir(), "repoharvest.prom")

	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "repoharvest_repositories_succeeded_total 1")
}
