package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/repoharvest/internal/acquire"
	"github.com/huangsam/repoharvest/internal/analysis"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/iocache"
	"github.com/huangsam/repoharvest/internal/metrics"
	"github.com/huangsam/repoharvest/internal/persist"
	"github.com/huangsam/repoharvest/internal/reaper"
	"github.com/huangsam/repoharvest/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const classHeader = "file,class,type,cbo,wmc,dit,noc,rfc,lcom,loc\n"

// aggregatorFunc adapts a function to contract.Aggregator.
type aggregatorFunc func(string) schema.QualityMetrics

func (f aggregatorFunc) Aggregate(dir string) schema.QualityMetrics { return f(dir) }

// failingSink accepts resets but rejects every row.
type failingSink struct{ path string }

func (s failingSink) Reset() error                       { return nil }
func (s failingSink) Append(schema.CombinedRecord) error { return errors.New("disk full") }
func (s failingSink) Path() string                       { return s.path }

type fixture struct {
	scratch    string
	table      string
	discoverer *contract.MockDiscoverer
	acquirer   *contract.MockAcquirer
	runner     *contract.MockAnalysisRunner
	pipeline   *Pipeline
}

func newFixture(t *testing.T, repos ...schema.RepositoryDescriptor) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		scratch:    filepath.Join(root, "scratch"),
		table:      filepath.Join(root, "results.csv"),
		discoverer: &contract.MockDiscoverer{},
		acquirer:   &contract.MockAcquirer{},
		runner:     &contract.MockAnalysisRunner{},
	}
	f.discoverer.On("Discover", mock.Anything, len(repos)).Return(repos, nil)
	f.pipeline = &Pipeline{
		Discoverer: f.discoverer,
		Acquirer:   f.acquirer,
		Runner:     f.runner,
		Aggregator: &analysis.CSVAggregator{},
		Sink:       persist.NewCSVTable(f.table),
		Reaper:     reaper.New(f.scratch, nil),
		Metrics:    metrics.NewRecorder(),
		ScratchDir: f.scratch,
	}
	return f
}

// expectTree makes the acquirer materialize a one-file tree for repo.
func (f *fixture) expectTree(t *testing.T, repo schema.RepositoryDescriptor, localID string) string {
	t.Helper()
	dir := filepath.Join(f.scratch, localID)
	f.acquirer.On("Acquire", mock.Anything, repo, localID).
		Run(func(mock.Arguments) {
			require.NoError(t, os.MkdirAll(dir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "A.java"), []byte("class A {}"), 0o644))
		}).
		Return(schema.SourceTree{Dir: dir, Branch: "main", ArchiveBytes: 128}, nil)
	return dir
}

// expectAnalysis makes the runner write a class table for dir.
func (f *fixture) expectAnalysis(t *testing.T, dir, classRows string) {
	t.Helper()
	out := analysis.OutputDir(dir)
	f.runner.On("RunAnalysis", mock.Anything, dir).
		Run(func(mock.Arguments) {
			require.NoError(t, os.MkdirAll(out, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(out, analysis.ClassTable), []byte(classHeader+classRows), 0o644))
		}).
		Return(out, nil)
}

func repo(owner, name string, stars int) schema.RepositoryDescriptor {
	return schema.RepositoryDescriptor{
		Name:            name,
		Owner:           owner,
		URL:             "https://github.com/" + owner + "/" + name,
		Stars:           stars,
		PrimaryLanguage: "Java",
	}
}

func TestPipelineRun_OneSuccessOneFailure(t *testing.T) {
	repo1 := repo("apache", "commons-lang", 2500)
	repo2 := repo("google", "guava", 2000)
	f := newFixture(t, repo1, repo2)

	dir1 := f.expectTree(t, repo1, "r0001")
	f.expectAnalysis(t, dir1,
		"A.java,A,class,1,1,1,0,1,1,10\n"+
			"B.java,B,class,2,1,1,0,1,1,10\n"+
			"C.java,C,class,3,1,1,0,1,1,10\n")

	dir2 := f.expectTree(t, repo2, "r0002")
	f.runner.On("RunAnalysis", mock.Anything, dir2).Return("", &analysis.ExitError{Code: 1, Stderr: "parse error"})

	summary, err := f.pipeline.Run(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Interrupted)
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, schema.DoneStage, summary.Outcomes[0].Stage)
	assert.Equal(t, "main", summary.Outcomes[0].Branch)
	assert.Equal(t, schema.AnalyzeStage, summary.Outcomes[1].Stage)
	assert.Contains(t, summary.Outcomes[1].Error, "parse error")

	records, err := persist.ReadTable(f.table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, repo1.URL, records[0].URL)
	assert.Equal(t, 3, records[0].TotalClasses)
	assert.InDelta(t, 6.0, records[0].CBO, 1e-9)

	assert.NoDirExists(t, f.scratch)

	expected := `
# HELP repoharvest_repositories_succeeded_total Repositories analyzed and persisted
# TYPE repoharvest_repositories_succeeded_total counter
repoharvest_repositories_succeeded_total 1
# HELP repoharvest_repository_failures_total Repositories skipped, by failing stage
# TYPE repoharvest_repository_failures_total counter
repoharvest_repository_failures_total{stage="analyze"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.pipeline.Metrics.Registry(), strings.NewReader(expected),
		"repoharvest_repositories_succeeded_total", "repoharvest_repository_failures_total"))
	f.acquirer.AssertExpectations(t)
	f.runner.AssertExpectations(t)
}

func TestPipelineRun_ZeroLimit(t *testing.T) {
	f := newFixture(t)

	summary, err := f.pipeline.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Zero(t, summary.Discovered)
	assert.Empty(t, summary.Outcomes)
	assert.NoFileExists(t, f.table)
	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineRun_ResetsPreviousTable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.table, []byte("stale,table\n1,2\n"), 0o644))

	_, err := f.pipeline.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.NoFileExists(t, f.table)
}

func TestPipelineRun_AcquireAndExtractFailures(t *testing.T) {
	repo1 := repo("a", "missing-branch", 10)
	repo2 := repo("b", "odd-layout", 9)
	f := newFixture(t, repo1, repo2)

	f.acquirer.On("Acquire", mock.Anything, repo1, "r0001").
		Return(schema.SourceTree{}, acquire.ErrBranchNotFound)
	f.acquirer.On("Acquire", mock.Anything, repo2, "r0002").
		Run(func(mock.Arguments) {
			// a half-materialized tree must still be reaped
			require.NoError(t, os.MkdirAll(filepath.Join(f.scratch, "r0002.unpack", "junk"), 0o755))
		}).
		Return(schema.SourceTree{}, fmt.Errorf("%w: %w", acquire.ErrExtract, errors.New("no root")))

	summary, err := f.pipeline.Run(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, schema.AcquireStage, summary.Outcomes[0].Stage)
	assert.ErrorIs(t, summary.Outcomes[0].Err, acquire.ErrBranchNotFound)
	assert.Equal(t, schema.ExtractStage, summary.Outcomes[1].Stage)
	assert.Equal(t, 2, summary.Failed)
	assert.NoFileExists(t, f.table)
	assert.NoDirExists(t, f.scratch)
	f.runner.AssertNotCalled(t, "RunAnalysis", mock.Anything, mock.Anything)
}

func TestPipelineRun_InterruptMidAnalysis(t *testing.T) {
	repo1 := repo("apache", "commons-lang", 2500)
	repo2 := repo("google", "guava", 2000)
	f := newFixture(t, repo1, repo2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir1 := f.expectTree(t, repo1, "r0001")
	f.runner.On("RunAnalysis", mock.Anything, dir1).
		Run(func(mock.Arguments) {
			require.NoError(t, os.MkdirAll(analysis.OutputDir(dir1), 0o755))
			cancel()
		}).
		Return("", context.Canceled)

	summary, err := f.pipeline.Run(ctx, 2)
	require.NoError(t, err)

	assert.True(t, summary.Interrupted)
	assert.Empty(t, summary.Outcomes)
	assert.Zero(t, summary.Succeeded)
	assert.NoFileExists(t, f.table)
	assert.NoDirExists(t, f.scratch)
	f.acquirer.AssertNumberOfCalls(t, "Acquire", 1)
}

func TestPipelineRun_RecoversPanic(t *testing.T) {
	repo1 := repo("a", "explodes", 10)
	repo2 := repo("b", "fine", 9)
	f := newFixture(t, repo1, repo2)

	dir1 := f.expectTree(t, repo1, "r0001")
	f.runner.On("RunAnalysis", mock.Anything, dir1).Return(analysis.OutputDir(dir1), nil)
	dir2 := f.expectTree(t, repo2, "r0002")
	f.runner.On("RunAnalysis", mock.Anything, dir2).Return(analysis.OutputDir(dir2), nil)

	f.pipeline.Aggregator = aggregatorFunc(func(dir string) schema.QualityMetrics {
		if dir == analysis.OutputDir(dir1) {
			panic("index out of range")
		}
		return schema.QualityMetrics{TotalClasses: 1, CBO: 2}
	})

	summary, err := f.pipeline.Run(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, schema.AggregateStage, summary.Outcomes[0].Stage)
	assert.Contains(t, summary.Outcomes[0].Error, "panic: index out of range")
	assert.True(t, summary.Outcomes[1].Succeeded())

	records, err := persist.ReadTable(f.table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, repo2.URL, records[0].URL)
	assert.NoDirExists(t, f.scratch)
}

func TestPipelineRun_PersistFault(t *testing.T) {
	repo1 := repo("apache", "commons-lang", 2500)
	f := newFixture(t, repo1)
	f.pipeline.Sink = failingSink{path: f.table}

	dir1 := f.expectTree(t, repo1, "r0001")
	f.expectAnalysis(t, dir1, "A.java,A,class,1,1,1,0,1,1,10\n")

	summary, err := f.pipeline.Run(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, schema.PersistStage, summary.Outcomes[0].Stage)
	assert.False(t, summary.Outcomes[0].Succeeded())
	assert.Equal(t, 1, summary.Failed)
	assert.NoDirExists(t, f.scratch)
}

func TestPipelineRun_PartialDiscovery(t *testing.T) {
	repo1 := repo("apache", "commons-lang", 2500)
	f := newFixture(t)
	f.discoverer = &contract.MockDiscoverer{}
	f.discoverer.On("Discover", mock.Anything, 5).
		Return([]schema.RepositoryDescriptor{repo1}, errors.New("502 bad gateway"))
	f.pipeline.Discoverer = f.discoverer

	dir1 := f.expectTree(t, repo1, "r0001")
	f.expectAnalysis(t, dir1, "A.java,A,class,1,1,1,0,1,1,10\n")

	summary, err := f.pipeline.Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestPipelineRun_TracksRunInStore(t *testing.T) {
	repo1 := repo("apache", "commons-lang", 2500)
	repo2 := repo("google", "guava", 2000)
	f := newFixture(t, repo1, repo2)

	store := &iocache.MockRunStore{}
	store.On("BeginRun", mock.Anything, mock.Anything).Return(int64(7), nil)
	store.On("RecordRepository", int64(7), mock.Anything, mock.MatchedBy(func(r schema.CombinedRecord) bool {
		return r.URL == repo1.URL && r.TotalClasses == 1
	})).Return(nil)
	store.On("RecordFailure", int64(7), mock.Anything, repo2, schema.AcquireStage, mock.Anything).Return(nil)
	store.On("EndRun", int64(7), mock.Anything, 2, 1, false).Return(nil)
	f.pipeline.RunStore = store
	f.pipeline.Params = map[string]any{"language": "java"}

	dir1 := f.expectTree(t, repo1, "r0001")
	f.expectAnalysis(t, dir1, "A.java,A,class,1,1,1,0,1,1,10\n")
	f.acquirer.On("Acquire", mock.Anything, repo2, "r0002").
		Return(schema.SourceTree{}, &acquire.HTTPStatusError{URL: repo2.URL, StatusCode: 500})

	summary, err := f.pipeline.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), summary.RunID)
	store.AssertExpectations(t)
}

func TestPipelineRun_RunStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	store := &iocache.MockRunStore{}
	store.On("BeginRun", mock.Anything, mock.Anything).Return(int64(0), errors.New("locked"))
	f.pipeline.RunStore = store

	summary, err := f.pipeline.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), summary.RunID)
	store.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: schema.AnalyzeStage, Err: analysis.ErrTimeout}
	assert.ErrorIs(t, err, analysis.ErrTimeout)
	assert.Equal(t, schema.AnalyzeStage, stageOf(fmt.Errorf("wrapped: %w", err), schema.AcquireStage))
	assert.Equal(t, schema.AcquireStage, stageOf(errors.New("plain"), schema.AcquireStage))
}

func TestLocalID(t *testing.T) {
	assert.Equal(t, "r0001", LocalID(0))
	assert.Equal(t, "r0042", LocalID(41))
}
