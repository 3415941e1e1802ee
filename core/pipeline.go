package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/huangsam/repoharvest/internal/acquire"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/metrics"
	"github.com/huangsam/repoharvest/schema"
)

// StageError records the pipeline stage in which a repository failed.
type StageError struct {
	Stage schema.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageOf returns the stage carried by err, or fallback when none is attached.
func stageOf(err error, fallback schema.Stage) schema.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return fallback
}

// Pipeline processes discovered repositories one at a time.
// RunStore and Metrics are optional.
type Pipeline struct {
	Discoverer contract.Discoverer
	Acquirer   contract.Acquirer
	Runner     contract.AnalysisRunner
	Aggregator contract.Aggregator
	Sink       contract.RecordSink
	Reaper     contract.Reaper
	RunStore   contract.RunStore
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	ScratchDir string
	Params     map[string]any
	Now        func() time.Time
}

// LocalID returns the scratch identifier of the i-th repository (zero-based).
func LocalID(i int) string {
	return fmt.Sprintf("r%04d", i+1)
}

// Run discovers up to limit repositories and processes them in order.
// Temporary storage is released on every exit path. Cancelling ctx stops the
// run before the next repository and marks the summary interrupted.
func (p *Pipeline) Run(ctx context.Context, limit int) (summary schema.RunSummary, err error) {
	logger := contract.LoggerOrDiscard(p.Logger)
	start := p.now()
	summary.TablePath = p.Sink.Path()
	summary.RunID = -1

	defer func() {
		p.Reaper.ReleaseAll()
		summary.Duration = p.now().Sub(start)
		p.endRun(summary)
		p.Metrics.RunFinished(summary.Duration, summary.Interrupted)
	}()

	if err := p.Sink.Reset(); err != nil {
		return summary, fmt.Errorf("reset results table: %w", err)
	}
	summary.RunID = p.beginRun(start)

	discoverStart := p.now()
	repos, derr := p.Discoverer.Discover(ctx, limit)
	p.Metrics.ObserveStage(schema.DiscoverStage, p.now().Sub(discoverStart))
	if derr != nil {
		p.Metrics.Failed(schema.DiscoverStage)
		logger.Error("discovery stopped early", "collected", len(repos), "error", derr)
	}
	summary.Discovered = len(repos)
	p.Metrics.Discovered(len(repos))
	logger.Info("discovery finished", "repositories", len(repos))

	for i, repo := range repos {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		logger.Info(fmt.Sprintf("[%d/%d] %s", i+1, len(repos), repo.FullName()))

		outcome := p.processRepository(ctx, repo, LocalID(i))
		if outcome.Err != nil && ctx.Err() != nil {
			logger.Warn("interrupted", "repo", repo.FullName(), "stage", outcome.Stage)
			summary.Interrupted = true
			break
		}
		summary.Outcomes = append(summary.Outcomes, outcome)

		if outcome.Succeeded() {
			summary.Succeeded++
			p.Metrics.Succeeded()
			p.recordRepository(summary.RunID, outcome)
			logger.Info("analyzed", "repo", repo.FullName(), "classes", outcome.Metrics.TotalClasses, "duration", outcome.Duration)
			continue
		}
		summary.Failed++
		p.Metrics.Failed(outcome.Stage)
		p.recordFailure(summary.RunID, outcome)
		logger.Warn("skipped", "repo", repo.FullName(), "stage", outcome.Stage, "error", outcome.Err)
	}

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	logger.Info("run finished", "succeeded", summary.Succeeded, "discovered", summary.Discovered, "interrupted", summary.Interrupted)
	return summary, nil
}

// processRepository takes one repository through every stage and appends its row.
// The repository's scratch storage is released before returning, even on panic.
func (p *Pipeline) processRepository(ctx context.Context, repo schema.RepositoryDescriptor, localID string) (outcome schema.RepositoryOutcome) {
	start := p.now()
	outcome = schema.RepositoryOutcome{Repository: repo, LocalID: localID, Stage: schema.AcquireStage}

	defer p.Reaper.ReleaseRepository(filepath.Join(p.ScratchDir, localID))
	defer func() {
		if r := recover(); r != nil {
			contract.LoggerOrDiscard(p.Logger).Error("recovered panic", "repo", repo.FullName(), "panic", r, "stack", string(debug.Stack()))
			outcome.Err = &StageError{Stage: outcome.Stage, Err: fmt.Errorf("panic: %v", r)}
		}
		if outcome.Err != nil {
			outcome.Stage = stageOf(outcome.Err, outcome.Stage)
			outcome.Error = outcome.Err.Error()
		}
		outcome.Duration = p.now().Sub(start)
	}()

	tree, err := p.timed(schema.AcquireStage, func() (schema.SourceTree, error) {
		return p.Acquirer.Acquire(ctx, repo, localID)
	})
	if err != nil {
		stage := schema.AcquireStage
		if errors.Is(err, acquire.ErrExtract) {
			stage = schema.ExtractStage
		}
		outcome.Err = &StageError{Stage: stage, Err: err}
		return outcome
	}
	outcome.Branch = tree.Branch
	p.Metrics.ArchiveBytes(tree.ArchiveBytes)

	outcome.Stage = schema.AnalyzeStage
	analyzeStart := p.now()
	outputDir, err := p.Runner.RunAnalysis(ctx, tree.Dir)
	p.Metrics.ObserveStage(schema.AnalyzeStage, p.now().Sub(analyzeStart))
	if err != nil {
		outcome.Err = &StageError{Stage: schema.AnalyzeStage, Err: err}
		return outcome
	}

	outcome.Stage = schema.AggregateStage
	outcome.Metrics = p.Aggregator.Aggregate(outputDir)

	outcome.Stage = schema.PersistStage
	record := schema.CombinedRecord{RepositoryDescriptor: repo, QualityMetrics: outcome.Metrics}
	if err := p.Sink.Append(record); err != nil {
		outcome.Err = &StageError{Stage: schema.PersistStage, Err: err}
		return outcome
	}

	outcome.Stage = schema.DoneStage
	return outcome
}

// timed runs the acquisition step and records how long it took.
func (p *Pipeline) timed(stage schema.Stage, fn func() (schema.SourceTree, error)) (schema.SourceTree, error) {
	start := p.now()
	tree, err := fn()
	p.Metrics.ObserveStage(stage, p.now().Sub(start))
	return tree, err
}

// beginRun opens a run in the run store. Returns -1 when tracking is unavailable.
func (p *Pipeline) beginRun(start time.Time) int64 {
	if p.RunStore == nil {
		return -1
	}
	id, err := p.RunStore.BeginRun(start, p.Params)
	if err != nil {
		contract.LoggerOrDiscard(p.Logger).Warn("failed to begin run tracking", "error", err)
		return -1
	}
	return id
}

func (p *Pipeline) endRun(summary schema.RunSummary) {
	if p.RunStore == nil || summary.RunID < 0 {
		return
	}
	if err := p.RunStore.EndRun(summary.RunID, p.now(), summary.Discovered, summary.Succeeded, summary.Interrupted); err != nil {
		contract.LoggerOrDiscard(p.Logger).Warn("failed to end run tracking", "run", summary.RunID, "error", err)
	}
}

func (p *Pipeline) recordRepository(runID int64, outcome schema.RepositoryOutcome) {
	if p.RunStore == nil || runID < 0 {
		return
	}
	record := schema.CombinedRecord{RepositoryDescriptor: outcome.Repository, QualityMetrics: outcome.Metrics}
	if err := p.RunStore.RecordRepository(runID, p.now(), record); err != nil {
		contract.LoggerOrDiscard(p.Logger).Warn("failed to record repository", "repo", outcome.Repository.FullName(), "error", err)
	}
}

func (p *Pipeline) recordFailure(runID int64, outcome schema.RepositoryOutcome) {
	if p.RunStore == nil || runID < 0 {
		return
	}
	if err := p.RunStore.RecordFailure(runID, p.now(), outcome.Repository, outcome.Stage, outcome.Error); err != nil {
		contract.LoggerOrDiscard(p.Logger).Warn("failed to record failure", "repo", outcome.Repository.FullName(), "error", err)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
