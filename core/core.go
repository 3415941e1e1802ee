// Package core wires the harvest pipeline and the command entry points.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/repoharvest/internal/analysis"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/metrics"
	"github.com/huangsam/repoharvest/internal/outwriter"
	"github.com/huangsam/repoharvest/internal/persist"
)

// ExecutorFunc defines the function signature for the commands that talk to the search API.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// ExecuteRun runs the full harvest and prints the run summary.
// It serves as the main entry point for the 'run' command.
func ExecuteRun(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	logger := contract.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	runner := analysis.NewCKRunner(cfg, logger)
	if err := runner.CheckTool(); err != nil {
		logger.Warn("analysis tool unavailable, repositories will fail at the analyze stage", "error", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	pipeline := NewPipelineBuilder(cfg, mgr, logger).
		WithDiscovery().
		WithAcquisition().
		WithAnalysis(runner).
		WithStorage().
		WithMetrics(recorder).
		Build()

	summary, err := pipeline.Run(ctx, cfg.Limit)
	if err != nil {
		return err
	}
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("failed to write metrics file", "path", cfg.MetricsFile, "error", err)
	}
	return outwriter.NewOutWriter().WriteRun(summary, cfg, time.Since(start))
}

// ExecuteDiscover runs discovery only and prints the repositories with summary statistics.
// It serves as the main entry point for the 'discover' command.
func ExecuteDiscover(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	logger := contract.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := newDiscoverer(cfg, mgr, logger).Discover(ctx, cfg.Limit)
	if err != nil {
		if len(repos) == 0 {
			return fmt.Errorf("discovery failed: %w", err)
		}
		logger.Warn("discovery stopped early, writing partial results", "collected", len(repos), "error", err)
	}
	return outwriter.NewOutWriter().WriteDiscovery(repos, cfg, time.Since(start))
}

// ExecuteMerge combines two results tables into cfg.OutputFile and prints merge statistics.
// It serves as the main entry point for the 'merge' command.
func ExecuteMerge(ctx context.Context, cfg *contract.Config, firstPath, secondPath string) error {
	start := time.Now()
	if cfg.OutputFile == "" {
		return errors.New("--output-file is required for merge command")
	}

	first, err := persist.ReadTable(firstPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", firstPath, err)
	}
	second, err := persist.ReadTable(secondPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", secondPath, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	merged, summary := persist.Merge(first, second)
	if err := persist.WriteTable(cfg.OutputFile, merged); err != nil {
		return fmt.Errorf("failed to write merged table: %w", err)
	}
	summary.OutputPath = cfg.OutputFile
	return outwriter.NewOutWriter().WriteMerge(summary, cfg, time.Since(start))
}
