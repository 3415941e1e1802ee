package core

import (
	"log/slog"

	"github.com/huangsam/repoharvest/internal/acquire"
	"github.com/huangsam/repoharvest/internal/analysis"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/discovery"
	"github.com/huangsam/repoharvest/internal/extract"
	"github.com/huangsam/repoharvest/internal/metrics"
	"github.com/huangsam/repoharvest/internal/persist"
	"github.com/huangsam/repoharvest/internal/progress"
	"github.com/huangsam/repoharvest/internal/reaper"
)

// PipelineBuilder assembles a Pipeline from validated configuration.
type PipelineBuilder struct {
	cfg      *contract.Config
	mgr      contract.StoreManager
	logger   *slog.Logger
	pipeline *Pipeline
}

// NewPipelineBuilder is the starting point for building a pipeline.
// mgr may be nil, in which case nothing is cached or tracked.
func NewPipelineBuilder(cfg *contract.Config, mgr contract.StoreManager, logger *slog.Logger) *PipelineBuilder {
	return &PipelineBuilder{
		cfg:    cfg,
		mgr:    mgr,
		logger: logger,
		pipeline: &Pipeline{
			Logger:     logger,
			ScratchDir: cfg.ScratchDir,
			Params:     cfg.Params(),
		},
	}
}

// WithDiscovery sets up paginated search, wrapped by the discovery cache when one is configured.
func (b *PipelineBuilder) WithDiscovery() *PipelineBuilder {
	b.pipeline.Discoverer = newDiscoverer(b.cfg, b.mgr, b.logger)
	return b
}

// WithAcquisition sets up archive download and selective extraction.
func (b *PipelineBuilder) WithAcquisition() *PipelineBuilder {
	prog := progress.NewConfig(b.cfg.Progress, b.cfg.UseColors)
	b.pipeline.Acquirer = &acquire.ArchiveAcquirer{
		ScratchDir: b.cfg.ScratchDir,
		Fetcher:    acquire.NewFetcher(b.cfg.Token, b.cfg.DownloadTimeout, b.cfg.MaxArchiveBytes, prog, b.logger),
		Extractor:  extract.NewExtractor(extract.PolicyFor(b.cfg.PathPolicy, b.cfg.Language), b.logger),
		Logger:     b.logger,
	}
	return b
}

// WithAnalysis sets up the analysis tool and the reduction of its output.
func (b *PipelineBuilder) WithAnalysis(runner contract.AnalysisRunner) *PipelineBuilder {
	b.pipeline.Runner = runner
	b.pipeline.Aggregator = &analysis.CSVAggregator{Logger: b.logger}
	return b
}

// WithStorage sets up the results table, scratch cleanup and run tracking.
func (b *PipelineBuilder) WithStorage() *PipelineBuilder {
	b.pipeline.Sink = persist.NewCSVTable(b.cfg.TablePath)
	b.pipeline.Reaper = reaper.New(b.cfg.ScratchDir, b.logger)
	if b.mgr != nil {
		if store := b.mgr.GetRunStore(); store != nil {
			b.pipeline.RunStore = store
		}
	}
	return b
}

// WithMetrics attaches a metrics recorder.
func (b *PipelineBuilder) WithMetrics(recorder *metrics.Recorder) *PipelineBuilder {
	b.pipeline.Metrics = recorder
	return b
}

// Build returns the assembled pipeline.
func (b *PipelineBuilder) Build() *Pipeline {
	return b.pipeline
}

// newDiscoverer returns the search discoverer, cached when the manager has a discovery store.
func newDiscoverer(cfg *contract.Config, mgr contract.StoreManager, logger *slog.Logger) contract.Discoverer {
	var d contract.Discoverer = discovery.NewPaginatedDiscoverer(cfg, logger)
	if mgr == nil {
		return d
	}
	store := mgr.GetDiscoveryStore()
	if store == nil {
		return d
	}
	return &discovery.CachedDiscoverer{
		Inner:     d,
		Store:     store,
		Predicate: cfg.SearchQuery(),
		TTL:       cfg.DiscoveryTTL,
		Refresh:   cfg.Refresh,
		Logger:    logger,
	}
}
