// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteRun prints the summary of a pipeline run using the configured output format.
func (ow *OutWriter) WriteRun(summary schema.RunSummary, cfg *contract.Config, duration time.Duration) error {
	return WriteRunSummary(summary, cfg, duration)
}

// WriteDiscovery prints discovered repositories and their statistics using the configured output format.
func (ow *OutWriter) WriteDiscovery(repos []schema.RepositoryDescriptor, cfg *contract.Config, duration time.Duration) error {
	return WriteDiscoveryResults(repos, cfg, duration)
}

// WriteMerge prints the statistics of a table merge.
func (ow *OutWriter) WriteMerge(summary schema.MergeSummary, cfg *contract.Config, duration time.Duration) error {
	return WriteMergeSummary(summary, cfg, duration)
}
