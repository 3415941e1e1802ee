// Package reaper removes temporary repository storage.
package reaper

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// ScratchReaper removes per-repository trees and the whole scratch area.
type ScratchReaper struct {
	ScratchDir string
	Logger     *slog.Logger

	mu       sync.Mutex
	released int
}

var _ contract.Reaper = &ScratchReaper{}

// New creates a reaper for scratchDir.
func New(scratchDir string, logger *slog.Logger) *ScratchReaper {
	return &ScratchReaper{ScratchDir: scratchDir, Logger: logger}
}

// ReleaseRepository removes dir and its sibling artifacts. Missing paths are not an error.
func (r *ScratchReaper) ReleaseRepository(dir string) {
	if dir == "" {
		return
	}
	dir = strings.TrimRight(dir, `/\`)
	if !r.within(dir) {
		contract.LoggerOrDiscard(r.Logger).Warn("refusing to remove path outside scratch area", "dir", dir)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
	r.remove(dir)
	for _, suffix := range schema.ArtifactSuffixes {
		r.remove(dir + suffix)
	}
}

// ReleaseAll removes the scratch area.
func (r *ScratchReaper) ReleaseAll() {
	if r.ScratchDir == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(r.ScratchDir)
	contract.LoggerOrDiscard(r.Logger).Debug("scratch area removed", "dir", r.ScratchDir)
}

// Released returns how many repository releases were requested.
func (r *ScratchReaper) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *ScratchReaper) remove(path string) {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		contract.LoggerOrDiscard(r.Logger).Warn("failed to remove temporary storage", "path", path, "error", err)
		return
	}
	contract.LoggerOrDiscard(r.Logger).Debug("removed temporary storage", "path", path)
}

// within reports whether dir lies strictly inside the scratch area.
func (r *ScratchReaper) within(dir string) bool {
	if r.ScratchDir == "" {
		return false
	}
	rel, err := filepath.Rel(r.ScratchDir, dir)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
