package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/extract"
	"github.com/huangsam/repoharvest/schema"
)

// ErrExtract marks failures that happened while materializing the archive.
var ErrExtract = errors.New("extraction failed")

// ArchiveAcquirer clears the scratch area, downloads an archive and extracts it.
type ArchiveAcquirer struct {
	ScratchDir string
	Fetcher    *Fetcher
	Extractor  *extract.Extractor
	Logger     *slog.Logger
}

var _ contract.Acquirer = &ArchiveAcquirer{}

// Acquire materializes repo under <scratch>/<localID>.
// On failure nothing belonging to the repository is left under the scratch area.
func (a *ArchiveAcquirer) Acquire(ctx context.Context, repo schema.RepositoryDescriptor, localID string) (tree schema.SourceTree, err error) {
	logger := contract.LoggerOrDiscard(a.Logger)
	if err := ResetDir(a.ScratchDir); err != nil {
		return tree, fmt.Errorf("prepare scratch area: %w", err)
	}

	target := filepath.Join(a.ScratchDir, localID)
	archive := target + schema.ArchiveSuffix
	staging := target + schema.StagingSuffix
	defer func() {
		_ = os.Remove(archive)
		_ = os.RemoveAll(staging)
		if err != nil {
			_ = os.RemoveAll(target)
		}
	}()

	branch, size, err := a.Fetcher.Fetch(ctx, repo.URL, archive)
	if err != nil {
		return tree, err
	}

	res, err := a.Extractor.ExtractRoot(ctx, archive, staging, target, extract.RepoIdentity{Name: repo.Name, Branch: branch})
	if err != nil {
		return tree, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	logger.Debug("extracted archive", "repo", repo.FullName(), "files", res.Extracted, "skipped", res.Skipped)

	return schema.SourceTree{
		Dir:          target,
		Branch:       branch,
		ArchiveBytes: size,
		Extracted:    res.Extracted,
		Skipped:      res.Skipped,
	}, nil
}

// ResetDir removes dir and recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
