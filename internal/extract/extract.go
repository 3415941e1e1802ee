package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/klauspost/compress/zip"
)

// Result counts what an extraction wrote and dropped.
type Result struct {
	Extracted int
	Skipped   int
}

// Extractor unpacks archives entry by entry under a PathPolicy.
type Extractor struct {
	Policy     PathPolicy
	Strategies []Strategy
	Logger     *slog.Logger
}

// NewExtractor creates an extractor with the default resolution strategies.
func NewExtractor(policy PathPolicy, logger *slog.Logger) *Extractor {
	return &Extractor{Policy: policy, Strategies: DefaultStrategies, Logger: logger}
}

// Extract writes every admissible entry of archivePath under dest.
// Rejected entries are counted and logged at debug level; they never fail the extraction.
func (e *Extractor) Extract(ctx context.Context, archivePath, dest string) (Result, error) {
	logger := contract.LoggerOrDiscard(e.Logger)
	var res Result

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return res, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(dest)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return res, fmt.Errorf("create extraction dir: %w", err)
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		target, ok := safeJoin(root, f.Name)
		if !ok {
			logger.Warn("rejecting archive entry outside destination", "entry", f.Name)
			res.Skipped++
			continue
		}
		isDir := f.FileInfo().IsDir()
		if reason := e.Policy.SkipReason(f.Name, target, isDir); reason != "" {
			logger.Debug("skipping archive entry", "entry", f.Name, "reason", reason)
			res.Skipped++
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			logger.Debug("skipping archive entry", "entry", f.Name, "reason", "symlink")
			res.Skipped++
			continue
		}

		if isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				logger.Debug("skipping archive entry", "entry", f.Name, "error", err)
				res.Skipped++
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			logger.Debug("skipping archive entry", "entry", f.Name, "error", err)
			res.Skipped++
			continue
		}
		res.Extracted++
	}
	return res, nil
}

// ExtractRoot extracts archivePath into staging, resolves the repository root
// among the top-level directories and moves it to target.
func (e *Extractor) ExtractRoot(ctx context.Context, archivePath, staging, target string, id RepoIdentity) (Result, error) {
	res, err := e.Extract(ctx, archivePath, staging)
	if err != nil {
		return res, err
	}
	candidates, err := ListDirectories(staging)
	if err != nil {
		return res, err
	}
	root, err := Resolve(candidates, id, e.Strategies...)
	if err != nil {
		return res, err
	}
	if err := os.RemoveAll(target); err != nil {
		return res, err
	}
	if err := os.Rename(filepath.Join(staging, root), target); err != nil {
		return res, fmt.Errorf("rename %s: %w", root, err)
	}
	contract.LoggerOrDiscard(e.Logger).Debug("resolved archive root", "dir", root, "target", target)
	return res, nil
}

// ListDirectories returns the names of the directories directly under dir, sorted.
func ListDirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

// safeJoin joins name under root and reports whether the result stays inside root.
func safeJoin(root, name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", false
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target == root {
		return target, true
	}
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func writeEntry(f *zip.File, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Join(err, os.Remove(target))
	}
	return nil
}
