// Package acquire downloads repository archives and materializes their source trees.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/progress"
	"github.com/huangsam/repoharvest/schema"
)

// ErrBranchNotFound means neither conventional default branch has an archive.
var ErrBranchNotFound = errors.New("no archive for main or master")

// ErrArchiveTooLarge means the archive exceeded the configured size ceiling.
var ErrArchiveTooLarge = errors.New("archive exceeds size limit")

// HTTPStatusError is a non-success archive response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Fetcher downloads branch archives over HTTP.
type Fetcher struct {
	HTTPClient *http.Client
	Token      string
	MaxBytes   uint64 // 0 disables the ceiling
	Progress   progress.Config
	Logger     *slog.Logger
}

// NewFetcher creates a fetcher with the given overall download timeout.
func NewFetcher(token string, timeout time.Duration, maxBytes uint64, prog progress.Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: timeout},
		Token:      token,
		MaxBytes:   maxBytes,
		Progress:   prog,
		Logger:     logger,
	}
}

// ArchiveURL returns the zip download address of a branch.
func ArchiveURL(repoURL, branch string) string {
	return strings.TrimSuffix(repoURL, "/") + "/archive/refs/heads/" + branch + ".zip"
}

// Fetch downloads the main branch archive of repoURL into dest, retrying
// exactly once with master when main does not exist. It returns the branch used.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, dest string) (string, int64, error) {
	logger := contract.LoggerOrDiscard(f.Logger)

	n, err := f.download(ctx, ArchiveURL(repoURL, schema.DefaultBranch), dest)
	if err == nil {
		return schema.DefaultBranch, n, nil
	}
	if !IsNotFound(err) {
		return "", 0, err
	}

	logger.Info("main branch not found, trying master", "url", repoURL)
	n, err = f.download(ctx, ArchiveURL(repoURL, schema.FallbackBranch), dest)
	if err == nil {
		return schema.FallbackBranch, n, nil
	}
	if IsNotFound(err) {
		return "", 0, fmt.Errorf("%s: %w", repoURL, ErrBranchNotFound)
	}
	return "", 0, err
}

// IsNotFound reports whether err is a 404 archive response.
func IsNotFound(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if f.MaxBytes > 0 && resp.ContentLength > 0 && uint64(resp.ContentLength) > f.MaxBytes {
		return 0, fmt.Errorf("%w: %s > %s", ErrArchiveTooLarge,
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(f.MaxBytes))
	}

	n, err := f.save(resp, dest)
	if err != nil {
		_ = os.Remove(dest)
		return 0, err
	}
	contract.LoggerOrDiscard(f.Logger).Info("downloaded archive", "url", url, "size", humanize.Bytes(uint64(n)))
	return n, nil
}

func (f *Fetcher) save(resp *http.Response, dest string) (n int64, err error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, int64(f.MaxBytes)+1)
	}
	bar := progress.NewDownloadBar(f.Progress, resp.ContentLength, "downloading")
	defer progress.Finish(bar)

	n, err = io.Copy(progress.Tee(out, bar), body)
	if err != nil {
		return n, fmt.Errorf("write archive: %w", err)
	}
	if f.MaxBytes > 0 && uint64(n) > f.MaxBytes {
		return n, fmt.Errorf("%w: more than %s", ErrArchiveTooLarge, humanize.Bytes(f.MaxBytes))
	}
	return n, nil
}
