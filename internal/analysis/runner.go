// Package analysis runs the CK metrics tool and reduces its output.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// ErrToolMissing means the analysis jar or the java binary could not be found.
var ErrToolMissing = errors.New("analysis tool not found")

// ErrTimeout means the analysis exceeded its wall-clock limit.
var ErrTimeout = errors.New("analysis timed out")

// stderrTail bounds how much tool output is kept on failure.
const stderrTail = 1024

// ExitError is a non-zero exit of the analysis tool.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("analysis tool exited with code %d", e.Code)
	}
	return fmt.Sprintf("analysis tool exited with code %d: %s", e.Code, e.Stderr)
}

// CKRunner invokes the CK jar through a java binary.
type CKRunner struct {
	JavaBin string
	JarPath string
	Timeout time.Duration
	Logger  *slog.Logger
}

var _ contract.AnalysisRunner = &CKRunner{}

// NewCKRunner creates a runner from validated configuration.
func NewCKRunner(cfg *contract.Config, logger *slog.Logger) *CKRunner {
	return &CKRunner{
		JavaBin: cfg.JavaBin,
		JarPath: cfg.CKJar,
		Timeout: cfg.AnalysisTimeout,
		Logger:  logger,
	}
}

// OutputDir returns where the tool writes its tables for sourceDir.
func OutputDir(sourceDir string) string {
	return strings.TrimRight(sourceDir, `/\`) + schema.AnalysisOutputSuffix
}

// Args returns the tool arguments: source dir, recurse into jars, no file cap,
// variable and field metrics, and the output prefix.
func (r *CKRunner) Args(sourceDir, outputDir string) []string {
	return []string{"-jar", r.JarPath, sourceDir, "true", "0", "true", outputDir + string(os.PathSeparator)}
}

// CheckTool verifies the jar and the java binary exist without running anything.
func (r *CKRunner) CheckTool() error {
	if _, err := os.Stat(r.JarPath); err != nil {
		return fmt.Errorf("%w: jar %s: %w", ErrToolMissing, r.JarPath, err)
	}
	if _, err := exec.LookPath(r.JavaBin); err != nil {
		return fmt.Errorf("%w: %w", ErrToolMissing, err)
	}
	return nil
}

// RunAnalysis runs the tool on sourceDir and returns its output directory.
// The output directory is removed when the run fails.
func (r *CKRunner) RunAnalysis(ctx context.Context, sourceDir string) (_ string, err error) {
	if err := r.CheckTool(); err != nil {
		return "", err
	}
	logger := contract.LoggerOrDiscard(r.Logger)

	outputDir := OutputDir(sourceDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(outputDir)
		}
	}()

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.JavaBin, r.Args(sourceDir, outputDir)...)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	logger.Debug("running analysis", "bin", r.JavaBin, "source", sourceDir)
	runErr := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case runErr == nil:
		logger.Debug("analysis finished", "elapsed", elapsed.Round(time.Millisecond))
		return outputDir, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return "", &ExitError{Code: exitErr.ExitCode(), Stderr: tail(stderr.String())}
	}
	return "", fmt.Errorf("run analysis: %w", runErr)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		return "..." + s[len(s)-stderrTail:]
	}
	return s
}
