package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/repoharvest/schema"
)

// Outcome label constants.
const (
	SucceededValue   = "OK"
	FailedValue      = "Failed"
	InterruptedValue = "Interrupted"
)

// Color variables for console output.
var (
	SucceededColor   = color.New(color.FgGreen, color.Bold) // succeededColor marks a persisted repository.
	FailedColor      = color.New(color.FgRed, color.Bold)   // failedColor marks a skipped repository.
	InterruptedColor = color.New(color.FgYellow)            // interruptedColor marks a cancelled run.
)

// GetPlainLabel returns a plain text label for a repository outcome.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(o schema.RepositoryOutcome) string {
	if o.Succeeded() {
		return SucceededValue
	}
	return fmt.Sprintf("%s (%s)", FailedValue, o.Stage)
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(o schema.RepositoryOutcome) string {
	text := GetPlainLabel(o)
	if o.Succeeded() {
		return SucceededColor.Sprint(text)
	}
	return FailedColor.Sprint(text)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for discovery caching.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".repoharvest_cache.db"
	}
	return filepath.Join(homeDir, ".repoharvest_cache.db")
}

// GetRunDBFilePath returns the path to the SQLite DB file for run tracking.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".repoharvest_runs.db"
	}
	return filepath.Join(homeDir, ".repoharvest_runs.db")
}

// Truncate shortens s to maxWidth runes with an ellipsis suffix.
// Requires maxWidth > 3 so the ellipsis leaves room for content.
func Truncate(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
