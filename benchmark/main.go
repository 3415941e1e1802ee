// Package main provides a performance benchmarking tool for the discovery cache of the repoharvest CLI.
// It measures `repoharvest discover` across search sizes and languages, running each search multiple
// times, treating the first successful cached run as cold and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - repoharvest binary installed and available in PATH
// - GITHUB_TOKEN set in the environment
//
// Usage: go run benchmark/main.go [output-dir]
//
//	output-dir: Directory receiving the results CSV (default /tmp)
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Language    string
	Limit       int
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	OutputDir   string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
	Languages   []string
	Limits      []int
}

func main() {
	outputDir := "/tmp"
	if len(os.Args) == 2 {
		outputDir = os.Args[1]
	} else if len(os.Args) > 2 {
		fmt.Printf("Usage: %s [output-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		OutputDir:   outputDir,
		Timeout:     10 * time.Minute,
		NoCacheRuns: 2,
		CacheRuns:   4,
		Languages:   []string{"java", "kotlin"},
		Limits:      []int{20, 100, 500},
	}

	if err := checkPrerequisites(); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("repoharvest", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results := runBenchmarks(config)

	if err := saveResults(config.OutputDir, results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the binary and a token are available
func checkPrerequisites() error {
	if _, err := exec.LookPath("repoharvest"); err != nil {
		return errors.New("repoharvest binary not found in PATH")
	}
	if os.Getenv("GITHUB_TOKEN") == "" {
		return errors.New("GITHUB_TOKEN is not set")
	}
	return nil
}

// runBenchmarks executes all benchmark searches
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d languages, %d sizes, %v timeout, no-cache: %d runs, cache: %d runs\n",
		len(config.Languages), len(config.Limits), config.Timeout, config.NoCacheRuns, config.CacheRuns)

	for _, language := range config.Languages {
		for _, limit := range config.Limits {
			results = append(results, runBenchmarkSuite(config, language, limit))
		}
	}
	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for one search
func runBenchmarkSuite(config BenchmarkConfig, language string, limit int) BenchmarkResult {
	fmt.Printf("Running discovery of %d %s repositories\n", limit, language)

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, language, limit, cacheBackend, numRuns)
		if len(times) == 0 {
			return cold, "TIMEOUT"
		}
		var sum float64
		for _, t := range times {
			sum += t
		}
		return cold, fmt.Sprintf("%.3fs", sum/float64(len(times)))
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Language:    language,
		Limit:       limit,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a discovery multiple times with the given cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, language string, limit int, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{
		"discover",
		"--language", language,
		"--limit", strconv.Itoa(limit),
		"--cache-backend", cacheBackend,
		"--discovery-ttl", "0s",
		"--log-level", "error",
	}

	var times []float64
	for range numRuns {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		start := time.Now()
		output, err := exec.CommandContext(ctx, "repoharvest", args...).CombinedOutput()
		if err == nil && isSuccess(output) {
			times = append(times, time.Since(start).Seconds())
		}
		cancel()
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return coldTime, warmTimes
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	return strings.Contains(string(output), "Discovered ") && strings.Contains(string(output), "(query: ")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(outputDir string, results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("repoharvest_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"language", "limit", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Language, strconv.Itoa(result.Limit), result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s %4d: No-cache: %s, Cold: %s, Warm: %s\n", result.Language, result.Limit, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
