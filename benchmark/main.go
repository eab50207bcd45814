// Package main measures how long the benchtrail CLI takes as a suite's history grows.
// It seeds a fresh history per backend with a synthetic run for every commit,
// then times report, evaluate and history list at each checkpoint, discarding
// the first run of every command as cold.
//
// The timings are written in the customSmallerIsBetter format, so benchtrail can
// track its own performance:
//
//	go run benchmark/main.go /tmp/bt-bench > bench.json
//	benchtrail report --suite benchtrail-cli --tool customSmallerIsBetter bench.json
//
// Prerequisites:
// - benchtrail binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Scratch directory for the seeded histories
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the average warm time of one command at one history size.
type BenchmarkResult struct {
	Backend  string
	Command  string
	Runs     int
	ColdTime time.Duration
	WarmTime time.Duration
	Failed   bool
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Repetitions int
	Backends    []string
	Checkpoints []int
	Metrics     int
}

// customEntry is one element of the customSmallerIsBetter format.
type customEntry struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
	Extra string  `json:"extra,omitempty"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     2 * time.Minute,
		Repetitions: 4,
		Backends:    []string{"file", "sqlite"},
		Checkpoints: []int{10, 100, 500},
		Metrics:     20,
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Fprintf(os.Stderr, "Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)
	printSummary(results)

	if err := writeResults(os.Stdout, results); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write results: %v\n", err)
		os.Exit(1)
	}
}

// checkPrerequisites verifies that the benchtrail binary exists and the work dir is usable.
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("benchtrail"); err != nil {
		return fmt.Errorf("benchtrail binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks seeds every backend up to each checkpoint and times the commands there.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Fprintf(os.Stderr, "Starting benchmark: %d backends, checkpoints %v, %d metrics, %d repetitions\n",
		len(config.Backends), config.Checkpoints, config.Metrics, config.Repetitions)

	for _, backend := range config.Backends {
		dir := filepath.Join(config.WorkDir, backend)
		if err := os.RemoveAll(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reset %s: %v\n", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", backend, err)
			continue
		}
		base := backendArgs(backend, dir)

		seeded := 0
		for _, target := range config.Checkpoints {
			fmt.Fprintf(os.Stderr, "Seeding %s history to %d runs\n", backend, target)
			for ; seeded < target; seeded++ {
				args := append(reportArgs(seeded), base...)
				if _, err := runOnce(config, dir, syntheticRun(config.Metrics, seeded), args); err != nil {
					fmt.Fprintf(os.Stderr, "  seeding failed at run %d: %v\n", seeded, err)
					break
				}
			}

			results = append(results,
				timeCommand(config, backend, "report", target, dir, append(reportArgs(target), append(base, "--force")...), syntheticRun(config.Metrics, target)),
				timeCommand(config, backend, "evaluate", target, dir, append([]string{"evaluate", "--suite", "bench"}, base...), nil),
				timeCommand(config, backend, "history-list", target, dir, append([]string{"history", "list", "--suite", "bench", "--output", "json"}, base...), nil),
			)
		}
	}

	return results
}

// timeCommand runs one command several times and averages all but the first run.
func timeCommand(config BenchmarkConfig, backend, command string, runs int, dir string, args []string, stdin []byte) BenchmarkResult {
	fmt.Fprintf(os.Stderr, "  %s on %s with %d runs\n", command, backend, runs)

	result := BenchmarkResult{Backend: backend, Command: command, Runs: runs}
	var times []time.Duration
	for range config.Repetitions {
		d, err := runOnce(config, dir, stdin, args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "    failed: %v\n", err)
			continue
		}
		times = append(times, d)
	}
	if len(times) < 2 {
		result.Failed = true
		return result
	}

	result.ColdTime = times[0]
	var sum time.Duration
	for _, t := range times[1:] {
		sum += t
	}
	result.WarmTime = sum / time.Duration(len(times)-1)
	return result
}

// runOnce executes benchtrail once. Verdict exit codes 1 and 2 count as success.
func runOnce(config BenchmarkConfig, dir string, stdin []byte, args []string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "benchtrail", args...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() < 3 {
			return elapsed, nil
		}
		return 0, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return elapsed, nil
}

// backendArgs points a command at the scratch history of one backend.
func backendArgs(backend, dir string) []string {
	args := []string{"--history-backend", backend, "--color", "no"}
	switch backend {
	case "file":
		args = append(args, "--history-file", filepath.Join(dir, "history.json"))
	case "sqlite":
		args = append(args, "--history-db-connect", filepath.Join(dir, "history.db"))
	}
	return args
}

// reportArgs builds a report invocation for the synthetic commit at position i.
func reportArgs(i int) []string {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	return []string{
		"report", "-",
		"--suite", "bench",
		"--tool", "customSmallerIsBetter",
		"--commit", fmt.Sprintf("%040x", i+1),
		"--commit-timestamp", at.Format(time.RFC3339),
		"--commit-author", "bench",
	}
}

// syntheticRun produces a stable run with a small wobble per commit.
func syntheticRun(metrics, i int) []byte {
	entries := make([]customEntry, metrics)
	for m := range entries {
		entries[m] = customEntry{
			Name:  fmt.Sprintf("metric-%02d", m),
			Unit:  "ms",
			Value: 100 + float64((i*7+m*3)%5),
		}
	}
	data, _ := json.Marshal(entries)
	return data
}

// writeResults prints the warm averages as customSmallerIsBetter JSON.
func writeResults(out *os.File, results []BenchmarkResult) error {
	entries := make([]customEntry, 0, len(results))
	for _, r := range results {
		if r.Failed {
			continue
		}
		entries = append(entries, customEntry{
			Name:  fmt.Sprintf("%s/%s/%d", r.Backend, r.Command, r.Runs),
			Unit:  "ms",
			Value: float64(r.WarmTime.Microseconds()) / 1000,
			Extra: fmt.Sprintf("cold %.3fms", float64(r.ColdTime.Microseconds())/1000),
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// printSummary displays the final benchmark results summary on stderr.
func printSummary(results []BenchmarkResult) {
	fmt.Fprintf(os.Stderr, "Benchmark complete\n")
	for _, r := range results {
		if r.Failed {
			fmt.Fprintf(os.Stderr, "  %-7s %-13s %5d runs: FAILED\n", r.Backend, r.Command, r.Runs)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %-7s %-13s %5d runs: Cold: %v, Warm: %v\n", r.Backend, r.Command, r.Runs, r.ColdTime, r.WarmTime)
	}
}
