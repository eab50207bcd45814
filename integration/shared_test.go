//go:build basic || database || integration

package integration

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	// sharedBinaryPath holds the path to a shared benchtrail binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getBenchtrailBinary returns the path to the benchtrail binary, building it once if needed.
func getBenchtrailBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "benchtrail-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binaryPath := filepath.Join(tempDir, "benchtrail")
		buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
		buildCmd.Dir = ".." // project root
		if out, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build benchtrail: %v\n%s", err, out))
		}

		sharedBinaryPath = binaryPath
	})

	return sharedBinaryPath
}

// cliResult is what one benchtrail invocation produced.
type cliResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runBenchtrail runs the binary in dir with stdin and extra environment variables.
// A non-zero exit code is returned in the result, not as a test failure.
func runBenchtrail(t *testing.T, dir string, stdin []byte, env []string, args ...string) cliResult {
	t.Helper()
	cmd := exec.Command(getBenchtrailBinary(), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := cliResult{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("failed to run %s: %v", cmd.String(), err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if res.ExitCode != 0 {
		t.Logf("%s exited with %d\nstdout: %s\nstderr: %s", cmd.String(), res.ExitCode, res.Stdout, res.Stderr)
	}
	return res
}

// customRun builds customSmallerIsBetter output with a single latency metric.
func customRun(value float64) []byte {
	return fmt.Appendf(nil, `[{"name": "latency", "unit": "ms", "value": %g}]`, value)
}

// reportArgs reports run i of a suite with a fully explicit commit identity,
// so no git repository is needed.
func reportArgs(suite string, i int) []string {
	return []string{
		"report", "-",
		"--suite", suite,
		"--tool", "customSmallerIsBetter",
		"--commit", fmt.Sprintf("%040x", i+1),
		"--commit-timestamp", fmt.Sprintf("2024-05-01T%02d:00:00Z", i%24),
		"--commit-author", "CI Bot",
		"--commit-email", "ci@example.com",
		"--color", "no",
	}
}
