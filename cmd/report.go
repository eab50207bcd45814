package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/huangsam/benchtrail/core"
	"github.com/huangsam/benchtrail/internal/outwriter"
	"github.com/spf13/cobra"
)

// reportCmd is the regression check run by CI after every benchmark job.
var reportCmd = &cobra.Command{
	Use:   "report <run-output.json|->",
	Short: "Store a benchmark run and check it for regressions (CI gate)",
	Long: `Parse the output of a benchmark run, append it to the suite's history and
compare every metric against a percentile baseline of the previous runs.

The commit identity comes from --commit* flags, falling back to the Git
repository at --repo-path. Reporting a commit that is already stored evaluates
the stored run again without appending it; --force overwrites it instead.

Exit codes:
  0  pass, or inconclusive when --inconclusive-blocking is off
  1  at least one metric is worse than the threshold
  2  inconclusive (too little history) with --inconclusive-blocking
  3  the run could not be evaluated (bad input, store or config error, timeout)

Examples:
  # Go benchmarks, five repetitions each
  go test -bench . -count 5 | benchtrail report --suite api --tool go -

  # Custom JSON output with an explicit commit, as on a shallow CI checkout
  benchtrail report --suite parser --tool customSmallerIsBetter \
    --commit "$GITHUB_SHA" --commit-timestamp "$COMMIT_TIME" results.json

  # Stricter gate for one run
  benchtrail report --suite api --threshold 5 --inconclusive-blocking out.json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := readRunOutput(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		code, err := core.ExecuteReport(rootCtx, cfg, storeManager, outwriter.NewOutWriter(), output, logger)
		exitCode = code
		return err
	},
}

// readRunOutput reads the run output from a file, or from stdin for "-".
func readRunOutput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read run output from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run output: %w", err)
	}
	return data, nil
}
