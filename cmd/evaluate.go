package cmd

import (
	"github.com/huangsam/benchtrail/core"
	"github.com/huangsam/benchtrail/internal/outwriter"
	"github.com/spf13/cobra"
)

// evaluateCmd re-runs the regression check on a stored run.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Re-evaluate a stored run without appending anything",
	Long: `Compare an already stored run against the runs appended before it, using the
current detection policy. Useful to try another threshold or window size on
real history before changing CI.

Exit codes are the same as for 'benchtrail report'.

Examples:
  # Latest run of the suite
  benchtrail evaluate --suite api

  # A specific run with a looser threshold
  benchtrail evaluate --suite api --commit 4f2a9c1 --threshold 15`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		code, err := core.ExecuteEvaluate(rootCtx, cfg, storeManager, outwriter.NewOutWriter(), logger)
		exitCode = code
		return err
	},
}
