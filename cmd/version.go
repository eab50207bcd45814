package cmd

import (
	"runtime"

	"github.com/huangsam/benchtrail/schema"
	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of benchtrail.",
	Long: `Display version information including build details.

Shows:
- Release version
- Git commit hash
- Build timestamp
- Go runtime version
- Retention policy version

Useful when a CI job and a developer machine disagree about a verdict.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("benchtrail CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
		cmd.Printf("  Retention policy: v%d\n", schema.RetentionPolicyVersion)
	},
}
