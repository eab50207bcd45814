// Package cmd defines the command-line interface for benchtrail.
package cmd

import (
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)
	historyCmd.AddCommand(historyClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("suite", "s", "", "Benchmark suite the run belongs to")
	rootCmd.PersistentFlags().String("history-backend", string(schema.FileBackend), "History backend: file or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-file", contract.DefaultHistoryFile, "Path of the JSON history document (file backend, .js adds a chart-page prefix)")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for sqlite/mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("repo-url", "", "Repository URL recorded in a new history document")
	rootCmd.PersistentFlags().String("io-timeout", contract.DefaultIOTimeout.String(), "Deadline of every history store operation")
	rootCmd.PersistentFlags().Int("retry-attempts", contract.DefaultRetryAttempts, "Attempts for writes that hit a concurrent writer")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level of component logs on stderr: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", contract.TextLogFormat, "Log format of component logs: text or json")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	// Detection policy; per-suite overrides live under `suites:` in the config file
	rootCmd.PersistentFlags().String("tool", "", "Benchmark tool of the suite, which selects the parser and direction (e.g., go, customSmallerIsBetter)")
	rootCmd.PersistentFlags().Int("window-size", contract.DefaultWindowSize, "Number of previous runs forming the baseline")
	rootCmd.PersistentFlags().Int("warm-up", contract.DefaultWarmUp, "Leading samples of a repeated benchmark to discard")
	rootCmd.PersistentFlags().Float64("percentile", contract.DefaultPercentile, "Percentile used to reduce repeated samples")
	rootCmd.PersistentFlags().Float64("baseline-percentile", contract.DefaultBaselinePercentile, "Percentile of the historical values used as baseline")
	rootCmd.PersistentFlags().Float64("threshold", contract.DefaultThreshold, "Regression threshold in percent")
	rootCmd.PersistentFlags().Int("min-baseline", contract.DefaultMinBaseline, "Minimum baseline runs before a metric can pass or be flagged")
	rootCmd.PersistentFlags().Int("max-runs", 0, "Retention: keep only the most recent N runs (0 = unlimited)")
	rootCmd.PersistentFlags().String("max-age", "", "Retention: ignore runs older than this (e.g., '90 days', '2160h')")
	rootCmd.PersistentFlags().Bool("inconclusive-blocking", false, "Exit with code 2 when the verdict is inconclusive")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Flags of reportCmd; bound to Viper when the command runs
	addCommitFlags(reportCmd)
	reportCmd.Flags().String("repo-path", ".", "Path of the Git repository used to resolve the commit identity")
	reportCmd.Flags().String("commit-ref", "", "Git reference to resolve the commit identity from (defaults to HEAD)")
	reportCmd.Flags().String("commit-timestamp", "", "Commit timestamp in RFC3339")
	reportCmd.Flags().String("commit-author", "", "Commit author name")
	reportCmd.Flags().String("commit-email", "", "Commit author email")
	reportCmd.Flags().String("commit-url", "", "Browsable URL of the commit")
	reportCmd.Flags().String("commit-message", "", "Commit subject")
	reportCmd.Flags().Bool("force", false, "Overwrite the stored run of an already reported commit")

	// Flags of evaluateCmd
	addCommitFlags(evaluateCmd)

	// Flags of historyListCmd
	historyListCmd.Flags().String("since", "", "Only list runs at or after this time (RFC3339 or '2 weeks ago')")

	// Flags of historyMigrateCmd
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
}

// addCommitFlags adds the flags shared by the commands reporting on one commit.
func addCommitFlags(cmd *cobra.Command) {
	cmd.Flags().String("commit", "", "Commit hash of the run")
	cmd.Flags().String("metrics-file", "", "Also write the verdict as Prometheus text to this path")
}
