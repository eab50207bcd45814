package cmd

import (
	"errors"
	"fmt"

	"github.com/huangsam/benchtrail/core"
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/internal/iostore"
	"github.com/huangsam/benchtrail/internal/outwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configSetup validates the configuration without opening the history store.
// Migrations and clearing work on the backend directly.
func configSetup(cmd *cobra.Command) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if err := contract.ProcessPolicyOnly(cfg, input); err != nil {
		return err
	}
	l, err := contract.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// configSetupWrapper wraps configSetup to provide PreRunE for backend maintenance commands.
func configSetupWrapper(cmd *cobra.Command, _ []string) error {
	return configSetup(cmd)
}

// historyCmd groups the history management commands.
//
// Note: history subcommands never resolve a commit through git. Only list,
// status, prune and export open the store; migrate and clear talk to the
// backend directly.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the benchmark history",
	Long: `Inspect and maintain the per-suite benchmark history.

Supported backends: file (default), SQLite, MySQL, PostgreSQL, or None (in-memory)

Subcommands:
  list    - Show the stored runs of a suite
  status  - Show backend details and per-suite counts
  prune   - Apply the retention policy of each suite
  export  - Write the history to Parquet files
  migrate - Run database migrations for SQL backends
  clear   - Remove all stored history

Examples:
  # Runs of the api suite from the last two weeks
  benchtrail history list --suite api --since "2 weeks ago"

  # Backend overview
  benchtrail history status`,
}

// historyListCmd lists the runs of one suite.
var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored runs of a suite",
	Long: `List the runs of a suite in append order, oldest first.

Unreadable runs are listed too, so a damaged record is visible instead of
silently shrinking the baseline.

Examples:
  benchtrail history list --suite api
  benchtrail history list --suite api --output json --output-file api.json`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteHistoryList(rootCtx, cfg, storeManager, outwriter.NewOutWriter())
	},
}

// historyStatusCmd shows backend and per-suite details.
var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display history backend details and suite counts",
	Long: `Show the configured backend, whether it is reachable, and for every suite the
number of runs, unreadable runs, metrics and the first and last run times.

Examples:
  benchtrail history status
  BENCHTRAIL_HISTORY_BACKEND=sqlite benchtrail history status --output csv`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteHistoryStatus(rootCtx, cfg, storeManager, outwriter.NewOutWriter())
	},
}

// historyPruneCmd applies retention policies.
var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop runs outside the retention policy",
	Long: `Apply the retention policy (--max-runs, --max-age or the per-suite values in
the config file) to one suite, or to every suite when --suite is empty.

Suites without a retention policy are left untouched.

Examples:
  # Keep the latest 200 runs of every suite
  benchtrail history prune --max-runs 200

  # Drop runs of the api suite older than 90 days
  benchtrail history prune --suite api --max-age "90 days"`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return core.ExecuteHistoryPrune(rootCtx, cfg, storeManager, cmd.OutOrStdout())
	},
}

// historyExportCmd exports the history to Parquet.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the history to Parquet files",
	Long: `Write the runs and the individual measurements of one suite (or of all suites)
to two Parquet files for offline analysis:

  <output-file>.runs.parquet
  <output-file>.measurements.parquet

Examples:
  benchtrail history export --output-file history
  benchtrail history export --suite api --output-file /tmp/api`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := storeManager.GetHistoryStore()
		if store == nil {
			return errors.New("history store is not initialized")
		}
		var suites []string
		if cfg.Suite != "" {
			suites = []string{cfg.Suite}
		}
		return iostore.ExecuteHistoryExport(rootCtx, store, cfg.OutputFile, suites, cmd.OutOrStdout())
	},
}

// historyMigrateCmd runs database migrations.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations for the history table",
	Long: `Bring the history table of a SQL backend to the latest schema version, or to
a specific one with --target-version.

Examples:
  benchtrail history migrate --history-backend sqlite
  benchtrail history migrate --history-backend postgresql \
    --history-db-connect "host=localhost user=ci dbname=bench" --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: configSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return iostore.MigrateHistory(cfg.HistoryBackend, cfg.HistoryDBConnect, viper.GetInt("target-version"), cmd.OutOrStdout())
	},
}

// historyClearCmd removes all history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored benchmark history",
	Long: `Delete the whole history of the configured backend.

For file: deletes the history document
For SQLite: deletes the database file
For MySQL/PostgreSQL: drops the history table

Examples:
  benchtrail history clear
  BENCHTRAIL_HISTORY_BACKEND=mysql BENCHTRAIL_HISTORY_DB_CONNECT="..." benchtrail history clear`,
	Args:    cobra.NoArgs,
	PreRunE: configSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := iostore.ClearHistory(cfg.HistoryBackend, cfg.HistoryFile, cfg.HistoryDBConnect); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared successfully.")
		return nil
	},
}
