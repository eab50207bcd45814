package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/internal/iostore"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// storeManager is the global history store manager instance.
var storeManager contract.StoreManager = iostore.Manager

// logger is the structured logger handed to the core components.
var logger logrus.FieldLogger = contract.DiscardLogger()

// exitCode is what the process ends with once the command returns.
var exitCode = schema.ExitPass

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "benchtrail",
	Short: "Keep benchmark history per suite and flag performance regressions in CI.",
	Long: `Benchtrail stores every CI benchmark run in an append-only history and compares
each new run against a percentile baseline of the previous ones.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".benchtrail")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("BENCHTRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("history-backend", schema.FileBackend)
	viper.SetDefault("history-file", contract.DefaultHistoryFile)
	viper.SetDefault("io-timeout", contract.DefaultIOTimeout.String())
	viper.SetDefault("retry-attempts", contract.DefaultRetryAttempts)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("color", "yes")
	viper.SetDefault("window-size", contract.DefaultWindowSize)
	viper.SetDefault("warm-up", contract.DefaultWarmUp)
	viper.SetDefault("percentile", contract.DefaultPercentile)
	viper.SetDefault("baseline-percentile", contract.DefaultBaselinePercentile)
	viper.SetDefault("threshold", contract.DefaultThreshold)
	viper.SetDefault("min-baseline", contract.DefaultMinBaseline)
}

// loadConfig binds the command's own flags, reads the config file and
// unmarshals every source into input.
func loadConfig(cmd *cobra.Command) error {
	if err := bindCommandFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return nil
}

// bindCommandFlags binds only the local flags of the running command, so
// commands declaring the same flag name do not shadow each other.
func bindCommandFlags(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil && rootCmd.PersistentFlags().Lookup(f.Name) == nil {
			err = viper.BindPFlag(f.Name, f)
		}
	})
	return err
}

// sharedSetup validates the configuration, resolving the commit identity
// through git, and opens the history store.
func sharedSetup(ctx context.Context, cmd *cobra.Command, _ []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if err := contract.ProcessAndValidate(ctx, cfg, contract.NewLocalGitClient(), input); err != nil {
		return err
	}
	return openStore(ctx)
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// storeSetup is the setup of commands that never append: no git lookups.
func storeSetup(ctx context.Context, cmd *cobra.Command) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if err := contract.ProcessPolicyOnly(cfg, input); err != nil {
		return err
	}
	cfg.Commit = schema.CommitIdentity{Hash: strings.TrimSpace(input.Commit)}
	return openStore(ctx)
}

// storeSetupWrapper wraps storeSetup to provide PreRunE for read-only commands.
func storeSetupWrapper(cmd *cobra.Command, _ []string) error {
	return storeSetup(rootCtx, cmd)
}

// openStore applies the output and logging settings and initializes the store.
func openStore(ctx context.Context) error {
	color.NoColor = !cfg.UseColors

	l, err := contract.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = l

	if err := iostore.InitStore(ctx, iostore.OptionsFromConfig(cfg, logger)); err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer iostore.CloseStore()
	if err := rootCmd.Execute(); err != nil {
		contract.LogWarn("benchtrail", err)
		return schema.ExitError
	}
	return exitCode
}

// SetStoreManager sets the global store manager.
func SetStoreManager(mgr contract.StoreManager) {
	storeManager = mgr
}
