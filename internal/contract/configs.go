package contract

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/benchtrail/schema"
)

// Default values for configuration.
const (
	DefaultWindowSize         = 20
	DefaultWarmUp             = 1
	DefaultPercentile         = 90.0
	DefaultBaselinePercentile = 50.0
	DefaultThreshold          = 10.0
	DefaultMinBaseline        = 3
	DefaultIOTimeout          = 30 * time.Second
	DefaultRetryAttempts      = 5
	DefaultPrecision          = 1
	MaxWindowSize             = 10000
)

// SuitePolicy holds every knob that may differ between benchmark suites.
type SuitePolicy struct {
	Tool                 schema.Tool
	WindowSize           int
	WarmUp               int
	Percentile           float64
	BaselinePercentile   float64
	ThresholdPct         float64
	MinBaseline          int
	Retention            schema.RetentionPolicy
	InconclusiveBlocking bool
}

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	Suite  string
	Policy SuitePolicy // resolved for Suite

	// Suites holds the fully resolved policy of every suite named in the config file.
	Suites map[string]SuitePolicy

	HistoryBackend   schema.StoreBackend
	HistoryDBConnect string // Please use env var as this is plaintext
	HistoryFile      string
	RepoURL          string

	IOTimeout     time.Duration
	RetryAttempts int

	RepoPath  string
	Commit    schema.CommitIdentity // explicit identity from flags, may be partial
	CommitRef string
	Force     bool
	Since     time.Time

	Output      schema.OutputMode
	OutputFile  string
	Precision   int
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool
	LogLevel    string
	LogFormat   string
	MetricsFile string

	basePolicy SuitePolicy
}

// SuiteRawInput holds per-suite overrides from the YAML config file.
// Pointer fields distinguish "not set" from zero values.
type SuiteRawInput struct {
	Tool                 *string  `mapstructure:"tool"`
	WindowSize           *int     `mapstructure:"window-size"`
	WarmUp               *int     `mapstructure:"warm-up"`
	Percentile           *float64 `mapstructure:"percentile"`
	BaselinePercentile   *float64 `mapstructure:"baseline-percentile"`
	Threshold            *float64 `mapstructure:"threshold"`
	MinBaseline          *int     `mapstructure:"min-baseline"`
	MaxRuns              *int     `mapstructure:"max-runs"`
	MaxAge               *string  `mapstructure:"max-age"`
	InconclusiveBlocking *bool    `mapstructure:"inconclusive-blocking"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Suite            string `mapstructure:"suite"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`
	HistoryFile      string `mapstructure:"history-file"`
	RepoURL          string `mapstructure:"repo-url"`
	IOTimeout        string `mapstructure:"io-timeout"`
	RetryAttempts    int    `mapstructure:"retry-attempts"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Precision        int    `mapstructure:"precision"`
	Width            int    `mapstructure:"width"`
	Color            string `mapstructure:"color"`
	LogLevel         string `mapstructure:"log-level"`
	LogFormat        string `mapstructure:"log-format"`
	RepoPath         string `mapstructure:"repo-path"`

	// --- Detection policy flags (report, evaluate) ---
	Tool                 string  `mapstructure:"tool"`
	WindowSize           int     `mapstructure:"window-size"`
	WarmUp               int     `mapstructure:"warm-up"`
	Percentile           float64 `mapstructure:"percentile"`
	BaselinePercentile   float64 `mapstructure:"baseline-percentile"`
	Threshold            float64 `mapstructure:"threshold"`
	MinBaseline          int     `mapstructure:"min-baseline"`
	MaxRuns              int     `mapstructure:"max-runs"`
	MaxAge               string  `mapstructure:"max-age"`
	InconclusiveBlocking bool    `mapstructure:"inconclusive-blocking"`
	MetricsFile          string  `mapstructure:"metrics-file"`

	// --- Commit identity flags (report, evaluate) ---
	Commit          string `mapstructure:"commit"`
	CommitRef       string `mapstructure:"commit-ref"`
	CommitTimestamp string `mapstructure:"commit-timestamp"`
	CommitAuthor    string `mapstructure:"commit-author"`
	CommitEmail     string `mapstructure:"commit-email"`
	CommitURL       string `mapstructure:"commit-url"`
	CommitMessage   string `mapstructure:"commit-message"`
	Force           bool   `mapstructure:"force"`

	// --- Fields from historyCmd flags ---
	Since string `mapstructure:"since"`

	// --- Per-suite overrides from config file ---
	Suites map[string]SuiteRawInput `mapstructure:"suites"`
}

// DefaultRawInput returns the raw input that the CLI flag defaults produce.
func DefaultRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		HistoryBackend:     string(schema.FileBackend),
		HistoryFile:        DefaultHistoryFile,
		IOTimeout:          DefaultIOTimeout.String(),
		RetryAttempts:      DefaultRetryAttempts,
		Output:             string(schema.TextOut),
		Precision:          DefaultPrecision,
		Color:              "yes",
		RepoPath:           ".",
		WindowSize:         DefaultWindowSize,
		WarmUp:             DefaultWarmUp,
		Percentile:         DefaultPercentile,
		BaselinePercentile: DefaultBaselinePercentile,
		Threshold:          DefaultThreshold,
		MinBaseline:        DefaultMinBaseline,
	}
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Suites != nil {
		clone.Suites = make(map[string]SuitePolicy, len(c.Suites))
		maps.Copy(clone.Suites, c.Suites)
	}
	return &clone
}

// CloneForSuite returns a copy of the Config targeting another suite.
func (c *Config) CloneForSuite(suite string) *Config {
	clone := c.Clone()
	clone.Suite = suite
	clone.Policy = c.SettingsFor(suite)
	return clone
}

// SettingsFor returns the policy of a suite, falling back to the global policy.
func (c *Config) SettingsFor(suite string) SuitePolicy {
	if p, ok := c.Suites[suite]; ok {
		return p
	}
	if suite == c.Suite {
		return c.Policy
	}
	return c.basePolicy
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processPolicies(cfg, input); err != nil {
		return err
	}
	if err := processCommitIdentity(ctx, cfg, client, input); err != nil {
		return err
	}
	return nil
}

// ProcessPolicyOnly validates store and policy inputs without touching git.
// Commands that never append (history, mcp) use this path.
func ProcessPolicyOnly(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return processPolicies(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.StoreBackend, connStr string) error {
	switch backend {
	case schema.FileBackend, schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("history-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the history backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	backend := strings.ToLower(strings.TrimSpace(input.HistoryBackend))
	if backend == "" {
		backend = string(schema.FileBackend)
	}
	cfg.HistoryBackend = schema.StoreBackend(backend)
	if _, ok := schema.ValidStoreBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be file, sqlite, mysql, postgresql, none", input.HistoryBackend)
	}

	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}

	cfg.HistoryFile = strings.TrimSpace(input.HistoryFile)
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile
	}
	if cfg.HistoryBackend == schema.SQLiteBackend && cfg.HistoryDBConnect == "" {
		cfg.HistoryDBConnect = GetHistoryDBFilePath()
	}
	cfg.RepoURL = strings.TrimSpace(input.RepoURL)
	return nil
}

// validateSimpleInputs processes and validates output, logging and I/O fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.MetricsFile = strings.TrimSpace(input.MetricsFile)
	cfg.LogLevel = input.LogLevel
	cfg.LogFormat = input.LogFormat
	cfg.Force = input.Force

	cfg.Suite = strings.TrimSpace(input.Suite)

	colors := true
	if input.Color != "" {
		parsed, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		colors = parsed
	}
	cfg.UseColors = colors

	precision := input.Precision
	if precision == 0 {
		precision = DefaultPrecision
	}
	if precision < 1 || precision > 4 {
		return fmt.Errorf("precision must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = precision

	output := strings.ToLower(input.Output)
	if output == "" {
		output = string(schema.TextOut)
	}
	cfg.Output = schema.OutputMode(output)
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	cfg.IOTimeout = DefaultIOTimeout
	if input.IOTimeout != "" {
		d, err := ParseLookbackDuration(input.IOTimeout)
		if err != nil {
			return fmt.Errorf("invalid --io-timeout: %w", err)
		}
		cfg.IOTimeout = d
	}

	if input.RetryAttempts < 0 {
		return fmt.Errorf("retry-attempts cannot be negative (received %d)", input.RetryAttempts)
	}
	cfg.RetryAttempts = input.RetryAttempts

	if input.Since != "" {
		since, err := ParseTimeBound(input.Since, time.Now())
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		cfg.Since = since
	}
	return nil
}

// processPolicies builds the global policy from flags and layers each suite's overrides on top.
func processPolicies(cfg *Config, input *ConfigRawInput) error {
	base := SuitePolicy{
		WindowSize:           input.WindowSize,
		WarmUp:               input.WarmUp,
		Percentile:           input.Percentile,
		BaselinePercentile:   input.BaselinePercentile,
		ThresholdPct:         input.Threshold,
		MinBaseline:          input.MinBaseline,
		InconclusiveBlocking: input.InconclusiveBlocking,
		Retention: schema.RetentionPolicy{
			Version: schema.RetentionPolicyVersion,
			MaxRuns: input.MaxRuns,
		},
	}
	if input.Tool != "" {
		tool, ok := schema.ParseTool(input.Tool)
		if !ok {
			return fmt.Errorf("invalid tool '%s': %w", input.Tool, schema.ErrUnknownTool)
		}
		base.Tool = tool
	}
	if input.MaxAge != "" {
		age, err := ParseLookbackDuration(input.MaxAge)
		if err != nil {
			return fmt.Errorf("invalid --max-age: %w", err)
		}
		base.Retention.MaxAge = age
	}
	if err := validatePolicy("", base); err != nil {
		return err
	}
	cfg.basePolicy = base

	cfg.Suites = make(map[string]SuitePolicy, len(input.Suites))
	for name, raw := range input.Suites {
		policy, err := applySuiteOverrides(base, raw)
		if err != nil {
			return fmt.Errorf("suite %q: %w", name, err)
		}
		if err := validatePolicy(name, policy); err != nil {
			return err
		}
		cfg.Suites[name] = policy
	}

	cfg.Policy = base
	if p, ok := cfg.Suites[cfg.Suite]; ok {
		cfg.Policy = p
	}
	return nil
}

// applySuiteOverrides returns base with every field set in raw replaced.
func applySuiteOverrides(base SuitePolicy, raw SuiteRawInput) (SuitePolicy, error) {
	p := base
	if raw.Tool != nil {
		tool, ok := schema.ParseTool(*raw.Tool)
		if !ok {
			return p, fmt.Errorf("invalid tool '%s': %w", *raw.Tool, schema.ErrUnknownTool)
		}
		p.Tool = tool
	}
	if raw.WindowSize != nil {
		p.WindowSize = *raw.WindowSize
	}
	if raw.WarmUp != nil {
		p.WarmUp = *raw.WarmUp
	}
	if raw.Percentile != nil {
		p.Percentile = *raw.Percentile
	}
	if raw.BaselinePercentile != nil {
		p.BaselinePercentile = *raw.BaselinePercentile
	}
	if raw.Threshold != nil {
		p.ThresholdPct = *raw.Threshold
	}
	if raw.MinBaseline != nil {
		p.MinBaseline = *raw.MinBaseline
	}
	if raw.MaxRuns != nil {
		p.Retention.MaxRuns = *raw.MaxRuns
	}
	if raw.MaxAge != nil {
		age, err := ParseLookbackDuration(*raw.MaxAge)
		if err != nil {
			return p, fmt.Errorf("invalid max-age: %w", err)
		}
		p.Retention.MaxAge = age
	}
	if raw.InconclusiveBlocking != nil {
		p.InconclusiveBlocking = *raw.InconclusiveBlocking
	}
	return p, nil
}

// validatePolicy checks the numeric ranges of a policy.
func validatePolicy(suite string, p SuitePolicy) error {
	where := ""
	if suite != "" {
		where = fmt.Sprintf(" for suite %q", suite)
	}
	if p.WindowSize < 1 || p.WindowSize > MaxWindowSize {
		return fmt.Errorf("window-size%s must be between 1 and %d (received %d)", where, MaxWindowSize, p.WindowSize)
	}
	if p.WarmUp < 0 {
		return fmt.Errorf("warm-up%s cannot be negative (received %d)", where, p.WarmUp)
	}
	if p.Percentile <= 0 || p.Percentile > 100 {
		return fmt.Errorf("percentile%s must be in (0, 100] (received %.2f)", where, p.Percentile)
	}
	if p.BaselinePercentile <= 0 || p.BaselinePercentile > 100 {
		return fmt.Errorf("baseline-percentile%s must be in (0, 100] (received %.2f)", where, p.BaselinePercentile)
	}
	if p.ThresholdPct < 0 {
		return fmt.Errorf("threshold%s cannot be negative (received %.2f)", where, p.ThresholdPct)
	}
	if p.MinBaseline < 1 {
		return fmt.Errorf("min-baseline%s must be at least 1 (received %d)", where, p.MinBaseline)
	}
	if p.MinBaseline > p.WindowSize {
		return fmt.Errorf("min-baseline%s (%d) cannot exceed window-size (%d)", where, p.MinBaseline, p.WindowSize)
	}
	if p.Retention.MaxRuns < 0 {
		return fmt.Errorf("max-runs%s cannot be negative (received %d)", where, p.Retention.MaxRuns)
	}
	return nil
}

// processCommitIdentity fills the commit identity from explicit flags, asking git
// for whatever was not provided.
func processCommitIdentity(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	repoPath := input.RepoPath
	if repoPath == "" {
		repoPath = "."
	}
	absRepoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(absRepoPath); statErr == nil && !info.IsDir() {
		absRepoPath = filepath.Dir(absRepoPath)
	}
	cfg.RepoPath = filepath.Clean(absRepoPath)
	cfg.CommitRef = strings.TrimSpace(input.CommitRef)

	cfg.Commit = schema.CommitIdentity{
		Hash:      strings.TrimSpace(input.Commit),
		Timestamp: strings.TrimSpace(input.CommitTimestamp),
		Author:    schema.Identity{Name: input.CommitAuthor, Email: input.CommitEmail},
		URL:       input.CommitURL,
		Message:   input.CommitMessage,
	}
	cfg.Commit.Committer = cfg.Commit.Author

	// Fully specified on the command line, as in CI where the checkout may be shallow.
	if cfg.Commit.Hash != "" && cfg.Commit.Timestamp != "" {
		return nil
	}
	if client == nil {
		return nil
	}

	ref := cfg.CommitRef
	if ref == "" {
		ref = cfg.Commit.Hash
	}
	id, err := client.GetCommitIdentity(ctx, cfg.RepoPath, ref)
	if err != nil {
		if cfg.Commit.Hash != "" {
			// evaluate only needs the hash
			return nil
		}
		return fmt.Errorf("cannot resolve commit identity: %w", err)
	}
	cfg.Commit = mergeIdentity(cfg.Commit, id)
	return nil
}

// mergeIdentity keeps explicit values and fills the blanks from git.
func mergeIdentity(explicit, fromGit schema.CommitIdentity) schema.CommitIdentity {
	out := fromGit
	if explicit.Hash != "" {
		out.Hash = explicit.Hash
	}
	if explicit.Timestamp != "" {
		out.Timestamp = explicit.Timestamp
	}
	if explicit.Author.Name != "" {
		out.Author.Name = explicit.Author.Name
	}
	if explicit.Author.Email != "" {
		out.Author.Email = explicit.Author.Email
	}
	if explicit.URL != "" {
		out.URL = explicit.URL
	}
	if explicit.Message != "" {
		out.Message = explicit.Message
	}
	return out
}
