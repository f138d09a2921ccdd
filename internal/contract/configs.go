package contract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/kernscore/schema"
)

// Default values for configuration.
const (
	DefaultRepoPath     = "linux-kernel"
	DefaultOutputDir    = "data"
	DefaultCompany      = "all"
	DefaultMaxCommits   = "all"
	DefaultWorkers      = 1
	DefaultTimeoutSecs  = 300
	DefaultMaxRetries   = 3
	MaxRetriesLimit     = 10
	DefaultResultLimit  = 10
	MaxResultLimit      = 1000
	DefaultRepairWorker = 1
)

// Config holds the runtime configuration for a run.
// This struct remains the "final, validated" config.
type Config struct {
	RepoPath         string
	VersionRange     string
	CompanyFilter    string // git --author pattern, empty means all authors
	ChineseCompanies bool
	MaxCommits       int // 0 means no limit
	Workers          int
	Timeout          time.Duration
	MaxRetries       int

	OutputDir   string
	Output      schema.OutputMode
	OutputFile  string
	ResultLimit int
	Width       int // Terminal width override (0 = auto-detect)
	Compress    bool

	Oracle        schema.OracleBackend
	AgentBinary   string
	AgentName     string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIAPIKey  string // Please use env var as this is plaintext

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	CompaniesFile string

	UseEmojis bool // Enable emojis in console output
	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	VersionRange string

	// --- Fields from rootCmd.PersistentFlags() ---
	Repo             string `mapstructure:"repo"`
	OutputDir        string `mapstructure:"output-dir"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Limit            int    `mapstructure:"limit"`
	Width            int    `mapstructure:"width"`
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`
	Emoji            string `mapstructure:"emoji"`
	Color            string `mapstructure:"color"`
	CompaniesFile    string `mapstructure:"companies-file"`

	// --- Fields from analyzeCmd and repairCmd flags ---
	Company          string `mapstructure:"company"`
	ChineseCompanies bool   `mapstructure:"chinese-companies"`
	MaxCommits       string `mapstructure:"max-commits"`
	Workers          int    `mapstructure:"workers"`
	Timeout          int    `mapstructure:"timeout"`
	MaxRetries       int    `mapstructure:"max-retries"`
	Compress         bool   `mapstructure:"compress"`

	// --- Oracle selection ---
	Oracle        string `mapstructure:"oracle"`
	AgentBinary   string `mapstructure:"agent-binary"`
	AgentName     string `mapstructure:"agent-name"`
	OpenAIModel   string `mapstructure:"openai-model"`
	OpenAIBaseURL string `mapstructure:"openai-base-url"`
	OpenAIAPIKey  string `mapstructure:"openai-api-key"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ProcessAndValidate performs all parsing and validation needed by commands that
// read the repository and call the oracle, and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateVersionRange(cfg, input); err != nil {
		return err
	}
	if err := ValidateOutputInputs(cfg, input); err != nil {
		return err
	}
	if err := validateRunInputs(cfg, input); err != nil {
		return err
	}
	if err := validateOracleConfig(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := resolveRepoPath(ctx, cfg, client, input); err != nil {
		return err
	}
	return nil
}

// ProcessReportInputs validates the subset of inputs needed by commands that only
// read persisted results (summary, failures).
func ProcessReportInputs(cfg *Config, input *ConfigRawInput) error {
	if err := validateVersionRange(cfg, input); err != nil {
		return err
	}
	return ValidateOutputInputs(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
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

// ParseMaxCommits parses "all" (or empty) as no limit, otherwise a positive integer.
func ParseMaxCommits(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("max-commits must be 'all' or a positive integer (received %q)", s)
	}
	return n, nil
}

// validateVersionRange checks the positional git revision range.
func validateVersionRange(cfg *Config, input *ConfigRawInput) error {
	vr := strings.TrimSpace(input.VersionRange)
	if vr == "" {
		return errors.New("a version range is required, e.g. v6.17..v6.18")
	}
	if strings.HasPrefix(vr, "-") || strings.ContainsAny(vr, " \t\n") {
		return fmt.Errorf("invalid version range %q. Expected a git revision range such as v6.17..v6.18", vr)
	}
	cfg.VersionRange = vr
	return nil
}

// ValidateOutputInputs processes the fields shared by every command that renders output.
func ValidateOutputInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.CompaniesFile = input.CompaniesFile

	cfg.OutputDir = input.OutputDir
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return errors.New("--output-file is required when using parquet output")
	}
	return nil
}

// validateRunInputs processes the worker pool and oracle call limits.
func validateRunInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Compress = input.Compress
	cfg.ChineseCompanies = input.ChineseCompanies

	company := strings.TrimSpace(input.Company)
	if strings.EqualFold(company, DefaultCompany) {
		company = ""
	}
	if company != "" && cfg.ChineseCompanies {
		return errors.New("--company cannot be combined with --chinese-companies")
	}
	cfg.CompanyFilter = company

	maxCommits, err := ParseMaxCommits(input.MaxCommits)
	if err != nil {
		return err
	}
	cfg.MaxCommits = maxCommits

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0 seconds (received %d)", input.Timeout)
	}
	cfg.Timeout = time.Duration(input.Timeout) * time.Second

	if input.MaxRetries <= 0 || input.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("max-retries must be between 1 and %d (received %d)", MaxRetriesLimit, input.MaxRetries)
	}
	cfg.MaxRetries = input.MaxRetries
	return nil
}

// validateOracleConfig selects and checks the oracle backend.
func validateOracleConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.Oracle = schema.OracleBackend(strings.ToLower(input.Oracle))
	if cfg.Oracle == "" {
		cfg.Oracle = schema.AgentOracle
	}
	if _, ok := schema.ValidOracleBackends[cfg.Oracle]; !ok {
		return fmt.Errorf("invalid oracle '%s'. must be agent, openai", input.Oracle)
	}
	cfg.AgentBinary = input.AgentBinary
	cfg.AgentName = input.AgentName
	cfg.OpenAIModel = input.OpenAIModel
	cfg.OpenAIBaseURL = input.OpenAIBaseURL
	cfg.OpenAIAPIKey = input.OpenAIAPIKey
	if cfg.Oracle == schema.OpenAIOracle && cfg.OpenAIAPIKey == "" {
		return errors.New("openai-api-key is required when using the openai oracle. Set KERNSCORE_OPENAI_API_KEY")
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}

	// Cache and history must not share one SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		historyDBPath := cfg.HistoryDBConnect
		if historyDBPath == "" {
			historyDBPath = GetHistoryDBFilePath()
		}
		if filepath.Clean(cacheDBPath) == filepath.Clean(historyDBPath) {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// resolveRepoPath resolves the repository argument to the root of its git worktree.
func resolveRepoPath(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	repo := input.Repo
	if repo == "" {
		repo = DefaultRepoPath
	}
	absRepo, err := filepath.Abs(repo)
	if err != nil {
		return err
	}
	gitRoot, err := client.GetRepoRoot(ctx, filepath.Clean(absRepo))
	if err != nil {
		return err
	}
	cfg.RepoPath = gitRoot
	return nil
}
