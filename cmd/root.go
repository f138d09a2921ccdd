package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/kernscore/core"
	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/iocache"
	"github.com/huangsam/kernscore/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
// main replaces it with a signal-aware context before executing.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "kernscore",
	Short: "Score Linux kernel commits and track corporate contributions.",
	Long: `Kernscore scores every commit of a kernel version range with an external AI oracle,
normalizes the scores against a fixed rubric, and keeps a failure ledger for later repair.`,
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
	// Set environment variable prefix
	viper.SetEnvPrefix("KERNSCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("repo", contract.DefaultRepoPath)
	viper.SetDefault("output-dir", contract.DefaultOutputDir)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("timeout", contract.DefaultTimeoutSecs)
	viper.SetDefault("max-retries", contract.DefaultMaxRetries)
	viper.SetDefault("max-commits", contract.DefaultMaxCommits)
	viper.SetDefault("oracle", schema.AgentOracle)
	viper.SetDefault("agent-binary", contract.DefaultAgentBinary)
	viper.SetDefault("agent-name", contract.DefaultAgentName)
	viper.SetDefault("openai-model", contract.DefaultOpenAIModel)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("history-backend", "")
	viper.SetDefault("history-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("emoji", "yes")
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".kernscore") // Name of config file (without extension)
		viper.SetConfigType("yaml")       // We'll use YAML format
		viper.AddConfigPath(".")          // Look in the current directory
		viper.AddConfigPath("$HOME")      // Look in the home directory
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// loadInput merges defaults, file, env and the flags of cmd into input.
// Flags are bound here rather than in init so that commands sharing a key
// (analyze and repair both define --workers) do not shadow each other.
func loadInput(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("unable to bind flags: %w", err)
	}
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// Positional version range (which Viper doesn't do).
	if len(args) == 1 {
		input.VersionRange = args[0]
	}
	return nil
}

// sharedSetup unmarshals config and runs validation for commands that read
// the repository and call the oracle.
func sharedSetup(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := loadInput(cmd, args); err != nil {
		return err
	}

	client := contract.NewLocalGitClient()
	if err := contract.ProcessAndValidate(ctx, cfg, client, input); err != nil {
		return err
	}

	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// reportSetup validates the inputs of commands that only read persisted results.
// No repository or database is touched.
func reportSetup(cmd *cobra.Command, args []string) error {
	if err := loadInput(cmd, args); err != nil {
		return err
	}
	if err := contract.ProcessReportInputs(cfg, input); err != nil {
		return err
	}
	cfg.CompanyFilter = strings.TrimSpace(input.Company)
	return nil
}

// loadCompanies extends the company table when a companies file is configured.
func loadCompanies() error {
	if cfg.CompaniesFile == "" {
		return nil
	}
	return core.LoadCompaniesFile(cfg.CompaniesFile)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetContext replaces the root context used by every command.
func SetContext(ctx context.Context) {
	rootCtx = ctx
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}
