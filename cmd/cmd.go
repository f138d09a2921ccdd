// Package cmd defines the command-line interface for kernscore.
package cmd

import (
	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("repo", contract.DefaultRepoPath, "Path to the Linux kernel git checkout")
	rootCmd.PersistentFlags().String("output-dir", contract.DefaultOutputDir, "Directory for results, summaries and the failure ledger")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Diff cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("history-backend", "", "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("emoji", "yes", "Enable emojis in console output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("companies-file", "", "YAML file extending the email domain to company table")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Scoring flags shared by analyze and repair; bound to Viper at run time
	for _, c := range []*cobra.Command{analyzeCmd, repairCmd} {
		c.Flags().Int("timeout", contract.DefaultTimeoutSecs, "Oracle timeout per attempt in seconds")
		c.Flags().Int("max-retries", contract.DefaultMaxRetries, "Total oracle attempts on rate limits (1-10)")
		c.Flags().String("oracle", string(schema.AgentOracle), "Scoring oracle: agent or openai")
		c.Flags().String("agent-binary", contract.DefaultAgentBinary, "Agent CLI binary used by the agent oracle")
		c.Flags().String("agent-name", contract.DefaultAgentName, "Agent profile passed to the agent CLI")
		c.Flags().String("openai-model", contract.DefaultOpenAIModel, "Model used by the openai oracle")
		c.Flags().String("openai-base-url", "", "Base URL of an OpenAI-compatible API")
		c.Flags().String("openai-api-key", "", "API key for the openai oracle (prefer KERNSCORE_OPENAI_API_KEY)")
	}

	analyzeCmd.Flags().String("company", contract.DefaultCompany, "Author filter passed to git log --author (e.g. @huawei.com)")
	analyzeCmd.Flags().Bool("chinese-companies", false, "Score commits of every Chinese company in one pass")
	analyzeCmd.Flags().String("max-commits", contract.DefaultMaxCommits, "Maximum number of commits to score ('all' or a positive integer)")
	analyzeCmd.Flags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	analyzeCmd.Flags().Bool("compress", false, "Gzip the JSONL output of --chinese-companies")

	repairCmd.Flags().Int("workers", contract.DefaultRepairWorker, "Number of concurrent workers")

	summaryCmd.Flags().String("company", "", "Company label for the summary (defaults to the stored filter)")

	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
}
