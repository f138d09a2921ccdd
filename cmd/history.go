package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/iocache"
	"github.com/huangsam/kernscore/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyBackend reads and validates the run history backend settings.
func historyBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backendStr := viper.GetString("history-backend")
	connStr := viper.GetString("history-db-connect")

	// Handle empty backend as NoneBackend
	backend := schema.NoneBackend
	if backendStr != "" {
		backend = schema.DatabaseBackend(backendStr)
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", backendStr)
	}
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// historySetup loads minimal configuration needed for history operations.
func historySetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := historyBackend()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no diff cache for history commands)
	if err := iocache.InitStores(schema.NoneBackend, "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// historyMigrateSetup is a specialized setup that does NOT initialize stores or
// create tables, allowing migrations to run on a fresh database.
func historyMigrateSetup(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("unable to bind flags: %w", err)
	}
	backend, connStr, err := historyBackend()
	if err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetHistoryDBFilePath()
	}

	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	return nil
}

// historyCmd focused on run history management.
//
// Note: History subcommands use minimal initialization instead of the full
// sharedSetup. This avoids Git repo validation for simple database operations.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage run history tracking and exports",
	Long: `Manage the history of analyze and repair runs.

When --history-backend is set, Kernscore records every run, storing:
- Run metadata (mode, version range, company filter, timing, configuration)
- One score row per commit (company, category, tier, dimension scores, error kind)

This enables comparing runs over time and exporting data for BI tools.

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show history tracking statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  kernscore history status --history-backend sqlite

  # Export for analysis in pandas/DuckDB
  kernscore history export --history-backend sqlite --output-file kernscore`,
}

// historyClearCmd clears the run history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all run history data",
	Long: `Delete all stored runs and commit score history.

WARNING: This action cannot be undone. Consider exporting data first.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the history and migration tables

Examples:
  # Export before clearing
  kernscore history export --output-file backup
  kernscore history clear`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseStores()
		dbFile := sqliteFilePath(cfg.HistoryDBConnect, contract.GetHistoryDBFilePath())
		if err := iocache.ClearHistory(cfg.HistoryBackend, dbFile, cfg.HistoryDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// historyStatusCmd shows history status.
var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show detailed information about run history tracking.

Displays:
- Backend type and connection status
- Total number of runs stored
- Last and oldest run timestamps
- Total commit scores recorded
- Database table sizes

Examples:
  # Check history tracking status
  kernscore history status --history-backend sqlite`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetHistoryStore()
		if store == nil {
			fmt.Println("Run history is disabled. Set --history-backend to enable it.")
			return
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get history status", err)
		}
		iocache.PrintHistoryStatus(os.Stdout, status)
	},
}

// historyExportCmd exports run history to Parquet files.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet for BI tools and analytics",
	Long: `Export all stored run history to Parquet format.

Exports two datasets next to --output-file:
- <output-file>.runs.parquet           metadata about each run
- <output-file>.commit_scores.parquet  per-commit scores of every run

Requires: --output-file parameter

Examples:
  # Export all data
  kernscore history export --output-file kernscore

  # Use with DuckDB for analysis
  duckdb -c "SELECT author_company, avg(score_total) FROM 'kernscore.commit_scores.parquet' GROUP BY 1"`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		if _, err := iocache.ExportHistory(iocache.Manager.GetHistoryStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// historyMigrateCmd runs database migrations for the history store.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  kernscore history migrate --history-backend postgresql --history-db-connect "host=... dbname=..."

  # Migrate to specific version
  kernscore history migrate --target-version 1

  # Rollback to initial state
  kernscore history migrate --target-version 0`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateHistory(cfg.HistoryBackend, cfg.HistoryDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
