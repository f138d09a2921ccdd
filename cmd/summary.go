package cmd

import (
	"github.com/huangsam/kernscore/core"
	"github.com/spf13/cobra"
)

// summaryCmd renders the summary of a previously analyzed range.
var summaryCmd = &cobra.Command{
	Use:   "summary <version-range>",
	Short: "Show the score summary and top commits of an analyzed range.",
	Long: `Regenerate the summary of a version range from commit_scores_<range>_all.json
and print it together with the highest scoring commits.

The summary covers the score distribution, per-dimension averages, category and
subsystem breakdowns, flags and failures by kind. Nothing is re-scored.

Examples:
  # Show the top 10 commits
  kernscore summary v6.17..v6.18

  # Show the top 50 commits as CSV
  kernscore summary v6.17..v6.18 --limit 50 --output csv

  # Export every scored commit to Parquet for DuckDB or pandas
  kernscore summary v6.17..v6.18 --output parquet --output-file scores.parquet`,
	Args:    cobra.ExactArgs(1),
	PreRunE: reportSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteSummary(rootCtx, cfg, cacheManager)
	},
}
