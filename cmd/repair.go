package cmd

import (
	"github.com/huangsam/kernscore/core"
	"github.com/spf13/cobra"
)

// repairCmd re-scores the failure ledger of a version range.
var repairCmd = &cobra.Command{
	Use:   "repair <version-range>",
	Short: "Retry the commits recorded in the failure ledger.",
	Long: `Re-score every commit listed in failed_commits_<range>.json and merge the
successful results back into commit_scores_<range>_all.json.

Commits that fail again stay in the ledger with their new error kind. When every
commit succeeds the ledger is deleted. Repair runs with a single worker by default
since most failures are rate limits.

Examples:
  # Retry all failures of a range
  kernscore repair v6.17..v6.18

  # Retry with a longer timeout
  kernscore repair v6.17..v6.18 --timeout 600`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := loadCompanies(); err != nil {
			return err
		}
		return core.ExecuteRepair(rootCtx, cfg, cacheManager)
	},
}
