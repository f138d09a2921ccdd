package cmd

import (
	"github.com/huangsam/kernscore/core"
	"github.com/spf13/cobra"
)

// failuresCmd renders the failure ledger of a range.
var failuresCmd = &cobra.Command{
	Use:   "failures <version-range>",
	Short: "List the commits waiting in the failure ledger.",
	Long: `Print failed_commits_<range>.json with a breakdown by error kind.

Error kinds:
  TIMEOUT              the oracle did not answer in time
  429_RATE_LIMIT       rate limited after every retry
  JSON_ERROR           the oracle answer was not a JSON object
  INCOMPLETE_RESPONSE  the analysis lacked a usable score breakdown
  OTHER                any other oracle or git failure

Examples:
  # Show the ledger
  kernscore failures v6.17..v6.18

  # Save the ledger as JSON
  kernscore failures v6.17..v6.18 --output json --output-file failures.json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: reportSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteFailures(rootCtx, cfg, cacheManager)
	},
}
