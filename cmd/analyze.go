package cmd

import (
	"github.com/huangsam/kernscore/core"
	"github.com/spf13/cobra"
)

// analyzeCmd scores every commit of a version range.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <version-range>",
	Short: "Score the commits of a kernel version range.",
	Long: `Extract every commit of a version range, ask the scoring oracle to classify and
score each one, and normalize the result against the fixed 100 point rubric.

Results are written to the output directory:
- commit_scores_<range>_all.json      every scored commit, oldest first
- commit_scores_<range>_summary.json  aggregate statistics
- commit_scores_<range>_batch_N.json  batches of 50 for long runs
- failed_commits_<range>.json         the failure ledger (only when commits failed)

Commits the oracle could not score get a zero-score fallback entry and a ledger
record; run 'kernscore repair' afterwards to retry them.

Press Ctrl-C once to stop scheduling new commits and flush what was scored.
Press it again to exit immediately.

Examples:
  # Score every Huawei commit between two releases with four workers
  kernscore analyze v6.17..v6.18 --company @huawei.com --workers 4

  # Score a sample of 100 commits
  kernscore analyze v6.17..v6.18 --max-commits 100

  # Score every Chinese company at once and gzip the JSONL output
  kernscore analyze v6.17..v6.18 --chinese-companies --compress

  # Use an OpenAI-compatible API instead of the agent CLI
  KERNSCORE_OPENAI_API_KEY=sk-... kernscore analyze v6.17..v6.18 --oracle openai`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := loadCompanies(); err != nil {
			return err
		}
		return core.ExecuteAnalyze(rootCtx, cfg, cacheManager)
	},
}
