package cmd

import (
	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpSetup validates the output settings the MCP tools read results from.
// Nothing is printed here since stdio carries the protocol.
func mcpSetup(cmd *cobra.Command, args []string) error {
	if err := loadInput(cmd, args); err != nil {
		return err
	}
	if err := contract.ValidateOutputInputs(cfg, input); err != nil {
		return err
	}
	return loadCompanies()
}

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Kernscore MCP server",
	Long: `Launch an MCP server over stdio that lets AI agents read scoring results.

Tools:
  get_summary    summary and top commits of an analyzed version range
  get_failures   failure ledger of a version range with counts by kind
  classify_tier  subsystem tier of a list of file paths

Results are read from --output-dir; the server never runs the oracle.`,
	Args:    cobra.NoArgs,
	PreRunE: mcpSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
