package cmd

import (
	"github.com/huangsam/benchtrail/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the benchtrail MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents read benchmark history and
re-evaluate stored runs through standard tools.

Tools:
  evaluate_suite   - Verdict of a stored run with optional policy overrides
  get_history      - Recent runs of a suite
  get_store_status - Backend details and per-suite counts

Component logs go to stderr so stdout stays reserved for the protocol.`,
	Args:    cobra.NoArgs,
	PreRunE: storeSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, storeManager, logger)
	},
}
