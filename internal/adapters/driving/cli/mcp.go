package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for dialogue agents.

The server exposes two tools and one resource template:
  recommend      - ranked, tie-grouped items for a request and its constraints
  item_evidence  - reviews answering a question about recommended items
  sercha-rec://items/{itemId} - the catalog record of an item

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead, which also serves
Prometheus metrics at /metrics.

Examples:
  # Stdio mode (default)
  sercha-rec mcp serve

  # HTTP mode (MCP Inspector, remote agents, metrics scraping)
  sercha-rec mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := ensureRetrieval(cmd.Context()); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Retrieval: retrievalService,
		Defaults:  settings.Ranking,
	}
	if port > 0 {
		ports.Metrics = ensureMetrics().Handler()
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s (metrics at /metrics)\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
