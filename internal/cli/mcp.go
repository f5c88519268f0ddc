package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/mcptool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server over stdio",
	Long: `Mcp exposes the claim checker to MCP clients as the check_document tool.
The server speaks JSON-RPC on stdin/stdout; logs go to stderr.

Example client configuration:
  {"command": "claimcheck", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	addPipelineFlags(mcpCmd.Flags())
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.With(ctx, logging.Default())

	// stdin carries the protocol, so documents cannot be read from it
	p, cleanup, err := buildPipeline(ctx, cfg, strings.NewReader(""))
	if err != nil {
		return err
	}
	defer cleanup()

	return mcptool.Serve(ctx, p, Version)
}
