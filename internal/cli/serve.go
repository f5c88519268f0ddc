package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the claim checker over HTTP",
	Long: `Serve starts an HTTP API:

  POST /v1/check   {"text": "..."} or {"url": "https://..."}, optional "format": "markdown"
  GET  /healthz

Requests are logged as JSON to stderr with a req_id. Only http(s) URLs are
accepted; local file paths are refused.

Example:
  claimcheck serve --addr :8080
  curl -s localhost:8080/v1/check -d '{"text":"Spain had 48 million residents in 2023."}'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config: :8080)")
	addPipelineFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger := logging.NewJSON(level, os.Stderr)
	logging.SetDefault(logger)
	ctx = logging.With(ctx, logger)

	// The API only loads http(s) sources, never stdin
	p, cleanup, err := buildPipeline(ctx, cfg, strings.NewReader(""))
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(p, cfg.Server.MaxBodyBytes, server.WithLogger(logger), server.WithVersion(Version))
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
