package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trishield/internal/pipeline"
	"github.com/ppiankov/trishield/internal/server"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve exposes the analysis entry points for browser extensions and other
local clients:

  GET  /healthz
  POST /v1/analyze         {"url": "..."}
  POST /v1/analyze/batch   {"urls": ["...", "..."]}
  GET  /v1/history?limit=N
  GET  /v1/settings`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	p := pipeline.NewFromConfig(cfg, logger)

	fmt.Fprintf(os.Stderr, "Listening on http://%s\n", cfg.Server.ListenAddr)
	if err := server.New(p, version, logger).ListenAndServe(ctx, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
