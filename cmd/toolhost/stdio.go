package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triage-ai/toolhost/internal/transport"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the host over stdin/stdout, one JSON-RPC message per line",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := mustBuildLogger(cfg.LogLevel, "stderr")
		defer logger.Sync() //nolint:errcheck // best-effort flush

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		return transport.ServeStdio(ctx, a.host, os.Stdin, os.Stdout, logger)
	},
}
