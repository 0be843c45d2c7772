package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dispatcher as an MCP server over stdio",
	Long: `Run an MCP server on stdin/stdout. Logs go to stderr so they never
corrupt the protocol stream.

Example MCP client entry:
  {"command": "dealscout", "args": ["mcp"]}`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{stdio: true})
	if err != nil {
		return err
	}
	logger := a.logger.Underlying()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.dispatcher.WaitIdle(closeCtx); err != nil {
			logger.Warn("dispatcher did not drain before shutdown", zap.Error(err))
		}
		if err := a.close(closeCtx); err != nil {
			logger.Warn("shutdown completed with errors", zap.Error(err))
		}
	}()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "dealscout",
		Version: version,
		Logger:  logger.Named("mcp"),
	}, a.dispatcher, a.registry, a.store)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
