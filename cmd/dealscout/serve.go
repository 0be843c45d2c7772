package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/dealscout/internal/http"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.http_port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatcher over HTTP",
	Long: `Start the HTTP API. Requests are dispatched one at a time; a request
that arrives while another runs is queued and can be polled at
/api/v1/requests/{id}.

Examples:
  # Start with config defaults
  dealscout serve

  # Listen on another port
  dealscout serve --port 8080`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	logger := a.logger.Underlying()

	host := a.cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := a.cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	srv, err := httpserver.NewServer(httpserver.Deps{
		Dispatcher: a.dispatcher,
		Registry:   a.registry,
		Store:      a.store,
	}, logger.Named("http"), &httpserver.Config{Host: host, Port: port, Version: version})
	if err != nil {
		_ = a.close(context.Background())
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	timeout := a.cfg.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := a.dispatcher.WaitIdle(shutdownCtx); err != nil {
		logger.Warn("dispatcher did not drain before shutdown", zap.Error(err))
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Warn("shutdown completed with errors", zap.Error(err))
	}
	return serveErr
}
