package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetsync/internal/control"
	"github.com/vietddude/sheetsync/internal/core/worker"
	"github.com/vietddude/sheetsync/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quota status, health and metrics over HTTP",
	Long: `serve exposes /health, /status and /metrics and logs usage periodically.

With redis configured, the daily unit total in /status is the one shared by
every process using the same redis. Window request counts are those of the
calls made through this process.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	svc := control.New(appCfg, control.Options{})
	defer func() {
		_ = svc.Close()
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go worker.NewReporter(svc.Tracker, appCfg.Server.ReportInterval).Start(ctx)

	srv := status.NewServer(svc.Tracker, appCfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	slog.Info("Status server started", "port", appCfg.Server.Port, "config", cfgPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case err := <-errCh:
		slog.Error("Status server failed", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		return err
	}
	return nil
}
