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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command service for the browser extension",
		Long: `Serve exposes POST /command {"action":"scanReviews"} plus feedback, login,
settings, history and report endpoints over HTTP.

With --watch the configured watch targets are rescanned in the background.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().Bool("watch", false, "Also rescan watch targets on their interval")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	application, cfg, logger, err := openApp(cmd)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if err := application.Watcher().Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = application.Close(context.Background())
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), application.Close(shutdownCtx))
}
