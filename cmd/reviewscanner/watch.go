package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan watch targets and announce new reviews",
		Long: `Watch rescans every page listed under watch.targets on watch.interval.
When new reviews appear and notifications are enabled, a Telegram message
is sent.`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().Bool("once", false, "Run a single cycle and exit")

	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	application, cfg, logger, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(context.Background()); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	if len(cfg.Watch.Targets) == 0 {
		return fmt.Errorf("no watch.targets configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once, _ := cmd.Flags().GetBool("once"); once {
		n, err := application.Watcher().RunOnce(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "%d new reviews\n", n)
		return err
	}

	if err := application.Watcher().Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	logger.Info("watching", "targets", len(cfg.Watch.Targets), "interval", cfg.Watch.Interval)
	<-ctx.Done()
	return nil
}
