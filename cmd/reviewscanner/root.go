package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ReviewScanner/internal/app"
	"ReviewScanner/internal/config"
	"ReviewScanner/internal/logging"
)

// NewRootCmd creates the root command for ReviewScanner.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewscanner",
		Short: "Flag fake reviews on review sites",
		Long: `ReviewScanner extracts reviews from Google, Yelp, Amazon, TripAdvisor and
Trustpilot pages, classifies each one with the prediction backend and marks
the page with the verdicts.

Configuration is read from --config, then $REVIEW_SCANNER_CONFIG; environment
variables override file values.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewSettingsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig honours --config and --verbose.
func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")
	var cfg config.Config
	if path != "" {
		cfg = config.LoadFile(path)
	} else {
		cfg = config.Load()
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg
}

// openApp loads configuration and wires the application. Callers must
// Close it.
func openApp(cmd *cobra.Command) (*app.Application, config.Config, *slog.Logger, error) {
	cfg := loadConfig(cmd)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, cfg, logger, err
	}
	return application, cfg, logger, nil
}
