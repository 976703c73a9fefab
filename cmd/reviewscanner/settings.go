package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ReviewScanner/internal/domain"
)

// NewSettingsCmd creates the settings command.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change display and notification settings",
		Long: `Without flags, settings prints the stored userSettings. Flags change the
named fields and keep the rest.

Examples:
  reviewscanner settings --language fr --layout detailed
  reviewscanner settings --notify-new=false`,
		Args: cobra.NoArgs,
		RunE: runSettingsCmd,
	}

	cmd.Flags().Bool("dark-mode", false, "Render markers for dark pages")
	cmd.Flags().String("language", "", "Language tag for notices (en, fr, es)")
	cmd.Flags().String("layout", "", "compact or detailed")
	cmd.Flags().Bool("notify", true, "Enable notifications")
	cmd.Flags().Bool("notify-new", true, "Announce new reviews found by watch")
	cmd.Flags().Bool("notify-failures", false, "Announce scan failures")

	return cmd
}

func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	application, _, logger, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(context.Background()); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	store := application.Store()
	settings, err := store.LoadSettings(cmd.Context())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	changed := false
	for _, name := range []string{"dark-mode", "language", "layout", "notify", "notify-new", "notify-failures"} {
		changed = changed || flags.Changed(name)
	}
	if flags.Changed("dark-mode") {
		settings.DarkMode, _ = flags.GetBool("dark-mode")
	}
	if flags.Changed("language") {
		settings.Language, _ = flags.GetString("language")
	}
	if flags.Changed("layout") {
		layout, _ := flags.GetString("layout")
		settings.Layout = domain.Layout(layout)
	}
	if flags.Changed("notify") {
		settings.NotificationPreferences.Enabled, _ = flags.GetBool("notify")
	}
	if flags.Changed("notify-new") {
		settings.NotificationPreferences.NewReviews, _ = flags.GetBool("notify-new")
	}
	if flags.Changed("notify-failures") {
		settings.NotificationPreferences.Failures, _ = flags.GetBool("notify-failures")
	}

	if changed {
		if settings, err = settings.Normalize(); err != nil {
			return err
		}
		if err := store.SaveSettings(cmd.Context(), settings); err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
