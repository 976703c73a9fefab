package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ReviewScanner/internal/ports"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the review backend and keep the session",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}

	cmd.Flags().StringP("username", "u", "", "Account user name")
	cmd.Flags().StringP("password", "p", "", "Account password")
	cmd.Flags().String("id-token", "", "Google id token instead of a password")

	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	var creds ports.Credentials
	creds.Username, _ = cmd.Flags().GetString("username")
	creds.Password, _ = cmd.Flags().GetString("password")
	creds.IDToken, _ = cmd.Flags().GetString("id-token")
	if creds.IDToken == "" && (creds.Username == "" || creds.Password == "") {
		return errors.New("pass --id-token, or --username and --password")
	}

	application, _, logger, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(context.Background()); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	sess, err := application.Login(cmd.Context(), creds)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if sess.ExpiresAt.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in until %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, logger, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := application.Close(context.Background()); cerr != nil {
					logger.Warn("close application", "error", cerr)
				}
			}()

			if err := application.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
