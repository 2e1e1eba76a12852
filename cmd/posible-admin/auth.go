// ABOUTME: login, logout, whoami and dashboard commands
// ABOUTME: Login prompts for the password on a terminal via x/term

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/posible/posible-admin/internal/dashboard"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend",
		Long: `Log in with your account email and password.

The password is prompted for when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = a.readLine(cmd, "Email: "); err != nil {
					return fmt.Errorf("reading email: %w", err)
				}
			}
			email = strings.TrimSpace(email)
			if password == "" {
				if password, err = a.readPassword(cmd); err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
			}
			if email == "" || password == "" {
				return errors.New("email and password required")
			}

			res := a.session.Login(cmd.Context(), email, password)
			if !res.Success {
				return errors.New(res.Error)
			}

			id, _ := a.session.Identity()
			a.out.Success("Logged in as %s", id.Email)
			if db, err := a.tenant.DBName(); err == nil {
				a.out.Print("Database: %s", db)
			} else {
				a.out.Warning("No database is assigned to this account")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

// promptPassword reads a password without echo on a terminal, or a plain
// line otherwise.
func (a *app) promptPassword(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return a.readLine(cmd, "Password: ")
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				a.out.Warning("Backend logout failed: %v", err)
			}
			if err := a.jar.Clear(cmd.Context()); err != nil {
				return err
			}
			a.out.Success("Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := a.session.Identity()
			a.out.Print("Email:    %s", id.Email)

			if db, err := a.tenant.DBName(); err == nil {
				a.out.Print("Database: %s", db)
			} else {
				a.out.Print("Database: %s", a.out.Dim("(none)"))
			}
			if tel, err := a.tenant.TwilioNumber(); err == nil {
				a.out.Print("Number:   %s", tel)
			} else {
				a.out.Print("Number:   %s", a.out.Dim("(none)"))
			}
			return nil
		},
	})
}

func (a *app) dashboardCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "dashboard",
		Short: "Show account totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := dashboard.NewLoader(a.api, a.logger).Load(cmd.Context())

			a.out.Header("Dashboard")
			a.out.Print("Total users:       %d", stats.Users)
			a.out.Print("Scheduled reports: %d", stats.Schedules)
			if stats.IsDegraded() {
				a.out.Warning("Some figures could not be loaded: %s", strings.Join(stats.Degraded, ", "))
			}
			return nil
		},
	})
}
