// ABOUTME: users list, add and delete commands
// ABOUTME: Manages the phone users of the logged-in tenant

package main

import (
	"github.com/spf13/cobra"

	"github.com/posible/posible-admin/internal/backend"
)

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage phone users",
	}
	cmd.AddCommand(a.usersListCmd(), a.usersAddCmd(), a.usersDeleteCmd())
	return cmd
}

func (a *app) usersListCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.api.Users(cmd.Context())
			if err != nil {
				return describe(err, "Failed to load users")
			}
			if len(users) == 0 {
				a.out.Info("No users yet")
				return nil
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				admin := ""
				if u.IsAdmin {
					admin = "yes"
				}
				rows = append(rows, []string{u.Name, u.FromNumber, admin})
			}
			return a.out.Table([]string{"Name", "Phone", "Admin"}, rows)
		},
	})
}

func (a *app) usersAddCmd() *cobra.Command {
	var isAdmin bool

	cmd := protected(&cobra.Command{
		Use:   "add NAME PHONE",
		Short: "Add a user",
		Example: `  posible-admin users add "Ana Ruiz" +15550002222
  posible-admin users add Sam +15550003333 --admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := backend.NewUser{Name: args[0], PhoneNumber: args[1], IsAdmin: isAdmin}
			if err := a.api.CreateUser(cmd.Context(), user); err != nil {
				return describe(err, "Failed to add user")
			}
			a.out.Success("Added user %s (%s)", user.Name, user.PhoneNumber)
			return nil
		},
	})
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "give the user admin rights")
	return cmd
}

func (a *app) usersDeleteCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:     "delete PHONE",
		Aliases: []string{"rm"},
		Short:   "Delete a user by phone number",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.DeleteUser(cmd.Context(), args[0]); err != nil {
				return describe(err, "Failed to delete user")
			}
			a.out.Success("Deleted user %s", args[0])
			return nil
		},
	})
}
