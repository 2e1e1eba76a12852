// ABOUTME: integrations list, connect, disconnect, test and toast-key commands
// ABOUTME: OAuth connects open the provider page in a browser and refetch once the user is done

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/posible/posible-admin/internal/admin"
	"github.com/posible/posible-admin/internal/backend"
)

func (a *app) integrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "integrations",
		Aliases: []string{"pos"},
		Short:   "Manage POS integrations",
	}
	cmd.AddCommand(
		a.integrationsListCmd(),
		a.integrationsConnectCmd(),
		a.integrationsDisconnectCmd(),
		a.integrationsTestCmd(),
		a.integrationsToastKeyCmd(),
	)
	return cmd
}

func (a *app) printIntegrations(list []backend.Integration) error {
	rows := make([][]string, 0, len(list))
	for _, in := range list {
		status := "not connected"
		if in.Connected {
			status = "connected"
			if since := admin.ConnectedSince(in); since != "" {
				status += " since " + since
			}
		}
		rows = append(rows, []string{in.Provider, admin.DisplayName(in), status, in.MerchantID})
	}
	return a.out.Table([]string{"Provider", "Name", "Status", "Merchant"}, rows)
}

func (a *app) integrationsListCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List integrations and their status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.api.Integrations(cmd.Context())
			if err != nil {
				return describe(err, "Failed to load integrations")
			}
			return a.printIntegrations(list)
		},
	})
}

func (a *app) integrationsConnectCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "connect PROVIDER",
		Short: "Connect a provider through its authorization page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn := admin.NewConnector(a.api)
			if a.pollInterval > 0 {
				conn = conn.WithTimings(a.pollInterval, a.refreshDelay)
			}
			list, err := conn.Connect(cmd.Context(), args[0], a.newWindow(cmd))
			if errors.Is(err, admin.ErrAPIKeyRequired) {
				return errors.New("toast uses API key authentication, run 'posible-admin integrations toast-key' instead")
			}
			if err != nil {
				return describe(err, "Failed to connect")
			}
			return a.printIntegrations(list)
		},
	})
}

func (a *app) integrationsDisconnectCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "disconnect PROVIDER",
		Short: "Disconnect a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.DisconnectIntegration(cmd.Context(), args[0]); err != nil {
				return describe(err, "Failed to disconnect")
			}
			a.out.Success("Disconnected %s", args[0])
			return nil
		},
	})
}

func (a *app) integrationsTestCmd() *cobra.Command {
	return protected(&cobra.Command{
		Use:   "test PROVIDER",
		Short: "Check that a provider connection works",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.TestIntegration(cmd.Context(), args[0]); err != nil {
				return describe(err, "Connection test failed")
			}
			a.out.Success("Connection to %s works", args[0])
			return nil
		},
	})
}

func (a *app) integrationsToastKeyCmd() *cobra.Command {
	var apiKey, guid string

	cmd := protected(&cobra.Command{
		Use:   "toast-key",
		Short: "Connect Toast with an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.api.SaveToastAPIKey(cmd.Context(), apiKey, guid); err != nil {
				return describe(err, "Failed to save API key")
			}
			a.out.Success("Toast connected")
			return nil
		},
	})
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Toast API key")
	cmd.Flags().StringVar(&guid, "restaurant-guid", "", "Toast restaurant GUID (optional)")
	_ = cmd.MarkFlagRequired("api-key")
	return cmd
}
