// ABOUTME: upload command for importing a CSV file into the tenant database
// ABOUTME: The primary key column is optional and only sent when given

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *app) uploadCmd() *cobra.Command {
	var primaryKey string

	cmd := protected(&cobra.Command{
		Use:   "upload FILE.csv",
		Short: "Import a CSV file",
		Example: `  posible-admin upload menu.csv
  posible-admin upload orders.csv --primary-key order_id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			res, err := a.api.UploadCSV(cmd.Context(), args[0], f, primaryKey)
			if err != nil {
				return describe(err, "Upload failed")
			}
			msg := res.Message
			if msg == "" {
				msg = "File uploaded successfully"
			}
			a.out.Success("%s", msg)
			return nil
		},
	})
	cmd.Flags().StringVar(&primaryKey, "primary-key", "", "column that uniquely identifies a row")
	return cmd
}
