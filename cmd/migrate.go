package cmd

import (
	"fmt"

	"ticket-checkout/migrations"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			applied, err := st.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No new migrations to apply.")
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the last applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			name, err := migrations.Down(cmd.Context(), st.DB())
			if err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to revert.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s\n", name)
			return nil
		},
	})

	return cmd
}
