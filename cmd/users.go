package cmd

import (
	"fmt"

	"ticket-checkout/internal/services"
	"ticket-checkout/models"

	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var (
		password string
		admin    bool
	)
	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if _, err := st.Migrate(cmd.Context()); err != nil {
				return err
			}

			var roles []string
			if admin {
				roles = append(roles, models.RoleAdmin)
			}

			auth := services.NewAuthService(st, services.NewLockoutService(st, cfg.LockoutPolicy()), nil, nil)
			u, err := auth.Register(cmd.Context(), args[0], password, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s) with roles %v\n", u.ID, u.Email, u.RoleList())
			return nil
		},
	}
	create.Flags().StringVar(&password, "password", "", "initial password (at least 8 characters)")
	create.Flags().BoolVar(&admin, "admin", false, "grant "+models.RoleAdmin)
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
