package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.store.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database ready in %s\n", opts.Config.DataDir)
			return nil
		},
	}
}

func NewAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Give every configured admin email an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()
			n, err := rt.svc.SyncAdmins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "promoted %d admin account(s)\n", n)
			return nil
		},
	})
	return cmd
}
