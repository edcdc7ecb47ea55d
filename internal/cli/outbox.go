package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewOutboxCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and deliver pending side effects",
	}

	var batch int
	drain := &cobra.Command{
		Use:   "drain",
		Short: "Deliver pending events once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()
			n, err := rt.dispatcher.Drain(cmd.Context(), batch)
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d event(s)\n", n)
			return err
		},
	}
	drain.Flags().IntVar(&batch, "batch", 100, "maximum events to deliver")

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete delivered events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close()
			n, err := rt.store.PurgeDeliveredOutbox(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d event(s)\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "only purge events delivered before this age")

	cmd.AddCommand(drain, purge)
	return cmd
}
