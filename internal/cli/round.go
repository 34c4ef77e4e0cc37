package cli

import (
	"github.com/spf13/cobra"
)

func newRoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Round commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start [session-id]",
		Short: "Start the next round (host only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postSessionAction(cmd, args, "/round/start", nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "estimate <value> [session-id]",
		Short: "Submit an estimation for the current item",
		Long: `Submit an estimation for the current item.

The value is a non-negative number; a comma is accepted as decimal
separator ("12,50"). Submitting again before the round closes replaces
the previous estimation.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Sent as a string so the server applies its own number parsing
			body := map[string]string{"value": args[0]}
			return postSessionAction(cmd, args[1:], "/round/estimate", body)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "close [session-id]",
		Short: "Close the round and score it (host only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postSessionAction(cmd, args, "/round/close", nil)
		},
	})

	return cmd
}
