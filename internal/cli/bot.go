package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Bot commands",
	}

	cmd.AddCommand(newBotAddCmd())

	return cmd
}

func newBotAddCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "add [session-id]",
		Short: "Add a bot player to the session (host only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.IsValidBotStrategy(strategy) {
				return fmt.Errorf("unknown strategy %q (available: %s)", strategy, strings.Join(model.ValidBotStrategies(), ", "))
			}

			sessionID, err := resolveSessionID(cmd.Context(), args)
			if err != nil {
				return err
			}

			req := map[string]string{"strategy": strategy}
			var result response.Player

			if err := client.Post(cmd.Context(), sessionPath(sessionID, "/bots"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", model.BotStrategyRandom, "Bot strategy: "+strings.Join(model.ValidBotStrategies(), ", "))

	return cmd
}
