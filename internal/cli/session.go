package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionJoinCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionFinishCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session and join it as host",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"nickname": nickname}
			var result response.JoinResponse

			if err := client.Post(cmd.Context(), "/api/v1/sessions", req, &result); err != nil {
				return err
			}
			return saveAndPrintJoin(cmd, result)
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "Nickname (required)")
	_ = cmd.MarkFlagRequired("nickname")

	return cmd
}

func newSessionJoinCmd() *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a session by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"code": args[0], "nickname": nickname}
			var result response.JoinResponse

			if err := client.Post(cmd.Context(), "/api/v1/sessions/join", req, &result); err != nil {
				return err
			}
			return saveAndPrintJoin(cmd, result)
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "Nickname (required)")
	_ = cmd.MarkFlagRequired("nickname")

	return cmd
}

func saveAndPrintJoin(cmd *cobra.Command, result response.JoinResponse) error {
	if err := cfg.SaveToken(result.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	client.SetToken(result.Token)

	output(cmd).Print(result)
	return nil
}

func newSessionGetCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "get [session-id]",
		Short: "Show the current state of a session",
		Long: `Show the current state of a session.

Without arguments the session of the current token is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if code != "" {
				path = "/api/v1/sessions/code/" + url.PathEscape(code)
			} else {
				sessionID, err := resolveSessionID(cmd.Context(), args)
				if err != nil {
					return err
				}
				path = sessionPath(sessionID, "")
			}

			var result model.Snapshot
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Look the session up by its join code")

	return cmd
}

func newSessionFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish [session-id]",
		Short: "Finish a session (host only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postSessionAction(cmd, args, "/finish", nil)
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the player behind the current token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.MeResponse

			if err := client.Get(cmd.Context(), "/api/v1/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

// resolveSessionID returns the session given on the command line, or the
// session the current token belongs to
func resolveSessionID(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if !client.HasToken() {
		return "", errors.New("no session given and no token found; create or join a session first")
	}

	var me response.MeResponse
	if err := client.Get(ctx, "/api/v1/me", &me); err != nil {
		return "", err
	}
	return string(me.Session.SessionID), nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(sessionID) + suffix
}

// postSessionAction posts to an action endpoint of the session and prints
// the resulting state
func postSessionAction(cmd *cobra.Command, args []string, suffix string, body any) error {
	sessionID, err := resolveSessionID(cmd.Context(), args)
	if err != nil {
		return err
	}

	var result model.Snapshot
	if err := client.Post(cmd.Context(), sessionPath(sessionID, suffix), body, &result); err != nil {
		return err
	}

	output(cmd).Print(result)
	return nil
}
