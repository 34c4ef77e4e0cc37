package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/estimategame/internal/model"
	"github.com/mcoot/estimategame/internal/realtime"
)

const reconnectDelay = time.Second

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput bool
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "events [session-id]",
		Short: "Follow a session's state in real time",
		Long: `Connect to the session's SSE endpoint and print every state change.

Each "state" event carries the full session. Stale or repeated states are
skipped, and the stream reconnects on its own if the connection drops.

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := resolveSessionID(cmd.Context(), args)
			if err != nil {
				return err
			}
			return followSession(cmd.Context(), cmd, sessionID, jsonOutput, once)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output states as JSON lines")
	cmd.Flags().BoolVar(&once, "once", false, "Print the current state and exit")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Event string
	Data  string
}

func followSession(ctx context.Context, cmd *cobra.Command, sessionID string, jsonOutput, once bool) error {
	w := cmd.OutOrStdout()
	view := realtime.NewView()
	errOnce := errors.New("done")

	onState := func(snap model.Snapshot) error {
		if !view.Apply(snap) {
			return nil
		}
		printState(w, snap, jsonOutput)
		if once {
			return errOnce
		}
		return nil
	}

	for {
		err := streamStates(ctx, sessionID, onState)
		switch {
		case errors.Is(err, errOnce):
			return nil
		case ctx.Err() != nil:
			if !jsonOutput {
				_, _ = fmt.Fprintln(w, "Disconnected")
			}
			return nil
		case err != nil && !isTransient(err):
			return err
		}

		if cfg.Verbose {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "stream interrupted (%v), reconnecting\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// streamStates reads one connection until it ends
func streamStates(ctx context.Context, sessionID string, onState func(model.Snapshot) error) error {
	resp, err := client.Stream(ctx, sessionPath(sessionID, "/events"))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return readSSE(resp.Body, func(evt SSEEvent) error {
		if evt.Event != realtime.StateEvent {
			return nil
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(evt.Data), &snap); err != nil {
			return fmt.Errorf("malformed state event: %w", err)
		}
		return onState(snap)
	})
}

// readSSE parses an event stream, calling fn for each complete event.
// Comment lines are ignored. The end of the stream is reported as a
// transient error, since the server never closes a healthy stream.
func readSSE(r io.Reader, fn func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				if err := fn(SSEEvent{Event: currentEvent, Data: strings.Join(dataLines, "\n")}); err != nil {
					return err
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return &transientError{err: fmt.Errorf("stream error: %w", err)}
	}
	return &transientError{err: io.EOF}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func printState(w io.Writer, snap model.Snapshot, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(snap)
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(w, "[%s] version %d\n", timestamp, snap.Version)
	NewOutput("text", w).Print(snap)
	_, _ = fmt.Fprintln(w)
}
