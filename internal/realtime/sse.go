package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/estimategame/internal/model"
)

// StateEvent is the SSE event name carrying a snapshot
const StateEvent = "state"

// ServeSSE streams snapshots as server-sent events until the client goes away
// or the stream is closed by its hub. The caller owns the stream.
func ServeSSE(w http.ResponseWriter, r *http.Request, stream *Stream, keepAlive time.Duration, logger *slog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	write := func(snapshot model.Snapshot) bool {
		msg, err := formatSnapshotEvent(snapshot)
		if err != nil {
			logger.Error("failed to encode snapshot", slog.Any("error", err))
			return false
		}
		if _, err := w.Write(msg); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !write(stream.Initial) {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-stream.Updates():
			if !ok {
				return
			}
			if !stream.Fresh(snapshot) {
				continue
			}
			if !write(snapshot) {
				return
			}

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func formatSnapshotEvent(snapshot model.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return formatSSEMessage(StateEvent, string(data)), nil
}

// formatSSEMessage formats an SSE message with event name and data
// Multi-line data is properly formatted with "data: " prefix on each line
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
