package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mcoot/estimategame/internal/api/response"
	"github.com/mcoot/estimategame/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case model.Snapshot:
		o.printSnapshot(v)
	case response.JoinResponse:
		o.printPlayer(v.Player)
		o.printf("Token: %s\n\n", v.Token)
		o.printSnapshot(v.Session)
	case response.MeResponse:
		o.printPlayer(v.Player)
		o.printf("Session: %s (%s)\n", v.Session.Code, v.Session.SessionID)
	case response.Player:
		o.printPlayer(v)
	case response.Item:
		o.printItem(v)
	case response.Health:
		o.printf("Status: %s\n", v.Status)
		o.printf("Storage: %s\n", v.Storage)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	var tags []string
	if p.IsHost {
		tags = append(tags, "host")
	}
	if p.IsBot {
		tags = append(tags, "bot")
	}
	o.printf("Player: %s (%s)", p.Nickname, p.ID)
	if len(tags) > 0 {
		o.printf(" [%s]", strings.Join(tags, ", "))
	}
	o.printf("\n")
	o.printf("Score: %d\n", p.Score)
}

func (o *Output) printSnapshot(s model.Snapshot) {
	o.printf("Session: %s (%s)\n", s.Code, s.SessionID)
	o.printf("Status: %s\n", s.Status)
	if s.Round > 0 {
		o.printf("Round: %d\n", s.Round)
	}
	if s.CurrentItemID != nil {
		o.printf("Item: %s\n", *s.CurrentItemID)
	}

	names := make(map[model.PlayerID]string, len(s.Players))
	o.printf("Players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		names[p.ID] = p.Nickname

		var flags []string
		if p.IsHost {
			flags = append(flags, "host")
		}
		if p.IsBot {
			flags = append(flags, "bot")
		}
		if p.IsOnline {
			flags = append(flags, "online")
		}
		if s.Status == model.StatusEstimation && p.HasSubmitted {
			flags = append(flags, "submitted")
		}

		line := fmt.Sprintf("  - %s: %d pts", p.Nickname, p.Score)
		if p.LastEstimation != nil {
			line += fmt.Sprintf(", guessed %s", formatValue(*p.LastEstimation))
		}
		if len(flags) > 0 {
			line += " [" + strings.Join(flags, ", ") + "]"
		}
		o.printf("%s\n", line)
	}

	if r := s.Result; r != nil {
		o.printf("\nRound %d result (%s):\n", r.Round, r.ItemID)
		o.printf("  Median: %s\n", formatValue(r.Median))
		o.printf("  Range: %s - %s (%d submissions)\n", formatValue(r.Min), formatValue(r.Max), r.Submissions)
		winners := make([]string, 0, len(r.Winners))
		for _, id := range r.Winners {
			winners = append(winners, names[id])
		}
		if len(winners) > 0 {
			o.printf("  Closest: %s\n", strings.Join(winners, ", "))
		}
	}
}

func (o *Output) printItem(i response.Item) {
	o.printf("Item: %s (%s)\n", i.Name, i.ID)
	o.printf("Language: %s\n", i.Language)
	if i.Adjective != "" {
		o.printf("Description: %s\n", i.Adjective)
	}
	if i.ImageURL != "" {
		o.printf("Image: %s\n", i.ImageURL)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
