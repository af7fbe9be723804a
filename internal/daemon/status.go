package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/store"
)

// Status is one line of Waybar custom module output.
type Status struct {
	Text       string `json:"text"`
	Alt        string `json:"alt"`
	Tooltip    string `json:"tooltip"`
	Class      string `json:"class"`
	Percentage int    `json:"percentage"`
}

// Status classes, also used as alt values for format-icons.
const (
	ClassUrgent = "urgent"
	ClassIdle   = "idle"
)

// StatusFromState renders state. maxEntries bounds the tooltip list
// (0 = unlimited) and now anchors the relative times.
func StatusFromState(state *store.SharedState, maxEntries int, now time.Time) Status {
	marks := state.Newest()
	if len(marks) == 0 {
		return Status{
			Alt:     ClassIdle,
			Class:   ClassIdle,
			Tooltip: "No urgent windows",
		}
	}

	shown := marks
	if maxEntries > 0 && len(shown) > maxEntries {
		shown = shown[:maxEntries]
	}

	lines := make([]string, 0, len(shown)+1)
	for _, m := range shown {
		lines = append(lines, tooltipLine(m, now))
	}
	if hidden := len(marks) - len(shown); hidden > 0 {
		lines = append(lines, fmt.Sprintf("+%d more", hidden))
	}

	return Status{
		Text:       fmt.Sprintf("%d", len(marks)),
		Alt:        ClassUrgent,
		Tooltip:    strings.Join(lines, "\n"),
		Class:      ClassUrgent,
		Percentage: 100,
	}
}

func tooltipLine(m model.UrgentMark, now time.Time) string {
	label := m.AppID
	if label == "" {
		label = fmt.Sprintf("window %d", m.WindowID)
	}
	if m.Summary != "" {
		label += ": " + m.Summary
	}
	if m.MarkedAt > 0 {
		label += " (" + humanize.RelTime(time.Unix(m.MarkedAt, 0), now, "ago", "from now") + ")"
	}
	return label
}

// WriteStatus writes s as a single JSON line.
func WriteStatus(w io.Writer, s Status) error {
	line, err := json.Marshal(s)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}
