package output

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Record       *model.AttributionRecord
	RelativeTime string
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime":  relativeTime,
		"windows":  windowList,
		"strategy": strategyLabel,
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(timestamp, 0))
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// sanitize flattens text onto one line.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

func windowList(ids []uint64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

func strategyLabel(s model.Strategy) string {
	if s == model.StrategyNone {
		return "unmatched"
	}
	return string(s)
}
