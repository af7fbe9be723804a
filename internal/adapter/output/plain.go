package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// PlainFormatter formats records as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter. An invalid custom
// template is ignored in favour of the default layout.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes records as plain text.
func (f *PlainFormatter) Format(w io.Writer, records []model.AttributionRecord) error {
	for i := range records {
		if err := f.formatRecord(w, i+1, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatRecord(w io.Writer, index int, r *model.AttributionRecord) error {
	if f.template != nil {
		return f.template.Execute(w, templateData{
			Index:        index,
			Record:       r,
			RelativeTime: relativeTime(r.Timestamp),
		})
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	if r.AppName != "" {
		fmt.Fprintf(&sb, "<%s> ", r.AppName)
	}
	sb.WriteString(truncate(sanitize(r.Summary), f.opts.MaxLen))
	fmt.Fprintf(&sb, " -> %s", strategyLabel(r.Strategy))
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", relativeTime(r.Timestamp))
	}
	sb.WriteString("\n")

	if f.opts.ShowDetail {
		var detail []string
		if r.PID > 0 {
			detail = append(detail, fmt.Sprintf("pid=%d", r.PID))
		}
		if r.DesktopEntry != "" {
			detail = append(detail, "entry="+r.DesktopEntry)
		}
		if r.Sender != "" {
			detail = append(detail, "sender="+r.Sender)
		}
		detail = append(detail, "windows="+windowList(r.WindowIDs))
		sb.WriteString("    " + strings.Join(detail, " ") + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatField outputs a specific field from a record.
func FormatField(r *model.AttributionRecord, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return r.ID
	case "app", "app_name", "appname":
		return r.AppName
	case "summary":
		return r.Summary
	case "entry", "desktop_entry":
		return r.DesktopEntry
	case "sender":
		return r.Sender
	case "pid":
		if r.PID == 0 {
			return ""
		}
		return fmt.Sprintf("%d", r.PID)
	case "strategy":
		return string(r.Strategy)
	case "windows", "window_ids":
		return windowList(r.WindowIDs)
	default:
		return r.Summary
	}
}
