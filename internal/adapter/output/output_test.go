package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/niriurgent/internal/model"
)

func testRecords() []model.AttributionRecord {
	now := time.Now()
	return []model.AttributionRecord{
		{
			ID:           "01JABCDEF0000000000000000A",
			Timestamp:    now.Add(-5 * time.Minute).Unix(),
			AppName:      "Firefox",
			Summary:      "Download Complete",
			DesktopEntry: "firefox",
			Sender:       ":1.42",
			PID:          4242,
			Strategy:     model.StrategyPID,
			WindowIDs:    []uint64{7, 9},
		},
		{
			ID:        "01JABCDEF0000000000000000B",
			Timestamp: now.Add(-2 * time.Hour).Unix(),
			AppName:   "notify-send",
			Summary:   "Build\nfinished",
		},
	}
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &IDsFormatter{}, NewFormatter(FormatIDs, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter("bogus", opts))
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(DefaultFormatterOptions())

	require.NoError(t, f.Format(&buf, testRecords()))
	out := buf.String()

	assert.Contains(t, out, "[1] <Firefox> Download Complete -> pid (5 minutes ago)")
	assert.Contains(t, out, "pid=4242 entry=firefox sender=:1.42 windows=7,9")
	assert.Contains(t, out, "[2] <notify-send> Build finished -> unmatched (2 hours ago)")
	assert.Contains(t, out, "windows=-")
}

func TestPlainFormatter_NoDetail(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(FormatterOptions{})

	require.NoError(t, f.Format(&buf, testRecords()[:1]))
	assert.Equal(t, "<Firefox> Download Complete -> pid\n", buf.String())
}

func TestPlainFormatter_Truncate(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(FormatterOptions{MaxLen: 8})

	require.NoError(t, f.Format(&buf, testRecords()[:1]))
	assert.Contains(t, buf.String(), "Downl...")
}

func TestPlainFormatter_Template(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(FormatterOptions{
		Template: "{{.Index}}|{{.Record.AppName}}|{{strategy .Record.Strategy}}|{{windows .Record.WindowIDs}}\n",
	})

	require.NoError(t, f.Format(&buf, testRecords()))
	assert.Equal(t, "1|Firefox|pid|7,9\n2|notify-send|unmatched|-\n", buf.String())
}

func TestPlainFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(FormatterOptions{Template: "{{.Broken"})

	require.NoError(t, f.Format(&buf, testRecords()[:1]))
	assert.Contains(t, buf.String(), "<Firefox> Download Complete")
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(DefaultFormatterOptions())

	require.NoError(t, f.Format(&buf, testRecords()))

	var decoded []model.AttributionRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, model.StrategyPID, decoded[0].Strategy)
	assert.Equal(t, []uint64{7, 9}, decoded[0].WindowIDs)
}

func TestJSONFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(FormatterOptions{}).Format(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestJSONFormatter_FormatSingle(t *testing.T) {
	var buf bytes.Buffer
	rec := testRecords()[0]
	require.NoError(t, NewJSONFormatter(FormatterOptions{}).FormatSingle(&buf, &rec))
	assert.Contains(t, buf.String(), `"desktop_entry": "firefox"`)
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter().Format(&buf, testRecords()))

	var decoded []model.AttributionRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Firefox", decoded[0].AppName)
	assert.Empty(t, decoded[1].WindowIDs)
	assert.Contains(t, buf.String(), "strategy: pid")
}

func TestIDsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewIDsFormatter().Format(&buf, testRecords()))
	assert.Equal(t, "01JABCDEF0000000000000000A\n01JABCDEF0000000000000000B\n", buf.String())
}

func TestFormatField(t *testing.T) {
	recs := testRecords()
	tests := []struct {
		field string
		want  string
	}{
		{"id", "01JABCDEF0000000000000000A"},
		{"app", "Firefox"},
		{"summary", "Download Complete"},
		{"entry", "firefox"},
		{"sender", ":1.42"},
		{"pid", "4242"},
		{"strategy", "pid"},
		{"windows", "7,9"},
		{"unknown", "Download Complete"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatField(&recs[0], tt.field))
		})
	}
	assert.Equal(t, "", FormatField(&recs[1], "pid"))
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "unknown", relativeTime(0))
	assert.Equal(t, "3 hours ago", relativeTime(time.Now().Add(-3*time.Hour).Unix()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 0))
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "he...", truncate("hello world", 5))
	assert.Equal(t, "hel", truncate("hello", 3))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a b c", sanitize("a\r\nb   c\n"))
}
