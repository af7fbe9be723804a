package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/events"
	"github.com/jmylchreest/niriurgent/internal/match"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/niri"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var fixedNow = time.Unix(1_700_000_000, 0)

type fakeMatcher struct {
	result match.Result
	calls  int
}

func (m *fakeMatcher) Match(context.Context, *model.AttributedNotification, model.WindowSnapshot) match.Result {
	m.calls++
	return m.result
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []model.AttributionRecord
	err     error
}

func (r *fakeRecorder) Add(rec model.AttributionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

type fakeOutputs struct {
	names []string
	err   error
}

func (o *fakeOutputs) Outputs(context.Context) ([]niri.Output, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := make([]niri.Output, len(o.names))
	for i, n := range o.names {
		out[i] = niri.Output{Name: n}
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func window(id uint64, appID, output string, focused bool) model.WindowInfo {
	return model.WindowInfo{
		ID:        id,
		AppID:     ptr(appID),
		Title:     ptr(appID + " title"),
		IsFocused: focused,
		Output:    ptr(output),
	}
}

func notification(t *testing.T, summary string) *model.AttributedNotification {
	t.Helper()
	n, err := model.NewAttributedNotification(model.Notification{AppName: "app", Summary: summary}, ":1.5", nil)
	require.NoError(t, err)
	return n
}

func defaultOptions(stdout *bytes.Buffer) Options {
	cfg := config.DefaultConfig()
	return Options{
		Windows: cfg.Windows,
		Status:  cfg.Status,
		Stdout:  stdout,
		Now:     func() time.Time { return fixedNow },
	}
}

func snapshotEvent(windows ...model.WindowInfo) events.Event {
	return events.Event{Kind: events.KindWindowUpdate, Snapshot: model.NewWindowSnapshot(windows)}
}

func notifyEvent(n *model.AttributedNotification) events.Event {
	return events.Event{Kind: events.KindNotification, Notification: n}
}

func lastStatus(t *testing.T, buf *bytes.Buffer) Status {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var s Status
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &s))
	return s
}

func markedIDs(marks []model.UrgentMark) []uint64 {
	ids := make([]uint64, len(marks))
	for i, m := range marks {
		ids[i] = m.WindowID
	}
	return ids
}

func TestDaemon_NotificationBeforeSnapshotIgnored(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1}, Strategy: model.StrategyPID}}
	rec := &fakeRecorder{}
	d := New(m, rec, nil, defaultOptions(&bytes.Buffer{}), nil)

	d.Handle(context.Background(), notifyEvent(notification(t, "early")))

	assert.Zero(t, m.calls)
	assert.Empty(t, rec.records)
	assert.Empty(t, d.Urgent())
}

func TestDaemon_NotificationMarksWindows(t *testing.T) {
	var out bytes.Buffer
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1, 2}, Strategy: model.StrategyDesktopEntry}}
	rec := &fakeRecorder{}
	d := New(m, rec, nil, defaultOptions(&out), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", false), window(2, "kitty", "DP-1", false)))
	n := notification(t, "build done")
	d.Handle(ctx, notifyEvent(n))

	assert.Equal(t, 1, m.calls)
	assert.ElementsMatch(t, []uint64{1, 2}, markedIDs(d.Urgent()))

	require.Len(t, rec.records, 1)
	assert.Equal(t, n.ID, rec.records[0].ID)
	assert.Equal(t, model.StrategyDesktopEntry, rec.records[0].Strategy)
	assert.Equal(t, []uint64{1, 2}, rec.records[0].WindowIDs)

	s := lastStatus(t, &out)
	assert.Equal(t, "2", s.Text)
	assert.Equal(t, ClassUrgent, s.Class)
	assert.Contains(t, s.Tooltip, "kitty: build done")
}

func TestDaemon_UnmatchedNotificationStillRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	d := New(&fakeMatcher{}, rec, nil, defaultOptions(&bytes.Buffer{}), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "nobody")))

	require.Len(t, rec.records, 1)
	assert.False(t, rec.records[0].Matched())
	assert.Empty(t, d.Urgent())
}

func TestDaemon_RecorderFailureIsNotFatal(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1}, Strategy: model.StrategyPID}}
	d := New(m, &fakeRecorder{err: errors.New("disk full")}, nil, defaultOptions(&bytes.Buffer{}), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))

	assert.Equal(t, []uint64{1}, markedIDs(d.Urgent()))
}

func TestDaemon_FocusedWindowNotMarked(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1, 2}, Strategy: model.StrategyDesktopEntry}}
	d := New(m, nil, nil, defaultOptions(&bytes.Buffer{}), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", true), window(2, "kitty", "DP-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))

	assert.Equal(t, []uint64{2}, markedIDs(d.Urgent()))
}

func TestDaemon_FocusedWindowMarkedWhenClearOnFocusOff(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1}, Strategy: model.StrategyDesktopEntry}}
	opts := defaultOptions(&bytes.Buffer{})
	opts.Windows.ClearOnFocus = false
	d := New(m, nil, nil, opts, nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", true)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))

	assert.Equal(t, []uint64{1}, markedIDs(d.Urgent()))
}

func TestDaemon_WindowUpdateClearsMarks(t *testing.T) {
	var out bytes.Buffer
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1, 2, 3}, Strategy: model.StrategyDesktopEntry}}
	d := New(m, nil, nil, defaultOptions(&out), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(
		window(1, "a", "DP-1", false),
		window(2, "b", "DP-1", false),
		window(3, "c", "DP-1", false),
	))
	d.Handle(ctx, notifyEvent(notification(t, "x")))
	require.Len(t, d.Urgent(), 3)

	// 1 closed, 2 focused, 3 untouched.
	d.Handle(ctx, snapshotEvent(
		window(2, "b", "DP-1", true),
		window(3, "c", "DP-1", false),
	))

	assert.Equal(t, []uint64{3}, markedIDs(d.Urgent()))
	assert.Equal(t, "1", lastStatus(t, &out).Text)
}

func TestDaemon_StatusDeduplicated(t *testing.T) {
	var out bytes.Buffer
	d := New(&fakeMatcher{}, nil, nil, defaultOptions(&out), nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", false)))
	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", false)))
	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", true)))

	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	s := lastStatus(t, &out)
	assert.Equal(t, ClassIdle, s.Class)
	assert.Empty(t, s.Text)
}

func TestDaemon_StdoutDisabled(t *testing.T) {
	var out bytes.Buffer
	opts := defaultOptions(&out)
	opts.Status.Stdout = false
	d := New(&fakeMatcher{}, nil, nil, opts, nil)

	d.Handle(context.Background(), snapshotEvent(window(1, "a", "DP-1", false)))
	assert.Empty(t, out.String())
}

func TestDaemon_OutputFilter(t *testing.T) {
	var out bytes.Buffer
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1, 2}, Strategy: model.StrategyDesktopEntry}}
	opts := defaultOptions(&out)
	opts.Windows.ShowAllOutputs = false
	opts.Windows.Output = "DP-1"
	opts.StatePath = filepath.Join(t.TempDir(), "state.json")
	outputs := &fakeOutputs{names: []string{"DP-1", "HDMI-A-1"}}
	d := New(m, nil, outputs, opts, nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", false), window(2, "b", "HDMI-A-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))
	// No workspace change yet: every output is shown.
	assert.Equal(t, "2", lastStatus(t, &out).Text)

	d.Handle(ctx, events.Event{Kind: events.KindWorkspacesChanged})
	assert.Equal(t, DisplayFilter{Output: "DP-1"}, d.Filter())
	assert.Equal(t, "1", lastStatus(t, &out).Text)

	state, err := store.LoadSharedState(opts.StatePath)
	require.NoError(t, err)
	assert.Equal(t, "DP-1", state.Output)
	assert.Equal(t, []uint64{1}, markedIDs(state.Urgent))

	// Hidden marks survive and come back once the output is unplugged.
	outputs.names = []string{"DP-1"}
	d.Handle(ctx, events.Event{Kind: events.KindWorkspacesChanged})
	assert.True(t, d.Filter().ShowAll())
	assert.Equal(t, "2", lastStatus(t, &out).Text)
}

func TestDaemon_OutputListFailureKeepsFilter(t *testing.T) {
	opts := defaultOptions(&bytes.Buffer{})
	opts.Windows.ShowAllOutputs = false
	opts.Windows.Output = "DP-1"
	outputs := &fakeOutputs{names: []string{"DP-1", "DP-2"}}
	d := New(&fakeMatcher{}, nil, outputs, opts, nil)
	ctx := context.Background()

	d.Handle(ctx, events.Event{Kind: events.KindWorkspacesChanged})
	require.Equal(t, "DP-1", d.Filter().Output)

	outputs.err = errors.New("socket gone")
	d.Handle(ctx, events.Event{Kind: events.KindWorkspacesChanged})
	assert.Equal(t, "DP-1", d.Filter().Output)
}

func TestDaemon_ApplyConfig(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1}, Strategy: model.StrategyPID}}
	d := New(m, nil, nil, defaultOptions(&bytes.Buffer{}), nil)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Windows.ClearOnFocus = false
	d.ApplyConfig(cfg)

	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", true)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))
	assert.Equal(t, []uint64{1}, markedIDs(d.Urgent()))
}

func TestDaemon_RunConsumesCoordinator(t *testing.T) {
	var out syncBuffer
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1}, Strategy: model.StrategyPID}}
	opts := defaultOptions(nil)
	opts.Stdout = &out
	d := New(m, nil, nil, opts, nil)
	coord := events.NewCoordinator(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, coord) }()

	require.NoError(t, coord.UpdateWindows(model.NewWindowSnapshot([]model.WindowInfo{window(1, "a", "DP-1", false)})))
	require.NoError(t, coord.Notify(ctx, notification(t, "x")))

	require.Eventually(t, func() bool { return len(d.Urgent()) == 1 }, time.Second, 5*time.Millisecond)

	coord.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Contains(t, out.String(), `"class":"urgent"`)
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	d := New(&fakeMatcher{}, nil, nil, defaultOptions(&bytes.Buffer{}), nil)
	coord := events.NewCoordinator(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, coord) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDaemon_NoOutputConfiguredIsQuiet(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	opts := defaultOptions(&bytes.Buffer{})
	opts.Windows.ShowAllOutputs = false
	opts.Windows.Output = ""
	d := New(&fakeMatcher{}, nil, &fakeOutputs{names: []string{"DP-1", "DP-2"}}, opts, logger)

	d.Handle(context.Background(), events.Event{Kind: events.KindWorkspacesChanged})

	assert.True(t, d.Filter().ShowAll())
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestDaemon_LastNotificationPersisted(t *testing.T) {
	opts := defaultOptions(&bytes.Buffer{})
	opts.StatePath = filepath.Join(t.TempDir(), "state.json")
	d := New(&fakeMatcher{}, nil, nil, opts, nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "kitty", "DP-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))

	state, err := store.LoadSharedState(opts.StatePath)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Unix(), state.LastNotificationAt)
}

func TestDaemon_FocusKeepsMarkWhenClearOnFocusOff(t *testing.T) {
	m := &fakeMatcher{result: match.Result{WindowIDs: []uint64{1, 2}, Strategy: model.StrategyDesktopEntry}}
	opts := defaultOptions(&bytes.Buffer{})
	opts.Windows.ClearOnFocus = false
	d := New(m, nil, nil, opts, nil)
	ctx := context.Background()

	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", false), window(2, "b", "DP-1", false)))
	d.Handle(ctx, notifyEvent(notification(t, "x")))
	d.Handle(ctx, snapshotEvent(window(1, "a", "DP-1", true), window(2, "b", "DP-1", false)))

	assert.ElementsMatch(t, []uint64{1, 2}, markedIDs(d.Urgent()))
}
