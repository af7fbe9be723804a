package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/events"
	"github.com/jmylchreest/niriurgent/internal/match"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/niri"
	"github.com/jmylchreest/niriurgent/internal/store"
)

const outputsTimeout = time.Second

// Matcher attributes a notification to windows. *match.Matcher implements it.
type Matcher interface {
	Match(ctx context.Context, n *model.AttributedNotification, snapshot model.WindowSnapshot) match.Result
}

// Recorder appends to the attribution log. *store.History implements it.
type Recorder interface {
	Add(r model.AttributionRecord) error
}

// OutputLister lists connected outputs. *niri.Client implements it.
type OutputLister interface {
	Outputs(ctx context.Context) ([]niri.Output, error)
}

// EventSource is the merged feed. *events.Coordinator implements it.
type EventSource interface {
	Next(ctx context.Context) (events.Event, error)
}

// Options configures a Daemon.
type Options struct {
	Windows   config.WindowsConfig
	Status    config.StatusConfig
	StatePath string           // shared state file; "" disables it
	Stdout    io.Writer        // status lines; nil disables them
	Now       func() time.Time // clock, for tests
}

// Daemon applies coordinator events to the urgent window set.
type Daemon struct {
	mu sync.Mutex

	matcher  Matcher
	recorder Recorder
	outputs  OutputLister
	opts     Options
	logger   *slog.Logger

	snapshot     model.WindowSnapshot
	haveSnapshot bool
	marks        *store.SharedState
	filter       DisplayFilter
	lastLine     string
}

// New creates a Daemon. recorder and outputs may be nil.
func New(matcher Matcher, recorder Recorder, outputs OutputLister, opts Options, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Daemon{
		matcher:  matcher,
		recorder: recorder,
		outputs:  outputs,
		opts:     opts,
		logger:   logger,
		marks:    store.DefaultSharedState(),
	}
}

// ApplyConfig swaps the window and status settings. The output filter is
// recomputed on the next workspace change.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Windows = cfg.Windows
	d.opts.Status = cfg.Status
}

// Run consumes src until ctx is cancelled or the feed closes.
func (d *Daemon) Run(ctx context.Context, src EventSource) error {
	d.mu.Lock()
	d.refreshFilter(ctx)
	d.publish()
	d.mu.Unlock()

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, events.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.Handle(ctx, ev)
	}
}

// Handle applies a single event and publishes the resulting status.
func (d *Daemon) Handle(ctx context.Context, ev events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Kind {
	case events.KindNotification:
		if !d.handleNotification(ctx, ev.Notification) {
			return
		}
	case events.KindWindowUpdate:
		d.handleWindows(ev.Snapshot)
	case events.KindWorkspacesChanged:
		d.refreshFilter(ctx)
	default:
		d.logger.Warn("unknown event kind", "kind", ev.Kind)
		return
	}
	d.publish()
}

// Urgent returns the current marks, newest first, regardless of the filter.
func (d *Daemon) Urgent() []model.UrgentMark {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.marks.Newest()
}

// Filter returns the current output filter.
func (d *Daemon) Filter() DisplayFilter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

func (d *Daemon) handleNotification(ctx context.Context, n *model.AttributedNotification) bool {
	if n == nil {
		return false
	}
	if !d.haveSnapshot {
		d.logger.Debug("no window snapshot yet, ignoring notification", "id", n.ID, "app", n.Payload.AppName)
		return false
	}

	res := d.matcher.Match(ctx, n, d.snapshot)
	d.marks.UpdateLastNotification(d.opts.Now())
	now := d.marks.LastNotificationAt

	for _, id := range res.WindowIDs {
		w, ok := d.snapshot.Lookup(id)
		if !ok {
			continue
		}
		if w.IsFocused && d.opts.Windows.ClearOnFocus {
			d.logger.Debug("window already focused, not marking", "window", id)
			continue
		}
		d.marks.Mark(model.UrgentMark{
			WindowID:       id,
			AppID:          w.AppIDOrEmpty(),
			Title:          w.TitleOrEmpty(),
			NotificationID: n.ID,
			Summary:        n.Payload.Summary,
			MarkedAt:       now,
		})
	}

	d.logger.Info("notification attributed",
		"id", n.ID,
		"app", n.Payload.AppName,
		"strategy", res.Strategy,
		"windows", res.WindowIDs)

	if d.recorder != nil {
		rec := model.NewAttributionRecord(n, res.Strategy, res.WindowIDs)
		if err := d.recorder.Add(rec); err != nil {
			d.logger.Warn("failed to record attribution", "id", n.ID, "error", err)
		}
	}
	return true
}

func (d *Daemon) handleWindows(snapshot model.WindowSnapshot) {
	d.snapshot = snapshot
	d.haveSnapshot = true

	removed := d.marks.Retain(func(m model.UrgentMark) bool {
		_, ok := snapshot.Lookup(m.WindowID)
		return ok
	})
	for _, m := range removed {
		d.logger.Debug("urgent window closed", "window", m.WindowID, "app", m.AppID)
	}

	if !d.opts.Windows.ClearOnFocus {
		return
	}
	if focused, ok := snapshot.Focused(); ok && d.marks.Clear(focused.ID) {
		d.logger.Debug("urgency acknowledged by focus", "window", focused.ID, "app", focused.AppIDOrEmpty())
	}
}

// refreshFilter recomputes the output filter from the connected outputs.
func (d *Daemon) refreshFilter(ctx context.Context) {
	cfg := d.opts.Windows
	if cfg.ShowAllOutputs {
		d.filter = DisplayFilter{}
		return
	}

	var names []string
	if d.outputs != nil {
		ctx, cancel := context.WithTimeout(ctx, outputsTimeout)
		outputs, err := d.outputs.Outputs(ctx)
		cancel()
		if err != nil {
			d.logger.Warn("failed to list outputs, keeping filter", "error", err)
			return
		}
		for _, o := range outputs {
			names = append(names, o.Name)
		}
	}

	filter, ok := ChooseFilter(cfg, names)
	if !ok {
		d.logger.Warn("configured output not connected, showing all outputs",
			"output", cfg.Output, "connected", names)
	}
	if filter != d.filter {
		d.logger.Info("output filter changed", "output", filter.Output)
	}
	d.filter = filter
}

// visibleState is the state as published: only marks passing the filter.
func (d *Daemon) visibleState() *store.SharedState {
	state := store.DefaultSharedState()
	state.Output = d.filter.Output
	state.LastNotificationAt = d.marks.LastNotificationAt
	state.UpdatedAt = d.opts.Now().Unix()
	state.DaemonPID = os.Getpid()

	for _, m := range d.marks.Urgent {
		w, ok := d.snapshot.Lookup(m.WindowID)
		if ok && !d.filter.Allows(w) {
			continue
		}
		state.Urgent = append(state.Urgent, m)
	}
	return state
}

func (d *Daemon) publish() {
	state := d.visibleState()

	if d.opts.StatePath != "" {
		if err := store.SaveSharedState(d.opts.StatePath, state); err != nil {
			d.logger.Warn("failed to save state", "path", d.opts.StatePath, "error", err)
		}
	}

	if d.opts.Stdout == nil || !d.opts.Status.Stdout {
		return
	}
	status := StatusFromState(state, d.opts.Status.MaxTooltipEntries, d.opts.Now())
	line := status.Text + "\x00" + status.Tooltip + "\x00" + status.Class
	if line == d.lastLine {
		return
	}
	d.lastLine = line
	if err := WriteStatus(d.opts.Stdout, status); err != nil {
		d.logger.Warn("failed to write status", "error", err)
	}
}
