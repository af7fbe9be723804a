package niri

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// EventSource yields compositor events. *EventStream implements it.
type EventSource interface {
	Next() (Event, error)
	Close() error
}

// Tracker folds compositor events into window snapshots and workspace
// change markers. Only the goroutine running Run touches its state.
type Tracker struct {
	logger *slog.Logger

	windows      map[uint64]Window
	workspaces   map[uint64]Workspace
	windowsKnown bool

	snapshots  chan model.WindowSnapshot
	workspaceC chan struct{}
}

// NewTracker creates a tracker with empty state.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:     logger,
		windows:    make(map[uint64]Window),
		workspaces: make(map[uint64]Workspace),
		snapshots:  make(chan model.WindowSnapshot, 16),
		workspaceC: make(chan struct{}, 16),
	}
}

// Snapshots delivers a new snapshot after every change to the window set.
// It is closed when Run returns.
func (t *Tracker) Snapshots() <-chan model.WindowSnapshot {
	return t.snapshots
}

// WorkspaceChanges delivers a marker each time the workspace set changes.
// It is closed when Run returns.
func (t *Tracker) WorkspaceChanges() <-chan struct{} {
	return t.workspaceC
}

// Run reads src until it ends or ctx is done.
func (t *Tracker) Run(ctx context.Context, src EventSource) error {
	defer close(t.snapshots)
	defer close(t.workspaceC)
	defer src.Close()

	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				t.logger.Warn("niri event stream closed")
				return fmt.Errorf("niri event stream closed: %w", err)
			}
			return fmt.Errorf("read niri event: %w", err)
		}

		windowsChanged, workspacesChanged := t.Apply(ev)

		if windowsChanged && t.windowsKnown {
			select {
			case t.snapshots <- t.Snapshot():
			case <-ctx.Done():
				return nil
			}
		}
		if workspacesChanged {
			select {
			case t.workspaceC <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Apply folds ev into the tracked state and reports what changed.
// Workspace changes also count as window changes because they can move
// windows between outputs.
func (t *Tracker) Apply(ev Event) (windowsChanged, workspacesChanged bool) {
	switch {
	case ev.WindowsChanged != nil:
		t.windows = make(map[uint64]Window, len(ev.WindowsChanged.Windows))
		for _, w := range ev.WindowsChanged.Windows {
			t.windows[w.ID] = w
		}
		t.windowsKnown = true
		return true, false

	case ev.WindowOpenedOrChanged != nil:
		w := ev.WindowOpenedOrChanged.Window
		if w.IsFocused {
			t.clearFocus()
		}
		t.windows[w.ID] = w
		return true, false

	case ev.WindowClosed != nil:
		if _, ok := t.windows[ev.WindowClosed.ID]; !ok {
			return false, false
		}
		delete(t.windows, ev.WindowClosed.ID)
		return true, false

	case ev.WindowFocusChanged != nil:
		t.clearFocus()
		if id := ev.WindowFocusChanged.ID; id != nil {
			if w, ok := t.windows[*id]; ok {
				w.IsFocused = true
				t.windows[*id] = w
			}
		}
		return true, false

	case ev.WorkspacesChanged != nil:
		t.workspaces = make(map[uint64]Workspace, len(ev.WorkspacesChanged.Workspaces))
		for _, ws := range ev.WorkspacesChanged.Workspaces {
			t.workspaces[ws.ID] = ws
		}
		return true, true

	case ev.WorkspaceActivated != nil:
		target, ok := t.workspaces[ev.WorkspaceActivated.ID]
		if !ok {
			return false, false
		}
		focused := ev.WorkspaceActivated.Focused
		for id, ws := range t.workspaces {
			if sameOutput(ws, target) {
				ws.IsActive = false
			}
			if focused {
				ws.IsFocused = false
			}
			t.workspaces[id] = ws
		}
		target = t.workspaces[target.ID]
		target.IsActive = true
		if focused {
			target.IsFocused = true
		}
		t.workspaces[target.ID] = target
		return false, false
	}

	// WindowUrgencyChanged and untracked events: urgency is ours to decide.
	return false, false
}

func sameOutput(a, b Workspace) bool {
	return a.Output != nil && b.Output != nil && *a.Output == *b.Output
}

func (t *Tracker) clearFocus() {
	for id, w := range t.windows {
		if w.IsFocused {
			w.IsFocused = false
			t.windows[id] = w
		}
	}
}

// Snapshot builds an immutable snapshot ordered by window id, with each
// window's output resolved through its workspace.
func (t *Tracker) Snapshot() model.WindowSnapshot {
	ids := make([]uint64, 0, len(t.windows))
	for id := range t.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	infos := make([]model.WindowInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, ToWindowInfo(t.windows[id], t.workspaces))
	}
	return model.NewWindowSnapshot(infos)
}

// ToWindowInfo converts a niri window, looking up its output in workspaces.
func ToWindowInfo(w Window, workspaces map[uint64]Workspace) model.WindowInfo {
	info := model.WindowInfo{
		ID:          w.ID,
		AppID:       w.AppID,
		Title:       w.Title,
		PID:         w.PID,
		IsFocused:   w.IsFocused,
		WorkspaceID: w.WorkspaceID,
	}
	if w.WorkspaceID != nil {
		if ws, ok := workspaces[*w.WorkspaceID]; ok {
			info.Output = ws.Output
		}
	}
	return info
}

// SnapshotFrom builds a snapshot from one-shot Windows and Workspaces replies.
func SnapshotFrom(windows []Window, workspaces []Workspace) model.WindowSnapshot {
	t := NewTracker(nil)
	t.Apply(Event{WorkspacesChanged: &WorkspacesChanged{Workspaces: workspaces}})
	t.Apply(Event{WindowsChanged: &WindowsChanged{Windows: windows}})
	return t.Snapshot()
}
