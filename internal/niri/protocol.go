package niri

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Window as reported by niri.
type Window struct {
	ID          uint64  `json:"id"`
	Title       *string `json:"title"`
	AppID       *string `json:"app_id"`
	PID         *int    `json:"pid"`
	WorkspaceID *uint64 `json:"workspace_id"`
	IsFocused   bool    `json:"is_focused"`
	IsFloating  bool    `json:"is_floating"`
	IsUrgent    bool    `json:"is_urgent"`
}

// Workspace as reported by niri.
type Workspace struct {
	ID             uint64  `json:"id"`
	Idx            uint8   `json:"idx"`
	Name           *string `json:"name"`
	Output         *string `json:"output"`
	IsActive       bool    `json:"is_active"`
	IsFocused      bool    `json:"is_focused"`
	ActiveWindowID *uint64 `json:"active_window_id"`
}

// LogicalOutput is the position and size of an output in the global space.
type LogicalOutput struct {
	X      int32   `json:"x"`
	Y      int32   `json:"y"`
	Width  uint32  `json:"width"`
	Height uint32  `json:"height"`
	Scale  float64 `json:"scale"`
}

// Output is a connected display.
type Output struct {
	Name    string         `json:"name"`
	Make    string         `json:"make"`
	Model   string         `json:"model"`
	Serial  *string        `json:"serial"`
	Logical *LogicalOutput `json:"logical"`
}

// Event is one line of the event stream. Exactly one field is set for
// known events; all are nil for events this package does not track.
type Event struct {
	WindowsChanged        *WindowsChanged        `json:"WindowsChanged,omitempty"`
	WindowOpenedOrChanged *WindowOpenedOrChanged `json:"WindowOpenedOrChanged,omitempty"`
	WindowClosed          *WindowClosed          `json:"WindowClosed,omitempty"`
	WindowFocusChanged    *WindowFocusChanged    `json:"WindowFocusChanged,omitempty"`
	WorkspacesChanged     *WorkspacesChanged     `json:"WorkspacesChanged,omitempty"`
	WorkspaceActivated    *WorkspaceActivated    `json:"WorkspaceActivated,omitempty"`
	WindowUrgencyChanged  *WindowUrgencyChanged  `json:"WindowUrgencyChanged,omitempty"`
}

// WindowsChanged replaces the full window list.
type WindowsChanged struct {
	Windows []Window `json:"windows"`
}

// WindowOpenedOrChanged adds or replaces one window.
type WindowOpenedOrChanged struct {
	Window Window `json:"window"`
}

// WindowClosed removes one window.
type WindowClosed struct {
	ID uint64 `json:"id"`
}

// WindowFocusChanged moves focus; a nil ID means no window is focused.
type WindowFocusChanged struct {
	ID *uint64 `json:"id"`
}

// WorkspacesChanged replaces the full workspace list.
type WorkspacesChanged struct {
	Workspaces []Workspace `json:"workspaces"`
}

// WorkspaceActivated makes a workspace active on its output.
type WorkspaceActivated struct {
	ID      uint64 `json:"id"`
	Focused bool   `json:"focused"`
}

// WindowUrgencyChanged reports niri's own urgency flag.
type WindowUrgencyChanged struct {
	ID     uint64 `json:"id"`
	Urgent bool   `json:"urgent"`
}

// Name returns the event's variant name, or "" for untracked events.
func (e Event) Name() string {
	switch {
	case e.WindowsChanged != nil:
		return "WindowsChanged"
	case e.WindowOpenedOrChanged != nil:
		return "WindowOpenedOrChanged"
	case e.WindowClosed != nil:
		return "WindowClosed"
	case e.WindowFocusChanged != nil:
		return "WindowFocusChanged"
	case e.WorkspacesChanged != nil:
		return "WorkspacesChanged"
	case e.WorkspaceActivated != nil:
		return "WorkspaceActivated"
	case e.WindowUrgencyChanged != nil:
		return "WindowUrgencyChanged"
	default:
		return ""
	}
}

// ErrCompositor wraps an Err reply from niri.
var ErrCompositor = errors.New("niri returned an error")

// reply is the envelope around every response: {"Ok": ...} or {"Err": "..."}.
type reply struct {
	Ok  json.RawMessage `json:"Ok"`
	Err *string         `json:"Err"`
}

func decodeReply(line []byte) (json.RawMessage, error) {
	var r reply
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if r.Err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompositor, *r.Err)
	}
	if r.Ok == nil {
		return nil, fmt.Errorf("decode reply: missing Ok")
	}
	return r.Ok, nil
}

// focusWindowRequest is {"Action":{"FocusWindow":{"id":N}}}.
type focusWindowRequest struct {
	Action struct {
		FocusWindow struct {
			ID uint64 `json:"id"`
		} `json:"FocusWindow"`
	} `json:"Action"`
}
