package model

// WindowInfo describes a single compositor window at one instant.
// Optional fields are nil when the compositor did not report them.
type WindowInfo struct {
	ID          uint64  `json:"id" yaml:"id"`
	AppID       *string `json:"app_id,omitempty" yaml:"app_id,omitempty"`
	Title       *string `json:"title,omitempty" yaml:"title,omitempty"`
	PID         *int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	IsFocused   bool    `json:"is_focused" yaml:"is_focused"`
	Output      *string `json:"output,omitempty" yaml:"output,omitempty"`
	WorkspaceID *uint64 `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
}

// AppIDOrEmpty returns the app identifier or "" when absent.
func (w WindowInfo) AppIDOrEmpty() string {
	if w.AppID == nil {
		return ""
	}
	return *w.AppID
}

// TitleOrEmpty returns the title or "" when absent.
func (w WindowInfo) TitleOrEmpty() string {
	if w.Title == nil {
		return ""
	}
	return *w.Title
}

// OutputOrEmpty returns the output name or "" when absent.
func (w WindowInfo) OutputOrEmpty() string {
	if w.Output == nil {
		return ""
	}
	return *w.Output
}

// WindowSnapshot is an immutable, ordered view of every window at one instant.
// A snapshot is replaced wholesale on each update; it is never edited.
type WindowSnapshot struct {
	windows []WindowInfo
}

// NewWindowSnapshot copies windows into a new snapshot.
func NewWindowSnapshot(windows []WindowInfo) WindowSnapshot {
	cp := make([]WindowInfo, len(windows))
	copy(cp, windows)
	return WindowSnapshot{windows: cp}
}

// Windows returns a copy of the windows in snapshot order.
func (s WindowSnapshot) Windows() []WindowInfo {
	cp := make([]WindowInfo, len(s.windows))
	copy(cp, s.windows)
	return cp
}

// Len returns the number of windows.
func (s WindowSnapshot) Len() int {
	return len(s.windows)
}

// At returns the window at index i.
func (s WindowSnapshot) At(i int) WindowInfo {
	return s.windows[i]
}

// Lookup finds a window by ID.
func (s WindowSnapshot) Lookup(id uint64) (WindowInfo, bool) {
	for _, w := range s.windows {
		if w.ID == id {
			return w, true
		}
	}
	return WindowInfo{}, false
}

// Focused returns the focused window, if any.
func (s WindowSnapshot) Focused() (WindowInfo, bool) {
	for _, w := range s.windows {
		if w.IsFocused {
			return w, true
		}
	}
	return WindowInfo{}, false
}
