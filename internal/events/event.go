package events

import "github.com/jmylchreest/niriurgent/internal/model"

// Kind tags an Event.
type Kind int

const (
	KindNotification Kind = iota
	KindWindowUpdate
	KindWorkspacesChanged
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindWindowUpdate:
		return "window-update"
	case KindWorkspacesChanged:
		return "workspaces-changed"
	default:
		return "unknown"
	}
}

// Event is one item of the merged feed. Notification is set for
// KindNotification and Snapshot for KindWindowUpdate; workspace changes
// carry no payload.
type Event struct {
	Kind         Kind
	Notification *model.AttributedNotification
	Snapshot     model.WindowSnapshot
}
