package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/niriurgent/internal/model"
)

const (
	// NotificationsInterface is the notification interface name.
	NotificationsInterface = "org.freedesktop.Notifications"
	// NotifyMember is the method carrying a new notification.
	NotifyMember = "Notify"

	// BusInterface is the bus driver interface.
	BusInterface = "org.freedesktop.DBus"
	// BusName is the bus driver's well-known name.
	BusName = "org.freedesktop.DBus"
	// NameOwnerChangedMember is the ownership change signal.
	NameOwnerChangedMember = "NameOwnerChanged"
)

// DBusNotification represents an incoming D-Bus Notify call.
// It contains the raw parameters from the org.freedesktop.Notifications.Notify method.
type DBusNotification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// ParsedActions converts the D-Bus action array to structured form.
// D-Bus actions are passed as alternating key/label pairs.
func (n *DBusNotification) ParsedActions() []model.Action {
	actions := make([]model.Action, 0, len(n.Actions)/2)
	for i := 0; i+1 < len(n.Actions); i += 2 {
		actions = append(actions, model.Action{
			Key:   n.Actions[i],
			Label: n.Actions[i+1],
		})
	}
	return actions
}

// Urgency extracts the urgency hint from the notification.
// Returns model.UrgencyNormal if not specified.
func (n *DBusNotification) Urgency() int {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return int(b)
		}
	}
	return model.UrgencyNormal
}

// DesktopEntry extracts the desktop-entry hint.
func (n *DBusNotification) DesktopEntry() string {
	if v, ok := n.Hints["desktop-entry"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// SenderPID extracts the sender-pid hint some toolkits attach.
// Any integer width is accepted; non-positive values are ignored.
func (n *DBusNotification) SenderPID() (int, bool) {
	v, ok := n.Hints["sender-pid"]
	if !ok {
		return 0, false
	}

	var pid int64
	switch val := v.Value().(type) {
	case int64:
		pid = val
	case uint64:
		pid = int64(val)
	case int32:
		pid = int64(val)
	case uint32:
		pid = int64(val)
	case int16:
		pid = int64(val)
	case uint16:
		pid = int64(val)
	default:
		return 0, false
	}

	if pid <= 0 {
		return 0, false
	}
	return int(pid), true
}

// Model converts the call into the payload carried by the event stream.
func (n *DBusNotification) Model() model.Notification {
	out := model.Notification{
		AppName:       n.AppName,
		ReplacesID:    n.ReplacesID,
		AppIcon:       n.AppIcon,
		Summary:       n.Summary,
		Body:          n.Body,
		Actions:       n.ParsedActions(),
		Urgency:       n.Urgency(),
		ExpireTimeout: n.ExpireTimeout,
		DesktopEntry:  n.DesktopEntry(),
	}
	if pid, ok := n.SenderPID(); ok {
		out.SenderPID = &pid
	}
	return out
}

// OwnerChange is a decoded NameOwnerChanged signal.
// An empty NewOwner means the name was released.
type OwnerChange struct {
	Name     string
	OldOwner string
	NewOwner string
}
