package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// PIDResolver resolves a sender identity to a pid. *PIDCache implements it.
type PIDResolver interface {
	Query(ctx context.Context, connection string) (uint32, bool)
}

// NotificationHandler receives each attributed notification.
// Returning an error stops the monitor.
type NotificationHandler func(ctx context.Context, n *model.AttributedNotification) error

// ErrMalformedNotify is returned for Notify calls whose body cannot be decoded.
var ErrMalformedNotify = errors.New("malformed Notify call")

// Monitor passively observes D-Bus notification traffic without claiming ownership.
// This allows running alongside any notification daemon (mako, dunst, swaync).
type Monitor struct {
	conn     *dbus.Conn
	logger   *slog.Logger
	resolver PIDResolver

	onNotify NotificationHandler
}

// NewMonitor creates a new notification monitor. resolver may be nil, in
// which case only sender-pid hints are available for attribution.
func NewMonitor(resolver PIDResolver, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger,
		resolver: resolver,
	}
}

// SetNotifyHandler sets the callback for received notifications.
func (m *Monitor) SetNotifyHandler(handler NotificationHandler) {
	m.onNotify = handler
}

// Run connects to the session bus, becomes a monitor for Notify calls and
// processes them until ctx is cancelled or the handler fails.
func (m *Monitor) Run(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn
	defer conn.Close()

	// Become a monitor - this allows us to see all bus traffic
	// We specifically want to see Notify method calls to org.freedesktop.Notifications
	rules := []string{
		"type='method_call',interface='" + NotificationsInterface + "',member='" + NotifyMember + "'",
	}

	// BecomeMonitor has no return value - just check for error
	err = conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		rules,
		uint32(0),
	).Err

	if err != nil {
		// BecomeMonitor might not be available (older D-Bus versions)
		// Fall back to eavesdropping via match rules
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		if err := m.addEavesdropMatch(ctx); err != nil {
			return err
		}
	} else {
		m.logger.Info("started D-Bus monitor using BecomeMonitor")
	}

	ch := make(chan *dbus.Message, 100)
	conn.Eavesdrop(ch)

	return m.processMessages(ctx, ch)
}

// addEavesdropMatch uses the older AddMatch API for eavesdropping.
func (m *Monitor) addEavesdropMatch(ctx context.Context) error {
	matchRule := "type='method_call',interface='" + NotificationsInterface + "',member='" + NotifyMember + "',eavesdrop='true'"

	err := m.conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.AddMatch",
		0,
		matchRule,
	).Err

	if err != nil {
		return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")
	return nil
}

// processMessages reads messages until ctx is done, ch closes, or the
// handler reports an error.
func (m *Monitor) processMessages(ctx context.Context, ch <-chan *dbus.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				m.logger.Warn("D-Bus message stream closed")
				return nil
			}
			if !isNotifyCall(msg) {
				continue
			}

			n, err := m.attribute(ctx, msg)
			if err != nil {
				m.logger.Warn("dropping notification", "error", err)
				continue
			}

			m.logger.Debug("captured notification",
				"id", n.ID,
				"app", n.Payload.AppName,
				"summary", n.Payload.Summary,
				"sender", n.Sender)

			if m.onNotify != nil {
				if err := m.onNotify(ctx, n); err != nil {
					m.logger.Info("notification handler stopped monitor", "error", err)
					return nil
				}
			}
		}
	}
}

// isNotifyCall reports whether msg is an org.freedesktop.Notifications.Notify call.
func isNotifyCall(msg *dbus.Message) bool {
	if msg == nil || msg.Type != dbus.TypeMethodCall {
		return false
	}
	if iface, ok := msg.Headers[dbus.FieldInterface]; !ok || iface.Value() != NotificationsInterface {
		return false
	}
	if member, ok := msg.Headers[dbus.FieldMember]; !ok || member.Value() != NotifyMember {
		return false
	}
	return true
}

// attribute decodes a Notify call and resolves its sender to a pid.
func (m *Monitor) attribute(ctx context.Context, msg *dbus.Message) (*model.AttributedNotification, error) {
	notification, err := parseNotify(msg.Body)
	if err != nil {
		return nil, err
	}

	var sender string
	if v, ok := msg.Headers[dbus.FieldSender]; ok {
		sender, _ = v.Value().(string)
	}

	var resolved *uint32
	if sender != "" && m.resolver != nil {
		if pid, ok := m.resolver.Query(ctx, sender); ok {
			resolved = &pid
		}
	}

	return model.NewAttributedNotification(notification.Model(), sender, resolved)
}

// parseNotify decodes Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout).
func parseNotify(body []interface{}) (*DBusNotification, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: body has %d arguments", ErrMalformedNotify, len(body))
	}

	notification := &DBusNotification{}

	var ok bool
	if notification.AppName, ok = body[0].(string); !ok {
		return nil, fmt.Errorf("%w: invalid app_name type", ErrMalformedNotify)
	}
	if notification.ReplacesID, ok = body[1].(uint32); !ok {
		return nil, fmt.Errorf("%w: invalid replaces_id type", ErrMalformedNotify)
	}
	if notification.AppIcon, ok = body[2].(string); !ok {
		return nil, fmt.Errorf("%w: invalid app_icon type", ErrMalformedNotify)
	}
	if notification.Summary, ok = body[3].(string); !ok {
		return nil, fmt.Errorf("%w: invalid summary type", ErrMalformedNotify)
	}
	if notification.Body, ok = body[4].(string); !ok {
		return nil, fmt.Errorf("%w: invalid body type", ErrMalformedNotify)
	}

	// Actions is []string
	if actions, ok := body[5].([]string); ok {
		notification.Actions = actions
	}

	// Hints is map[string]dbus.Variant
	if hints, ok := body[6].(map[string]dbus.Variant); ok {
		notification.Hints = hints
	}

	// ExpireTimeout is int32
	if timeout, ok := body[7].(int32); ok {
		notification.ExpireTimeout = timeout
	}

	return notification, nil
}
