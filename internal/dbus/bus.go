package dbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// SessionBus is a private session bus connection used to query the bus
// driver for connection credentials and to follow NameOwnerChanged.
type SessionBus struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// ConnectSessionBus opens a private session bus connection.
// A private connection is used so Close does not tear down the shared one.
func ConnectSessionBus(logger *slog.Logger) (*SessionBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &SessionBus{conn: conn, logger: logger}, nil
}

// ConnectionPID asks the bus driver which process owns name.
// GetConnectionCredentials is tried first; a credentials map without a
// ProcessID is a definitive "no pid". Older daemons fall back to
// GetConnectionUnixProcessID.
func (b *SessionBus) ConnectionPID(ctx context.Context, name string) (*uint32, error) {
	obj := b.conn.BusObject()

	var creds map[string]dbus.Variant
	err := obj.CallWithContext(ctx, BusInterface+".GetConnectionCredentials", 0, name).Store(&creds)
	if err == nil {
		return pidFromCredentials(creds), nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("get credentials for %s: %w", name, err)
	}

	var pid uint32
	if err := obj.CallWithContext(ctx, BusInterface+".GetConnectionUnixProcessID", 0, name).Store(&pid); err != nil {
		return nil, fmt.Errorf("get unix process id for %s: %w", name, err)
	}
	return &pid, nil
}

// pidFromCredentials extracts ProcessID from a credentials map.
func pidFromCredentials(creds map[string]dbus.Variant) *uint32 {
	v, ok := creds["ProcessID"]
	if !ok {
		return nil
	}
	pid, ok := v.Value().(uint32)
	if !ok {
		return nil
	}
	return &pid
}

// OwnerChanges subscribes to NameOwnerChanged and returns the decoded
// stream. The channel closes when ctx is cancelled.
func (b *SessionBus) OwnerChanges(ctx context.Context) (<-chan OwnerChange, error) {
	err := b.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchSender(BusName),
		dbus.WithMatchInterface(BusInterface),
		dbus.WithMatchMember(NameOwnerChangedMember),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", NameOwnerChangedMember, err)
	}

	signals := make(chan *dbus.Signal, 64)
	b.conn.Signal(signals)

	out := make(chan OwnerChange, 64)
	go func() {
		defer close(out)
		defer b.conn.RemoveSignal(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				change, ok := ownerChangeFromSignal(sig)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	b.logger.Debug("subscribed to name owner changes")
	return out, nil
}

// ownerChangeFromSignal decodes NameOwnerChanged(name, old_owner, new_owner).
func ownerChangeFromSignal(sig *dbus.Signal) (OwnerChange, bool) {
	if sig == nil || sig.Name != BusInterface+"."+NameOwnerChangedMember || len(sig.Body) != 3 {
		return OwnerChange{}, false
	}

	name, ok1 := sig.Body[0].(string)
	oldOwner, ok2 := sig.Body[1].(string)
	newOwner, ok3 := sig.Body[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return OwnerChange{}, false
	}

	return OwnerChange{Name: name, OldOwner: oldOwner, NewOwner: newOwner}, true
}

// Close closes the connection.
func (b *SessionBus) Close() error {
	return b.conn.Close()
}
