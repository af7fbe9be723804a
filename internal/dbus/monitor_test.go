package dbus

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/niriurgent/internal/model"
)

type staticResolver map[string]uint32

func (r staticResolver) Query(_ context.Context, connection string) (uint32, bool) {
	pid, ok := r[connection]
	return pid, ok
}

func notifyMessage(sender string, body ...interface{}) *dbus.Message {
	if body == nil {
		body = []interface{}{
			"Firefox", uint32(0), "firefox", "Download complete", "file.zip",
			[]string{"default", "Open"},
			map[string]dbus.Variant{"desktop-entry": dbus.MakeVariant("firefox")},
			int32(-1),
		}
	}
	headers := map[dbus.HeaderField]dbus.Variant{
		dbus.FieldInterface: dbus.MakeVariant(NotificationsInterface),
		dbus.FieldMember:    dbus.MakeVariant(NotifyMember),
	}
	if sender != "" {
		headers[dbus.FieldSender] = dbus.MakeVariant(sender)
	}
	return &dbus.Message{Type: dbus.TypeMethodCall, Headers: headers, Body: body}
}

func runMonitor(t *testing.T, m *Monitor, msgs ...*dbus.Message) []*model.AttributedNotification {
	t.Helper()
	var got []*model.AttributedNotification
	if m.onNotify == nil {
		m.SetNotifyHandler(func(_ context.Context, n *model.AttributedNotification) error {
			got = append(got, n)
			return nil
		})
	}

	ch := make(chan *dbus.Message, len(msgs))
	for _, msg := range msgs {
		ch <- msg
	}
	close(ch)

	require.NoError(t, m.processMessages(context.Background(), ch))
	return got
}

func TestMonitor_AttributesSender(t *testing.T) {
	m := NewMonitor(staticResolver{":1.42": 500}, testLogger())

	got := runMonitor(t, m, notifyMessage(":1.42"))
	require.Len(t, got, 1)

	n := got[0]
	assert.Equal(t, ":1.42", n.Sender)
	require.NotNil(t, n.ResolvedPID)
	assert.Equal(t, uint32(500), *n.ResolvedPID)
	assert.Equal(t, "Firefox", n.Payload.AppName)
	assert.Equal(t, "firefox", n.Payload.DesktopEntry)
	assert.NotEmpty(t, n.ID)
}

func TestMonitor_UnknownSender(t *testing.T) {
	m := NewMonitor(staticResolver{}, testLogger())

	got := runMonitor(t, m, notifyMessage(":1.99"), notifyMessage(""))
	require.Len(t, got, 2)
	assert.Nil(t, got[0].ResolvedPID)
	assert.Nil(t, got[1].ResolvedPID)
	assert.Empty(t, got[1].Sender)
}

func TestMonitor_SkipsOtherTraffic(t *testing.T) {
	m := NewMonitor(nil, testLogger())

	other := notifyMessage(":1.1")
	other.Headers[dbus.FieldMember] = dbus.MakeVariant("CloseNotification")

	signal := notifyMessage(":1.1")
	signal.Type = dbus.TypeSignal

	got := runMonitor(t, m, other, signal, nil)
	assert.Empty(t, got)
}

func TestMonitor_DropsMalformedAndContinues(t *testing.T) {
	m := NewMonitor(nil, testLogger())

	short := notifyMessage(":1.1", "app", uint32(0))
	badType := notifyMessage(":1.1", 42, uint32(0), "", "s", "b", []string{}, map[string]dbus.Variant{}, int32(0))

	got := runMonitor(t, m, short, badType, notifyMessage(":1.1"))
	require.Len(t, got, 1)
	assert.Equal(t, "Download complete", got[0].Payload.Summary)
}

func TestMonitor_HandlerErrorStops(t *testing.T) {
	m := NewMonitor(nil, testLogger())
	calls := 0
	m.SetNotifyHandler(func(_ context.Context, _ *model.AttributedNotification) error {
		calls++
		return errors.New("consumer gone")
	})

	runMonitor(t, m, notifyMessage(":1.1"), notifyMessage(":1.1"))
	assert.Equal(t, 1, calls)
}

func TestParseNotify(t *testing.T) {
	_, err := parseNotify([]interface{}{"a"})
	assert.ErrorIs(t, err, ErrMalformedNotify)

	n, err := parseNotify([]interface{}{
		"app", uint32(7), "icon", "summary", "body", nil, nil, "not-an-int",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), n.ReplacesID)
	assert.Nil(t, n.Actions)
	assert.Nil(t, n.Hints)
	assert.Equal(t, int32(0), n.ExpireTimeout)
}
