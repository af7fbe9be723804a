// Package model defines the core data structures for niriurgent.
package model

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Urgency levels matching freedesktop spec.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Notification is the decoded payload of a Notify call.
type Notification struct {
	AppName       string   `json:"app_name"`
	ReplacesID    uint32   `json:"replaces_id,omitempty"`
	AppIcon       string   `json:"app_icon,omitempty"`
	Summary       string   `json:"summary"`
	Body          string   `json:"body,omitempty"`
	Actions       []Action `json:"actions,omitempty"`
	Urgency       int      `json:"urgency"`
	ExpireTimeout int32    `json:"expire_timeout"`

	// Hints relevant to attribution.
	DesktopEntry string `json:"desktop_entry,omitempty"`
	SenderPID    *int   `json:"sender_pid,omitempty"`
}

// AttributedNotification is a notification together with the process
// that sent it, as far as the bus could tell.
type AttributedNotification struct {
	ID          string       `json:"id"`
	Payload     Notification `json:"payload"`
	Sender      string       `json:"sender,omitempty"`
	ResolvedPID *uint32      `json:"resolved_pid,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// NewAttributedNotification wraps a payload with a fresh ULID and receive time.
func NewAttributedNotification(payload Notification, sender string, resolved *uint32) (*AttributedNotification, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &AttributedNotification{
		ID:          id.String(),
		Payload:     payload,
		Sender:      sender,
		ResolvedPID: resolved,
		ReceivedAt:  now,
	}, nil
}

// PID returns the process id the notification should be attributed to.
// A sender-pid hint supplied by the application wins over the pid the
// bus reported for the sending connection.
func (n *AttributedNotification) PID() (int, bool) {
	if n.Payload.SenderPID != nil && *n.Payload.SenderPID > 0 {
		return *n.Payload.SenderPID, true
	}
	if n.ResolvedPID != nil && *n.ResolvedPID > 0 {
		return int(*n.ResolvedPID), true
	}
	return 0, false
}

// DesktopEntry returns the desktop-entry hint, if present.
func (n *AttributedNotification) DesktopEntry() (string, bool) {
	if n.Payload.DesktopEntry == "" {
		return "", false
	}
	return n.Payload.DesktopEntry, true
}
