package model

import (
	"errors"
	"time"
)

// Strategy names the matching phase that attributed a notification.
type Strategy string

const (
	StrategyNone         Strategy = ""
	StrategyPID          Strategy = "pid"
	StrategyDesktopEntry Strategy = "desktop-entry"
	StrategyFuzzy        Strategy = "fuzzy"
)

// AttributionRecord is one line of the attribution log.
type AttributionRecord struct {
	ID           string   `json:"id" yaml:"id"`
	Timestamp    int64    `json:"timestamp" yaml:"timestamp"`
	AppName      string   `json:"app_name" yaml:"app_name"`
	Summary      string   `json:"summary" yaml:"summary"`
	DesktopEntry string   `json:"desktop_entry,omitempty" yaml:"desktop_entry,omitempty"`
	Sender       string   `json:"sender,omitempty" yaml:"sender,omitempty"`
	PID          int      `json:"pid,omitempty" yaml:"pid,omitempty"`
	Strategy     Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	WindowIDs    []uint64 `json:"window_ids,omitempty" yaml:"window_ids,omitempty"`
}

// Validation errors.
var (
	ErrEmptyRecordID     = errors.New("record id cannot be empty")
	ErrInvalidTimestamp  = errors.New("timestamp must be greater than 0")
	ErrStrategyWithoutID = errors.New("strategy set but no window ids")
)

// NewAttributionRecord builds a log record for n with the windows it was matched to.
func NewAttributionRecord(n *AttributedNotification, strategy Strategy, windowIDs []uint64) AttributionRecord {
	rec := AttributionRecord{
		ID:           n.ID,
		Timestamp:    n.ReceivedAt.Unix(),
		AppName:      n.Payload.AppName,
		Summary:      n.Payload.Summary,
		DesktopEntry: n.Payload.DesktopEntry,
		Sender:       n.Sender,
		Strategy:     strategy,
		WindowIDs:    windowIDs,
	}
	if pid, ok := n.PID(); ok {
		rec.PID = pid
	}
	return rec
}

// Validate checks that the record has all required fields.
func (r *AttributionRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyRecordID
	}
	if r.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	if r.Strategy != StrategyNone && len(r.WindowIDs) == 0 {
		return ErrStrategyWithoutID
	}
	return nil
}

// Matched reports whether the notification was attributed to any window.
func (r *AttributionRecord) Matched() bool {
	return len(r.WindowIDs) > 0
}

// TimestampTime returns the timestamp as a time.Time.
func (r *AttributionRecord) TimestampTime() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// UrgentMark records that a window was flagged by a notification.
type UrgentMark struct {
	WindowID       uint64 `json:"window_id"`
	AppID          string `json:"app_id,omitempty"`
	Title          string `json:"title,omitempty"`
	NotificationID string `json:"notification_id"`
	Summary        string `json:"summary,omitempty"`
	MarkedAt       int64  `json:"marked_at"`
}
