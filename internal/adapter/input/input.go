// Package input reads notifications to replay through the matcher.
package input

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmylchreest/niriurgent/internal/model"
)

const maxInputSize = 10 * 1024 * 1024 // 10MB max

// entry accepts both notification payloads and attribution log records,
// so "niriurgent log --format json" can be piped back in.
type entry struct {
	AppName      string `json:"app_name"`
	Summary      string `json:"summary"`
	Body         string `json:"body"`
	DesktopEntry string `json:"desktop_entry"`
	SenderPID    *int   `json:"sender_pid"`
	PID          *int   `json:"pid"`
}

func (e entry) notification() model.Notification {
	n := model.Notification{
		AppName:      e.AppName,
		Summary:      e.Summary,
		Body:         e.Body,
		DesktopEntry: e.DesktopEntry,
		SenderPID:    e.SenderPID,
	}
	if n.SenderPID == nil && e.PID != nil && *e.PID > 0 {
		n.SenderPID = e.PID
	}
	return n
}

// ReadNotifications parses a JSON array or JSON lines of notifications.
func ReadNotifications(r io.Reader) ([]model.Notification, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, &AdapterError{Source: "stdin", Message: "failed to read input", Err: err}
	}
	if len(data) > maxInputSize {
		return nil, &AdapterError{Source: "stdin", Message: "input too large"}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var entries []entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &AdapterError{Source: "stdin", Message: "invalid JSON array", Err: err}
		}
		return toNotifications(entries), nil
	}

	var entries []entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxInputSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, &AdapterError{Source: "stdin", Message: fmt.Sprintf("invalid JSON on line %d", line), Err: err}
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{Source: "stdin", Message: "failed to read input", Err: err}
	}
	return toNotifications(entries), nil
}

func toNotifications(entries []entry) []model.Notification {
	out := make([]model.Notification, len(entries))
	for i, e := range entries {
		out[i] = e.notification()
	}
	return out
}

// AdapterError represents an input error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
