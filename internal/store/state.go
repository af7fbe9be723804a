package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// SharedState is the state shared between niriurgentd and niriurgent.
// The daemon writes it after every change; the CLI only reads it.
type SharedState struct {
	Urgent []model.UrgentMark `json:"urgent"`

	// Output is the output being tracked, or "" when all outputs are shown.
	Output string `json:"output,omitempty"`

	LastNotificationAt int64 `json:"last_notification_at,omitempty"`
	UpdatedAt          int64 `json:"updated_at,omitempty"`
	DaemonPID          int   `json:"daemon_pid,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// stateFileMutex serialises state file access within one process.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns an empty state.
func DefaultSharedState() *SharedState {
	return &SharedState{
		Urgent:        []model.UrgentMark{},
		SchemaVersion: CurrentSchemaVersion,
	}
}

// LoadSharedState loads the state from path.
// A missing or corrupt file yields the default state.
func LoadSharedState(path string) (*SharedState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSharedState(), nil
		}
		return nil, err
	}

	var state SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}
	if state.Urgent == nil {
		state.Urgent = []model.UrgentMark{}
	}

	return &state, nil
}

// SaveSharedState writes the state to path atomically.
func SaveSharedState(path string, state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}
	state.UpdatedAt = time.Now().Unix()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Mark adds or refreshes the mark for m.WindowID. It reports whether the
// window was not already marked.
func (s *SharedState) Mark(m model.UrgentMark) bool {
	for i := range s.Urgent {
		if s.Urgent[i].WindowID == m.WindowID {
			s.Urgent[i] = m
			return false
		}
	}
	s.Urgent = append(s.Urgent, m)
	return true
}

// Clear removes the mark for windowID and reports whether one existed.
func (s *SharedState) Clear(windowID uint64) bool {
	for i := range s.Urgent {
		if s.Urgent[i].WindowID == windowID {
			s.Urgent = append(s.Urgent[:i], s.Urgent[i+1:]...)
			return true
		}
	}
	return false
}

// Retain keeps only marks for which keep returns true and returns the
// removed marks.
func (s *SharedState) Retain(keep func(model.UrgentMark) bool) []model.UrgentMark {
	var removed []model.UrgentMark
	kept := s.Urgent[:0]
	for _, m := range s.Urgent {
		if keep(m) {
			kept = append(kept, m)
		} else {
			removed = append(removed, m)
		}
	}
	s.Urgent = kept
	return removed
}

// IsMarked reports whether windowID is urgent.
func (s *SharedState) IsMarked(windowID uint64) bool {
	for _, m := range s.Urgent {
		if m.WindowID == windowID {
			return true
		}
	}
	return false
}

// Newest returns the marks sorted newest first.
func (s *SharedState) Newest() []model.UrgentMark {
	out := make([]model.UrgentMark, len(s.Urgent))
	copy(out, s.Urgent)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarkedAt > out[j].MarkedAt })
	return out
}

// UpdateLastNotification records at as the time of the latest notification.
func (s *SharedState) UpdateLastNotification(at time.Time) {
	s.LastNotificationAt = at.Unix()
}
