// Package store keeps the attribution history and the state shared between
// the daemon and the CLI.
package store

import (
	"errors"
	"sync"

	"github.com/jmylchreest/niriurgent/internal/core"
	"github.com/jmylchreest/niriurgent/internal/model"
)

// ErrStoreClosed is returned by operations on a closed History.
var ErrStoreClosed = errors.New("store is closed")

// ChangeType indicates the type of history change.
type ChangeType int

const (
	// ChangeTypeAdd indicates records were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeClear indicates all records were cleared.
	ChangeTypeClear
	// ChangeTypeCompact indicates old records were dropped.
	ChangeTypeCompact
)

// ChangeEvent signals history changes.
type ChangeEvent struct {
	Type  ChangeType
	Count int
}

// History is the in-memory attribution history, optionally backed by
// Persistence. When keep is positive the history is compacted to the
// newest keep records once it grows past twice that size.
type History struct {
	mu      sync.RWMutex
	records []model.AttributionRecord
	index   map[string]int

	persistence Persistence
	keep        int

	subscribers []chan ChangeEvent
	closed      bool
}

// NewHistory creates a history. persistence may be nil.
func NewHistory(persistence Persistence, keep int) *History {
	return &History{
		index:       make(map[string]int),
		persistence: persistence,
		keep:        keep,
	}
}

// Add appends a record. Records with an ID already present are skipped.
func (h *History) Add(r model.AttributionRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStoreClosed
	}
	if _, exists := h.index[r.ID]; exists {
		return nil
	}

	h.index[r.ID] = len(h.records)
	h.records = append(h.records, r)

	if h.persistence != nil {
		if err := h.persistence.Append(r); err != nil {
			return err
		}
	}
	h.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: 1})

	if h.keep > 0 && len(h.records) > 2*h.keep {
		return h.compactLocked()
	}
	return nil
}

// Compact drops all but the newest keep records.
func (h *History) Compact() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStoreClosed
	}
	return h.compactLocked()
}

func (h *History) compactLocked() error {
	if h.keep <= 0 || len(h.records) <= h.keep {
		return nil
	}

	dropped := len(h.records) - h.keep
	kept := make([]model.AttributionRecord, h.keep)
	copy(kept, h.records[dropped:])
	h.records = kept
	h.reindex()

	if h.persistence != nil {
		if err := h.persistence.Rewrite(h.records); err != nil {
			return err
		}
	}
	h.notifyChange(ChangeEvent{Type: ChangeTypeCompact, Count: dropped})
	return nil
}

func (h *History) reindex() {
	h.index = make(map[string]int, len(h.records))
	for i, r := range h.records {
		h.index[r.ID] = i
	}
}

// All returns every record, newest first.
func (h *History) All() []model.AttributionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.AttributionRecord, len(h.records))
	for i, r := range h.records {
		out[len(h.records)-1-i] = r
	}
	return out
}

// Filter returns matching records, newest first.
func (h *History) Filter(opts core.FilterOptions) []model.AttributionRecord {
	return core.Filter(h.All(), opts)
}

// Lookup finds a record by ID or unambiguous ID prefix.
func (h *History) Lookup(id string) *model.AttributionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i, ok := h.index[id]; ok {
		r := h.records[i]
		return &r
	}
	if found := core.LookupByID(h.records, id); found != nil {
		r := *found
		return &r
	}
	return nil
}

// Count returns the number of records.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Hydrate loads records from persistence, skipping IDs already present.
func (h *History) Hydrate() error {
	if h.persistence == nil {
		return nil
	}

	records, err := h.persistence.Load()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, r := range records {
		if _, exists := h.index[r.ID]; exists {
			continue
		}
		h.index[r.ID] = len(h.records)
		h.records = append(h.records, r)
		added++
	}

	if added > 0 {
		h.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: added})
	}
	return nil
}

// Clear removes every record.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStoreClosed
	}

	count := len(h.records)
	h.records = nil
	h.index = make(map[string]int)

	if h.persistence != nil {
		if err := h.persistence.Clear(); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{Type: ChangeTypeClear, Count: count})
	return nil
}

// Subscribe returns a channel that receives change events.
func (h *History) Subscribe() <-chan ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription.
func (h *History) Unsubscribe(ch <-chan ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes subscriber channels and the persistence.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil

	if h.persistence != nil {
		return h.persistence.Close()
	}
	return nil
}

// notifyChange sends to every subscriber without blocking.
func (h *History) notifyChange(event ChangeEvent) {
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
