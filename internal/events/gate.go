package events

import "sync"

// GateState is the activation state of the workspace stream.
type GateState int

const (
	// GatePending drops workspace signals.
	GatePending GateState = iota
	// GateActive delivers every workspace signal.
	GateActive
)

func (s GateState) String() string {
	if s == GateActive {
		return "active"
	}
	return "pending"
}

// Gate defers the workspace stream until the consumer has observed an event
// of another kind. The first workspace signal after that moves the gate
// from Pending to Active; the transition happens once and is never undone.
type Gate struct {
	mu      sync.Mutex
	state   GateState
	armed   bool
	dropped int
}

// NewGate returns a gate in the Pending state.
func NewGate() *Gate {
	return &Gate{state: GatePending}
}

// Arm records that the consumer has seen a non-workspace event.
func (g *Gate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

// Offer reports whether a workspace signal should be delivered, activating
// the gate if it is armed.
func (g *Gate) Offer() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.state == GateActive:
		return true
	case g.armed:
		g.state = GateActive
		return true
	default:
		g.dropped++
		return false
	}
}

// State returns the current state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Dropped returns how many signals were dropped while pending.
func (g *Gate) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}
