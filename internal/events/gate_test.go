package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_DropsWhilePending(t *testing.T) {
	g := NewGate()

	assert.False(t, g.Offer())
	assert.False(t, g.Offer())
	assert.Equal(t, GatePending, g.State())
	assert.Equal(t, 2, g.Dropped())
}

func TestGate_ActivatesOnceArmed(t *testing.T) {
	g := NewGate()
	assert.False(t, g.Offer())

	g.Arm()
	assert.Equal(t, GatePending, g.State(), "arming alone does not activate")

	assert.True(t, g.Offer())
	assert.Equal(t, GateActive, g.State())

	assert.True(t, g.Offer())
	assert.Equal(t, 1, g.Dropped())
}

func TestGate_StaysActive(t *testing.T) {
	g := NewGate()
	g.Arm()
	g.Offer()
	g.Arm()

	for i := 0; i < 3; i++ {
		assert.True(t, g.Offer())
	}
	assert.Equal(t, GateActive, g.State())
}

func TestGateState_String(t *testing.T) {
	assert.Equal(t, "pending", GatePending.String())
	assert.Equal(t, "active", GateActive.String())
}
