package rinoo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStateTransitions(t *testing.T) {
	var s runState
	s.Store(StateCreated)

	assert.True(t, s.TryTransition(StateCreated, StateRunning))
	assert.Equal(t, StateRunning, s.Load())

	// wrong "from" fails and leaves state unchanged
	assert.False(t, s.TryTransition(StateCreated, StateStopped))
	assert.Equal(t, StateRunning, s.Load())

	assert.True(t, s.TryTransition(StateRunning, StateStopping))
	assert.True(t, s.TryTransition(StateStopping, StateStopped))
}

func TestSchedulerStateString(t *testing.T) {
	assert.Equal(t, "Created", StateCreated.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Stopping", StateStopping.String())
	assert.Equal(t, "Stopped", StateStopped.String())
}
