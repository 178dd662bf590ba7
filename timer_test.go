package rinoo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerWheelOrdering(t *testing.T) {
	w := newTimerWheel()
	n := &node{}
	w.Arm(n, 300)
	w.Arm(n, 100)
	w.Arm(n, 200)

	deadline, ok := w.NextDeadline()
	require.True(t, ok)
	assert.EqualValues(t, 100, deadline)

	expired := w.Expire(200)
	require.Len(t, expired, 2)
	assert.EqualValues(t, 100, expired[0].deadline)
	assert.EqualValues(t, 200, expired[1].deadline)
	assert.Equal(t, 1, w.Len())
}

func TestTimerWheelTieBreakByInsertionOrder(t *testing.T) {
	w := newTimerWheel()
	n := &node{}
	first := w.Arm(n, 100)
	second := w.Arm(n, 100)

	expired := w.Expire(100)
	require.Len(t, expired, 2)
	assert.Same(t, first, expired[0])
	assert.Same(t, second, expired[1])
}

func TestTimerWheelCancel(t *testing.T) {
	w := newTimerWheel()
	n := &node{}
	e := w.Arm(n, 100)
	w.Arm(n, 200)

	w.Cancel(e)
	assert.Equal(t, 1, w.Len())

	deadline, ok := w.NextDeadline()
	require.True(t, ok)
	assert.EqualValues(t, 200, deadline)
}
