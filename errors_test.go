package rinoo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapfPreservesIs(t *testing.T) {
	err := wrapf(ErrTimeout, "operation %s took too long", "read")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "read")
}

func TestIoErrorWrapsBoth(t *testing.T) {
	cause := errors.New("connection reset")
	err := ioError("read", cause)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, cause)
}

func TestIoErrorNilCause(t *testing.T) {
	assert.NoError(t, ioError("read", nil))
}
