package rinoo

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. All operation-level errors wrap one of these via
// fmt.Errorf("%w", ...) so callers can use errors.Is against a stable kind
// while still seeing the operation-specific message and, where relevant,
// the underlying syscall error.
var (
	// ErrWouldBlock is never returned to a caller; it is the internal signal
	// that a nonblocking syscall needs the calling task to suspend.
	ErrWouldBlock = errors.New("rinoo: would block")

	// ErrTimeout is returned when an operation exceeds its configured deadline.
	ErrTimeout = errors.New("rinoo: timeout")

	// ErrCancelled is returned when a task or socket is released while waiting.
	ErrCancelled = errors.New("rinoo: cancelled")

	// ErrIO wraps an underlying syscall error (ECONNRESET, EPIPE, ...).
	ErrIO = errors.New("rinoo: io error")

	// ErrClosed is returned when the peer closed or the local descriptor was
	// released mid-operation.
	ErrClosed = errors.New("rinoo: closed")

	// ErrLimitExceeded is returned when readline exceeds maxsize, or a socket
	// operation exhausts its maxIOCalls retry budget. A buffer that reaches
	// its max capacity reports buffer.ErrLimitExceeded instead.
	ErrLimitExceeded = errors.New("rinoo: limit exceeded")

	// ErrOutOfMemory is returned when an allocator refuses a request.
	ErrOutOfMemory = errors.New("rinoo: out of memory")

	// ErrInvalidArgument is returned for malformed addresses, negative
	// lengths, or missing required arguments.
	ErrInvalidArgument = errors.New("rinoo: invalid argument")
)

// wrapf wraps kind with a formatted message, preserving errors.Is(result, kind).
func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// ioError snapshots a syscall error into an *ErrIO-compatible error.
//
// errno is thread-local but can be clobbered by any subsequent libc/runtime
// call; callers must invoke ioError immediately after the syscall, before any
// logging, allocation, or scheduler bookkeeping (spec requirement: no
// process-global errno leakage across suspension boundaries).
func ioError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("rinoo: %s: %w: %w", op, cause, ErrIO)
}
