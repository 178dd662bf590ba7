package buffer

import "errors"

// Sentinel errors returned by buffer operations. These mirror the error
// kinds used by the rest of the module (errors.go at the module root) but
// are declared locally to keep this package import-free of its parent.
var (
	ErrLimitExceeded   = errors.New("buffer: limit exceeded")
	ErrOutOfMemory     = errors.New("buffer: out of memory")
	ErrInvalidArgument = errors.New("buffer: invalid argument")
)
