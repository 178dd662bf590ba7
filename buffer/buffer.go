// Package buffer implements the growable byte container used across rinoo's
// I/O surface: it is deliberately allocator-pluggable (a Class vtable
// controls growth policy and the malloc/realloc/free triple), and supports
// both an owning, growable flavor and a static/borrowed flavor that wraps
// caller-owned memory and never reallocates.
//
// Ported from qmwd2006/librinoo's src/memory/buffer.c: the growth,
// erase, compare, numeric-parse and base64 algorithms match the original
// bit for bit, expressed as idiomatic Go rather than translated C.
package buffer

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// InitFunc, if set on a Class, runs once when a buffer of that class is
// created, before the initial allocation.
type InitFunc func(b *Buffer) error

// GrowthPolicy chooses a new capacity given a requested target size. It must
// return a value >= target for Extend to succeed; returning less than target
// (e.g. because it would exceed a configured maximum) signals failure.
type GrowthPolicy func(b *Buffer, target int) int

// AllocFunc allocates or reallocates storage of the given size for b.
type AllocFunc func(b *Buffer, size int) ([]byte, error)

// FreeFunc releases storage owned by b. May be nil if the allocator has
// nothing to release beyond normal GC (the default class's case).
type FreeFunc func(b *Buffer) error

// Class is the allocator + growth-policy configuration record governing a
// Buffer's lifecycle. A Class with every optional field left nil behaves
// like the C static_class: any attempt to grow the buffer fails with
// ErrLimitExceeded.
type Class struct {
	IniSize    int
	MaxSize    int
	Init       InitFunc
	GrowthSize GrowthPolicy
	Malloc     AllocFunc
	Realloc    AllocFunc
	Free       FreeFunc
}

// growable reports whether this class supports Extend.
func (c *Class) growable() bool {
	return c != nil && c.GrowthSize != nil && c.Realloc != nil
}

// defaultGrowth doubles the requested target, capped at MaxSize.
func defaultGrowth(b *Buffer, target int) int {
	return min(target*2, b.class.MaxSize)
}

// min returns the lesser of a and b. Kept generic over constraints.Ordered
// (rather than specialized to int) for the same reason catrate/ring.go
// parameterizes its ordered ring buffer: growth-policy arithmetic here and
// rate-sample ordering there are both "compare two orderable magnitudes",
// and a single comparison helper shouldn't be pinned to one numeric type.
func min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func defaultMalloc(_ *Buffer, size int) ([]byte, error) {
	return make([]byte, size), nil
}

func defaultRealloc(b *Buffer, size int) ([]byte, error) {
	n := make([]byte, size)
	copy(n, b.ptr[:b.size])
	return n, nil
}

// DefaultClass returns the default class: doubling growth, capped at
// maxSize, backed by the Go heap. A zero maxSize is invalid and panics;
// callers that want an effectively unbounded buffer should pass a large
// maxSize explicitly (the original C library has the same requirement).
func DefaultClass(iniSize, maxSize int) *Class {
	if maxSize <= 0 {
		panic("buffer: DefaultClass: maxSize must be positive")
	}
	return &Class{
		IniSize:    iniSize,
		MaxSize:    maxSize,
		GrowthSize: defaultGrowth,
		Malloc:     defaultMalloc,
		Realloc:    defaultRealloc,
	}
}

// StaticClass is the class assigned to static/borrowed buffers: every
// optional field is nil, so Extend always fails.
var StaticClass = &Class{}

// Buffer is an owning or borrowed growable byte container.
//
// Invariants: for an owning buffer (class.growable() == true), size <= msize
// always. For a static/borrowed buffer, msize may be 0 (wrapping an
// externally managed pointer/length) and size may then exceed msize.
type Buffer struct {
	ptr   []byte
	size  int
	msize int
	class *Class
}

// New creates an owning buffer of class's initial capacity. A nil class
// selects DefaultClass(64, 1<<20).
func New(class *Class) (*Buffer, error) {
	if class == nil {
		class = DefaultClass(64, 1<<20)
	}
	b := &Buffer{class: class, msize: class.IniSize}
	if class.Init != nil {
		if err := class.Init(b); err != nil {
			return nil, err
		}
	}
	if class.Malloc != nil {
		ptr, err := class.Malloc(b, class.IniSize)
		if err != nil {
			return nil, fmt.Errorf("buffer: create: %w", ErrOutOfMemory)
		}
		b.ptr = ptr
	}
	return b, nil
}

// StaticWrap wraps externally managed memory, reporting its full length as
// the logical size. The buffer never reallocates; operations that would
// grow it fail with ErrLimitExceeded.
func StaticWrap(data []byte) *Buffer {
	return &Buffer{ptr: data, size: len(data), msize: 0, class: StaticClass}
}

// InitWith wraps a caller-provided, already-sized region with logical size
// zero and declared capacity msize. Like StaticWrap, it never reallocates.
func InitWith(ptr []byte, msize int) *Buffer {
	return &Buffer{ptr: ptr, size: 0, msize: msize, class: StaticClass}
}

// Destroy releases owned storage via the class's Free callback, if any.
// Idempotent: calling Destroy twice is safe.
func (b *Buffer) Destroy() error {
	if b.ptr != nil && b.class != nil && b.class.Free != nil {
		if err := b.class.Free(b); err != nil {
			return err
		}
	}
	b.ptr = nil
	b.size = 0
	b.msize = 0
	return nil
}

// Size returns the logical length.
func (b *Buffer) Size() int { return b.size }

// Cap returns the allocated capacity (msize).
func (b *Buffer) Cap() int { return b.msize }

// Bytes returns the logical contents. The returned slice aliases the
// buffer's storage and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	if b.size == 0 {
		return nil
	}
	return b.ptr[:b.size]
}

// Extend grows the buffer so msize >= target, using the class's growth
// policy. Fails with ErrLimitExceeded if the class is non-growable or the
// policy can't produce a sufficient capacity, ErrOutOfMemory if the
// allocator refuses.
func (b *Buffer) Extend(target int) error {
	if !b.class.growable() {
		return fmt.Errorf("buffer: extend: class does not support growth: %w", ErrLimitExceeded)
	}
	msize := b.class.GrowthSize(b, target)
	if msize < target {
		return fmt.Errorf("buffer: extend: target %d exceeds class limits: %w", target, ErrLimitExceeded)
	}
	ptr, err := b.class.Realloc(b, msize)
	if err != nil {
		return fmt.Errorf("buffer: extend: %w", ErrOutOfMemory)
	}
	b.ptr = ptr
	b.msize = msize
	return nil
}

// Add appends data, extending the buffer if necessary.
func (b *Buffer) Add(data []byte) (int, error) {
	need := b.size + len(data)
	if need > b.msize {
		if err := b.Extend(need); err != nil {
			return 0, err
		}
	}
	copy(b.ptr[b.size:need], data)
	b.size = need
	return len(data), nil
}

// AddStr appends a string, equivalent to Add([]byte(s)).
func (b *Buffer) AddStr(s string) (int, error) {
	return b.Add([]byte(s))
}

// Printf formats with fmt.Sprintf and appends the result, extending the
// buffer as Add does. It never truncates: on success the entire formatted
// string has been appended.
func (b *Buffer) Printf(format string, args ...any) (int, error) {
	s := fmt.Sprintf(format, args...)
	return b.Add([]byte(s))
}

// AddNull ensures the last byte is a NUL terminator without changing the
// logical size if the buffer is already terminated.
func (b *Buffer) AddNull() error {
	if b.size > 0 && b.ptr[b.size-1] == 0 {
		return nil
	}
	_, err := b.Add([]byte{0})
	return err
}

// Erase drops the first n bytes, moving the remainder to the front. n == 0
// or n >= Size() clears the buffer entirely.
func (b *Buffer) Erase(n int) error {
	if b.ptr == nil && b.size == 0 {
		return nil
	}
	if n == 0 || n >= b.size {
		b.size = 0
		return nil
	}
	copy(b.ptr, b.ptr[n:b.size])
	b.size -= n
	return nil
}

// Dup duplicates the buffer with the same class.
func (b *Buffer) Dup() (*Buffer, error) {
	return b.DupClass(b.class)
}

// DupClass duplicates the buffer's bytes into a new buffer using class.
// If b is borrowed (msize == 0), the duplicate's msize adopts b's logical
// size, matching rn_buffer_dup_class's msize-zero handling.
func (b *Buffer) DupClass(class *Class) (*Buffer, error) {
	if class == nil || class.Malloc == nil {
		return nil, fmt.Errorf("buffer: dup: class has no allocator: %w", ErrInvalidArgument)
	}
	msize := b.msize
	if msize == 0 {
		msize = b.size
	}
	nb := &Buffer{class: class, msize: msize, size: b.size}
	if class.Init != nil {
		if err := class.Init(nb); err != nil {
			return nil, err
		}
	}
	ptr, err := class.Malloc(nb, msize)
	if err != nil {
		return nil, fmt.Errorf("buffer: dup: %w", ErrOutOfMemory)
	}
	copy(ptr, b.ptr[:b.size])
	nb.ptr = ptr
	return nb, nil
}

// ToStr ensures NUL-termination and returns the logical contents as a
// string snapshot (a copy, since Go strings are immutable and cannot safely
// alias a mutable buffer).
func (b *Buffer) ToStr() (string, error) {
	if err := b.AddNull(); err != nil {
		return "", err
	}
	return string(b.ptr[:b.size-1]), nil
}
