package buffer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Cmp compares the first n bytes of b and other byte-for-byte, like
// bytes.Compare over the prefixes. If n exceeds a buffer's logical size,
// that side is bounded to its own size, so a shorter side that is a prefix
// of the other compares less.
func (b *Buffer) Cmp(other *Buffer, n int) int {
	return bytes.Compare(boundedSlice(b, n), boundedSlice(other, n))
}

// CaseCmp is Cmp, case-insensitive.
func (b *Buffer) CaseCmp(other *Buffer, n int) int {
	return bytes.Compare(
		bytes.ToLower(boundedSlice(b, n)),
		bytes.ToLower(boundedSlice(other, n)),
	)
}

func boundedSlice(b *Buffer, n int) []byte {
	if n < 0 || n > b.size {
		n = b.size
	}
	return b.ptr[:n]
}

// StrCmp compares b's full logical contents against s.
func (b *Buffer) StrCmp(s string) int {
	return bytes.Compare(b.Bytes(), []byte(s))
}

// StrNCmp compares the first n bytes of b against s.
func (b *Buffer) StrNCmp(s string, n int) int {
	return bytes.Compare(boundedSlice(b, n), boundedBytes([]byte(s), n))
}

// StrCaseCmp is StrCmp, case-insensitive.
func (b *Buffer) StrCaseCmp(s string) int {
	return strings.Compare(strings.ToLower(string(b.Bytes())), strings.ToLower(s))
}

// StrNCaseCmp is StrNCmp, case-insensitive.
func (b *Buffer) StrNCaseCmp(s string, n int) int {
	return bytes.Compare(
		bytes.ToLower(boundedSlice(b, n)),
		bytes.ToLower(boundedBytes([]byte(s), n)),
	)
}

func boundedBytes(p []byte, n int) []byte {
	if n < 0 || n > len(p) {
		n = len(p)
	}
	return p[:n]
}

// parseSource returns a buffer whose logical contents are safe to hand to
// strconv (a byte slice that strconv can view as a string without the
// caller having mutated it afterward). A borrowed buffer (msize == 0) is
// duplicated first into an owning copy with room for the NUL terminator,
// since the original C implementation's msize==0 special case does the
// same: it can't safely poke a NUL terminator past the end of memory it
// doesn't own.
func (b *Buffer) parseSource() (*Buffer, error) {
	if b.msize == 0 {
		return b.DupClass(DefaultClass(b.size+1, b.size+1))
	}
	return b, nil
}

// parseString yields a string view of src's contents, NUL-terminating and
// then restoring src's original logical size, exactly as rn_buffer_tolong's
// family adds, parses, then erases the null it introduced. A temporary
// duplicate's restore is moot (the duplicate is discarded), but an in-place
// owning buffer must come back out unchanged.
func parseString(src *Buffer) (string, error) {
	origSize := src.size
	s, err := src.ToStr()
	src.size = origSize
	if err != nil {
		return "", err
	}
	return s, nil
}

// longestValidPrefix reports the length of the longest prefix of s (after
// skipping leading whitespace) that parse accepts, and the value parse
// produced for that prefix. It mirrors strtol/strtoul's behavior of
// consuming as much of the input as forms a valid number and leaving the
// rest (endptr) untouched, which strconv's all-or-nothing parsing doesn't
// do on its own.
func longestValidPrefix[T any](s string, parse func(string) (T, error)) (T, int, bool) {
	trimmed := strings.TrimLeft(s, " \t\n\r\v\f")
	skipped := len(s) - len(trimmed)
	var best T
	bestLen := -1
	for l := 1; l <= len(trimmed); l++ {
		v, err := parse(trimmed[:l])
		if err == nil {
			best = v
			bestLen = l
		}
	}
	if bestLen < 0 {
		return best, 0, false
	}
	return best, skipped + bestLen, true
}

// ToLong parses the buffer's contents as a signed integer in the given base
// (0 means infer from an optional 0x/0 prefix, as strtol does), following
// the same duplicate-on-borrowed-buffer rule as the original
// rn_buffer_tolong. It returns the number of bytes consumed by the parse,
// matching the original's endptr-derived len output; trailing bytes the
// number didn't consume are left in place.
func (b *Buffer) ToLong(base int) (int64, int, error) {
	src, err := b.parseSource()
	if err != nil {
		return 0, 0, err
	}
	s, err := parseString(src)
	if err != nil {
		return 0, 0, err
	}
	v, n, ok := longestValidPrefix(s, func(p string) (int64, error) {
		return strconv.ParseInt(p, base, 64)
	})
	if !ok {
		return 0, 0, fmt.Errorf("buffer: tolong: %q: %w", s, ErrInvalidArgument)
	}
	return v, n, nil
}

// ToULong parses the buffer's contents as an unsigned integer in the given
// base, with the same consumed-length semantics as ToLong.
func (b *Buffer) ToULong(base int) (uint64, int, error) {
	src, err := b.parseSource()
	if err != nil {
		return 0, 0, err
	}
	s, err := parseString(src)
	if err != nil {
		return 0, 0, err
	}
	v, n, ok := longestValidPrefix(s, func(p string) (uint64, error) {
		return strconv.ParseUint(p, base, 64)
	})
	if !ok {
		return 0, 0, fmt.Errorf("buffer: toulong: %q: %w", s, ErrInvalidArgument)
	}
	return v, n, nil
}

// ToFloat parses the buffer's contents as a 32-bit float.
func (b *Buffer) ToFloat() (float32, error) {
	src, err := b.parseSource()
	if err != nil {
		return 0, err
	}
	s, err := parseString(src)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	return float32(v), err
}

// ToDouble parses the buffer's contents as a 64-bit float.
func (b *Buffer) ToDouble() (float64, error) {
	src, err := b.parseSource()
	if err != nil {
		return 0, err
	}
	s, err := parseString(src)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
