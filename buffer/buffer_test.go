package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultClass(t *testing.T) {
	b, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 64, b.Cap())
}

func TestAddGrows(t *testing.T) {
	b, err := New(DefaultClass(4, 1<<10))
	require.NoError(t, err)

	n, err := b.Add([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(b.Bytes()))
	assert.GreaterOrEqual(t, b.Cap(), b.Size())
}

func TestExtendRespectsMaxSize(t *testing.T) {
	b, err := New(DefaultClass(4, 16))
	require.NoError(t, err)

	_, err = b.Add(make([]byte, 16))
	require.NoError(t, err)

	_, err = b.Add([]byte("x"))
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestStaticWrapNeverGrows(t *testing.T) {
	b := StaticWrap([]byte("fixed"))
	assert.Equal(t, 5, b.Size())
	assert.Equal(t, 0, b.Cap())

	_, err := b.Add([]byte("more"))
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestAddNullIdempotent(t *testing.T) {
	b, err := New(nil)
	require.NoError(t, err)
	_, _ = b.AddStr("abc")

	require.NoError(t, b.AddNull())
	assert.Equal(t, 4, b.Size())
	require.NoError(t, b.AddNull())
	assert.Equal(t, 4, b.Size())
}

func TestErase(t *testing.T) {
	b, err := New(nil)
	require.NoError(t, err)
	_, _ = b.AddStr("0123456789")

	require.NoError(t, b.Erase(4))
	assert.Equal(t, "456789", string(b.Bytes()))

	require.NoError(t, b.Erase(0))
	assert.Equal(t, 0, b.Size())
}

func TestDupClassAdoptsSizeForBorrowedMsize(t *testing.T) {
	b := StaticWrap([]byte("borrowed"))
	require.Equal(t, 0, b.msize)

	dup, err := b.DupClass(DefaultClass(4, 1<<10))
	require.NoError(t, err)
	assert.Equal(t, "borrowed", string(dup.Bytes()))
	assert.GreaterOrEqual(t, dup.Cap(), dup.Size())
}

func TestCmpFamily(t *testing.T) {
	a, _ := New(nil)
	_, _ = a.AddStr("Hello")
	b, _ := New(nil)
	_, _ = b.AddStr("hello")

	assert.NotEqual(t, 0, a.Cmp(b, 5))
	assert.Equal(t, 0, a.CaseCmp(b, 5))
	assert.Equal(t, 0, a.StrCaseCmp("hello"))
}

func TestToLongRoundTrip(t *testing.T) {
	b, _ := New(nil)
	_, _ = b.AddStr("-42")

	v, n, err := b.ToLong(10)
	require.NoError(t, err)
	assert.EqualValues(t, -42, v)
	assert.Equal(t, 3, n)
	// owning buffer must come back to its original logical size
	assert.Equal(t, 3, b.Size())
}

func TestToLongConsumesPrefixOnly(t *testing.T) {
	b, _ := New(nil)
	_, _ = b.AddStr("123abc")

	v, n, err := b.ToLong(10)
	require.NoError(t, err)
	assert.EqualValues(t, 123, v)
	assert.Equal(t, 3, n)
}

func TestToLongHexBase(t *testing.T) {
	b, _ := New(nil)
	_, _ = b.AddStr("0x1F")

	v, n, err := b.ToLong(0)
	require.NoError(t, err)
	assert.EqualValues(t, 31, v)
	assert.Equal(t, 4, n)
}

func TestToDoubleOnBorrowedBuffer(t *testing.T) {
	b := StaticWrap([]byte("3.14"))
	v, err := b.ToDouble()
	require.NoError(t, err)
	assert.InDelta(t, 3.14, v, 1e-9)
	// borrowed buffer itself is untouched
	assert.Equal(t, "3.14", string(b.Bytes()))
}

func TestB64Encode(t *testing.T) {
	src := StaticWrap([]byte("any carnal pleasure."))
	dst, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, src.B64Encode(dst))
	assert.Equal(t, "YW55IGNhcm5hbCBwbGVhc3VyZS4=", string(dst.Bytes()))
}

func TestB64EncodeEmpty(t *testing.T) {
	src := StaticWrap(nil)
	dst, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, src.B64Encode(dst))
	assert.Equal(t, "", string(dst.Bytes()))
}

func TestPrintfGrowsToFitLongOutput(t *testing.T) {
	b, err := New(DefaultClass(4, 1<<20))
	require.NoError(t, err)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	n, err := b.Printf("prefix:%s:%d", string(long), 42)
	require.NoError(t, err)
	assert.Equal(t, len("prefix:")+5000+len(":42"), n)
	assert.GreaterOrEqual(t, b.Cap(), b.Size())
	assert.Equal(t, b.Size(), len(b.Bytes()))
}

func TestDestroyIdempotent(t *testing.T) {
	b, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, b.Destroy())
	require.NoError(t, b.Destroy())
	assert.Equal(t, 0, b.Size())
}
