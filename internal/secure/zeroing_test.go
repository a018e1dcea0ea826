package secure

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualConstantTime(t *testing.T) {
	require.True(t, EqualConstantTime([]byte("abc"), []byte("abc")))
	require.False(t, EqualConstantTime([]byte("abc"), []byte("abd")))
	require.False(t, EqualConstantTime([]byte("abc"), []byte("ab")))
	require.False(t, EqualConstantTime(nil, []byte{0}))
	require.True(t, EqualConstantTime(nil, nil))
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	require.True(t, bytes.Equal(b, make([]byte, 4)))
}

func TestLengthPrefixedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")
	require.NoError(t, WriteLengthPrefixed(&buf, payload))

	out, err := ReadLengthPrefixed(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestReadLengthPrefixedTruncated(t *testing.T) {
	var buf bytes.Buffer
	lenBytes := U32LE(100)
	buf.Write(lenBytes[:])
	buf.Write([]byte("short"))

	_, err := ReadLengthPrefixed(&buf)
	require.Error(t, err)
}

func TestKeyMaterialClose(t *testing.T) {
	km := NewKeyMaterial([]byte{9, 9, 9})
	require.Equal(t, 3, km.Len())
	km.Close()
	require.Nil(t, km.Bytes())
	require.Equal(t, 0, km.Len())
	km.Close() // idempotent
}

func TestContextWipesAllTracked(t *testing.T) {
	ctx := NewContext()
	a := ctx.Track([]byte{1, 2, 3})
	b := ctx.Track([]byte{4, 5, 6})
	ctx.Close()
	require.True(t, bytes.Equal(a, make([]byte, 3)))
	require.True(t, bytes.Equal(b, make([]byte, 3)))
	ctx.Close() // idempotent
}
