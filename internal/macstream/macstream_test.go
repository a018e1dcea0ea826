package macstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestWriterPassesThroughAndTags(t *testing.T) {
	mac, err := blake2b.New512(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)

	var out bytes.Buffer
	w := NewWriter(&out, mac)
	_, err = w.Write([]byte("hello, "))
	require.NoError(t, err)
	_, err = w.Write([]byte("obscurcore"))
	require.NoError(t, err)

	require.Equal(t, "hello, obscurcore", out.String())

	tag := w.Finish()
	require.Len(t, tag, 64)
	require.Equal(t, tag, w.Finish()) // idempotent
}

func TestUpdateMixesWithoutForwarding(t *testing.T) {
	mac1, _ := blake2b.New512(bytes.Repeat([]byte{0x02}, 32))
	mac2, _ := blake2b.New512(bytes.Repeat([]byte{0x02}, 32))

	var out1, out2 bytes.Buffer
	w1 := NewWriter(&out1, mac1)
	w2 := NewWriter(&out2, mac2)

	_, _ = w1.Write([]byte("body"))
	require.NoError(t, w1.Update([]byte("config-bytes")))
	tag1 := w1.Finish()

	_, _ = w2.Write([]byte("body"))
	_, _ = w2.Write([]byte("config-bytes"))
	tag2 := w2.Finish()

	require.Equal(t, tag1, tag2, "Update must mix into the MAC the same as Write")
	require.Equal(t, "body", out1.String(), "Update bytes must not reach the underlying stream")
}

func TestWriteAfterFinishFails(t *testing.T) {
	mac, _ := blake2b.New512(nil)
	w := NewWriter(&bytes.Buffer{}, mac)
	w.Finish()
	_, err := w.Write([]byte("too late"))
	require.Error(t, err)
}

func TestReaderTagsConsumedBytes(t *testing.T) {
	macW, _ := blake2b.New512(bytes.Repeat([]byte{0x03}, 32))
	macR, _ := blake2b.New512(bytes.Repeat([]byte{0x03}, 32))

	var buf bytes.Buffer
	w := NewWriter(&buf, macW)
	_, _ = w.Write([]byte("payload contents"))
	wantTag := w.Finish()

	r := NewReader(bytes.NewReader(buf.Bytes()), macR)
	got := make([]byte, buf.Len())
	n, err := r.Read(got)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)
	require.Equal(t, wantTag, r.Finish())
}
