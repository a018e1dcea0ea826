package engine

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCTSRoundtripVariousLengths(t *testing.T) {
	block, err := aes.NewCipher(key16())
	require.NoError(t, err)
	iv := iv16()

	for _, n := range []int{17, 20, 31, 32, 33, 47, 63, 64} {
		plaintext := bytes.Repeat([]byte{0xAB}, n)
		ciphertext, err := ctsCBCEncrypt(block, iv, plaintext)
		require.NoError(t, err, "len=%d", n)
		require.Len(t, ciphertext, n, "len=%d", n)

		decrypted, err := ctsCBCDecrypt(block, iv, ciphertext)
		require.NoError(t, err, "len=%d", n)
		require.Equal(t, plaintext, decrypted, "len=%d", n)
	}
}

func TestCTSRejectsTooShort(t *testing.T) {
	block, err := aes.NewCipher(key16())
	require.NoError(t, err)
	_, err = ctsCBCEncrypt(block, iv16(), make([]byte, 10))
	require.Error(t, err)

	_, err = ctsCBCEncrypt(block, iv16(), make([]byte, 16))
	require.Error(t, err)
}
