package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscurcore/obscurcore/internal/primreg"
)

func key16() []byte { return bytes.Repeat([]byte{0x42}, 16) }
func iv16() []byte  { return bytes.Repeat([]byte{0x01}, 16) }

func roundtripWholeMessage(t *testing.T, cfg Config, plaintext []byte) {
	t.Helper()
	reg := primreg.New()

	enc, err := New(cfg, reg)
	require.NoError(t, err)
	ctBuf := make([]byte, len(plaintext)+enc.Overhead())
	n, err := enc.ProcessFinal(ctBuf, plaintext)
	require.NoError(t, err)
	ciphertext := ctBuf[:n]

	dec, err := New(cfg, reg)
	require.NoError(t, err)
	SetForDecrypt(dec)
	ptBuf := make([]byte, len(ciphertext))
	n, err = dec.ProcessFinal(ptBuf, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, ptBuf[:n])
}

func TestCTRRoundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCTR, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, []byte("the quick brown fox jumps, not block aligned"))
}

func TestCFBRoundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCFB, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, []byte("some plaintext of odd length 31"))
}

func TestOFBRoundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeOFB, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, []byte("ofb mode test vector payload"))
}

func TestCBCPKCS7Roundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCBC, Padding: PaddingPKCS7, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, []byte("not a multiple of sixteen bytes!!"))
}

func TestCBCExactBlockMultiple(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCBC, Padding: PaddingAnsiX923, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, bytes.Repeat([]byte{0x7a}, 32))
}

func TestCTSCBCRoundtripPartial(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCTSCBC, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, []byte("seventeen bytes!!"))
}

func TestCTSCBCRoundtripExactMultiple(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeCTSCBC, Key: key16(), IVOrNonce: iv16()}
	roundtripWholeMessage(t, cfg, bytes.Repeat([]byte{0x11}, 48))
}

func TestCTSCBCTooShort(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", Mode: ModeCTSCBC, Key: key16(), IVOrNonce: iv16()}
	enc, err := New(cfg, reg)
	require.NoError(t, err)
	_, err = enc.ProcessFinal(make([]byte, 32), []byte("short"))
	require.Error(t, err)
}

func TestGCMRoundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeGCM, Key: key16(), IVOrNonce: bytes.Repeat([]byte{0x02}, 12), AssociatedData: []byte("aad")}
	roundtripWholeMessage(t, cfg, []byte("gcm secret message"))
}

func TestEAXRoundtrip(t *testing.T) {
	cfg := Config{BlockCipherName: "aes", Mode: ModeEAX, Key: key16(), IVOrNonce: iv16(), AssociatedData: []byte("aad")}
	roundtripWholeMessage(t, cfg, []byte("eax secret message, a bit longer than one block"))
}

func TestEAXTamperedTagFails(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", Mode: ModeEAX, Key: key16(), IVOrNonce: iv16()}
	enc, err := New(cfg, reg)
	require.NoError(t, err)
	buf := make([]byte, 64+enc.Overhead())
	n, err := enc.ProcessFinal(buf, []byte("message to protect"))
	require.NoError(t, err)
	ciphertext := buf[:n]
	ciphertext[len(ciphertext)-1] ^= 0xFF

	dec, err := New(cfg, reg)
	require.NoError(t, err)
	SetForDecrypt(dec)
	_, err = dec.ProcessFinal(make([]byte, len(ciphertext)), ciphertext)
	require.Error(t, err)
}

func TestNewRejectsAEADWithPadding(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", Mode: ModeGCM, Padding: PaddingPKCS7, Key: key16(), IVOrNonce: bytes.Repeat([]byte{0x02}, 12)}
	_, err := New(cfg, reg)
	require.Error(t, err)
}

func TestNewRejectsCBCWithoutPadding(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", Mode: ModeCBC, Key: key16(), IVOrNonce: iv16()}
	_, err := New(cfg, reg)
	require.Error(t, err)
}

func TestNewRejectsBothCipherKinds(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", StreamCipherName: "chacha20", Mode: ModeCTR, Key: key16(), IVOrNonce: iv16()}
	_, err := New(cfg, reg)
	require.Error(t, err)
}

func TestStreamCipherRoundtrip(t *testing.T) {
	reg := primreg.New()
	cfg := Config{StreamCipherName: "chacha20", Key: bytes.Repeat([]byte{0x09}, 32), IVOrNonce: bytes.Repeat([]byte{0x03}, 24)}
	enc, err := New(cfg, reg)
	require.NoError(t, err)
	require.False(t, enc.IsAEAD())

	plaintext := []byte("chacha20 stream cipher roundtrip payload")
	ctBuf := make([]byte, len(plaintext))
	n, err := enc.ProcessFinal(ctBuf, plaintext)
	require.NoError(t, err)

	dec, err := New(cfg, reg)
	require.NoError(t, err)
	ptBuf := make([]byte, n)
	n, err = dec.ProcessFinal(ptBuf, ctBuf[:n])
	require.NoError(t, err)
	require.Equal(t, plaintext, ptBuf[:n])
}

func TestAEADVariantIsAEAD(t *testing.T) {
	reg := primreg.New()
	cfg := Config{BlockCipherName: "aes", Mode: ModeGCM, Key: key16(), IVOrNonce: bytes.Repeat([]byte{0x02}, 12)}
	v, err := New(cfg, reg)
	require.NoError(t, err)
	require.True(t, v.IsAEAD())

	cfg2 := Config{BlockCipherName: "aes", Mode: ModeCTR, Key: key16(), IVOrNonce: iv16()}
	v2, err := New(cfg2, reg)
	require.NoError(t, err)
	require.False(t, v2.IsAEAD())
}
