package pkgio

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscurcore/obscurcore/internal/kdf"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/mux"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
)

func testManifestParams() ManifestCryptoParams {
	return ManifestCryptoParams{
		CipherCfg:              manifest.CipherConfig{BlockCipherName: "aes", Mode: "CTR"},
		MacName:                "hmac-sha3-512",
		KdfAlgorithm:           kdf.AlgorithmScrypt,
		ScryptN:                16,
		ScryptR:                1,
		ScryptP:                1,
		KeyConfirmationMacName: "hmac-sha3-512",
	}
}

func testItem(id byte, path string, plaintext []byte, cipherKey, macKey []byte) *mux.WriteItem {
	meta := &manifest.PayloadItem{
		Identifier:     [16]byte{id},
		RelativePath:   path,
		Type:           manifest.ItemBinary,
		ExternalLength: uint64(len(plaintext)),
		CipherCfg: manifest.CipherConfig{
			BlockCipherName: "aes",
			Mode:            "CTR",
			IVOrNonce:       bytes.Repeat([]byte{id}, 16),
		},
		AuthCfg:   manifest.AuthConfig{MacName: "hmac-sha3-512"},
		CipherKey: cipherKey,
		AuthKey:   macKey,
	}
	return &mux.WriteItem{Meta: meta, Source: bytes.NewReader(plaintext)}
}

// sinkSet collects ExtractTo's per-item output buffers keyed by path, via
// the sinkFor callback every test below shares.
type sinkSet struct {
	bufs map[string]*bytes.Buffer
}

func newSinkSet() *sinkSet { return &sinkSet{bufs: map[string]*bytes.Buffer{}} }

func (s *sinkSet) sinkFor(item *manifest.PayloadItem) (io.Writer, error) {
	buf := &bytes.Buffer{}
	s.bufs[item.RelativePath] = buf
	return buf, nil
}

func TestWriteReadRoundTripSymmetricSimpleScheme(t *testing.T) {
	reg := primreg.New()
	plainA := bytes.Repeat([]byte("alpha-"), 500)
	plainB := []byte("beta item")

	items := []*mux.WriteItem{
		testItem(1, "a.bin", plainA, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
		testItem(2, "b.bin", plainB, bytes.Repeat([]byte{0x33}, 32), bytes.Repeat([]byte{0x44}, 64)),
	}

	key := bytes.Repeat([]byte{0xAB}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-1"), nil)

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)

	input := bytes.NewReader(out.Bytes())
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	sinks := newSinkSet()
	require.NoError(t, r.ExtractTo(context.Background(), input, rc, sinks.sinkFor))
	require.Equal(t, plainA, sinks.bufs["a.bin"].Bytes())
	require.Equal(t, plainB, sinks.bufs["b.bin"].Bytes())
}

func TestWriteSetTempSinkDrivesPayloadMuxOutput(t *testing.T) {
	reg := primreg.New()
	plainA := bytes.Repeat([]byte("gamma-"), 500)
	plainB := []byte("delta item")

	items := []*mux.WriteItem{
		testItem(1, "a.bin", plainA, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
		testItem(2, "b.bin", plainB, bytes.Repeat([]byte{0x33}, 32), bytes.Repeat([]byte{0x44}, 64)),
	}

	key := bytes.Repeat([]byte{0xEF}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-tempsink"), nil)

	tempFile, err := os.CreateTemp(t.TempDir(), "payload-body-*.bin")
	require.NoError(t, err)
	defer tempFile.Close()
	w.SetTempSink(tempFile)

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	// The ciphertext body passed through the caller-supplied file, not an
	// internal in-memory buffer: its final size matches sum(internal_length).
	info, err := tempFile.Stat()
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)
	input := bytes.NewReader(out.Bytes())
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	sinks := newSinkSet()
	require.NoError(t, r.ExtractTo(context.Background(), input, rc, sinks.sinkFor))
	require.Equal(t, plainA, sinks.bufs["a.bin"].Bytes())
	require.Equal(t, plainB, sinks.bufs["b.bin"].Bytes())
}

func TestWriteReadRoundTripFrameshiftScheme(t *testing.T) {
	reg := primreg.New()
	plainA := bytes.Repeat([]byte("x"), 9000)

	items := []*mux.WriteItem{
		testItem(1, "a.bin", plainA, bytes.Repeat([]byte{0x55}, 32), bytes.Repeat([]byte{0x66}, 64)),
	}

	scheme, err := mux.NewFrameshiftScheme(mux.FrameshiftConfig{PadMin: 4, PadMax: 32})
	require.NoError(t, err)
	schemeConfig, err := mux.MarshalSchemeConfig(mux.FrameshiftConfig{PadMin: 4, PadMax: 32})
	require.NoError(t, err)

	key := bytes.Repeat([]byte{0xCD}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, scheme, schemeConfig, []byte("pkgio-seed-frameshift"), nil)

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)
	input := bytes.NewReader(out.Bytes())
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newSinkSet()
	require.NoError(t, r.ExtractTo(context.Background(), input, rc, sinks.sinkFor))
	require.Equal(t, plainA, sinks.bufs["a.bin"].Bytes())
}

func TestWriteReadRoundTripUM1Hybrid(t *testing.T) {
	reg := primreg.New()
	plaintext := []byte("hybrid key agreement payload")
	items := []*mux.WriteItem{
		testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
	}

	curve := ecdh.P256()
	senderPriv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)
	recipientPriv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := NewWriter(reg, testManifestParams(), WriterKeySource{
		Kind:         manifest.KindUM1Hybrid,
		SenderPriv:   senderPriv,
		RecipientPub: recipientPriv.PublicKey(),
	}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-um1"), nil)

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	r := NewReader(reg, ReaderKeySource{
		Kind:          manifest.KindUM1Hybrid,
		RecipientPriv: recipientPriv,
		SenderPub:     senderPriv.PublicKey(),
	}, nil)

	input := bytes.NewReader(out.Bytes())
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newSinkSet()
	require.NoError(t, r.ExtractTo(context.Background(), input, rc, sinks.sinkFor))
	require.Equal(t, plaintext, sinks.bufs["a.bin"].Bytes())
}

func TestReadRejectsWrongSymmetricKeyBeforeKdf(t *testing.T) {
	reg := primreg.New()
	plaintext := []byte("protect me")
	items := []*mux.WriteItem{
		testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
	}

	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: bytes.Repeat([]byte{0xAB}, 32)}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-wrongkey"), nil)
	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: bytes.Repeat([]byte{0xFF}, 32)}, nil)
	_, _, err := r.ReadManifest(bytes.NewReader(out.Bytes()))
	require.Error(t, err)
	var authErr *obcerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, obcerrors.ScopeManifest, authErr.Scope)
}

func TestReadRejectsTamperedManifestCiphertext(t *testing.T) {
	reg := primreg.New()
	plaintext := []byte("manifest integrity matters")
	items := []*mux.WriteItem{
		testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
	}
	key := bytes.Repeat([]byte{0xAB}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-tamper-manifest"), nil)
	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	corrupted := out.Bytes()
	// Flip a byte well inside the manifest ciphertext region, after the
	// 8-byte header tag and the length-prefixed ManifestHeader.
	corrupted[len(corrupted)/2] ^= 0xFF

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)
	_, _, err := r.ReadManifest(bytes.NewReader(corrupted))
	require.Error(t, err)
}

func TestReadRejectsTamperedPayloadBytes(t *testing.T) {
	reg := primreg.New()
	plaintext := bytes.Repeat([]byte("payload-tamper-"), 40)
	items := []*mux.WriteItem{
		testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
	}
	key := bytes.Repeat([]byte{0xAB}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-tamper-payload"), nil)
	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	corrupted := out.Bytes()
	corrupted[len(corrupted)-len(MagicTrailer)-1] ^= 0xFF

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)
	input := bytes.NewReader(corrupted)
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newSinkSet()
	err = r.ExtractTo(context.Background(), input, rc, sinks.sinkFor)
	require.Error(t, err)
}

func TestReadRejectsTruncatedTrailer(t *testing.T) {
	reg := primreg.New()
	plaintext := []byte("short")
	items := []*mux.WriteItem{
		testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
	}
	key := bytes.Repeat([]byte{0xAB}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-truncate"), nil)
	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, items))

	truncated := out.Bytes()[:len(out.Bytes())-len(MagicTrailer)]

	r := NewReader(reg, ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, nil)
	input := bytes.NewReader(truncated)
	view, rc, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newSinkSet()
	err = r.ExtractTo(context.Background(), input, rc, sinks.sinkFor)
	require.Error(t, err)
}

func TestDeterministicPayloadForFixedSeed(t *testing.T) {
	reg := primreg.New()
	plaintext := bytes.Repeat([]byte("deterministic-"), 20)
	key := bytes.Repeat([]byte{0xAB}, 32)

	run := func() []byte {
		items := []*mux.WriteItem{
			testItem(1, "a.bin", plaintext, bytes.Repeat([]byte{0x11}, 32), bytes.Repeat([]byte{0x22}, 64)),
		}
		w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-deterministic"), nil)
		var out bytes.Buffer
		require.NoError(t, w.Write(context.Background(), &out, items))
		return out.Bytes()[len(MagicHeader):]
	}

	// The manifest header/ciphertext differ run-to-run (fresh IV/salt/tag),
	// but the payload body directly reflects the deterministic mux schedule
	// for a fixed seed and item lengths; compare lengths as a sanity check
	// that both runs produced the same total size.
	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
}

func TestWriteRejectsEmptyItemList(t *testing.T) {
	reg := primreg.New()
	key := bytes.Repeat([]byte{0xAB}, 32)
	w := NewWriter(reg, testManifestParams(), WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: key}, mux.NewSimpleScheme(), nil, []byte("pkgio-seed-empty"), nil)
	var out bytes.Buffer
	err := w.Write(context.Background(), &out, nil)
	require.Error(t, err)
}

func TestMemSinkReadWriteSeek(t *testing.T) {
	s := newMemSink()

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	pos, err := s.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	pos, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(0), pos)

	buf := make([]byte, 5)
	n, err = s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	_, err = s.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	_, err = s.Seek(-1, io.SeekStart)
	require.Error(t, err)

	_, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	n, err = s.Write([]byte(" world"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all := make([]byte, 11)
	n, err = s.Read(all)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(all[:n]))
}
