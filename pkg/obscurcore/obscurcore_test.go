package obscurcore

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscurcore/obscurcore/internal/config"
	"github.com/obscurcore/obscurcore/internal/manifest"
)

type memSink struct {
	bufs map[string]*bytes.Buffer
}

func newMemSink() *memSink { return &memSink{bufs: map[string]*bytes.Buffer{}} }

func (s *memSink) sinkFor(item *manifest.PayloadItem) (io.Writer, error) {
	buf := &bytes.Buffer{}
	s.bufs[item.RelativePath] = buf
	return buf, nil
}

func TestPackageWriterReaderRoundTripSymmetric(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(filePath, bytes.Repeat([]byte("file-bytes-"), 200), 0o600))

	key := bytes.Repeat([]byte{0x42}, 32)
	w, err := NewPackageWriter(config.Defaults{}, key, []byte("obscurcore-test-seed"))
	require.NoError(t, err)

	require.NoError(t, w.AddText("hello.txt", "hello, obscurcore"))
	require.NoError(t, w.AddFile(filePath))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	r := NewPackageReader(key)
	input := bytes.NewReader(out.Bytes())
	view, handle, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	sinks := newMemSink()
	require.NoError(t, r.ExtractTo(context.Background(), input, handle, sinks.sinkFor))

	require.Equal(t, "hello, obscurcore", sinks.bufs["hello.txt"].String())
	require.Equal(t, bytes.Repeat([]byte("file-bytes-"), 200), sinks.bufs["payload.bin"].Bytes())
}

func TestPackageWriterReaderRoundTripUM1(t *testing.T) {
	curve := ecdh.P256()
	senderPriv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)
	recipientPriv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w, err := NewPackageWriterUM1(config.Defaults{}, senderPriv, recipientPriv.PublicKey(), []byte("obscurcore-um1-seed"))
	require.NoError(t, err)
	require.NoError(t, w.AddText("note.txt", "hybrid payload"))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	r := NewPackageReaderUM1(recipientPriv, senderPriv.PublicKey())
	input := bytes.NewReader(out.Bytes())
	view, handle, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newMemSink()
	require.NoError(t, r.ExtractTo(context.Background(), input, handle, sinks.sinkFor))
	require.Equal(t, "hybrid payload", sinks.bufs["note.txt"].String())
}

func TestPackageWriterFrameshiftLayout(t *testing.T) {
	key := bytes.Repeat([]byte{0x7A}, 32)
	w, err := NewPackageWriter(config.Defaults{}, key, []byte("obscurcore-frameshift-seed"))
	require.NoError(t, err)
	require.NoError(t, w.SetPayloadLayout("Frameshift"))
	require.NoError(t, w.AddText("a.txt", "frameshifted"))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	r := NewPackageReader(key)
	input := bytes.NewReader(out.Bytes())
	view, handle, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newMemSink()
	require.NoError(t, r.ExtractTo(context.Background(), input, handle, sinks.sinkFor))
	require.Equal(t, "frameshifted", sinks.bufs["a.txt"].String())
}

func TestPackageWriterSetItemStagingStagesAndRecoversItems(t *testing.T) {
	dir := t.TempDir()
	tempFile, err := os.Create(filepath.Join(dir, "staging.bin"))
	require.NoError(t, err)
	defer tempFile.Close()

	key := bytes.Repeat([]byte{0x9B}, 32)
	w, err := NewPackageWriter(config.Defaults{}, key, []byte("obscurcore-temp-seed"))
	require.NoError(t, err)
	w.SetItemStaging(tempFile)

	require.NoError(t, w.AddText("one.txt", "first staged item"))
	require.NoError(t, w.AddText("two.txt", "second staged item, longer than the first"))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	r := NewPackageReader(key)
	input := bytes.NewReader(out.Bytes())
	view, handle, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	sinks := newMemSink()
	require.NoError(t, r.ExtractTo(context.Background(), input, handle, sinks.sinkFor))
	require.Equal(t, "first staged item", sinks.bufs["one.txt"].String())
	require.Equal(t, "second staged item, longer than the first", sinks.bufs["two.txt"].String())
}

func TestPackageWriterSetTempStorageBoundsPayloadMemory(t *testing.T) {
	dir := t.TempDir()
	payloadFile, err := os.Create(filepath.Join(dir, "payload-body.bin"))
	require.NoError(t, err)
	defer payloadFile.Close()

	key := bytes.Repeat([]byte{0x2E}, 32)
	w, err := NewPackageWriter(config.Defaults{}, key, []byte("obscurcore-payload-temp-seed"))
	require.NoError(t, err)
	w.SetTempStorage(payloadFile)

	require.NoError(t, w.AddText("report.txt", "report contents staged through a real file"))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	info, err := payloadFile.Stat()
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	r := NewPackageReader(key)
	input := bytes.NewReader(out.Bytes())
	view, handle, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	sinks := newMemSink()
	require.NoError(t, r.ExtractTo(context.Background(), input, handle, sinks.sinkFor))
	require.Equal(t, "report contents staged through a real file", sinks.bufs["report.txt"].String())
}

func TestNewPackageWriterRejectsEmptySymmetricKey(t *testing.T) {
	_, err := NewPackageWriter(config.Defaults{}, nil, nil)
	require.Error(t, err)
}

func TestPackageWriterRejectsUnknownPayloadLayout(t *testing.T) {
	w, err := NewPackageWriter(config.Defaults{}, bytes.Repeat([]byte{0x01}, 32), nil)
	require.NoError(t, err)
	require.Error(t, w.SetPayloadLayout("Bogus"))
}

func TestPackageWriterAddDirectoryNonRecursive(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "top.txt"), []byte("top"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested", "deep.txt"), []byte("deep"), 0o600))

	key := bytes.Repeat([]byte{0x5C}, 32)
	w, err := NewPackageWriter(config.Defaults{}, key, []byte("obscurcore-dir-seed"))
	require.NoError(t, err)
	require.NoError(t, w.AddDirectory(sub, false))

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, false))

	r := NewPackageReader(key)
	input := bytes.NewReader(out.Bytes())
	view, _, err := r.ReadManifest(input)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, "project/top.txt", view.Items[0].RelativePath)
}
