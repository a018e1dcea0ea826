// Package obscurcore is the public library surface (spec.md §6.3):
// PackageWriter and PackageReader, the accumulate-then-seal/read-then-
// extract façade over internal/pkgio's phase-structured write and read
// procedures. Grounded on the teacher's top-level package (gui.go/
// work.go calling into internal/volume) playing the same "public surface
// wraps the internal procedure" role, generalized from one fixed-shape
// EncryptRequest to a builder that accumulates items one at a time.
package obscurcore

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/obscurcore/obscurcore/internal/config"
	"github.com/obscurcore/obscurcore/internal/fileops"
	"github.com/obscurcore/obscurcore/internal/kdf"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/mux"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/pkgio"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/util"
)

// manifestParamsFromDefaults translates config.Defaults into the
// ManifestCryptoParams pkgio needs for the manifest's own crypto stack.
func manifestParamsFromDefaults(d config.Defaults) pkgio.ManifestCryptoParams {
	return pkgio.ManifestCryptoParams{
		CipherCfg:              manifest.CipherConfig{StreamCipherName: d.StreamCipherName},
		MacName:                d.MacName,
		KdfAlgorithm:           kdf.Algorithm(d.KdfAlgorithm),
		ScryptN:                d.ScryptN,
		ScryptR:                d.ScryptR,
		ScryptP:                d.ScryptP,
		PBKDF2Iterations:       d.PBKDF2Iterations,
		PBKDF2HashName:         d.PBKDF2HashName,
		KeyConfirmationMacName: d.MacName,
	}
}

type stagedItem struct {
	cipher *fileops.TempCipher
	offset int64
	length int64
}

// PackageWriter accumulates items (add_text/add_file/add_directory) and
// seals them into one package on Write. It owns any files it opened via
// add_file/add_directory and closes them once Write returns.
type PackageWriter struct {
	reg            *primreg.Registry
	defaults       config.Defaults
	manifestParams pkgio.ManifestCryptoParams
	keySource      pkgio.WriterKeySource
	scheme         mux.Scheme
	schemeConfig   []byte
	prngSeed       []byte

	items     []*mux.WriteItem
	openFiles []io.Closer

	payloadTempSink io.ReadWriteSeeker

	itemStaging io.ReadWriteSeeker
	staged      []*stagedItem
}

// NewPackageWriter builds a PackageWriter sealing its package under a
// shared symmetric key. cfg may be the zero value to take config.Default().
func NewPackageWriter(cfg config.Defaults, symmetricKey []byte, prngSeed []byte) (*PackageWriter, error) {
	if len(symmetricKey) == 0 {
		return nil, obcerrors.NewConfigError("symmetric_key", fmt.Errorf("empty"))
	}
	return newPackageWriter(cfg, pkgio.WriterKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: symmetricKey}, prngSeed)
}

// NewPackageWriterUM1 builds a PackageWriter sealing its package via UM1
// key agreement between senderPriv and recipientPub.
func NewPackageWriterUM1(cfg config.Defaults, senderPriv *ecdh.PrivateKey, recipientPub *ecdh.PublicKey, prngSeed []byte) (*PackageWriter, error) {
	if senderPriv == nil || recipientPub == nil {
		return nil, obcerrors.NewConfigError("um1_keys", fmt.Errorf("sender/recipient keys required"))
	}
	return newPackageWriter(cfg, pkgio.WriterKeySource{Kind: manifest.KindUM1Hybrid, SenderPriv: senderPriv, RecipientPub: recipientPub}, prngSeed)
}

func newPackageWriter(cfg config.Defaults, keySource pkgio.WriterKeySource, prngSeed []byte) (*PackageWriter, error) {
	if (config.Defaults{}) == cfg {
		cfg = config.Default().Defaults
	}
	seed := prngSeed
	if len(seed) == 0 {
		s, err := util.RandomBytes(32)
		if err != nil {
			return nil, fmt.Errorf("generate prng seed: %w", err)
		}
		seed = s
	}
	w := &PackageWriter{
		reg:            primreg.New(),
		defaults:       cfg,
		manifestParams: manifestParamsFromDefaults(cfg),
		keySource:      keySource,
		scheme:         mux.NewSimpleScheme(),
		prngSeed:       seed,
	}
	if err := w.SetPayloadLayout(cfg.PayloadScheme); err != nil {
		return nil, err
	}
	return w, nil
}

// SetPayloadLayout selects the PayloadMux scheme (spec.md §6.3
// set_payload_layout): "Simple" or "Frameshift".
func (w *PackageWriter) SetPayloadLayout(variant string) error {
	switch variant {
	case "", "Simple":
		w.scheme = mux.NewSimpleScheme()
		w.schemeConfig = nil
		return nil
	case "Frameshift":
		fs := mux.FrameshiftConfig{PadMin: w.defaults.FrameshiftPadMin, PadMax: w.defaults.FrameshiftPadMax}
		scheme, err := mux.NewFrameshiftScheme(fs)
		if err != nil {
			return err
		}
		cfgBytes, err := mux.MarshalSchemeConfig(fs)
		if err != nil {
			return err
		}
		w.scheme = scheme
		w.schemeConfig = cfgBytes
		return nil
	default:
		return obcerrors.NewConfigError("payload_layout", fmt.Errorf("unknown variant %q", variant))
	}
}

// SetTempStorage directs the write procedure's temporary payload sink
// (spec.md §4.9 step 4, §6.3 set_temp_storage) through stream instead of
// an in-memory buffer: PayloadMux's interleaved ciphertext body is
// written into stream and copied out to the package output once the
// manifest is sealed. This is the knob that bounds memory on a large
// payload — stream is typically a file, and must support Seek so Write
// can rewind it after PayloadMux finishes. Unrelated to SetItemStaging,
// which stages item plaintext before it is even registered.
func (w *PackageWriter) SetTempStorage(stream io.ReadWriteSeeker) {
	w.payloadTempSink = stream
}

// SetItemStaging directs future add_text content through an encrypted
// on-disk staging area instead of holding it in memory until Write.
// add_file/add_directory items are not staged; they are read from their
// open files during Write. Each staged item gets its own ephemeral key so items can later
// be consumed in any order PayloadMux's schedule picks. This is an
// obscurcore-specific extension beyond spec.md §6.3 — it stages item
// sources before they are registered, distinct from SetTempStorage's
// PayloadMux output sink.
func (w *PackageWriter) SetItemStaging(stream io.ReadWriteSeeker) {
	w.itemStaging = stream
}

func (w *PackageWriter) stage(data []byte) (io.Reader, error) {
	if w.itemStaging == nil {
		return nil, nil
	}
	tc, err := fileops.NewTempCipher()
	if err != nil {
		return nil, err
	}
	offset, err := w.itemStaging.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek item staging: %w", err)
	}
	if _, err := tc.EncryptingWriter(w.itemStaging).Write(data); err != nil {
		return nil, fmt.Errorf("stage item: %w", err)
	}
	w.staged = append(w.staged, &stagedItem{cipher: tc, offset: offset, length: int64(len(data))})
	st := w.staged[len(w.staged)-1]
	return &stagedSource{w: w, st: st}, nil
}

type stagedSource struct {
	w  *PackageWriter
	st *stagedItem
}

func (s *stagedSource) Read(p []byte) (int, error) {
	if _, err := s.w.itemStaging.Seek(s.st.offset, io.SeekStart); err != nil {
		return 0, err
	}
	lr := io.LimitReader(s.w.itemStaging, s.st.length)
	n, err := s.st.cipher.DecryptingReader(lr).Read(p)
	s.st.offset += int64(n)
	s.st.length -= int64(n)
	return n, err
}

func randomIdentifier() [16]byte {
	var id [16]byte
	_, _ = rand.Read(id[:])
	return id
}

func (w *PackageWriter) newItemKeys() (cipherKey, macKey []byte, cipherCfg manifest.CipherConfig, authCfg manifest.AuthConfig, err error) {
	authCfg = manifest.AuthConfig{MacName: w.defaults.MacName}
	sc, err := w.reg.StreamCipher(w.defaults.StreamCipherName)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, err
	}
	nonce, err := util.RandomBytes(sc.NonceSize)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, fmt.Errorf("generate item nonce: %w", err)
	}
	cipherCfg = manifest.CipherConfig{StreamCipherName: w.defaults.StreamCipherName, IVOrNonce: nonce}

	ckLen, err := mux.CipherKeyLen(cipherCfg, w.reg)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, err
	}
	mkLen, err := mux.MacKeyLen(authCfg.MacName, w.reg)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, err
	}
	cipherKey, err = util.RandomBytes(ckLen)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, fmt.Errorf("generate item cipher key: %w", err)
	}
	macKey, err = util.RandomBytes(mkLen)
	if err != nil {
		return nil, nil, manifest.CipherConfig{}, manifest.AuthConfig{}, fmt.Errorf("generate item mac key: %w", err)
	}
	return cipherKey, macKey, cipherCfg, authCfg, nil
}

func (w *PackageWriter) addItem(relPath string, itemType manifest.ItemType, size int64, source io.Reader) error {
	cipherKey, macKey, cipherCfg, authCfg, err := w.newItemKeys()
	if err != nil {
		return err
	}
	meta := &manifest.PayloadItem{
		Identifier:     randomIdentifier(),
		RelativePath:   relPath,
		Type:           itemType,
		ExternalLength: uint64(size),
		CipherCfg:      cipherCfg,
		AuthCfg:        authCfg,
		CipherKey:      cipherKey,
		AuthKey:        macKey,
	}
	w.items = append(w.items, &mux.WriteItem{Meta: meta, Source: source})
	return nil
}

// AddText registers a UTF-8 text item (spec.md §6.3 add_text(name, utf8)).
func (w *PackageWriter) AddText(name string, text string) error {
	data := []byte(text)
	source, err := w.stage(data)
	if err != nil {
		return err
	}
	if source == nil {
		source = strings.NewReader(text)
	}
	return w.addItem(name, manifest.ItemUTF8Text, int64(len(data)), source)
}

// AddFile registers a single file (spec.md §6.3 add_file(path)). The file
// is opened immediately and held open until Write (or Close) runs.
func (w *PackageWriter) AddFile(path string) error {
	entries, err := fileops.Walk([]string{path})
	if err != nil {
		return err
	}
	if len(entries) != 1 {
		return obcerrors.NewConfigError("add_file", fmt.Errorf("%s is not a single file", path))
	}
	f, err := fileops.Open(entries[0])
	if err != nil {
		return err
	}
	w.openFiles = append(w.openFiles, f)
	return w.addItem(entries[0].RelPath, manifest.ItemBinary, entries[0].Size, f)
}

// AddDirectory registers every file under path (spec.md §6.3
// add_directory(path, recursive)). When recursive is false, only files
// directly inside path (not in a subdirectory) are registered.
func (w *PackageWriter) AddDirectory(path string, recursive bool) error {
	entries, err := fileops.Walk([]string{path})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !recursive && strings.Count(e.RelPath, "/") > 1 {
			continue
		}
		f, err := fileops.Open(e)
		if err != nil {
			w.closeOpenFiles()
			return err
		}
		w.openFiles = append(w.openFiles, f)
		if err := w.addItem(e.RelPath, manifest.ItemBinary, e.Size, f); err != nil {
			w.closeOpenFiles()
			return err
		}
	}
	return nil
}

func (w *PackageWriter) closeOpenFiles() {
	for _, f := range w.openFiles {
		_ = f.Close()
	}
	w.openFiles = nil
}

// Write seals every accumulated item into output (spec.md §6.3
// write(output_stream, close_on_complete)). Files opened by add_file/
// add_directory are always closed before Write returns, independent of
// closeOnComplete, which instead governs output itself when output also
// implements io.Closer.
func (w *PackageWriter) Write(ctx context.Context, output io.Writer, closeOnComplete bool) error {
	defer w.closeOpenFiles()

	writer := pkgio.NewWriter(w.reg, w.manifestParams, w.keySource, w.scheme, w.schemeConfig, w.prngSeed, nil)
	if w.payloadTempSink != nil {
		writer.SetTempSink(w.payloadTempSink)
	}
	err := writer.Write(ctx, output, w.items)

	if closeOnComplete {
		if c, ok := output.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}

// PackageReader reads a package written by PackageWriter.
type PackageReader struct {
	reg    *primreg.Registry
	reader *pkgio.Reader
}

// NewPackageReader builds a PackageReader over a shared symmetric key.
func NewPackageReader(symmetricKey []byte) *PackageReader {
	reg := primreg.New()
	return &PackageReader{reg: reg, reader: pkgio.NewReader(reg, pkgio.ReaderKeySource{Kind: manifest.KindSymmetricOnly, SymmetricKey: symmetricKey}, nil)}
}

// NewPackageReaderUM1 builds a PackageReader expecting a UM1 package from
// a known sender.
func NewPackageReaderUM1(recipientPriv *ecdh.PrivateKey, senderPub *ecdh.PublicKey) *PackageReader {
	reg := primreg.New()
	return &PackageReader{reg: reg, reader: pkgio.NewReader(reg, pkgio.ReaderKeySource{Kind: manifest.KindUM1Hybrid, RecipientPriv: recipientPriv, SenderPub: senderPub}, nil)}
}

// ManifestView is the caller-visible item list (spec.md §6.3
// read_manifest(input_stream) -> ManifestView).
type ManifestView = pkgio.ManifestView

// ReadManifest authenticates and reads input's manifest, returning the
// item list and an opaque handle ExtractTo needs to continue.
func (r *PackageReader) ReadManifest(input io.Reader) (*ManifestView, *pkgio.Handle, error) {
	return r.reader.ReadManifest(input)
}

// ExtractTo recovers every item's plaintext, handing each to the stream
// sinkFor returns for it (spec.md §6.3 extract_to(sink_factory)).
func (r *PackageReader) ExtractTo(ctx context.Context, input io.Reader, handle *pkgio.Handle, sinkFor func(item *manifest.PayloadItem) (io.Writer, error)) error {
	return r.reader.ExtractTo(ctx, input, handle, sinkFor)
}
