package pkgio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/obscurcore/obscurcore/internal/cstream"
	"github.com/obscurcore/obscurcore/internal/engine"
	"github.com/obscurcore/obscurcore/internal/log"
	"github.com/obscurcore/obscurcore/internal/macstream"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/mux"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/secure"
	"github.com/obscurcore/obscurcore/internal/util"
)

// Writer is PackageWriter (C10): it owns nothing about item contents
// beyond what is passed to Write, mirroring the teacher's request-object
// style (EncryptRequest) rather than a builder that accumulates mutable
// state across calls.
type Writer struct {
	reg            *primreg.Registry
	manifestParams ManifestCryptoParams
	keySource      WriterKeySource
	scheme         mux.Scheme
	schemeConfig   []byte
	prngSeed       []byte
	lookup         mux.PreKeyLookup
	tempSink       io.ReadWriteSeeker
}

// NewWriter builds a Writer. prngSeed becomes PayloadConfig.PrngConfig and
// must be reproduced by whatever reads this package back. schemeConfig is
// the opaque config blob for scheme (e.g. mux.MarshalSchemeConfig of a
// mux.FrameshiftConfig), nil for schemes like mux.SimpleScheme that carry
// none.
func NewWriter(reg *primreg.Registry, params ManifestCryptoParams, keySource WriterKeySource, scheme mux.Scheme, schemeConfig []byte, prngSeed []byte, lookup mux.PreKeyLookup) *Writer {
	return &Writer{
		reg:            reg,
		manifestParams: params,
		keySource:      keySource,
		scheme:         scheme,
		schemeConfig:   schemeConfig,
		prngSeed:       prngSeed,
		lookup:         lookup,
	}
}

// SetTempSink overrides the temporary sink step 4 of the write procedure
// (spec.md §4.9) opens to hold PayloadMux's ciphertext body before it is
// copied after the sealed manifest (spec.md §6.3 set_temp_storage). The
// stream must support Seek: Write rewinds it to the start once PayloadMux
// has finished writing, to copy the body out. Supplying a file here is
// what bounds memory use on a large payload (spec.md §5 "Bounded
// memory"); the default, when none is set, is an in-memory buffer.
func (w *Writer) SetTempSink(stream io.ReadWriteSeeker) {
	w.tempSink = stream
}

// writeContext accumulates every per-call secret so a single deferred
// Close wipes all of them regardless of which phase fails, mirroring the
// teacher's OperationContext.Close discipline.
type writeContext struct {
	secrets *secure.Context

	preKey          []byte
	ephemeralPub    []byte
	manifestKdfSalt []byte
	cipherKey       []byte
	macKey          []byte

	cryptoCfg        manifest.CryptoConfig
	manifestCipherIV []byte

	manifestCiphertext []byte

	tempSink io.ReadWriteSeeker
	items    []*mux.WriteItem
}

func newWriteContext(tempSink io.ReadWriteSeeker) *writeContext {
	return &writeContext{secrets: secure.NewContext(), tempSink: tempSink}
}

func (c *writeContext) Close() { c.secrets.Close() }

// Write runs the full write procedure (spec.md §4.9 steps 1-9) against
// output. A failure at any step leaves output holding an incomplete,
// invalid package; the caller is responsible for discarding it — Write
// never seeks or truncates what it has already written.
func (w *Writer) Write(ctx context.Context, output io.Writer, items []*mux.WriteItem) error {
	tempSink := w.tempSink
	if tempSink == nil {
		tempSink = newMemSink()
	}
	wc := newWriteContext(tempSink)
	defer wc.Close()
	wc.items = items

	if err := w.writeValidate(wc); err != nil {
		return err
	}
	if err := w.writeHeaderTag(output); err != nil {
		return err
	}
	if err := w.writeDeriveManifestKeys(wc); err != nil {
		return err
	}
	if err := w.writePayload(ctx, wc); err != nil {
		return err
	}
	if err := w.writeManifestMAC(wc); err != nil {
		return err
	}
	if err := w.writeManifestHeader(output, wc); err != nil {
		return err
	}
	if err := w.writeCopyPayload(output, wc); err != nil {
		return err
	}
	return w.writeTrailerTag(output)
}

// writeValidate implements step 1: at least one item, every item has a
// source, every item either carries explicit keys or has a resolvable
// pre-key (the precise per-item key resolution, including the KDF
// parameters, is re-checked by PayloadMux; this is the cheap up-front
// rejection spec.md asks for before any bytes are emitted).
func (w *Writer) writeValidate(wc *writeContext) error {
	if len(wc.items) == 0 {
		return obcerrors.NewConfigError("items", errNoItems)
	}
	for _, it := range wc.items {
		if it.Source == nil {
			return obcerrors.NewConfigError("items", errMissingSource(it.Meta.RelativePath))
		}
		if !it.Meta.HasExplicitKeys() && (w.lookup == nil || it.Meta.KdfCfg == nil) {
			return obcerrors.NewConfigError("items", errUnresolvableKey(it.Meta.RelativePath))
		}
	}
	return nil
}

func (w *Writer) writeHeaderTag(output io.Writer) error {
	if _, err := io.WriteString(output, MagicHeader); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "write header tag: "+err.Error())
	}
	return nil
}

// writeDeriveManifestKeys implements step 3: resolve the pre-key (and, for
// UM1Hybrid, the ephemeral public key), compute key confirmation over it,
// then stretch it into the manifest's own cipher_key/mac_key.
func (w *Writer) writeDeriveManifestKeys(wc *writeContext) error {
	preKey, ephemeralPub, err := resolveWriterPreKey(w.keySource)
	if err != nil {
		return err
	}
	wc.preKey = wc.secrets.Track(preKey)
	wc.ephemeralPub = ephemeralPub

	confirmation, err := buildConfirmation(wc.preKey, w.manifestParams.KeyConfirmationMacName, w.reg)
	if err != nil {
		return err
	}

	salt, err := randomBytes(16)
	if err != nil {
		return err
	}
	wc.manifestKdfSalt = salt

	cipherKey, macKey, err := deriveManifestWorkingKeys(wc.preKey, w.manifestParams, salt, w.reg)
	if err != nil {
		return err
	}
	wc.cipherKey = wc.secrets.Track(cipherKey)
	wc.macKey = wc.secrets.Track(macKey)

	ivSize, err := manifestIVSize(w.manifestParams.CipherCfg, w.reg)
	if err != nil {
		return err
	}
	iv, err := randomBytes(ivSize)
	if err != nil {
		return err
	}
	wc.manifestCipherIV = iv

	wc.cryptoCfg = manifest.CryptoConfig{
		Kind:                  w.keySource.Kind,
		CipherCfg:             withIV(w.manifestParams.CipherCfg, iv),
		AuthCfg:               manifest.AuthConfig{MacName: w.manifestParams.MacName},
		KdfCfg:                manifestKdfConfig(w.manifestParams, salt),
		KeyConfirmationCfg:    manifest.KeyConfirmationConfig{MacName: w.manifestParams.KeyConfirmationMacName},
		KeyConfirmationSalt:   confirmation.Salt,
		KeyConfirmationOutput: confirmation.Expected,
		EphemeralPublicKey:    ephemeralPub,
	}
	return nil
}

// writePayload implements step 4: drive PayloadMux to completion into the
// temporary sink, populating each item's InternalLength and AuthTag.
func (w *Writer) writePayload(ctx context.Context, wc *writeContext) error {
	wm, err := mux.NewWriteMux(wc.tempSink, wc.items, w.scheme, w.prngSeed, w.lookup, w.reg)
	if err != nil {
		return err
	}
	if err := wm.Run(ctx); err != nil {
		return err
	}
	payloadBytes, err := wc.tempSink.Seek(0, io.SeekCurrent)
	if err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "measure payload body: "+err.Error())
	}
	log.GetLogger().Debug("payload mux complete",
		log.Component("pkgio.writer"), log.Int("items", len(wc.items)), log.Int64("payload_bytes", payloadBytes))
	return nil
}

// writeManifestMAC implements step 5: serialize the manifest DTO through
// an Encrypt-then-MAC stack over a fresh in-memory buffer, then mix the
// ciphertext length and the manifest's own cipher_cfg/auth_cfg/kdf_cfg
// bytes into the MAC before sealing it — binding that configuration so P5
// (flipping a config byte breaks verification) holds.
func (w *Writer) writeManifestMAC(wc *writeContext) error {
	plain := manifest.Manifest{
		PayloadConfig: manifest.PayloadConfig{
			SchemeName:   w.scheme.Name(),
			SchemeConfig: w.schemeConfig,
			PrngName:     "chacha20-csprng",
			PrngConfig:   w.prngSeed,
		},
	}
	for _, it := range wc.items {
		plain.Items = append(plain.Items, *it.Meta)
	}
	plainBytes, err := manifest.MarshalManifest(&plain)
	if err != nil {
		return err
	}

	macFactory, err := w.reg.Mac(w.manifestParams.MacName)
	if err != nil {
		return err
	}
	macHash, err := macFactory.New(wc.macKey)
	if err != nil {
		return obcerrors.NewConfigError("manifest_mac", err)
	}

	var ciphertext bytes.Buffer
	macW := macstream.NewWriter(&ciphertext, macHash)

	variant, err := engine.New(buildManifestEngineConfig(wc.cryptoCfg.CipherCfg, wc.cipherKey), w.reg)
	if err != nil {
		return err
	}
	cipherW, err := cstream.NewWriter(macW, variant)
	if err != nil {
		return err
	}
	if _, err := cipherW.Write(plainBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "write manifest ciphertext: "+err.Error())
	}
	if err := cipherW.Finish(); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "finish manifest cipher stream: "+err.Error())
	}

	countBytes := secure.U32LE(uint32(cipherW.BytesOut()))
	if err := macW.Update(countBytes[:]); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix manifest ciphertext count: "+err.Error())
	}
	cipherCfgBytes, authCfgBytes, kdfCfgBytes, err := marshalManifestConfigParts(wc.cryptoCfg)
	if err != nil {
		return err
	}
	if err := macW.Update(cipherCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix cipher_cfg into manifest mac: "+err.Error())
	}
	if err := macW.Update(authCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix auth_cfg into manifest mac: "+err.Error())
	}
	if err := macW.Update(kdfCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix kdf_cfg into manifest mac: "+err.Error())
	}

	wc.cryptoCfg.AuthTagOutput = macW.Finish()
	wc.manifestCiphertext = ciphertext.Bytes()
	log.GetLogger().Debug("manifest sealed",
		log.Component("pkgio.writer"), log.Int("items", len(wc.items)), log.Int("manifest_ciphertext_bytes", len(wc.manifestCiphertext)))
	return nil
}

func (w *Writer) writeManifestHeader(output io.Writer, wc *writeContext) error {
	schemeConfig, err := manifest.MarshalCryptoConfig(&wc.cryptoCfg)
	if err != nil {
		return err
	}
	header := manifest.Header{
		FormatVersion: FormatVersion,
		SchemeName:    string(wc.cryptoCfg.Kind),
		SchemeConfig:  schemeConfig,
	}
	headerBytes, err := manifest.MarshalHeader(&header)
	if err != nil {
		return err
	}
	if err := secure.WriteLengthPrefixed(output, headerBytes); err != nil {
		return err
	}
	return secure.WriteLengthPrefixed(output, wc.manifestCiphertext)
}

// writeCopyPayload implements step 8: rewind the temp sink and stream its
// full ciphertext body after the sealed manifest. This is the one point in
// the write procedure that moves a payload-sized amount of data through a
// single buffer, so it borrows from MiBPool instead of letting io.Copy
// allocate its own.
func (w *Writer) writeCopyPayload(output io.Writer, wc *writeContext) error {
	if _, err := wc.tempSink.Seek(0, io.SeekStart); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "rewind payload body: "+err.Error())
	}
	buf := util.GetMiBBuffer()
	defer util.PutMiBBuffer(buf)
	if _, err := io.CopyBuffer(output, wc.tempSink, buf); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "copy payload body: "+err.Error())
	}
	return nil
}

func (w *Writer) writeTrailerTag(output io.Writer) error {
	if _, err := io.WriteString(output, MagicTrailer); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "write trailer tag: "+err.Error())
	}
	return nil
}

type missingSourceErr struct{ path string }

func (e *missingSourceErr) Error() string { return "item " + e.path + ": no source reader" }
func errMissingSource(path string) error  { return &missingSourceErr{path: path} }

type unresolvableKeyErr struct{ path string }

func (e *unresolvableKeyErr) Error() string {
	return "item " + e.path + ": no explicit keys and no pre-key lookup/kdf_cfg"
}
func errUnresolvableKey(path string) error { return &unresolvableKeyErr{path: path} }

// memSink is the default temp sink used when the caller never calls
// SetTempSink: a plain growable in-memory ReadWriteSeeker. A caller
// bounding memory on a large payload supplies a file instead.
type memSink struct {
	buf []byte
	pos int64
}

func newMemSink() *memSink { return &memSink{} }

func (s *memSink) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	n := copy(s.buf[s.pos:end], p)
	s.pos += int64(n)
	return n, nil
}

func (s *memSink) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *memSink) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("pkgio: memSink.Seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("pkgio: memSink.Seek: negative position")
	}
	s.pos = abs
	return abs, nil
}
