package pkgio

import (
	"bytes"
	"context"
	"io"

	"github.com/obscurcore/obscurcore/internal/confirm"
	"github.com/obscurcore/obscurcore/internal/cstream"
	"github.com/obscurcore/obscurcore/internal/engine"
	"github.com/obscurcore/obscurcore/internal/kdf"
	"github.com/obscurcore/obscurcore/internal/log"
	"github.com/obscurcore/obscurcore/internal/macstream"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/mux"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/secure"
)

// Reader is PackageReader (C11), the exact mirror of Writer.
type Reader struct {
	reg       *primreg.Registry
	keySource ReaderKeySource
	lookup    mux.PreKeyLookup
}

// NewReader builds a Reader. keySource must describe the same key material
// (symmetric key, or reader-private/sender-public keypair) the writer used.
func NewReader(reg *primreg.Registry, keySource ReaderKeySource, lookup mux.PreKeyLookup) *Reader {
	return &Reader{reg: reg, keySource: keySource, lookup: lookup}
}

// Handle carries the secrets ReadManifest derived (pre-key, manifest
// cipher/mac keys, the authenticated manifest DTO) through to ExtractTo.
// Callers treat it as opaque; its only caller-visible behavior is that it
// must reach ExtractTo exactly once, which closes it on every path.
type Handle struct {
	secrets *secure.Context

	preKey    []byte
	cipherKey []byte
	macKey    []byte

	header    manifest.Header
	cryptoCfg manifest.CryptoConfig
	plain     *manifest.Manifest
}

func newReadContext() *Handle { return &Handle{secrets: secure.NewContext()} }

func (c *Handle) Close() { c.secrets.Close() }

// ManifestView is the caller-visible result of reading and authenticating a
// package's manifest, without yet extracting any item content (spec.md §6.3
// PackageReader.read_manifest).
type ManifestView struct {
	Items []manifest.PayloadItem
}

// ReadManifest implements the header-through-manifest portion of the read
// procedure (spec.md §4.10): verify the header tag, read ManifestHeader,
// resolve the manifest's key material (symmetric or UM1), run key
// confirmation, derive working keys, then decrypt and authenticate the
// manifest ciphertext. input is left positioned at the start of the payload
// body on success.
func (r *Reader) ReadManifest(input io.Reader) (*ManifestView, *Handle, error) {
	rc := newReadContext()

	if err := r.readHeaderTag(input); err != nil {
		rc.Close()
		return nil, nil, err
	}
	if err := r.readManifestHeader(input, rc); err != nil {
		rc.Close()
		return nil, nil, err
	}
	if err := r.readDeriveManifestKeys(rc); err != nil {
		rc.Close()
		return nil, nil, err
	}
	if err := r.readManifestCiphertext(input, rc); err != nil {
		rc.Close()
		return nil, nil, err
	}

	return &ManifestView{Items: rc.plain.Items}, rc, nil
}

// ExtractTo drives PayloadMux in read mode over input (positioned at the
// payload body by a prior ReadManifest call), writing each item's recovered
// plaintext to the stream sinkFor returns for it, then verifies the trailer
// tag. rc is the *Handle ReadManifest returned; it is closed (wiping
// every derived secret) before ExtractTo returns, on every path.
func (r *Reader) ExtractTo(ctx context.Context, input io.Reader, rc *Handle, sinkFor func(item *manifest.PayloadItem) (io.Writer, error)) error {
	defer rc.Close()

	readItems := make([]*mux.ReadItem, len(rc.plain.Items))
	for i := range rc.plain.Items {
		item := &rc.plain.Items[i]
		sink, err := sinkFor(item)
		if err != nil {
			return err
		}
		readItems[i] = &mux.ReadItem{Meta: item, Sink: sink}
	}

	scheme, err := mux.SchemeByName(rc.plain.PayloadConfig.SchemeName, rc.plain.PayloadConfig.SchemeConfig)
	if err != nil {
		return err
	}
	rm, err := mux.NewReadMux(input, readItems, scheme, rc.plain.PayloadConfig.PrngConfig, r.lookup, r.reg)
	if err != nil {
		return err
	}
	if err := rm.Run(ctx); err != nil {
		return err
	}

	if err := r.readTrailerTag(input); err != nil {
		return err
	}
	log.GetLogger().Debug("extraction complete", log.Component("pkgio.reader"), log.Int("items", len(readItems)))
	return nil
}

func (r *Reader) readHeaderTag(input io.Reader) error {
	got := make([]byte, magicSize)
	if _, err := io.ReadFull(input, got); err != nil {
		return obcerrors.NewFormatError("header_tag", err)
	}
	if string(got) != MagicHeader {
		return obcerrors.NewFormatError("header_tag", errTagMismatch())
	}
	return nil
}

func (r *Reader) readTrailerTag(input io.Reader) error {
	got := make([]byte, magicSize)
	if _, err := io.ReadFull(input, got); err != nil {
		return obcerrors.NewFormatError("trailer_tag", err)
	}
	if string(got) != MagicTrailer {
		return obcerrors.NewFormatError("trailer_tag", errTagMismatch())
	}
	return nil
}

func (r *Reader) readManifestHeader(input io.Reader, rc *Handle) error {
	headerBytes, err := secure.ReadLengthPrefixed(input)
	if err != nil {
		return err
	}
	header, err := manifest.UnmarshalHeader(headerBytes)
	if err != nil {
		return err
	}
	if header.FormatVersion != FormatVersion {
		return obcerrors.NewFormatError("format_version", errUnsupportedVersion(header.FormatVersion))
	}
	cryptoCfg, err := manifest.UnmarshalCryptoConfig(header.SchemeConfig)
	if err != nil {
		return err
	}
	if string(cryptoCfg.Kind) != header.SchemeName {
		return obcerrors.NewFormatError("scheme_name", errSchemeMismatch())
	}
	rc.header = *header
	rc.cryptoCfg = *cryptoCfg
	return nil
}

// readDeriveManifestKeys mirrors writeDeriveManifestKeys: reconstruct the
// pre-key, fast-fail on key confirmation mismatch before running the KDF,
// then derive the manifest's working keys.
func (r *Reader) readDeriveManifestKeys(rc *Handle) error {
	preKey, err := resolveReaderPreKey(r.keySource, rc.cryptoCfg.EphemeralPublicKey)
	if err != nil {
		return err
	}
	rc.preKey = rc.secrets.Track(preKey)

	confirmation := confirmationFromCryptoConfig(rc.cryptoCfg)
	if err := checkConfirmation(rc.preKey, confirmation, r.reg); err != nil {
		return err
	}

	params := manifestParamsFromCryptoConfig(rc.cryptoCfg)
	cipherKey, macKey, err := deriveManifestWorkingKeys(rc.preKey, params, rc.cryptoCfg.KdfCfg.Salt, r.reg)
	if err != nil {
		return err
	}
	rc.cipherKey = rc.secrets.Track(cipherKey)
	rc.macKey = rc.secrets.Track(macKey)
	return nil
}

// readManifestCiphertext implements the read side of spec.md §4.9 step 5-7:
// read the length-prefixed manifest ciphertext, reproduce the same
// MacStream+CipherStream stack and the same config-bytes mixing order,
// compare the recomputed tag in constant time, then parse the recovered
// plaintext manifest DTO.
func (r *Reader) readManifestCiphertext(input io.Reader, rc *Handle) error {
	ciphertext, err := secure.ReadLengthPrefixed(input)
	if err != nil {
		return err
	}

	macFactory, err := r.reg.Mac(rc.cryptoCfg.AuthCfg.MacName)
	if err != nil {
		return err
	}
	macHash, err := macFactory.New(rc.macKey)
	if err != nil {
		return obcerrors.NewConfigError("manifest_mac", err)
	}

	macR := macstream.NewReader(bytes.NewReader(ciphertext), macHash)
	variant, err := engine.New(buildManifestEngineConfig(rc.cryptoCfg.CipherCfg, rc.cipherKey), r.reg)
	if err != nil {
		return err
	}
	engine.SetForDecrypt(variant)
	cipherR, err := cstream.NewReader(macR, variant)
	if err != nil {
		return err
	}
	plainBytes, err := io.ReadAll(cipherR)
	if err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "read manifest plaintext: "+err.Error())
	}

	countBytes := secure.U32LE(uint32(len(ciphertext)))
	if err := macR.Update(countBytes[:]); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix manifest ciphertext count: "+err.Error())
	}
	cipherCfgBytes, authCfgBytes, kdfCfgBytes, err := marshalManifestConfigParts(rc.cryptoCfg)
	if err != nil {
		return err
	}
	if err := macR.Update(cipherCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix cipher_cfg into manifest mac: "+err.Error())
	}
	if err := macR.Update(authCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix auth_cfg into manifest mac: "+err.Error())
	}
	if err := macR.Update(kdfCfgBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix kdf_cfg into manifest mac: "+err.Error())
	}

	computed := macR.Finish()
	if !secure.EqualConstantTime(computed, rc.cryptoCfg.AuthTagOutput) {
		log.GetLogger().Warn("manifest authentication failed", log.Component("pkgio.reader"))
		return obcerrors.NewAuthError(obcerrors.ScopeManifest)
	}

	plain, err := manifest.UnmarshalManifest(plainBytes)
	if err != nil {
		return err
	}
	rc.plain = plain
	log.GetLogger().Debug("manifest authenticated",
		log.Component("pkgio.reader"), log.Int("items", len(plain.Items)), log.Int("manifest_ciphertext_bytes", len(ciphertext)))
	return nil
}

func confirmationFromCryptoConfig(cfg manifest.CryptoConfig) *confirm.Confirmation {
	return &confirm.Confirmation{
		MacName:  cfg.KeyConfirmationCfg.MacName,
		Salt:     cfg.KeyConfirmationSalt,
		Expected: cfg.KeyConfirmationOutput,
	}
}

func manifestParamsFromCryptoConfig(cfg manifest.CryptoConfig) ManifestCryptoParams {
	return ManifestCryptoParams{
		CipherCfg:              cfg.CipherCfg,
		MacName:                cfg.AuthCfg.MacName,
		KdfAlgorithm:           kdf.Algorithm(cfg.KdfCfg.Algorithm),
		ScryptN:                cfg.KdfCfg.ScryptN,
		ScryptR:                cfg.KdfCfg.ScryptR,
		ScryptP:                cfg.KdfCfg.ScryptP,
		PBKDF2Iterations:       cfg.KdfCfg.PBKDF2Iterations,
		PBKDF2HashName:         cfg.KdfCfg.PBKDF2HashName,
		KeyConfirmationMacName: cfg.KeyConfirmationCfg.MacName,
	}
}

type tagMismatchErr struct{}

func (e *tagMismatchErr) Error() string { return "magic tag mismatch" }
func errTagMismatch() error             { return &tagMismatchErr{} }

type unsupportedVersionErr struct{ version int }

func (e *unsupportedVersionErr) Error() string { return "unsupported format version" }
func errUnsupportedVersion(v int) error        { return &unsupportedVersionErr{version: v} }

type schemeMismatchErr struct{}

func (e *schemeMismatchErr) Error() string {
	return "manifest header scheme_name disagrees with crypto config kind"
}
func errSchemeMismatch() error { return &schemeMismatchErr{} }
