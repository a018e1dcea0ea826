package pkgio

import (
	"crypto/ecdh"

	"github.com/obscurcore/obscurcore/internal/agree"
	"github.com/obscurcore/obscurcore/internal/confirm"
	"github.com/obscurcore/obscurcore/internal/engine"
	"github.com/obscurcore/obscurcore/internal/kdf"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/mux"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/secure"
)

// ManifestCryptoParams are the concrete primitive choices and KDF cost
// parameters used for the manifest's own Encrypt-then-MAC stack and its
// key confirmation check. Unlike a PayloadItem, the manifest has no
// caller-visible id/path — one set of choices covers the whole package.
type ManifestCryptoParams struct {
	CipherCfg                 manifest.CipherConfig
	MacName                   string
	KdfAlgorithm              kdf.Algorithm
	ScryptN, ScryptR, ScryptP int
	PBKDF2Iterations          int
	PBKDF2HashName            string
	KeyConfirmationMacName    string
}

// WriterKeySource selects how PackageWriter obtains the manifest pre-key:
// a symmetric key supplied directly, or a UM1 key agreement run at write
// time between the sender's private key and the recipient's public key.
type WriterKeySource struct {
	Kind         manifest.CryptoConfigKind
	SymmetricKey []byte
	SenderPriv   *ecdh.PrivateKey
	RecipientPub *ecdh.PublicKey
}

// ReaderKeySource is the mirror image: a symmetric key, or the reader's
// own private key plus the sender's expected public key (spec.md §4.10
// — the sender's public key must be known in advance, not read off the
// wire, or any sender could impersonate the original).
type ReaderKeySource struct {
	Kind          manifest.CryptoConfigKind
	SymmetricKey  []byte
	RecipientPriv *ecdh.PrivateKey
	SenderPub     *ecdh.PublicKey
}

const preKeyLen = 32

// resolveWriterPreKey produces the manifest pre-key and, for UM1Hybrid,
// the ephemeral public key that must travel in CryptoConfig so the reader
// can reconstruct the same shared secret.
func resolveWriterPreKey(src WriterKeySource) (preKey, ephemeralPub []byte, err error) {
	switch src.Kind {
	case manifest.KindSymmetricOnly:
		if len(src.SymmetricKey) == 0 {
			return nil, nil, obcerrors.NewConfigError("key_source", errMissingSymmetricKey())
		}
		return append([]byte(nil), src.SymmetricKey...), nil, nil

	case manifest.KindUM1Hybrid:
		if src.SenderPriv == nil || src.RecipientPub == nil {
			return nil, nil, obcerrors.NewConfigError("key_source", errMissingUM1Keys())
		}
		shared, eph, err := agree.Initiate(src.RecipientPub, src.SenderPriv)
		if err != nil {
			return nil, nil, err
		}
		defer secure.Zero(shared)
		preKey, err := agree.ExpandPreKey(shared, preKeyLen)
		if err != nil {
			return nil, nil, err
		}
		return preKey, eph, nil

	default:
		return nil, nil, obcerrors.NewConfigError("key_source.kind", errUnknownKind(src.Kind))
	}
}

// resolveReaderPreKey is the mirror: for UM1Hybrid, ephemeralPub is the
// value the writer stored in CryptoConfig.EphemeralPublicKey.
func resolveReaderPreKey(src ReaderKeySource, ephemeralPub []byte) (preKey []byte, err error) {
	switch src.Kind {
	case manifest.KindSymmetricOnly:
		if len(src.SymmetricKey) == 0 {
			return nil, obcerrors.NewConfigError("key_source", errMissingSymmetricKey())
		}
		return append([]byte(nil), src.SymmetricKey...), nil

	case manifest.KindUM1Hybrid:
		if src.RecipientPriv == nil || src.SenderPub == nil {
			return nil, obcerrors.NewConfigError("key_source", errMissingUM1Keys())
		}
		shared, err := agree.Respond(src.SenderPub, src.RecipientPriv, ephemeralPub)
		if err != nil {
			return nil, err
		}
		defer secure.Zero(shared)
		return agree.ExpandPreKey(shared, preKeyLen)

	default:
		return nil, obcerrors.NewConfigError("key_source.kind", errUnknownKind(src.Kind))
	}
}

// buildConfirmation and checkConfirmation implement the fast wrong-key
// rejection step (spec.md end-to-end scenario 4): run before the KDF it
// guards, over the pre-key alone.
func buildConfirmation(preKey []byte, macName string, reg *primreg.Registry) (*confirm.Confirmation, error) {
	salt, err := randomBytes(16)
	if err != nil {
		return nil, err
	}
	return confirm.Compute(preKey, macName, salt, reg)
}

func checkConfirmation(preKey []byte, c *confirm.Confirmation, reg *primreg.Registry) error {
	if !confirm.Verify(preKey, c, reg) {
		return obcerrors.NewAuthError(obcerrors.ScopeManifest)
	}
	return nil
}

// deriveManifestWorkingKeys runs KdfService over the resolved pre-key to
// produce the manifest's own cipher_key/mac_key, using the same canonical
// key-length convention internal/mux uses for per-item keys.
func deriveManifestWorkingKeys(preKey []byte, p ManifestCryptoParams, salt []byte, reg *primreg.Registry) (cipherKey, macKey []byte, err error) {
	ckLen, err := mux.CipherKeyLen(p.CipherCfg, reg)
	if err != nil {
		return nil, nil, err
	}
	mkLen, err := mux.MacKeyLen(p.MacName, reg)
	if err != nil {
		return nil, nil, err
	}
	cfg := kdf.Config{
		Algorithm:        p.KdfAlgorithm,
		Salt:             salt,
		ScryptN:          p.ScryptN,
		ScryptR:          p.ScryptR,
		ScryptP:          p.ScryptP,
		PBKDF2Iterations: p.PBKDF2Iterations,
		PBKDF2HashName:   p.PBKDF2HashName,
	}
	return kdf.DeriveWorkingKeys(preKey, ckLen, mkLen, cfg, reg)
}

func manifestKdfConfig(p ManifestCryptoParams, salt []byte) manifest.KdfConfig {
	return manifest.KdfConfig{
		Algorithm:        string(p.KdfAlgorithm),
		Salt:             salt,
		ScryptN:          p.ScryptN,
		ScryptR:          p.ScryptR,
		ScryptP:          p.ScryptP,
		PBKDF2Iterations: p.PBKDF2Iterations,
		PBKDF2HashName:   p.PBKDF2HashName,
	}
}

// manifestIVSize reports the IV/nonce length the manifest's configured
// cipher needs: a stream cipher's registered nonce size, or a block
// cipher's block size.
func manifestIVSize(cfg manifest.CipherConfig, reg *primreg.Registry) (int, error) {
	if cfg.StreamCipherName != "" {
		f, err := reg.StreamCipher(cfg.StreamCipherName)
		if err != nil {
			return 0, err
		}
		return f.NonceSize, nil
	}
	f, err := reg.BlockCipher(cfg.BlockCipherName)
	if err != nil {
		return 0, err
	}
	return f.BlockSize, nil
}

// withIV returns a copy of cfg carrying iv as its IV/nonce.
func withIV(cfg manifest.CipherConfig, iv []byte) manifest.CipherConfig {
	cfg.IVOrNonce = iv
	return cfg
}

// buildManifestEngineConfig translates the manifest's own CipherConfig plus
// a resolved key into an engine.Config, the same translation
// internal/mux applies per item.
func buildManifestEngineConfig(cfg manifest.CipherConfig, key []byte) engine.Config {
	return engine.Config{
		BlockCipherName:  cfg.BlockCipherName,
		StreamCipherName: cfg.StreamCipherName,
		Mode:             engine.Mode(cfg.Mode),
		Padding:          engine.Padding(cfg.Padding),
		Key:              key,
		IVOrNonce:        cfg.IVOrNonce,
	}
}

// marshalManifestConfigParts serializes the three configuration sections
// mixed into the manifest MAC at completion (spec.md §4.9 step 5), in the
// fixed order cipher_cfg, auth_cfg, kdf_cfg that both write and read must
// reproduce identically for P5 to hold.
func marshalManifestConfigParts(cfg manifest.CryptoConfig) (cipherCfgBytes, authCfgBytes, kdfCfgBytes []byte, err error) {
	cipherCfgBytes, err = manifest.MarshalCipherConfig(&cfg.CipherCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	authCfgBytes, err = manifest.MarshalAuthConfig(&cfg.AuthCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	kdfCfgBytes, err = manifest.MarshalKdfConfig(&cfg.KdfCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cipherCfgBytes, authCfgBytes, kdfCfgBytes, nil
}

type missingSymmetricKeyErr struct{}

func (e *missingSymmetricKeyErr) Error() string { return "symmetric-only key source: no key supplied" }
func errMissingSymmetricKey() error             { return &missingSymmetricKeyErr{} }

type missingUM1KeysErr struct{}

func (e *missingUM1KeysErr) Error() string {
	return "um1-hybrid key source: sender/recipient keys not fully supplied"
}
func errMissingUM1Keys() error { return &missingUM1KeysErr{} }

type unknownKindErr struct{ kind manifest.CryptoConfigKind }

func (e *unknownKindErr) Error() string                { return "unknown crypto config kind: " + string(e.kind) }
func errUnknownKind(k manifest.CryptoConfigKind) error { return &unknownKindErr{kind: k} }
