package mux

import (
	"github.com/obscurcore/obscurcore/internal/kdf"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
)

// PreKeyLookup resolves a PayloadItem's 16-byte identifier to the pre-key
// material KdfService should stretch, for items that do not carry explicit
// cipher_key/auth_key. Returning ok=false means no pre-key is registered
// for that identifier.
type PreKeyLookup func(identifier [16]byte) (preKey []byte, ok bool)

// CipherKeyLen returns the canonical key length for a CipherConfig: the
// strongest key size the named primitive supports (the largest entry in
// its registered KeySizes), since the manifest's CipherConfig carries no
// explicit key-length field of its own. Exported so internal/pkgio can
// use the same convention when deriving the manifest's own working keys.
func CipherKeyLen(cfg manifest.CipherConfig, reg *primreg.Registry) (int, error) {
	if cfg.StreamCipherName != "" {
		f, err := reg.StreamCipher(cfg.StreamCipherName)
		if err != nil {
			return 0, err
		}
		return f.KeySizes[0], nil
	}
	f, err := reg.BlockCipher(cfg.BlockCipherName)
	if err != nil {
		return 0, err
	}
	return f.KeySizes[len(f.KeySizes)-1], nil
}

// MacKeyLen returns the canonical MAC key length: the MAC's own output
// size, the conventional choice for a keyed hash whose registered
// KeySizes entry is a sentinel ("any length up to N") rather than a fixed
// size.
func MacKeyLen(name string, reg *primreg.Registry) (int, error) {
	f, err := reg.Mac(name)
	if err != nil {
		return 0, err
	}
	return f.OutputSize, nil
}

// resolveItemKeys implements spec.md §4.8 step 1: use the item's explicit
// keys if present, else derive working keys from a looked-up pre-key via
// KdfService, else fail ItemKeyMissing.
func resolveItemKeys(item *manifest.PayloadItem, lookup PreKeyLookup, reg *primreg.Registry) (cipherKey, macKey []byte, err error) {
	if item.HasExplicitKeys() {
		return item.CipherKey, item.AuthKey, nil
	}

	if lookup == nil || item.KdfCfg == nil {
		return nil, nil, obcerrors.Wrap(obcerrors.ItemKeyMissing, "item "+item.RelativePath+": no explicit keys and no pre-key/kdf_cfg")
	}
	preKey, ok := lookup(item.Identifier)
	if !ok {
		return nil, nil, obcerrors.Wrap(obcerrors.ItemKeyMissing, "item "+item.RelativePath+": no pre-key registered for identifier")
	}

	ckLen, err := CipherKeyLen(item.CipherCfg, reg)
	if err != nil {
		return nil, nil, err
	}
	mkLen, err := MacKeyLen(item.AuthCfg.MacName, reg)
	if err != nil {
		return nil, nil, err
	}

	kdfCfg := kdf.Config{
		Algorithm:        kdf.Algorithm(item.KdfCfg.Algorithm),
		Salt:             item.KdfCfg.Salt,
		ScryptN:          item.KdfCfg.ScryptN,
		ScryptR:          item.KdfCfg.ScryptR,
		ScryptP:          item.KdfCfg.ScryptP,
		PBKDF2Iterations: item.KdfCfg.PBKDF2Iterations,
		PBKDF2HashName:   item.KdfCfg.PBKDF2HashName,
	}
	return kdf.DeriveWorkingKeys(preKey, ckLen, mkLen, kdfCfg, reg)
}
