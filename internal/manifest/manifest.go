// Package manifest defines the wire DTOs for the encrypted manifest: the
// ordered item list, per-item crypto configuration, and the
// ManifestCryptoConfig/PayloadConfig structures that travel in the
// package's ManifestHeader and manifest ciphertext. Serialized with
// msgpack (github.com/vmihailenco/msgpack), the compact self-describing
// codec the teacher's stack already pulls in transitively — chosen over
// encoding/gob because the wire format here crosses into non-Go contexts'
// expectations (spec.md §6.1 on-disk format is language-agnostic) and over
// encoding/json because binary data (keys, tags, salts) should not pay
// base64 inflation.
package manifest

import "github.com/obscurcore/obscurcore/internal/secure"

// ItemType classifies a PayloadItem's content for consumers that want to
// treat items differently (e.g. a CLI may render utf8-text items inline).
type ItemType string

const (
	ItemBinary    ItemType = "binary"
	ItemUTF8Text  ItemType = "utf8-text"
	ItemKeyAction ItemType = "key-action"
)

// CipherConfig is the manifest-visible half of engine.Config: primitive
// names, mode, padding, and the item's IV/nonce. It excludes the actual
// key, which is never written to the manifest in the clear except when the
// caller explicitly supplies per-item keys (CipherKey/AuthKey below).
type CipherConfig struct {
	BlockCipherName  string `msgpack:"block_cipher,omitempty"`
	StreamCipherName string `msgpack:"stream_cipher,omitempty"`
	Mode             string `msgpack:"mode,omitempty"`
	Padding          string `msgpack:"padding,omitempty"`
	IVOrNonce        []byte `msgpack:"iv"`
}

// AuthConfig names the keyed MAC used for a MacStream.
type AuthConfig struct {
	MacName string `msgpack:"mac"`
}

// KdfConfig is the manifest-visible kdf.Config: algorithm, salt, and cost
// parameters, enough for a reader to reproduce DeriveWorkingKeys given the
// matching pre-key.
type KdfConfig struct {
	Algorithm        string `msgpack:"algorithm"`
	Salt             []byte `msgpack:"salt"`
	ScryptN          int    `msgpack:"scrypt_n,omitempty"`
	ScryptR          int    `msgpack:"scrypt_r,omitempty"`
	ScryptP          int    `msgpack:"scrypt_p,omitempty"`
	PBKDF2Iterations int    `msgpack:"pbkdf2_iterations,omitempty"`
	PBKDF2HashName   string `msgpack:"pbkdf2_hash,omitempty"`
}

// PayloadItem is one item registered with PackageWriter/PackageReader.
// Mutable fields (AuthTag, InternalLength) are filled in during write and
// verified during read; AuthenticatableClone excludes them from the MAC
// input that produces them, avoiding a self-referential digest.
type PayloadItem struct {
	Identifier     [16]byte     `msgpack:"id"`
	RelativePath   string       `msgpack:"path"`
	Type           ItemType     `msgpack:"type"`
	ExternalLength uint64       `msgpack:"ext_len"`
	InternalLength uint64       `msgpack:"int_len"`
	CipherCfg      CipherConfig `msgpack:"cipher_cfg"`
	AuthCfg        AuthConfig   `msgpack:"auth_cfg"`
	KdfCfg         *KdfConfig   `msgpack:"kdf_cfg,omitempty"`
	CipherKey      []byte       `msgpack:"cipher_key,omitempty"`
	AuthKey        []byte       `msgpack:"auth_key,omitempty"`
	AuthTag        []byte       `msgpack:"auth_tag,omitempty"`
}

// HasExplicitKeys reports whether the caller supplied cipher/auth keys
// directly, as opposed to a pre-key-plus-KdfCfg pair.
func (p *PayloadItem) HasExplicitKeys() bool {
	return len(p.CipherKey) > 0 && len(p.AuthKey) > 0
}

// AuthenticatableClone returns a copy of p with the fields the MAC itself
// produces (AuthTag) or that describe where the MAC's own output landed
// (InternalLength) cleared, so the serialized clone mixed into the item's
// MacStream at completion does not depend on the value it is computing.
func (p *PayloadItem) AuthenticatableClone() PayloadItem {
	clone := *p
	clone.AuthTag = nil
	clone.InternalLength = 0
	return clone
}

// Wipe zeroes any key material this item carries directly.
func (p *PayloadItem) Wipe() {
	secure.ZeroMultiple(p.CipherKey, p.AuthKey)
}

// CryptoConfigKind selects between a purely symmetric manifest key scheme
// and a UM1 hybrid one.
type CryptoConfigKind string

const (
	KindSymmetricOnly CryptoConfigKind = "symmetric-only"
	KindUM1Hybrid     CryptoConfigKind = "um1-hybrid"
)

// KeyConfirmationConfig names the MAC family used for key confirmation.
type KeyConfirmationConfig struct {
	MacName string `msgpack:"mac"`
}

// CryptoConfig is ManifestCryptoConfig: everything needed, in cleartext
// form (it lives in ManifestHeader.SchemeConfig, outside the manifest
// ciphertext it authenticates), to derive the manifest's working keys and
// verify its MAC tag.
type CryptoConfig struct {
	Kind                  CryptoConfigKind      `msgpack:"kind"`
	CipherCfg             CipherConfig          `msgpack:"cipher_cfg"`
	AuthCfg               AuthConfig            `msgpack:"auth_cfg"`
	KdfCfg                KdfConfig             `msgpack:"kdf_cfg"`
	KeyConfirmationCfg    KeyConfirmationConfig `msgpack:"key_confirmation_cfg"`
	KeyConfirmationSalt   []byte                `msgpack:"key_confirmation_salt"`
	KeyConfirmationOutput []byte                `msgpack:"key_confirmation_output"`
	AuthTagOutput         []byte                `msgpack:"auth_tag_output"`
	EphemeralPublicKey    []byte                `msgpack:"ephemeral_public_key,omitempty"`
}

// PayloadConfig describes the PayloadMux scheduling scheme.
type PayloadConfig struct {
	SchemeName   string `msgpack:"scheme"`
	SchemeConfig []byte `msgpack:"scheme_config,omitempty"`
	PrngName     string `msgpack:"prng"`
	PrngConfig   []byte `msgpack:"prng_config"`
}

// Manifest is the plaintext structure encrypted into the manifest
// ciphertext: the payload scheduling config plus the ordered item list.
type Manifest struct {
	PayloadConfig PayloadConfig `msgpack:"payload_config"`
	Items         []PayloadItem `msgpack:"items"`
}

// Header is ManifestHeader: the cleartext structure read before the
// manifest ciphertext, naming the format version and carrying the
// serialized CryptoConfig needed to decrypt and verify that ciphertext.
type Header struct {
	FormatVersion int    `msgpack:"format_version"`
	SchemeName    string `msgpack:"scheme_name"`
	SchemeConfig  []byte `msgpack:"scheme_config"`
}
