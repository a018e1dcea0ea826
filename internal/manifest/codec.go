package manifest

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// MarshalManifest serializes m for encryption into the manifest ciphertext.
func MarshalManifest(m *Manifest) ([]byte, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal manifest: "+err.Error())
	}
	return b, nil
}

// UnmarshalManifest parses the decrypted manifest ciphertext.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "unmarshal manifest: "+err.Error())
	}
	return &m, nil
}

// MarshalPayloadItem serializes a single PayloadItem, used to mix an
// item's authenticatable metadata into its own MacStream at completion.
func MarshalPayloadItem(item *PayloadItem) ([]byte, error) {
	b, err := msgpack.Marshal(item)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal payload item: "+err.Error())
	}
	return b, nil
}

// MarshalCipherConfig serializes a CipherConfig alone, used when mixing the
// manifest's own cipher_cfg bytes into its MacStream at completion.
func MarshalCipherConfig(c *CipherConfig) ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal cipher config: "+err.Error())
	}
	return b, nil
}

// MarshalAuthConfig serializes an AuthConfig alone.
func MarshalAuthConfig(c *AuthConfig) ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal auth config: "+err.Error())
	}
	return b, nil
}

// MarshalKdfConfig serializes a KdfConfig alone.
func MarshalKdfConfig(c *KdfConfig) ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal kdf config: "+err.Error())
	}
	return b, nil
}

// MarshalCryptoConfig serializes a CryptoConfig for ManifestHeader.SchemeConfig.
func MarshalCryptoConfig(c *CryptoConfig) ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal crypto config: "+err.Error())
	}
	return b, nil
}

// UnmarshalCryptoConfig parses a ManifestHeader.SchemeConfig blob.
func UnmarshalCryptoConfig(data []byte) (*CryptoConfig, error) {
	var c CryptoConfig
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "unmarshal crypto config: "+err.Error())
	}
	return &c, nil
}

// MarshalHeader serializes the ManifestHeader.
func MarshalHeader(h *Header) ([]byte, error) {
	b, err := msgpack.Marshal(h)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal manifest header: "+err.Error())
	}
	return b, nil
}

// UnmarshalHeader parses a ManifestHeader.
func UnmarshalHeader(data []byte) (*Header, error) {
	var h Header
	if err := msgpack.Unmarshal(data, &h); err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "unmarshal manifest header: "+err.Error())
	}
	return &h, nil
}
