package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleItem() PayloadItem {
	return PayloadItem{
		Identifier:     [16]byte{1, 2, 3, 4},
		RelativePath:   "docs/readme.txt",
		Type:           ItemUTF8Text,
		ExternalLength: 128,
		InternalLength: 144,
		CipherCfg:      CipherConfig{BlockCipherName: "aes", Mode: "CTR", IVOrNonce: []byte{9, 9, 9}},
		AuthCfg:        AuthConfig{MacName: "hmac-sha3-512"},
		AuthTag:        []byte{0xAA, 0xBB},
	}
}

func TestAuthenticatableCloneClearsMutableFields(t *testing.T) {
	item := sampleItem()
	clone := item.AuthenticatableClone()

	require.Nil(t, clone.AuthTag)
	require.Zero(t, clone.InternalLength)
	require.Equal(t, item.RelativePath, clone.RelativePath)
	require.Equal(t, item.Identifier, clone.Identifier)
	// original is untouched
	require.NotNil(t, item.AuthTag)
	require.NotZero(t, item.InternalLength)
}

func TestHasExplicitKeys(t *testing.T) {
	item := sampleItem()
	require.False(t, item.HasExplicitKeys())

	item.CipherKey = []byte{1, 2, 3}
	item.AuthKey = []byte{4, 5, 6}
	require.True(t, item.HasExplicitKeys())
}

func TestManifestRoundtrip(t *testing.T) {
	m := &Manifest{
		PayloadConfig: PayloadConfig{
			SchemeName: "Simple",
			PrngName:   "chacha20-csprng",
			PrngConfig: []byte{1, 2, 3, 4},
		},
		Items: []PayloadItem{sampleItem(), sampleItem()},
	}
	data, err := MarshalManifest(m)
	require.NoError(t, err)

	got, err := UnmarshalManifest(data)
	require.NoError(t, err)
	require.Equal(t, m.PayloadConfig, got.PayloadConfig)
	require.Len(t, got.Items, 2)
	require.Equal(t, m.Items[0].RelativePath, got.Items[0].RelativePath)
}

func TestCryptoConfigRoundtrip(t *testing.T) {
	c := &CryptoConfig{
		Kind:      KindUM1Hybrid,
		CipherCfg: CipherConfig{BlockCipherName: "aes", Mode: "CBC", Padding: "PKCS7", IVOrNonce: []byte{1, 2}},
		AuthCfg:   AuthConfig{MacName: "blake2b-512"},
		KdfCfg: KdfConfig{
			Algorithm: "scrypt",
			Salt:      []byte{7, 7, 7},
			ScryptN:   16384, ScryptR: 8, ScryptP: 1,
		},
		KeyConfirmationCfg:    KeyConfirmationConfig{MacName: "hmac-sha3-512"},
		KeyConfirmationSalt:   []byte{1, 1, 1},
		KeyConfirmationOutput: []byte{2, 2, 2},
		AuthTagOutput:         []byte{3, 3, 3},
		EphemeralPublicKey:    []byte{4, 4, 4},
	}
	data, err := MarshalCryptoConfig(c)
	require.NoError(t, err)

	got, err := UnmarshalCryptoConfig(data)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestHeaderRoundtrip(t *testing.T) {
	h := &Header{FormatVersion: 1, SchemeName: "SymmetricOnly", SchemeConfig: []byte{1, 2, 3}}
	data, err := MarshalHeader(h)
	require.NoError(t, err)

	got, err := UnmarshalHeader(data)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestUnmarshalManifestRejectsGarbage(t *testing.T) {
	_, err := UnmarshalManifest([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}
