package engine

// Mode names the block-cipher mode of operation (spec.md §4.2).
type Mode string

const (
	ModeCTR    Mode = "CTR"
	ModeCFB    Mode = "CFB"
	ModeOFB    Mode = "OFB"
	ModeCBC    Mode = "CBC"
	ModeCTSCBC Mode = "CTS-CBC"
	ModeGCM    Mode = "GCM"
	ModeEAX    Mode = "EAX"
)

// IsAEAD reports whether mode authenticates internally and therefore may
// never be used inside a CipherStream (spec.md §4.2, §4.3).
func (m Mode) IsAEAD() bool {
	return m == ModeGCM || m == ModeEAX
}

// RequiresPadding reports whether mode processes fixed-size blocks and
// therefore needs a padding scheme to handle a non-multiple-of-blocksize
// plaintext.
func (m Mode) RequiresPadding() bool {
	return m == ModeCBC
}

// Padding names a block-padding scheme.
type Padding string

const (
	PaddingNone     Padding = ""
	PaddingPKCS7    Padding = "PKCS7"
	PaddingAnsiX923 Padding = "ANSI-X9.23"
	PaddingISO10126 Padding = "ISO10126"
)

// Config fully describes one CipherEngine instance: which primitive family
// (block name registered in primreg, or a stream cipher name), mode, and
// padding, plus the key/IV material. Exactly one of BlockCipherName /
// StreamCipherName is set.
type Config struct {
	BlockCipherName  string
	StreamCipherName string
	Mode             Mode
	Padding          Padding
	Key              []byte
	IVOrNonce        []byte
	AssociatedData   []byte // AEAD only
}
