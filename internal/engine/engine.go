// Package engine implements CipherEngine: a uniform block-cipher-mode and
// stream-cipher abstraction that CipherStream drives one fixed-size
// "operation" at a time. Construction enforces the mode/padding
// compatibility rules from spec.md §4.2; AEAD variants are fully functional
// (GCM, EAX) but a Variant built with an AEAD mode reports IsAEAD() so
// CipherStream can refuse to host it (AEAD's internal authentication would
// duplicate and conflict with the package's separate MacStream layer).
package engine

import (
	"crypto/cipher"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
)

// defaultStreamOpSize is the chunking granularity CipherStream uses when
// driving a pure stream cipher; a stream cipher has no natural block size,
// so this is just a small multiple of a machine word chosen to keep
// buffering overhead low.
const defaultStreamOpSize = 16

// Variant is one configured, ready-to-drive cipher instance. CipherStream
// calls Process repeatedly with exactly OperationSize()-sized chunks (except
// the last, which goes through ProcessFinal regardless of its length).
type Variant interface {
	OperationSize() int
	IsAEAD() bool
	// Process consumes exactly one operation's worth of input (or less, only
	// for stream-cipher variants) and returns the number of bytes written to
	// dst. dst must be at least len(src)+Overhead() bytes.
	Process(dst, src []byte) (int, error)
	// ProcessFinal consumes the remaining buffered input (possibly zero
	// length) and emits any trailing padding or authentication tag.
	ProcessFinal(dst, src []byte) (int, error)
	// Overhead is the worst-case extra bytes ProcessFinal may emit beyond
	// len(src) (padding block, AEAD tag, or both).
	Overhead() int
}

// New builds a Variant from cfg, resolving the named primitive against reg.
// It enforces: a mode that requires padding (CBC) must not be configured
// with PaddingNone; an AEAD mode (GCM, EAX) must not be configured with any
// padding (it never blockpads — it authenticates, it doesn't need to).
func New(cfg Config, reg *primreg.Registry) (Variant, error) {
	if cfg.Mode.IsAEAD() && cfg.Padding != PaddingNone {
		return nil, obcerrors.NewConfigError("padding", errAEADWithPadding(cfg.Mode))
	}
	if cfg.Mode.RequiresPadding() && cfg.Padding == PaddingNone {
		return nil, obcerrors.NewConfigError("padding", errModeNeedsPadding(cfg.Mode))
	}

	if cfg.StreamCipherName != "" {
		if cfg.BlockCipherName != "" {
			return nil, obcerrors.NewConfigError("cipher", errBothCipherKinds())
		}
		return newStreamEngine(cfg, reg)
	}
	return newBlockEngine(cfg, reg)
}

// --- stream cipher path (e.g. ChaCha20): no blocks, no padding, no AEAD ---

type streamEngine struct {
	stream cipher.Stream
}

func newStreamEngine(cfg Config, reg *primreg.Registry) (Variant, error) {
	factory, err := reg.StreamCipher(cfg.StreamCipherName)
	if err != nil {
		return nil, err
	}
	s, err := factory.New(cfg.Key, cfg.IVOrNonce)
	if err != nil {
		return nil, obcerrors.NewConfigError("key/nonce", err)
	}
	return &streamEngine{stream: s}, nil
}

func (e *streamEngine) OperationSize() int { return defaultStreamOpSize }
func (e *streamEngine) IsAEAD() bool       { return false }
func (e *streamEngine) Overhead() int      { return 0 }

func (e *streamEngine) Process(dst, src []byte) (int, error) {
	e.stream.XORKeyStream(dst[:len(src)], src)
	return len(src), nil
}

func (e *streamEngine) ProcessFinal(dst, src []byte) (int, error) {
	return e.Process(dst, src)
}

// --- block cipher path: CTR/CFB/OFB (as streams), CBC/CTS-CBC (blocks,
// possibly padded), GCM/EAX (AEAD, whole-message) ---

type blockEngine struct {
	block      cipher.Block
	mode       Mode
	padding    Padding
	forEncrypt bool
	iv         []byte
	aad        []byte

	streamImpl cipher.Stream // CTR/OFB (directionless)
	cfbEnc     cipher.Stream
	cfbDec     cipher.Stream
	aead       cipher.AEAD // GCM/EAX
	cbcEnc     cipher.BlockMode
	cbcDec     cipher.BlockMode

	// accumulate buffers whole-message input for modes that cannot emit
	// ciphertext incrementally: CTS-CBC (needs to know the final two
	// blocks to steal from) and any AEAD mode (needs the whole message
	// before the tag can be computed).
	accumulate []byte
}

func newBlockEngine(cfg Config, reg *primreg.Registry) (Variant, error) {
	factory, err := reg.BlockCipher(cfg.BlockCipherName)
	if err != nil {
		return nil, err
	}
	block, err := factory.New(cfg.Key)
	if err != nil {
		return nil, obcerrors.NewConfigError("key", err)
	}
	e := &blockEngine{
		block:      block,
		mode:       cfg.Mode,
		padding:    cfg.Padding,
		forEncrypt: true,
		iv:         cfg.IVOrNonce,
		aad:        cfg.AssociatedData,
	}

	switch cfg.Mode {
	case ModeCTR:
		e.streamImpl = cipher.NewCTR(block, cfg.IVOrNonce)
	case ModeCFB:
		e.cfbEnc = cipher.NewCFBEncrypter(block, cfg.IVOrNonce)
		e.cfbDec = cipher.NewCFBDecrypter(block, cfg.IVOrNonce)
	case ModeOFB:
		e.streamImpl = cipher.NewOFB(block, cfg.IVOrNonce)
	case ModeCBC:
		e.cbcEnc = cipher.NewCBCEncrypter(block, cfg.IVOrNonce)
		e.cbcDec = cipher.NewCBCDecrypter(block, cfg.IVOrNonce)
	case ModeCTSCBC:
		// handled entirely in ProcessFinal via ctsCBCEncrypt/ctsCBCDecrypt
	case ModeGCM:
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, obcerrors.NewConfigError("mode", err)
		}
		e.aead = aead
	case ModeEAX:
		aead, err := NewEAX(block)
		if err != nil {
			return nil, obcerrors.NewConfigError("mode", err)
		}
		e.aead = aead
	default:
		return nil, obcerrors.NewConfigError("mode", errUnknownMode(cfg.Mode))
	}
	return e, nil
}

// OperationSize is always the block size: spec.md categorizes every block
// cipher mode (including the keystream-like CTR/CFB/OFB) under the "Block"
// engine variant, reserving the word-size-multiple operation size for the
// separate Stream variant (streamEngine, e.g. ChaCha20).
func (e *blockEngine) OperationSize() int {
	return e.block.BlockSize()
}

func (e *blockEngine) IsAEAD() bool { return e.mode.IsAEAD() }

func (e *blockEngine) Overhead() int {
	switch {
	case e.mode.IsAEAD():
		return e.aead.Overhead()
	case e.mode == ModeCBC || e.mode == ModeCTSCBC:
		return e.block.BlockSize()
	default:
		return 0
	}
}

func (e *blockEngine) Process(dst, src []byte) (int, error) {
	switch e.mode {
	case ModeCTR, ModeOFB:
		e.streamImpl.XORKeyStream(dst[:len(src)], src)
		return len(src), nil
	case ModeCFB:
		if e.forEncrypt {
			e.cfbEnc.XORKeyStream(dst[:len(src)], src)
		} else {
			e.cfbDec.XORKeyStream(dst[:len(src)], src)
		}
		return len(src), nil
	case ModeCBC:
		if len(src)%e.block.BlockSize() != 0 {
			return 0, obcerrors.Wrap(obcerrors.IncompleteBlock, "CBC operation not block-aligned")
		}
		if e.forEncrypt {
			e.cbcEnc.CryptBlocks(dst[:len(src)], src)
		} else {
			e.cbcDec.CryptBlocks(dst[:len(src)], src)
		}
		return len(src), nil
	case ModeCTSCBC, ModeGCM, ModeEAX:
		// whole-message modes: buffer now, emit nothing until ProcessFinal.
		e.accumulate = append(e.accumulate, src...)
		return 0, nil
	default:
		return 0, obcerrors.NewConfigError("mode", errUnknownMode(e.mode))
	}
}

func (e *blockEngine) ProcessFinal(dst, src []byte) (int, error) {
	switch e.mode {
	case ModeCTR, ModeOFB:
		e.streamImpl.XORKeyStream(dst[:len(src)], src)
		return len(src), nil

	case ModeCFB:
		if e.forEncrypt {
			e.cfbEnc.XORKeyStream(dst[:len(src)], src)
		} else {
			e.cfbDec.XORKeyStream(dst[:len(src)], src)
		}
		return len(src), nil

	case ModeCBC:
		if e.forEncrypt {
			padded, err := pad(e.padding, src, e.block.BlockSize())
			if err != nil {
				return 0, err
			}
			e.cbcEnc.CryptBlocks(dst[:len(padded)], padded)
			return len(padded), nil
		}
		plain := make([]byte, len(src))
		e.cbcDec.CryptBlocks(plain, src)
		out, err := unpad(e.padding, plain, e.block.BlockSize())
		if err != nil {
			return 0, err
		}
		copy(dst, out)
		return len(out), nil

	case ModeCTSCBC:
		whole := append(e.accumulate, src...)
		if e.forEncrypt {
			ct, err := ctsCBCEncrypt(e.block, e.iv, whole)
			if err != nil {
				return 0, err
			}
			copy(dst, ct)
			return len(ct), nil
		}
		pt, err := ctsCBCDecrypt(e.block, e.iv, whole)
		if err != nil {
			return 0, err
		}
		copy(dst, pt)
		return len(pt), nil

	case ModeGCM, ModeEAX:
		whole := append(e.accumulate, src...)
		if e.forEncrypt {
			out := e.aead.Seal(nil, e.iv, whole, e.aad)
			copy(dst, out)
			return len(out), nil
		}
		out, err := e.aead.Open(nil, e.iv, whole, e.aad)
		if err != nil {
			return 0, obcerrors.NewAuthError(obcerrors.ScopeItem)
		}
		copy(dst, out)
		return len(out), nil

	default:
		return 0, obcerrors.NewConfigError("mode", errUnknownMode(e.mode))
	}
}

// SetForDecrypt switches a just-constructed Variant into decrypt mode. CFB,
// CBC, CTS-CBC and the AEAD modes pick their direction from it; CTR, OFB and
// stream-cipher variants are directionless and ignore it, but calling it
// keeps the New/SetForDecrypt call convention uniform for callers that
// don't know in advance which mode they hold.
func SetForDecrypt(v Variant) {
	if e, ok := v.(*blockEngine); ok {
		e.forEncrypt = false
	}
}

type unknownModeErr struct{ mode Mode }

func (e *unknownModeErr) Error() string { return "unknown cipher mode: " + string(e.mode) }
func errUnknownMode(m Mode) error       { return &unknownModeErr{mode: m} }

type aeadWithPaddingErr struct{ mode Mode }

func (e *aeadWithPaddingErr) Error() string {
	return "AEAD mode " + string(e.mode) + " must not be configured with padding"
}
func errAEADWithPadding(m Mode) error { return &aeadWithPaddingErr{mode: m} }

type modeNeedsPaddingErr struct{ mode Mode }

func (e *modeNeedsPaddingErr) Error() string {
	return "mode " + string(e.mode) + " requires a padding scheme, got none"
}
func errModeNeedsPadding(m Mode) error { return &modeNeedsPaddingErr{mode: m} }

type bothCipherKindsErr struct{}

func (e *bothCipherKindsErr) Error() string {
	return "exactly one of BlockCipherName or StreamCipherName must be set"
}
func errBothCipherKinds() error { return &bothCipherKindsErr{} }
